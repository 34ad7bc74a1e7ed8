// Package resolver turns the raw response log captured during a page load
// into a single retrievable stream: classify video-bearing responses,
// cluster them by media identity, pick the cluster belonging to the target
// post, then rank the cluster's representations.
package resolver

import (
	"strings"

	"github.com/iconidentify/framegrab/internal/domain"
)

// videoMarkers are URL fragments that identify video delivery even when
// the response carries no useful content type. The CDN path segments are
// the two shapes X uses for post video and amplified (ad-pipeline) video.
var videoMarkers = []string{
	".mp4",
	".m3u8",
	"/ext_tw_video/",
	"/amplify_video/",
}

// IsVideoCandidate reports whether a response plausibly carries video data.
func IsVideoCandidate(r domain.ObservedResponse) bool {
	if strings.Contains(r.ContentType, "video") {
		return true
	}
	for _, marker := range videoMarkers {
		if strings.Contains(r.URL, marker) {
			return true
		}
	}
	return false
}

// Classify filters a response log down to the subsequence that plausibly
// carries video data. Pure filter; observation order is preserved.
func Classify(responses []domain.ObservedResponse) []domain.ObservedResponse {
	var out []domain.ObservedResponse
	for _, r := range responses {
		if IsVideoCandidate(r) {
			out = append(out, r)
		}
	}
	return out
}
