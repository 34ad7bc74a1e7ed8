package resolver

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/iconidentify/framegrab/internal/domain"
)

// resolutionPattern matches the WIDTHxHEIGHT path segment the CDN encodes
// variant resolution with, e.g. /720x1280/.
var resolutionPattern = regexp.MustCompile(`/(\d+)x(\d+)/`)

// highQualityMarker tags playlist variants served through the
// high-quality codec path even when no resolution segment is present.
const highQualityMarker = "/avc1/"

// fragmentExt marks partial segment files that are never complete videos.
const fragmentExt = ".m4s"

// resolutionArea parses the resolution token from a URL and returns
// width*height, or 0 when no token is present.
func resolutionArea(url string) int {
	m := resolutionPattern.FindStringSubmatch(url)
	if len(m) < 3 {
		return 0
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	return w * h
}

// SelectStream chooses exactly one retrievable URL and strategy from the
// candidate pool.
//
// Segmented playlists win over progressive files regardless of nominal
// resolution: the platform serves its highest bitrate variants only through
// adaptive manifests. Progressive files are the simpler, lower-quality
// fallback that needs no remux pass.
func SelectStream(pool []domain.ObservedResponse) (domain.StreamCandidate, error) {
	var ok []domain.ObservedResponse
	for _, r := range pool {
		if r.Status == http.StatusOK {
			ok = append(ok, r)
		}
	}

	// Preferred path: ranked playlist, highest resolution area wins.
	// Strictly-greater comparison keeps the first-observed candidate on
	// ties, matching page load priority.
	var best *domain.StreamCandidate
	for _, r := range ok {
		if !strings.Contains(r.URL, ".m3u8") {
			continue
		}
		area := resolutionArea(r.URL)
		if area == 0 && !strings.Contains(r.URL, highQualityMarker) {
			continue
		}
		if best == nil || area > best.Area {
			best = &domain.StreamCandidate{
				URL:    r.URL,
				Format: domain.FormatPlaylist,
				Area:   area,
			}
		}
	}
	if best != nil {
		return *best, nil
	}

	// Fallback path: progressive file, excluding partial segments. An
	// unranked file (no resolution token) is still eligible.
	for _, r := range ok {
		if !strings.Contains(r.URL, ".mp4") || strings.Contains(r.URL, fragmentExt) {
			continue
		}
		area := resolutionArea(r.URL)
		if best == nil || area > best.Area {
			best = &domain.StreamCandidate{
				URL:    r.URL,
				Format: domain.FormatProgressive,
				Area:   area,
			}
		}
	}
	if best != nil {
		return *best, nil
	}

	return domain.StreamCandidate{}, domain.ErrNoDownloadableURL
}
