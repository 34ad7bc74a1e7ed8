package resolver

import (
	"math/big"
	"regexp"

	"github.com/iconidentify/framegrab/internal/domain"
)

// mediaIDPattern recognizes the two video-delivery path shapes and captures
// the numeric media identifier, e.g.
// .../ext_tw_video/1989594664519084032/pu/vid/avc1/720x1280/x.mp4
// .../amplify_video/1989594664519084032/vid/1280x720/y.mp4
var mediaIDPattern = regexp.MustCompile(`/(?:ext_tw_video|amplify_video)/(\d+)/`)

// ExtractMediaID pulls the numeric media identifier out of a response URL.
// Returns "" when the URL matches neither delivery path shape.
func ExtractMediaID(url string) string {
	m := mediaIDPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// GroupByMediaID clusters responses by extracted media identifier. Groups
// appear in first-seen order and members keep observation order. Responses
// yielding no identifier are not clustered.
func GroupByMediaID(responses []domain.ObservedResponse) []domain.MediaGroup {
	var groups []domain.MediaGroup
	index := make(map[string]int)

	for _, r := range responses {
		id := ExtractMediaID(r.URL)
		if id == "" {
			continue
		}
		i, ok := index[id]
		if !ok {
			index[id] = len(groups)
			groups = append(groups, domain.MediaGroup{MediaID: id})
			i = len(groups) - 1
		}
		groups[i].Members = append(groups[i].Members, r)
	}

	return groups
}

// SelectGroup picks the group whose media ID is closest to the post ID in
// id-space. Media IDs are issued chronologically close to the containing
// post's ID, so proximity disambiguates the post's own video from unrelated
// videos loaded further down the page.
//
// Ties on absolute difference break toward the non-negative difference
// (media ID at or before the post ID). This is a heuristic inferred from
// observed ID issuance, not a platform contract.
//
// Comparison is exact big-integer arithmetic; these IDs exceed the range
// where float64 or int64 math is safe.
func SelectGroup(groups []domain.MediaGroup, postID *big.Int) *domain.MediaGroup {
	if len(groups) == 0 || postID == nil {
		return nil
	}

	var (
		best       *domain.MediaGroup
		bestAbs    *big.Int
		bestNonNeg bool
	)

	for i := range groups {
		g := &groups[i]
		mediaID, ok := new(big.Int).SetString(g.MediaID, 10)
		if !ok {
			continue
		}

		diff := new(big.Int).Sub(postID, mediaID)
		nonNeg := diff.Sign() >= 0
		abs := new(big.Int).Abs(diff)

		switch {
		case best == nil:
		case abs.Cmp(bestAbs) < 0:
		case abs.Cmp(bestAbs) == 0 && nonNeg && !bestNonNeg:
		default:
			continue
		}

		best = g
		bestAbs = abs
		bestNonNeg = nonNeg
	}

	return best
}
