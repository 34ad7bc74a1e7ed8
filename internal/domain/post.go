package domain

import (
	"math/big"
	"regexp"
)

// postURLPattern matches status URLs on either domain:
// https://x.com/user/status/1234567890
// https://twitter.com/user/status/1234567890
var postURLPattern = regexp.MustCompile(`(?:twitter\.com|x\.com)/(\w+)/status/(\d+)`)

// PostRef identifies a single post, parsed from the input URL.
//
// PostID is kept as a digits-only string. Post identifiers are snowflake
// IDs that exceed 2^53, so they are never converted to native numbers;
// arithmetic happens through math/big.
type PostRef struct {
	AuthorHandle string
	PostID       string
	SourceURL    string
}

// ParsePostURL extracts the author handle and post ID from a status URL.
// Returns ErrInvalidURL when no numeric post ID can be found.
func ParsePostURL(rawURL string) (PostRef, error) {
	m := postURLPattern.FindStringSubmatch(rawURL)
	if len(m) < 3 {
		return PostRef{}, ErrInvalidURL
	}
	return PostRef{
		AuthorHandle: m[1],
		PostID:       m[2],
		SourceURL:    rawURL,
	}, nil
}

// IDInt returns the post ID as a big integer.
func (p PostRef) IDInt() *big.Int {
	n, ok := new(big.Int).SetString(p.PostID, 10)
	if !ok {
		return nil
	}
	return n
}

// DirName returns the output directory name for this post.
func (p PostRef) DirName() string {
	return p.AuthorHandle + "_" + p.PostID
}
