package domain

import "time"

// ObservedResponse is one network response seen while the post page loads.
// Immutable once recorded; lives only for the duration of one resolution
// attempt.
type ObservedResponse struct {
	URL         string
	ContentType string
	Status      int
	ObservedAt  time.Time
}

// StreamFormat is the retrieval strategy for a candidate stream.
type StreamFormat string

const (
	// FormatPlaylist is a segmented adaptive-bitrate manifest (.m3u8).
	// Retrieval requires a remux pass through ffmpeg.
	FormatPlaylist StreamFormat = "segmented-playlist"

	// FormatProgressive is a complete progressive file (.mp4).
	// Retrieval is a direct byte transfer.
	FormatProgressive StreamFormat = "progressive-file"
)

// StreamCandidate is one observed response judged retrievable.
type StreamCandidate struct {
	URL    string
	Format StreamFormat
	// Area is width*height parsed from the URL's resolution token,
	// 0 when unknown.
	Area int
}

// MediaGroup clusters observed responses that reference the same underlying
// media object. Members keep observation order, which on the source page is
// load-priority order.
type MediaGroup struct {
	MediaID string
	Members []ObservedResponse
}
