package domain

import (
	"math"
	"time"
)

// DownloadResult is the final output of one resolve+retrieve+sample run.
// Written once, then immutable.
type DownloadResult struct {
	LocalVideoPath string
	// Frames holds local frame image paths; slice position is temporal
	// order within the video.
	Frames   []string
	Metadata GrabMetadata
}

// GrabMetadata describes an archived grab. It is persisted as a JSON
// sidecar next to the video file and indexed in the archive database.
type GrabMetadata struct {
	PostID          string    `json:"post_id"`
	AuthorHandle    string    `json:"author_handle"`
	SourceURL       string    `json:"source_url"`
	DownloadedAt    time.Time `json:"downloaded_at"`
	SizeBytes       int64     `json:"size_bytes"`
	SizeMB          float64   `json:"size_mb"`
	DurationSeconds float64   `json:"duration_seconds"`
	FrameCount      int       `json:"frame_count"`
	VideoFile       string    `json:"video_file"`
}

// Round2 rounds a value to two decimal places, used for the MB and
// duration fields of the metadata record.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
