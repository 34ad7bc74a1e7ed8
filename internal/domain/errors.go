package domain

import "errors"

// Domain errors. Every failure of a grab pipeline terminates the request;
// nothing in this package retries.
var (
	// ErrInvalidURL is returned when the post URL is malformed or carries no
	// numeric post ID. No network activity happens after this error.
	ErrInvalidURL = errors.New("invalid post URL")

	// ErrFFmpegUnavailable is returned when ffmpeg/ffprobe are required but
	// not installed. Reported before any network activity begins.
	ErrFFmpegUnavailable = errors.New("ffmpeg not available")

	// ErrNoVideoFound is returned when no video responses were observed
	// during page load, even after triggering the play control.
	ErrNoVideoFound = errors.New("no video found on page")

	// ErrNoDownloadableURL is returned when video responses were observed
	// but none passed the status/format filters.
	ErrNoDownloadableURL = errors.New("no downloadable video URL")

	// ErrDownloadFailed is returned when the transfer or playlist remux fails.
	ErrDownloadFailed = errors.New("video download failed")

	// ErrTooManyRedirects is returned when a progressive download exceeds
	// the redirect hop limit.
	ErrTooManyRedirects = errors.New("too many redirects")

	// ErrFrameExtractionFailed is returned when any frame extraction fails.
	// A partial frame set is never considered valid.
	ErrFrameExtractionFailed = errors.New("frame extraction failed")

	// ErrGrabInProgress is returned when a grab for the same post is
	// already running. Callers must not target the same output directory
	// concurrently.
	ErrGrabInProgress = errors.New("grab already in progress for this post")

	// ErrGrabNotFound is returned when an archived grab cannot be found.
	ErrGrabNotFound = errors.New("grab not found")
)

// GrabError wraps an error with pipeline context.
type GrabError struct {
	PostID string
	Op     string
	Err    error
}

func (e *GrabError) Error() string {
	if e.PostID != "" {
		return e.Op + " [" + e.PostID + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *GrabError) Unwrap() error {
	return e.Err
}

// NewGrabError creates a new GrabError.
func NewGrabError(postID, op string, err error) *GrabError {
	return &GrabError{
		PostID: postID,
		Op:     op,
		Err:    err,
	}
}
