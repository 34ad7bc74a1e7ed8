// Package browser provides the browsing session used to observe the
// network responses a post page generates while it loads. The session is
// assumed to carry an already-authenticated profile; login flows are
// outside this service.
package browser

import "context"

// Provider opens browsing contexts.
type Provider interface {
	// Open acquires a fresh browsing context. Each context serves exactly
	// one resolution attempt and must be closed on every exit path.
	Open(ctx context.Context) (Context, error)
}

// Context is a navigable browsing context that records every network
// response observed during and after page load.
type Context interface {
	// Navigate loads the URL and blocks until the page's content has
	// loaded or ctx expires. Responses keep accumulating in the log
	// after Navigate returns.
	Navigate(ctx context.Context, url string) error

	// Responses returns the append-only log of observed responses.
	Responses() *ResponseLog

	// ClickPlay locates and activates a video play control on the page.
	// Clicking nothing is not an error; the caller re-checks the log.
	ClickPlay(ctx context.Context) error

	// Close releases the context and stops response observation.
	Close() error
}

// playSelectors are tried in order when a video needs a nudge to start
// loading. X renders the player behind a couple of different test ids.
var playSelectors = []string{
	`[data-testid="playButton"]`,
	`[data-testid="videoPlayer"]`,
	`[data-testid="videoComponent"] video`,
}
