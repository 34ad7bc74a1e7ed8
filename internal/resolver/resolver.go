package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/iconidentify/framegrab/internal/browser"
	"github.com/iconidentify/framegrab/internal/config"
	"github.com/iconidentify/framegrab/internal/domain"
)

// Resolver decides which observed responses belong to the video embedded
// in the target post, as opposed to unrelated videos loaded on the same
// page.
type Resolver struct {
	settleWindow time.Duration
	playWindow   time.Duration
	logger       *slog.Logger
}

// New creates a resolver with the configured observation windows.
func New(cfg config.BrowserConfig, logger *slog.Logger) *Resolver {
	return &Resolver{
		settleWindow: cfg.SettleWindow,
		playWindow:   cfg.PlayWaitWindow,
		logger:       logger,
	}
}

// Resolve waits out the settle window after navigation, classifies what was
// observed, and returns the candidate pool for the target post.
//
// If the initial window produced nothing, a single recovery is attempted:
// click a play control and observe for one more bounded window. The windows
// are timeouts, not retries; expiring just means fewer candidates.
func (r *Resolver) Resolve(ctx context.Context, bc browser.Context, post domain.PostRef) ([]domain.ObservedResponse, error) {
	if err := wait(ctx, r.settleWindow); err != nil {
		return nil, err
	}

	pool := Classify(bc.Responses().Snapshot())

	if len(pool) == 0 {
		r.logger.Debug("no video responses after initial load, clicking play", "post_id", post.PostID)
		if err := bc.ClickPlay(ctx); err != nil {
			return nil, err
		}
		if err := wait(ctx, r.playWindow); err != nil {
			return nil, err
		}
		pool = Classify(bc.Responses().Snapshot())
	}

	if len(pool) == 0 {
		return nil, domain.NewGrabError(post.PostID, "resolve", domain.ErrNoVideoFound)
	}

	groups := GroupByMediaID(pool)
	postID := post.IDInt()

	if len(groups) > 0 && postID != nil {
		if g := SelectGroup(groups, postID); g != nil {
			r.logger.Info("resolved media identity",
				"post_id", post.PostID,
				"media_id", g.MediaID,
				"groups", len(groups),
				"members", len(g.Members),
			)
			return g.Members, nil
		}
	}

	// Degraded mode: no group could be formed. Every qualifying response
	// becomes a candidate; load order still biases toward the post's own
	// video downstream.
	r.logger.Warn("no media identity group, using full candidate pool",
		"post_id", post.PostID,
		"candidates", len(pool),
	)
	return pool, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
