package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/iconidentify/framegrab/internal/config"
)

// ChromeProvider opens chromedp-backed browsing contexts against a local
// Chrome install using a persistent user profile.
type ChromeProvider struct {
	cfg    config.BrowserConfig
	logger *slog.Logger
}

// NewChromeProvider creates a provider from browser configuration.
func NewChromeProvider(cfg config.BrowserConfig, logger *slog.Logger) *ChromeProvider {
	return &ChromeProvider{
		cfg:    cfg,
		logger: logger,
	}
}

// Open launches a browser context and starts response observation.
// The returned context owns the browser process; Close releases it.
func (p *ChromeProvider) Open(ctx context.Context) (Context, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("autoplay-policy", "no-user-gesture-required"),
	)
	if p.cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(p.cfg.ProfileDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	bc := &chromeContext{
		ctx:         tabCtx,
		cancelTab:   tabCancel,
		cancelAlloc: allocCancel,
		log:         NewResponseLog(),
		logger:      p.logger,
	}

	// Register the listener before any navigation so nothing is missed.
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			bc.log.Append(e.Response.URL, e.Response.MimeType, int(e.Response.Status))
		}
	})

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		bc.Close()
		return nil, fmt.Errorf("enable network observation: %w", err)
	}

	return bc, nil
}

// chromeContext is one live browser tab plus its response log.
type chromeContext struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	log         *ResponseLog
	logger      *slog.Logger
}

func (c *chromeContext) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := mergeDeadline(c.ctx, ctx)
	defer cancel()

	c.logger.Debug("navigating", "url", url)
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (c *chromeContext) Responses() *ResponseLog {
	return c.log
}

func (c *chromeContext) ClickPlay(ctx context.Context) error {
	for _, sel := range playSelectors {
		clickCtx, cancel := mergeDeadline(c.ctx, ctx)
		clickCtx, cancelTimeout := context.WithTimeout(clickCtx, 2*time.Second)

		err := chromedp.Run(clickCtx, chromedp.Click(sel, chromedp.ByQuery))
		cancelTimeout()
		cancel()

		if err == nil {
			c.logger.Debug("clicked play control", "selector", sel)
			return nil
		}
	}
	// Nothing clickable found. The caller re-checks the response log
	// either way.
	return nil
}

func (c *chromeContext) Close() error {
	c.cancelTab()
	c.cancelAlloc()
	return nil
}

// mergeDeadline runs chromedp actions on the tab's context while honoring
// the caller's cancellation.
func mergeDeadline(tab, caller context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(caller, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
