// Package downloader performs the progressive-file retrieval strategy:
// a direct HTTP byte transfer to a local path.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/iconidentify/framegrab/internal/config"
	"github.com/iconidentify/framegrab/internal/domain"
)

// maxRedirects bounds redirect chains. CDN URLs normally resolve in one or
// two hops; anything deeper is a loop.
const maxRedirects = 10

// HTTPDownloader fetches progressive video files over HTTP(S).
type HTTPDownloader struct {
	client      *http.Client
	userAgent   string
	readTimeout time.Duration
	logger      *slog.Logger
}

// NewHTTPDownloader creates a downloader from download configuration.
func NewHTTPDownloader(cfg config.DownloadConfig) *HTTPDownloader {
	transport := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &HTTPDownloader{
		client: &http.Client{
			Transport: transport,
			// No overall timeout; stalls are caught per-read and the
			// caller's ctx bounds the whole transfer.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return domain.ErrTooManyRedirects
				}
				return nil
			},
		},
		userAgent:   cfg.UserAgent,
		readTimeout: cfg.ReadTimeout,
		logger:      slog.Default(),
	}
}

// SetLogger sets the logger for download progress reporting.
func (d *HTTPDownloader) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// DownloadToFile transfers the URL's body to destPath and returns the byte
// count. Exactly one file exists at destPath on success; on any failure the
// partial file is removed before the error propagates.
func (d *HTTPDownloader) DownloadToFile(ctx context.Context, url, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	// Headers mimic a browser request; the CDN rejects bare clients.
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Referer", "https://x.com/")

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, domain.ErrTooManyRedirects) {
			return 0, domain.ErrTooManyRedirects
		}
		return 0, fmt.Errorf("%w: %w", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: status %d", domain.ErrDownloadFailed, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}

	reader := newProgressReader(resp.Body, resp.ContentLength, d.readTimeout, d.logger, url)
	written, err := io.Copy(out, reader)

	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		return 0, fmt.Errorf("%w: transfer: %w", domain.ErrDownloadFailed, err)
	}

	return written, nil
}

// progressReader wraps a response body to log transfer progress and detect
// stalls (no data for readTimeout).
type progressReader struct {
	reader      io.Reader
	total       int64
	downloaded  int64
	readTimeout time.Duration
	lastRead    time.Time
	lastLog     time.Time
	logger      *slog.Logger
	url         string
}

func newProgressReader(r io.Reader, total int64, readTimeout time.Duration, logger *slog.Logger, url string) *progressReader {
	now := time.Now()
	return &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		lastRead:    now,
		lastLog:     now,
		logger:      logger,
		url:         url,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	if n > 0 {
		p.downloaded += int64(n)
		p.lastRead = time.Now()

		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	if err == nil && p.readTimeout > 0 && time.Since(p.lastRead) > p.readTimeout {
		return n, fmt.Errorf("download stalled: no data received for %v", p.readTimeout)
	}

	return n, err
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
			"total_mb", p.total/(1024*1024),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
		)
	}
}
