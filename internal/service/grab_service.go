// Package service orchestrates the grab pipeline: parse input, resolve the
// video identity from observed responses, select a stream, retrieve it,
// probe metadata, sample frames, persist the record.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iconidentify/framegrab/internal/browser"
	"github.com/iconidentify/framegrab/internal/config"
	"github.com/iconidentify/framegrab/internal/domain"
	"github.com/iconidentify/framegrab/internal/repository"
	"github.com/iconidentify/framegrab/internal/resolver"
	"github.com/iconidentify/framegrab/internal/sampler"
)

// metadataFile is the sidecar record written next to the video and frames.
const metadataFile = "metadata.json"

// videoFile is the name of the retrieved video inside the post directory.
const videoFile = "video.mp4"

// framesDir holds the sampled frame images inside the post directory.
const framesDir = "frames"

// Retriever executes the progressive-file strategy.
type Retriever interface {
	DownloadToFile(ctx context.Context, url, destPath string) (int64, error)
}

// MediaGateway is the full media tool surface the pipeline needs.
type MediaGateway interface {
	sampler.Gateway
	RemuxPlaylist(ctx context.Context, url, outPath string) error
}

// GrabService runs the full pipeline for one post URL. Each stage's output
// is a hard input to the next; every failure is terminal for the request.
type GrabService struct {
	provider   browser.Provider
	resolver   *resolver.Resolver
	retriever  Retriever
	gateway    MediaGateway
	sampler    *sampler.Sampler
	archive    *repository.ArchiveRepository
	storageCfg config.StorageConfig
	navTimeout time.Duration
	logger     *slog.Logger

	// inflight guards against two concurrent grabs targeting the same
	// output directory.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewGrabService creates the orchestrator.
func NewGrabService(
	provider browser.Provider,
	res *resolver.Resolver,
	retriever Retriever,
	gateway MediaGateway,
	archive *repository.ArchiveRepository,
	storageCfg config.StorageConfig,
	browserCfg config.BrowserConfig,
	logger *slog.Logger,
) *GrabService {
	return &GrabService{
		provider:   provider,
		resolver:   res,
		retriever:  retriever,
		gateway:    gateway,
		sampler:    sampler.New(gateway, logger),
		archive:    archive,
		storageCfg: storageCfg,
		navTimeout: browserCfg.NavTimeout,
		logger:     logger,
		inflight:   make(map[string]struct{}),
	}
}

// Grab resolves, retrieves, and samples the video behind rawURL. It returns
// the completed result, or one of the domain errors; no partial metadata
// record is ever written.
func (s *GrabService) Grab(ctx context.Context, rawURL string, spec sampler.FrameSpec) (*domain.DownloadResult, error) {
	// ParseInput
	post, err := domain.ParsePostURL(rawURL)
	if err != nil {
		return nil, domain.NewGrabError("", "parse", err)
	}

	logger := s.logger.With("post_id", post.PostID, "author", post.AuthorHandle)

	// The media gateway is required for probing, remuxing, and sampling.
	// Its absence is reported before any network activity begins.
	if s.gateway == nil {
		return nil, domain.NewGrabError(post.PostID, "precondition", domain.ErrFFmpegUnavailable)
	}

	if !s.acquire(post.DirName()) {
		return nil, domain.NewGrabError(post.PostID, "grab", domain.ErrGrabInProgress)
	}
	defer s.release(post.DirName())

	// ResolveIdentity
	pool, err := s.resolveCandidates(ctx, post, logger)
	if err != nil {
		return nil, err
	}

	// SelectStream
	chosen, err := resolver.SelectStream(pool)
	if err != nil {
		return nil, domain.NewGrabError(post.PostID, "select", err)
	}
	logger.Info("selected stream",
		"url", chosen.URL,
		"format", string(chosen.Format),
		"area", chosen.Area,
	)

	// Retrieve
	outDir := filepath.Join(s.storageCfg.BasePath, post.DirName())
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	videoPath := filepath.Join(outDir, videoFile)

	sizeBytes, err := s.retrieve(ctx, chosen, videoPath)
	if err != nil {
		return nil, domain.NewGrabError(post.PostID, "retrieve", err)
	}

	// ProbeMetadata: size and duration are computed only after the
	// retrieval succeeded.
	duration, err := s.gateway.ProbeDuration(ctx, videoPath)
	if err != nil {
		return nil, domain.NewGrabError(post.PostID, "probe", err)
	}

	// SampleFrames
	frames, err := s.sampler.Sample(ctx, videoPath, filepath.Join(outDir, framesDir), spec)
	if err != nil {
		return nil, domain.NewGrabError(post.PostID, "sample", err)
	}

	// PersistMetadata: written only now, so the record always matches the
	// frames actually on disk.
	result := &domain.DownloadResult{
		LocalVideoPath: videoPath,
		Frames:         frames,
		Metadata: domain.GrabMetadata{
			PostID:          post.PostID,
			AuthorHandle:    post.AuthorHandle,
			SourceURL:       post.SourceURL,
			DownloadedAt:    time.Now().UTC(),
			SizeBytes:       sizeBytes,
			SizeMB:          domain.Round2(float64(sizeBytes) / (1024 * 1024)),
			DurationSeconds: domain.Round2(duration),
			FrameCount:      len(frames),
			VideoFile:       videoFile,
		},
	}

	if err := s.persistMetadata(ctx, result, outDir); err != nil {
		return nil, domain.NewGrabError(post.PostID, "persist", err)
	}

	logger.Info("grab completed",
		"video", videoPath,
		"size_mb", result.Metadata.SizeMB,
		"duration_s", result.Metadata.DurationSeconds,
		"frames", len(frames),
	)
	return result, nil
}

// resolveCandidates owns the browsing context for exactly one resolution
// attempt; the context is closed on every exit path.
func (s *GrabService) resolveCandidates(ctx context.Context, post domain.PostRef, logger *slog.Logger) ([]domain.ObservedResponse, error) {
	bc, err := s.provider.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browsing context: %w", err)
	}
	defer bc.Close()

	navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()

	if err := bc.Navigate(navCtx, post.SourceURL); err != nil {
		return nil, domain.NewGrabError(post.PostID, "navigate", err)
	}

	pool, err := s.resolver.Resolve(ctx, bc, post)
	if err != nil {
		return nil, err
	}
	logger.Debug("candidate pool resolved", "candidates", len(pool))
	return pool, nil
}

func (s *GrabService) retrieve(ctx context.Context, chosen domain.StreamCandidate, videoPath string) (int64, error) {
	switch chosen.Format {
	case domain.FormatPlaylist:
		if err := s.gateway.RemuxPlaylist(ctx, chosen.URL, videoPath); err != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrDownloadFailed, err)
		}
		stat, err := os.Stat(videoPath)
		if err != nil {
			return 0, fmt.Errorf("stat remuxed file: %w", err)
		}
		return stat.Size(), nil
	default:
		return s.retriever.DownloadToFile(ctx, chosen.URL, videoPath)
	}
}

func (s *GrabService) persistMetadata(ctx context.Context, result *domain.DownloadResult, outDir string) error {
	data, err := json.MarshalIndent(result.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, metadataFile), data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	if s.archive != nil {
		if err := s.archive.Save(ctx, result.Metadata, outDir); err != nil {
			return err
		}
	}
	return nil
}

func (s *GrabService) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *GrabService) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}
