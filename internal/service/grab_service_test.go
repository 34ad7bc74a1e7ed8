package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iconidentify/framegrab/internal/browser"
	"github.com/iconidentify/framegrab/internal/config"
	"github.com/iconidentify/framegrab/internal/domain"
	"github.com/iconidentify/framegrab/internal/downloader"
	"github.com/iconidentify/framegrab/internal/repository"
	"github.com/iconidentify/framegrab/internal/resolver"
	"github.com/iconidentify/framegrab/internal/sampler"
)

// fakeBrowserContext serves a pre-seeded response log.
type fakeBrowserContext struct {
	log    *browser.ResponseLog
	closed bool
}

func (f *fakeBrowserContext) Navigate(ctx context.Context, url string) error { return nil }
func (f *fakeBrowserContext) Responses() *browser.ResponseLog                { return f.log }
func (f *fakeBrowserContext) ClickPlay(ctx context.Context) error            { return nil }
func (f *fakeBrowserContext) Close() error {
	f.closed = true
	return nil
}

// fakeProvider hands out a single scripted context and counts opens.
type fakeProvider struct {
	ctx     *fakeBrowserContext
	opens   int
	openErr error
	block   chan struct{} // when set, Open waits until the channel closes
}

func (f *fakeProvider) Open(ctx context.Context) (browser.Context, error) {
	if f.block != nil {
		<-f.block
	}
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.ctx, nil
}

// fakeMediaGateway is a scripted ffmpeg stand-in.
type fakeMediaGateway struct {
	duration     float64
	remuxed      []string
	extractCalls int
	allCalls     int
}

func (g *fakeMediaGateway) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return g.duration, nil
}

func (g *fakeMediaGateway) ExtractFrame(ctx context.Context, path string, atSeconds float64, outPath string) error {
	g.extractCalls++
	return os.WriteFile(outPath, []byte("jpeg"), 0644)
}

func (g *fakeMediaGateway) ExtractAllFrames(ctx context.Context, path, outDir string) ([]string, error) {
	g.allCalls++
	return nil, errors.New("not scripted")
}

func (g *fakeMediaGateway) RemuxPlaylist(ctx context.Context, url, outPath string) error {
	g.remuxed = append(g.remuxed, url)
	return os.WriteFile(outPath, []byte("remuxed video bytes"), 0644)
}

type testEnv struct {
	svc      *GrabService
	provider *fakeProvider
	gateway  *fakeMediaGateway
	archive  *repository.ArchiveRepository
	basePath string
}

func newTestEnv(t *testing.T, log *browser.ResponseLog) *testEnv {
	t.Helper()

	basePath := t.TempDir()
	archive, err := repository.NewArchiveRepository(filepath.Join(basePath, "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { archive.Close() })

	browserCfg := config.BrowserConfig{
		NavTimeout:     5 * time.Second,
		SettleWindow:   time.Millisecond,
		PlayWaitWindow: time.Millisecond,
	}
	provider := &fakeProvider{ctx: &fakeBrowserContext{log: log}}
	gateway := &fakeMediaGateway{duration: 65.0}

	svc := NewGrabService(
		provider,
		resolver.New(browserCfg, slog.Default()),
		downloader.NewHTTPDownloader(config.DownloadConfig{UserAgent: "test", ReadTimeout: 5 * time.Second}),
		gateway,
		archive,
		config.StorageConfig{BasePath: basePath},
		browserCfg,
		slog.Default(),
	)

	return &testEnv{
		svc:      svc,
		provider: provider,
		gateway:  gateway,
		archive:  archive,
		basePath: basePath,
	}
}

// videoServer serves fake progressive video bytes under CDN-shaped paths.
func videoServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGrab_EndToEnd(t *testing.T) {
	body := []byte("progressive video payload")
	server := videoServer(t, body)

	videoURL := server.URL + "/ext_tw_video/1989594664519084032/pu/vid/avc1/720x1280/clip.mp4"
	log := browser.NewResponseLog()
	log.Append("https://x.com/example/status/1989594664685752738", "text/html", 200)
	log.Append(videoURL, "video/mp4", 200)

	env := newTestEnv(t, log)

	result, err := env.svc.Grab(
		context.Background(),
		"https://x.com/example/status/1989594664685752738",
		sampler.FrameSpec{Count: 3},
	)
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}

	if result.Metadata.AuthorHandle != "example" {
		t.Errorf("AuthorHandle = %q, want example", result.Metadata.AuthorHandle)
	}
	if result.Metadata.PostID != "1989594664685752738" {
		t.Errorf("PostID = %q", result.Metadata.PostID)
	}
	if len(result.Frames) != 3 || result.Metadata.FrameCount != 3 {
		t.Errorf("frames = %d / frame_count = %d, want 3", len(result.Frames), result.Metadata.FrameCount)
	}
	if result.Metadata.SizeBytes != int64(len(body)) {
		t.Errorf("SizeBytes = %d, want %d", result.Metadata.SizeBytes, len(body))
	}
	if result.Metadata.DurationSeconds != 65.0 {
		t.Errorf("DurationSeconds = %v, want 65", result.Metadata.DurationSeconds)
	}

	// Output directory is keyed by {authorHandle}_{postId}.
	outDir := filepath.Join(env.basePath, "example_1989594664685752738")
	if _, err := os.Stat(filepath.Join(outDir, "video.mp4")); err != nil {
		t.Errorf("video file missing: %v", err)
	}

	// The sidecar record matches the frames on disk.
	data, err := os.ReadFile(filepath.Join(outDir, "metadata.json"))
	if err != nil {
		t.Fatalf("metadata sidecar missing: %v", err)
	}
	var meta domain.GrabMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
	if meta.FrameCount != 3 {
		t.Errorf("sidecar frame_count = %d, want 3", meta.FrameCount)
	}

	// The archive index has the record too.
	rec, err := env.archive.Get(context.Background(), "1989594664685752738")
	if err != nil {
		t.Fatalf("archive record missing: %v", err)
	}
	if rec.FrameCount != 3 {
		t.Errorf("indexed frame_count = %d, want 3", rec.FrameCount)
	}

	if !env.provider.ctx.closed {
		t.Error("browsing context must be closed after resolution")
	}
}

func TestGrab_PrefersPlaylistRemux(t *testing.T) {
	log := browser.NewResponseLog()
	log.Append("https://video.twimg.com/ext_tw_video/900/pu/vid/avc1/1920x1080/clip.mp4", "video/mp4", 200)
	log.Append("https://video.twimg.com/ext_tw_video/900/pu/pl/720x1280/variant.m3u8", "", 200)

	env := newTestEnv(t, log)

	result, err := env.svc.Grab(context.Background(), "https://x.com/example/status/901", sampler.FrameSpec{})
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}

	if len(env.gateway.remuxed) != 1 {
		t.Fatalf("remux calls = %d, want 1", len(env.gateway.remuxed))
	}
	if env.gateway.remuxed[0] != "https://video.twimg.com/ext_tw_video/900/pu/pl/720x1280/variant.m3u8" {
		t.Errorf("remuxed URL = %s", env.gateway.remuxed[0])
	}
	if result.Metadata.FrameCount != 0 {
		t.Errorf("FrameCount = %d, want 0", result.Metadata.FrameCount)
	}
}

func TestGrab_InvalidURLBeforeNetwork(t *testing.T) {
	env := newTestEnv(t, browser.NewResponseLog())

	_, err := env.svc.Grab(context.Background(), "https://example.com/not-a-post", sampler.FrameSpec{Count: 1})
	if !errors.Is(err, domain.ErrInvalidURL) {
		t.Fatalf("err = %v, want ErrInvalidURL", err)
	}
	if env.provider.opens != 0 {
		t.Error("no browsing context may be opened for an invalid URL")
	}
}

func TestGrab_ZeroFrameSpecSkipsExtraction(t *testing.T) {
	body := []byte("video")
	server := videoServer(t, body)
	videoURL := server.URL + "/ext_tw_video/100/pu/vid/avc1/720x1280/clip.mp4"

	log := browser.NewResponseLog()
	log.Append(videoURL, "video/mp4", 200)

	env := newTestEnv(t, log)

	result, err := env.svc.Grab(context.Background(), "https://x.com/example/status/101", sampler.FrameSpec{})
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}
	if len(result.Frames) != 0 || result.Metadata.FrameCount != 0 {
		t.Errorf("frames = %v, frame_count = %d, want none", result.Frames, result.Metadata.FrameCount)
	}
	if env.gateway.extractCalls != 0 || env.gateway.allCalls != 0 {
		t.Error("extraction operations must not be invoked for a zero frame spec")
	}
}

func TestGrab_NoVideoFound(t *testing.T) {
	log := browser.NewResponseLog()
	log.Append("https://x.com/example/status/1", "text/html", 200)

	env := newTestEnv(t, log)

	_, err := env.svc.Grab(context.Background(), "https://x.com/example/status/1", sampler.FrameSpec{})
	if !errors.Is(err, domain.ErrNoVideoFound) {
		t.Errorf("err = %v, want ErrNoVideoFound", err)
	}
}

func TestGrab_PreconditionWithoutGateway(t *testing.T) {
	env := newTestEnv(t, browser.NewResponseLog())
	env.svc.gateway = nil

	_, err := env.svc.Grab(context.Background(), "https://x.com/example/status/1", sampler.FrameSpec{Count: 1})
	if !errors.Is(err, domain.ErrFFmpegUnavailable) {
		t.Fatalf("err = %v, want ErrFFmpegUnavailable", err)
	}
	if env.provider.opens != 0 {
		t.Error("precondition failure must precede any network activity")
	}
}

func TestGrab_Idempotent(t *testing.T) {
	body := []byte("stable video bytes")
	server := videoServer(t, body)
	videoURL := server.URL + "/ext_tw_video/200/pu/vid/avc1/720x1280/clip.mp4"

	log := browser.NewResponseLog()
	log.Append(videoURL, "video/mp4", 200)

	env := newTestEnv(t, log)
	url := "https://x.com/example/status/201"

	if _, err := env.svc.Grab(context.Background(), url, sampler.FrameSpec{Count: 2}); err != nil {
		t.Fatalf("first Grab failed: %v", err)
	}
	if _, err := env.svc.Grab(context.Background(), url, sampler.FrameSpec{Count: 2}); err != nil {
		t.Fatalf("second Grab failed: %v", err)
	}

	videoPath := filepath.Join(env.basePath, "example_201", "video.mp4")
	data, err := os.ReadFile(videoPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(body) {
		t.Error("re-download must overwrite with identical bytes")
	}

	n, err := env.archive.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("archive count = %d, want 1 after re-download", n)
	}
}

func TestGrab_ConcurrentSamePostRejected(t *testing.T) {
	env := newTestEnv(t, browser.NewResponseLog())
	env.provider.block = make(chan struct{})

	url := "https://x.com/example/status/300"
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Blocks inside provider.Open while holding the in-flight key.
		env.svc.Grab(context.Background(), url, sampler.FrameSpec{})
	}()

	// Wait for the first grab to take the key.
	deadline := time.Now().Add(time.Second)
	for {
		env.svc.mu.Lock()
		_, held := env.svc.inflight["example_300"]
		env.svc.mu.Unlock()
		if held || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, err := env.svc.Grab(context.Background(), url, sampler.FrameSpec{})
	if !errors.Is(err, domain.ErrGrabInProgress) {
		t.Errorf("err = %v, want ErrGrabInProgress", err)
	}

	close(env.provider.block)
	wg.Wait()
}

func TestStatsService(t *testing.T) {
	basePath := t.TempDir()
	archive, err := repository.NewArchiveRepository(filepath.Join(basePath, "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	meta := domain.GrabMetadata{PostID: "1", AuthorHandle: "a", SourceURL: "s", DownloadedAt: time.Now()}
	if err := archive.Save(context.Background(), meta, "/d"); err != nil {
		t.Fatal(err)
	}

	svc := NewStatsService(archive, config.StorageConfig{BasePath: basePath}, slog.Default())
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalGrabs != 1 {
		t.Errorf("TotalGrabs = %d, want 1", stats.TotalGrabs)
	}
	if stats.FreeBytes <= 0 {
		t.Errorf("FreeBytes = %d, want positive for a real directory", stats.FreeBytes)
	}
}

func TestGrab_RetrieveFailureLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()
	videoURL := server.URL + "/ext_tw_video/400/pu/vid/avc1/720x1280/clip.mp4"

	log := browser.NewResponseLog()
	log.Append(videoURL, "video/mp4", 200)

	env := newTestEnv(t, log)

	_, err := env.svc.Grab(context.Background(), "https://x.com/example/status/401", sampler.FrameSpec{})
	if !errors.Is(err, domain.ErrDownloadFailed) {
		t.Fatalf("err = %v, want ErrDownloadFailed", err)
	}

	videoPath := filepath.Join(env.basePath, "example_401", "video.mp4")
	if _, statErr := os.Stat(videoPath); !os.IsNotExist(statErr) {
		t.Error("no partial video file may remain after a failed retrieve")
	}

	// No metadata record either: Done is written only on full success.
	if _, statErr := os.Stat(filepath.Join(env.basePath, "example_401", "metadata.json")); !os.IsNotExist(statErr) {
		t.Error("metadata must not be written after a failed pipeline")
	}
}

func TestGrab_WrapsPostID(t *testing.T) {
	env := newTestEnv(t, browser.NewResponseLog())

	_, err := env.svc.Grab(context.Background(), "https://x.com/example/status/77", sampler.FrameSpec{})
	var ge *domain.GrabError
	if !errors.As(err, &ge) {
		t.Fatalf("err = %T, want *domain.GrabError", err)
	}
	if ge.PostID != "77" {
		t.Errorf("PostID = %q, want 77", ge.PostID)
	}
	if fmt.Sprintf("%v", err) == "" {
		t.Error("error string should not be empty")
	}
}
