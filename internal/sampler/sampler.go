// Package sampler produces ordered still frames from a downloaded video,
// either at N evenly spaced instants or exhaustively.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/iconidentify/framegrab/internal/domain"
)

// Gateway is the subset of media tool operations the sampler needs.
type Gateway interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractFrame(ctx context.Context, path string, atSeconds float64, outPath string) error
	ExtractAllFrames(ctx context.Context, path, outDir string) ([]string, error)
}

// FrameSpec says how many frames to sample. Zero count with All unset
// disables sampling entirely.
type FrameSpec struct {
	Count int
	All   bool
}

// Disabled reports whether sampling is a no-op.
func (s FrameSpec) Disabled() bool {
	return !s.All && s.Count <= 0
}

// Sampler computes sample timestamps and drives the gateway.
type Sampler struct {
	gw     Gateway
	logger *slog.Logger
}

// New creates a sampler.
func New(gw Gateway, logger *slog.Logger) *Sampler {
	return &Sampler{gw: gw, logger: logger}
}

// Instants computes N sample timestamps for a video of the given duration:
// t_i = (i/N)*D for i = 1..N, with the final instant pulled back half a
// second. Many encodes have seek slack at the exact end timestamp, and a
// seek that lands past the last decodable frame yields nothing.
func Instants(duration float64, n int) []float64 {
	if n <= 0 || duration <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 1; i <= n; i++ {
		out[i-1] = float64(i) / float64(n) * duration
	}
	last := out[n-1] - 0.5
	if last < 0 {
		last = 0
	}
	out[n-1] = last
	return out
}

// Sample extracts frames from videoPath into outDir according to spec.
// The returned paths are in temporal order. A partial frame set is never
// returned: any single extraction failure fails the whole operation and
// removes what was produced.
func (s *Sampler) Sample(ctx context.Context, videoPath, outDir string, spec FrameSpec) ([]string, error) {
	if spec.Disabled() {
		return nil, nil
	}

	if spec.All {
		return s.sampleAll(ctx, videoPath, outDir)
	}
	return s.sampleCount(ctx, videoPath, outDir, spec.Count)
}

func (s *Sampler) sampleCount(ctx context.Context, videoPath, outDir string, count int) ([]string, error) {
	duration, err := s.gw.ProbeDuration(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: probe duration: %w", domain.ErrFrameExtractionFailed, err)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	instants := Instants(duration, count)
	frames := make([]string, 0, count)

	for i, at := range instants {
		outPath := filepath.Join(outDir, fmt.Sprintf("frame_%d.jpg", i+1))
		if err := s.gw.ExtractFrame(ctx, videoPath, at, outPath); err != nil {
			removeAll(frames)
			return nil, fmt.Errorf("%w: frame %d at %.2fs: %w", domain.ErrFrameExtractionFailed, i+1, at, err)
		}
		frames = append(frames, outPath)
	}

	s.logger.Info("sampled frames", "count", len(frames), "duration_s", duration)
	return frames, nil
}

func (s *Sampler) sampleAll(ctx context.Context, videoPath, outDir string) ([]string, error) {
	frames, err := s.gw.ExtractAllFrames(ctx, videoPath, outDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFrameExtractionFailed, err)
	}

	SortNumeric(frames)
	s.logger.Info("dumped all frames", "count", len(frames))
	return frames, nil
}

var frameNumberPattern = regexp.MustCompile(`(\d+)`)

// SortNumeric orders frame paths by the last number embedded in their base
// name, so frame_10 sorts after frame_9 rather than after frame_1.
func SortNumeric(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return frameNumber(paths[i]) < frameNumber(paths[j])
	})
}

func frameNumber(path string) int {
	matches := frameNumberPattern.FindAllString(filepath.Base(path), -1)
	if len(matches) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(matches[len(matches)-1])
	return n
}

func removeAll(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}
