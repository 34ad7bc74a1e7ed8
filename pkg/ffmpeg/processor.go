// Package ffmpeg wraps the ffmpeg/ffprobe binaries behind the small set of
// media operations the grab pipeline needs: duration probing, frame
// extraction, and HLS playlist remuxing.
package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Processor executes media operations through local ffmpeg binaries.
type Processor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewProcessor creates a processor, locating ffmpeg and ffprobe in PATH.
func NewProcessor() (*Processor, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Processor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}, nil
}

// ProbeDuration returns the media duration in seconds.
func (p *Processor) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if parsed.Format.Duration == "" {
		return 0, fmt.Errorf("no duration in ffprobe output for %s", path)
	}

	dur, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", parsed.Format.Duration, err)
	}
	return dur, nil
}

// ExtractFrame writes a single still image taken at the given timestamp.
func (p *Processor) ExtractFrame(ctx context.Context, path string, atSeconds float64, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Seek after opening input for better compatibility with some
	// container/codec combinations.
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", path,
		"-ss", fmt.Sprintf("%.3f", atSeconds),
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		outPath,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extract frame at %.3fs: %w", atSeconds, err)
	}

	// ffmpeg can exit zero without producing output when the seek lands
	// past the last decodable frame.
	if stat, err := os.Stat(outPath); err != nil || stat.Size() == 0 {
		return fmt.Errorf("no frame produced at %.3fs", atSeconds)
	}
	return nil
}

// ExtractAllFrames dumps every frame of the video into outDir and returns
// the produced file paths in directory-listing order. Callers that need
// temporal order sort by the embedded sequence number.
func (p *Processor) ExtractAllFrames(ctx context.Context, path, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	pattern := filepath.Join(outDir, "frame_%d.jpg")
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", path,
		"-q:v", "2",
		"-y",
		pattern,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("extract all frames: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("read frames dir: %w", err)
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "frame_") && strings.HasSuffix(e.Name(), ".jpg") {
			frames = append(frames, filepath.Join(outDir, e.Name()))
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted from %s", path)
	}
	return frames, nil
}

// RemuxPlaylist fetches a segmented playlist and stream-copies it into a
// single file. The audio bitstream filter converts ADTS AAC into the form
// the MP4 container requires; without it the copy produces broken audio.
// No partial file is left behind on failure.
func (p *Processor) RemuxPlaylist(ctx context.Context, url, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-i", url,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-y",
		outPath,
	)
	if err := cmd.Run(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("remux playlist: %w", err)
	}
	return nil
}

// IsAvailable reports whether both ffmpeg and ffprobe are installed.
func (p *Processor) IsAvailable() bool {
	_, err := exec.LookPath(p.ffmpegPath)
	if err != nil {
		return false
	}
	_, err = exec.LookPath(p.ffprobePath)
	return err == nil
}

// GetVersion returns the ffmpeg version string.
func (p *Processor) GetVersion() (string, error) {
	cmd := exec.Command(p.ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}
