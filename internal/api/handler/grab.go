package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/iconidentify/framegrab/internal/config"
	"github.com/iconidentify/framegrab/internal/domain"
	"github.com/iconidentify/framegrab/internal/downloader"
	"github.com/iconidentify/framegrab/internal/sampler"
)

// Grabber runs the full resolve/download/sample pipeline for one post.
type Grabber interface {
	Grab(ctx context.Context, rawURL string, spec sampler.FrameSpec) (*domain.DownloadResult, error)
}

// GrabHandler handles grab submission requests.
type GrabHandler struct {
	grabSvc     Grabber
	downloadCfg config.DownloadConfig
	framesCfg   config.FramesConfig
	logger      *slog.Logger
}

// NewGrabHandler creates a new grab handler.
func NewGrabHandler(grabSvc Grabber, downloadCfg config.DownloadConfig, framesCfg config.FramesConfig, logger *slog.Logger) *GrabHandler {
	return &GrabHandler{
		grabSvc:     grabSvc,
		downloadCfg: downloadCfg,
		framesCfg:   framesCfg,
		logger:      logger,
	}
}

// GrabRequest is the JSON request body for grab submission.
type GrabRequest struct {
	URL        string `json:"url"`
	FrameCount int    `json:"frame_count,omitempty"`
	AllFrames  bool   `json:"all_frames,omitempty"`
}

// GrabResponse is the JSON response for a completed grab.
type GrabResponse struct {
	RequestID string              `json:"request_id"`
	VideoPath string              `json:"video_path"`
	Frames    []string            `json:"frames"`
	Metadata  domain.GrabMetadata `json:"metadata"`
}

// Submit handles POST /api/v1/grabs. The grab runs synchronously; the
// response carries the full result.
func (h *GrabHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req GrabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "missing url")
		return
	}

	spec := sampler.FrameSpec{Count: req.FrameCount, All: req.AllFrames}
	if !req.AllFrames && req.FrameCount == 0 {
		spec.Count = h.framesCfg.DefaultCount
	}

	requestID := uuid.New().String()
	h.logger.Info("grab requested",
		"request_id", requestID,
		"url", req.URL,
		"frame_count", spec.Count,
		"all_frames", spec.All,
	)

	retryCfg := downloader.DefaultRetryConfig()
	retryCfg.MaxAttempts = h.downloadCfg.MaxAttempts
	retryCfg.InitialDelay = h.downloadCfg.RetryDelay

	// The pipeline itself never retries; a second attempt re-runs the
	// whole grab from page load.
	result, err := downloader.RetryWithCheck(r.Context(), retryCfg,
		func() (*domain.DownloadResult, error) {
			return h.grabSvc.Grab(r.Context(), req.URL, spec)
		},
		func(err error) bool {
			return !errors.Is(err, domain.ErrInvalidURL) &&
				!errors.Is(err, domain.ErrFFmpegUnavailable) &&
				!errors.Is(err, domain.ErrGrabInProgress)
		},
	)
	if err != nil {
		h.logger.Error("grab failed", "request_id", requestID, "url", req.URL, "error", err)
		h.writeGrabError(w, err)
		return
	}

	h.logger.Info("grab complete",
		"request_id", requestID,
		"post_id", result.Metadata.PostID,
		"size_mb", result.Metadata.SizeMB,
		"frames", len(result.Frames),
	)

	h.writeJSON(w, http.StatusOK, GrabResponse{
		RequestID: requestID,
		VideoPath: result.LocalVideoPath,
		Frames:    result.Frames,
		Metadata:  result.Metadata,
	})
}

func (h *GrabHandler) writeGrabError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		h.writeError(w, http.StatusBadRequest, "invalid post URL")
	case errors.Is(err, domain.ErrGrabInProgress):
		h.writeError(w, http.StatusConflict, "grab already in progress for this post")
	case errors.Is(err, domain.ErrFFmpegUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "ffmpeg is not available")
	case errors.Is(err, domain.ErrNoVideoFound):
		h.writeError(w, http.StatusNotFound, "no video found in post")
	case errors.Is(err, domain.ErrNoDownloadableURL):
		h.writeError(w, http.StatusNotFound, "no downloadable video URL observed")
	case errors.Is(err, domain.ErrDownloadFailed), errors.Is(err, domain.ErrTooManyRedirects):
		h.writeError(w, http.StatusBadGateway, "video download failed")
	default:
		h.writeError(w, http.StatusInternalServerError, "grab failed")
	}
}

func (h *GrabHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *GrabHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
