package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/framegrab/internal/domain"
	"github.com/iconidentify/framegrab/internal/repository"
)

// ArchiveIndex is the queryable index of completed grabs.
type ArchiveIndex interface {
	List(ctx context.Context, limit, offset int) ([]repository.GrabRecord, error)
	Get(ctx context.Context, postID string) (*repository.GrabRecord, error)
	Count(ctx context.Context) (int, error)
}

// ArchiveHandler serves the index of completed grabs.
type ArchiveHandler struct {
	archive ArchiveIndex
	logger  *slog.Logger
}

// NewArchiveHandler creates a new archive handler.
func NewArchiveHandler(archive ArchiveIndex, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archive: archive,
		logger:  logger,
	}
}

// ListResponse contains a paginated grab list.
type ListResponse struct {
	Grabs  []repository.GrabRecord `json:"grabs"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

// List handles GET /api/v1/grabs
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	grabs, err := h.archive.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list grabs")
		return
	}

	total, err := h.archive.Count(r.Context())
	if err != nil {
		h.logger.Error("count failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list grabs")
		return
	}

	if grabs == nil {
		grabs = []repository.GrabRecord{}
	}
	h.writeJSON(w, http.StatusOK, ListResponse{
		Grabs:  grabs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /api/v1/grabs/{postID}
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")
	if postID == "" {
		h.writeError(w, http.StatusBadRequest, "missing post ID")
		return
	}

	rec, err := h.archive.Get(r.Context(), postID)
	if err != nil {
		if errors.Is(err, domain.ErrGrabNotFound) {
			h.writeError(w, http.StatusNotFound, "grab not found")
			return
		}
		h.logger.Error("get failed", "post_id", postID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get grab")
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

func (h *ArchiveHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *ArchiveHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
