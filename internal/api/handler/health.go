package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/iconidentify/framegrab/internal/service"
)

var startTime = time.Now()

// MediaToolInfo reports on the external media tooling.
type MediaToolInfo interface {
	IsAvailable() bool
	GetVersion() (string, error)
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	statsSvc    *service.StatsService
	mediaTool   MediaToolInfo
	storagePath string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(statsSvc *service.StatsService, mediaTool MediaToolInfo, storagePath string) *HealthHandler {
	return &HealthHandler{
		statsSvc:    statsSvc,
		mediaTool:   mediaTool,
		storagePath: storagePath,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Detail    string `json:"detail,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. A ready instance has the
// media tooling on PATH and a writable output tree.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.mediaTool == nil || !h.mediaTool.IsAvailable() {
		h.notReady(w, "ffmpeg unavailable")
		return
	}

	probe := filepath.Join(h.storagePath, ".ready")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		h.notReady(w, "storage not writable")
		return
	}
	os.Remove(probe)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) notReady(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    "error",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Detail:    detail,
	})
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime        int64  `json:"uptime_seconds"`
	UptimeHuman   string `json:"uptime_human"`
	MemAllocMB    int64  `json:"mem_alloc_mb"`
	MemSysMB      int64  `json:"mem_sys_mb"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	FFmpegVersion string `json:"ffmpeg_version,omitempty"`
	DiskFreeBytes int64  `json:"disk_free_bytes"`
	DiskFreeMB    int64  `json:"disk_free_mb"`
	TotalGrabs    int    `json:"total_grabs"`
	StoragePath   string `json:"storage_path"`
}

// Stats handles GET /api/v1/stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)

	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		StoragePath:   h.storagePath,
	}

	if h.mediaTool != nil {
		if v, err := h.mediaTool.GetVersion(); err == nil {
			stats.FFmpegVersion = v
		}
	}

	if h.statsSvc != nil {
		if ss, err := h.statsSvc.Stats(r.Context()); err == nil {
			stats.DiskFreeBytes = ss.FreeBytes
			stats.DiskFreeMB = ss.FreeMB
			stats.TotalGrabs = ss.TotalGrabs
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
