package service

import (
	"context"
	"log/slog"

	"github.com/iconidentify/framegrab/internal/config"
	"github.com/iconidentify/framegrab/internal/repository"
)

// StorageStats reports output tree capacity and archive totals.
type StorageStats struct {
	FreeBytes  int64 `json:"free_bytes"`
	FreeMB     int64 `json:"free_mb"`
	TotalGrabs int   `json:"total_grabs"`
}

// StatsService answers storage/archive stat queries.
type StatsService struct {
	archive *repository.ArchiveRepository
	cfg     config.StorageConfig
	logger  *slog.Logger
}

// NewStatsService creates a stats service.
func NewStatsService(archive *repository.ArchiveRepository, cfg config.StorageConfig, logger *slog.Logger) *StatsService {
	return &StatsService{
		archive: archive,
		cfg:     cfg,
		logger:  logger,
	}
}

// Stats returns current storage statistics.
func (s *StatsService) Stats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{
		FreeBytes: getFreeDiskSpace(s.cfg.BasePath),
	}
	stats.FreeMB = stats.FreeBytes / (1024 * 1024)

	if s.archive != nil {
		n, err := s.archive.Count(ctx)
		if err != nil {
			return nil, err
		}
		stats.TotalGrabs = n
	}
	return stats, nil
}
