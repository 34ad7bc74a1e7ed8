// Package repository persists the index of completed grabs. The video
// files and frame images live on the filesystem; the index makes them
// listable and makes re-download detection cheap.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/framegrab/internal/domain"
)

// GrabRecord is one indexed grab.
type GrabRecord struct {
	PostID          string    `json:"post_id"`
	AuthorHandle    string    `json:"author_handle"`
	SourceURL       string    `json:"source_url"`
	DownloadedAt    time.Time `json:"downloaded_at"`
	SizeBytes       int64     `json:"size_bytes"`
	SizeMB          float64   `json:"size_mb"`
	DurationSeconds float64   `json:"duration_seconds"`
	FrameCount      int       `json:"frame_count"`
	VideoFile       string    `json:"video_file"`
	DirPath         string    `json:"dir_path"`
}

// ArchiveRepository is a SQLite-backed index of completed grabs.
type ArchiveRepository struct {
	db *sql.DB
}

// NewArchiveRepository opens (creating if necessary) the archive index.
func NewArchiveRepository(path string) (*ArchiveRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS grabs (
			post_id          TEXT PRIMARY KEY,
			author_handle    TEXT NOT NULL,
			source_url       TEXT NOT NULL,
			downloaded_at    DATETIME NOT NULL,
			size_bytes       INTEGER NOT NULL,
			size_mb          REAL NOT NULL,
			duration_seconds REAL NOT NULL,
			frame_count      INTEGER NOT NULL,
			video_file       TEXT NOT NULL,
			dir_path         TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_grabs_author ON grabs(author_handle);
		CREATE INDEX IF NOT EXISTS idx_grabs_downloaded ON grabs(downloaded_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &ArchiveRepository{db: db}, nil
}

// Save upserts one grab record. Re-downloads of the same post replace the
// previous row, matching the overwrite semantics of the output directory.
func (r *ArchiveRepository) Save(ctx context.Context, meta domain.GrabMetadata, dirPath string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO grabs (
			post_id, author_handle, source_url, downloaded_at,
			size_bytes, size_mb, duration_seconds, frame_count,
			video_file, dir_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
			author_handle    = excluded.author_handle,
			source_url       = excluded.source_url,
			downloaded_at    = excluded.downloaded_at,
			size_bytes       = excluded.size_bytes,
			size_mb          = excluded.size_mb,
			duration_seconds = excluded.duration_seconds,
			frame_count      = excluded.frame_count,
			video_file       = excluded.video_file,
			dir_path         = excluded.dir_path
	`,
		meta.PostID, meta.AuthorHandle, meta.SourceURL, meta.DownloadedAt.UTC(),
		meta.SizeBytes, meta.SizeMB, meta.DurationSeconds, meta.FrameCount,
		meta.VideoFile, dirPath,
	)
	if err != nil {
		return fmt.Errorf("save grab: %w", err)
	}
	return nil
}

// Get returns the record for one post, or ErrGrabNotFound.
func (r *ArchiveRepository) Get(ctx context.Context, postID string) (*GrabRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT post_id, author_handle, source_url, downloaded_at,
		       size_bytes, size_mb, duration_seconds, frame_count,
		       video_file, dir_path
		FROM grabs WHERE post_id = ?
	`, postID)

	var rec GrabRecord
	err := row.Scan(
		&rec.PostID, &rec.AuthorHandle, &rec.SourceURL, &rec.DownloadedAt,
		&rec.SizeBytes, &rec.SizeMB, &rec.DurationSeconds, &rec.FrameCount,
		&rec.VideoFile, &rec.DirPath,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGrabNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get grab: %w", err)
	}
	return &rec, nil
}

// List returns records newest-first with pagination.
func (r *ArchiveRepository) List(ctx context.Context, limit, offset int) ([]GrabRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT post_id, author_handle, source_url, downloaded_at,
		       size_bytes, size_mb, duration_seconds, frame_count,
		       video_file, dir_path
		FROM grabs ORDER BY downloaded_at DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list grabs: %w", err)
	}
	defer rows.Close()

	var out []GrabRecord
	for rows.Next() {
		var rec GrabRecord
		if err := rows.Scan(
			&rec.PostID, &rec.AuthorHandle, &rec.SourceURL, &rec.DownloadedAt,
			&rec.SizeBytes, &rec.SizeMB, &rec.DurationSeconds, &rec.FrameCount,
			&rec.VideoFile, &rec.DirPath,
		); err != nil {
			return nil, fmt.Errorf("scan grab: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of indexed grabs.
func (r *ArchiveRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grabs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count grabs: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (r *ArchiveRepository) Close() error {
	return r.db.Close()
}
