package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/iconidentify/framegrab/internal/domain"
	"github.com/iconidentify/framegrab/internal/repository"
	"github.com/iconidentify/framegrab/internal/sampler"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockGrabber is a test implementation of Grabber.
type mockGrabber struct {
	result *domain.DownloadResult
	err    error
	calls  int
	specs  []sampler.FrameSpec
	urls   []string
}

func (m *mockGrabber) Grab(ctx context.Context, rawURL string, spec sampler.FrameSpec) (*domain.DownloadResult, error) {
	m.calls++
	m.urls = append(m.urls, rawURL)
	m.specs = append(m.specs, spec)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockArchive is a test implementation of ArchiveIndex.
type mockArchive struct {
	records  map[string]*repository.GrabRecord
	listErr  error
	countErr error
}

func newMockArchive() *mockArchive {
	return &mockArchive{records: make(map[string]*repository.GrabRecord)}
}

func (m *mockArchive) List(ctx context.Context, limit, offset int) ([]repository.GrabRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []repository.GrabRecord
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (m *mockArchive) Get(ctx context.Context, postID string) (*repository.GrabRecord, error) {
	rec, ok := m.records[postID]
	if !ok {
		return nil, domain.ErrGrabNotFound
	}
	return rec, nil
}

func (m *mockArchive) Count(ctx context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.records), nil
}
