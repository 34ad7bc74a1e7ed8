package browser

import (
	"sync"
	"time"

	"github.com/iconidentify/framegrab/internal/domain"
)

// ResponseLog is an append-only record of network responses observed during
// one navigation. The browser event callback is the only writer; readers
// take snapshots after the observation window has settled. The mutex exists
// because the callback runs on the browser transport's goroutine.
type ResponseLog struct {
	mu        sync.Mutex
	responses []domain.ObservedResponse
}

// NewResponseLog creates an empty response log.
func NewResponseLog() *ResponseLog {
	return &ResponseLog{}
}

// Append records one observed response. Order of appends is the order the
// page loaded the resources in.
func (l *ResponseLog) Append(url, contentType string, status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.responses = append(l.responses, domain.ObservedResponse{
		URL:         url,
		ContentType: contentType,
		Status:      status,
		ObservedAt:  time.Now(),
	})
}

// Snapshot returns a copy of everything observed so far, in observation
// order.
func (l *ResponseLog) Snapshot() []domain.ObservedResponse {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ObservedResponse, len(l.responses))
	copy(out, l.responses)
	return out
}

// Len returns the number of responses observed so far.
func (l *ResponseLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.responses)
}
