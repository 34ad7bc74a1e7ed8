package browser

import (
	"fmt"
	"sync"
	"testing"
)

func TestResponseLog_AppendOrder(t *testing.T) {
	log := NewResponseLog()

	log.Append("https://cdn.example.com/a.mp4", "video/mp4", 200)
	log.Append("https://cdn.example.com/b.m3u8", "application/vnd.apple.mpegurl", 200)
	log.Append("https://cdn.example.com/c.jpg", "image/jpeg", 404)

	snap := log.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len = %d, want 3", len(snap))
	}
	if snap[0].URL != "https://cdn.example.com/a.mp4" {
		t.Errorf("snapshot order not preserved: first = %s", snap[0].URL)
	}
	if snap[2].Status != 404 {
		t.Errorf("status = %d, want 404", snap[2].Status)
	}
}

func TestResponseLog_SnapshotIsCopy(t *testing.T) {
	log := NewResponseLog()
	log.Append("https://cdn.example.com/a.mp4", "video/mp4", 200)

	snap := log.Snapshot()
	snap[0].URL = "mutated"

	if got := log.Snapshot()[0].URL; got != "https://cdn.example.com/a.mp4" {
		t.Errorf("snapshot mutation leaked into log: %s", got)
	}
}

func TestResponseLog_ConcurrentAppend(t *testing.T) {
	log := NewResponseLog()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log.Append(fmt.Sprintf("https://cdn.example.com/%d.mp4", i), "video/mp4", 200)
		}(i)
	}
	wg.Wait()

	if log.Len() != 50 {
		t.Errorf("Len = %d, want 50", log.Len())
	}
}
