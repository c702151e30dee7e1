package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopfloor/shearlock/internal/shear/store"
)

// ScanEventStore is an in-memory append-only audit log for tests and
// dev environments.
type ScanEventStore struct {
	mu     sync.Mutex
	nextID int64
	events []store.ScanEventRecord
}

func NewScanEventStore() *ScanEventStore {
	return &ScanEventStore{nextID: 1}
}

func (s *ScanEventStore) Append(_ context.Context, rec store.ScanEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}
	s.events = append(s.events, rec)
	return nil
}

func (s *ScanEventStore) Recent(_ context.Context, limit int) ([]store.ScanEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]store.ScanEventRecord, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *ScanEventStore) CountForCard(_ context.Context, cardID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.events {
		if e.CardID == cardID {
			n++
		}
	}
	return n, nil
}

// Events returns a copy of all recorded events.  Test-only helper.
func (s *ScanEventStore) Events() []store.ScanEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ScanEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
