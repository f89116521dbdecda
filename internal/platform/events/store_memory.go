package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps outbox rows in memory for tests/dev.
type InMemoryStore struct {
	mu        sync.Mutex
	pending   []Event
	published []Event
}

// NewInMemoryStore constructs an empty in-memory outbox.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, event)
	return nil
}

func (s *InMemoryStore) ListPending(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]Event, n)
	copy(out, s.pending[:n])
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	var remaining []Event
	for _, e := range s.pending {
		if marked[e.ID] {
			s.published = append(s.published, e)
			continue
		}
		remaining = append(remaining, e)
	}
	s.pending = remaining
	return nil
}

// Published returns events already handed to the publisher. Test helper.
func (s *InMemoryStore) Published() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.published))
	copy(out, s.published)
	return out
}
