package store

import (
	"context"
	"fmt"
	"sync"

	"pdv/internal/cart"
	"pdv/pkg/platform/sentinel"
)

// InMemoryStore keeps cart snapshots in memory for tests/dev.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]cart.Snapshot
}

// NewInMemoryStore constructs an empty in-memory snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]cart.Snapshot)}
}

func (s *InMemoryStore) Save(_ context.Context, registerID string, snap cart.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[registerID] = snap
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, registerID string) (cart.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snapshots[registerID]; ok {
		return snap, nil
	}
	return cart.Snapshot{}, fmt.Errorf("cart snapshot for register %q: %w", registerID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) Delete(_ context.Context, registerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, registerID)
	return nil
}
