package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"pdv/internal/cashsession"
	"pdv/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions and movements in memory for tests/dev. The
// one-open-session-per-register invariant is checked under the store lock.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]cashsession.Session
	movements map[uuid.UUID][]cashsession.Movement
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[uuid.UUID]cashsession.Session),
		movements: make(map[uuid.UUID][]cashsession.Movement),
	}
}

func (s *InMemoryStore) CreateSession(_ context.Context, session cashsession.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.RegisterID == session.RegisterID && existing.Status == cashsession.StatusOpen {
			return fmt.Errorf("register %q already has open session %s: %w",
				session.RegisterID, existing.ID, sentinel.ErrConflict)
		}
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemoryStore) FindOpenSession(_ context.Context, registerID string) (cashsession.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.RegisterID == registerID && session.Status == cashsession.StatusOpen {
			return session, nil
		}
	}
	return cashsession.Session{}, fmt.Errorf("open session for register %q: %w", registerID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindSession(_ context.Context, id uuid.UUID) (cashsession.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	return cashsession.Session{}, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
}

func (s *InMemoryStore) UpdateSession(_ context.Context, session cashsession.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sessions[session.ID]
	if !ok {
		return fmt.Errorf("session %s: %w", session.ID, sentinel.ErrNotFound)
	}
	// Only an open session can transition; a second close or cancel racing
	// the first must not overwrite the terminal state.
	if existing.Status != cashsession.StatusOpen {
		return fmt.Errorf("session %s is not open: %w", session.ID, sentinel.ErrInvalidState)
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemoryStore) AppendMovement(_ context.Context, movement cashsession.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[movement.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", movement.SessionID, sentinel.ErrNotFound)
	}
	s.movements[movement.SessionID] = append(s.movements[movement.SessionID], movement)
	return nil
}

func (s *InMemoryStore) ListMovements(_ context.Context, sessionID uuid.UUID) ([]cashsession.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	movements := s.movements[sessionID]
	out := make([]cashsession.Movement, len(movements))
	copy(out, movements)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
