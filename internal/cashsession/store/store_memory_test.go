package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"pdv/internal/cashsession"
	"pdv/pkg/platform/sentinel"
)

// =============================================================================
// In-Memory Session Store Suite
// =============================================================================

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *MemoryStoreSuite) open(registerID string) cashsession.Session {
	session := cashsession.Session{
		ID:             uuid.New(),
		RegisterID:     registerID,
		OpeningBalance: decimal.RequireFromString("100.00"),
		OpenedAt:       time.Now(),
		Status:         cashsession.StatusOpen,
		Operator:       "op-1",
	}
	s.Require().NoError(s.store.CreateSession(context.Background(), session))
	return session
}

func (s *MemoryStoreSuite) TestOneOpenSessionPerRegister() {
	s.open("reg-1")

	dup := cashsession.Session{
		ID:         uuid.New(),
		RegisterID: "reg-1",
		Status:     cashsession.StatusOpen,
	}
	err := s.store.CreateSession(context.Background(), dup)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *MemoryStoreSuite) TestUpdateSession() {
	ctx := context.Background()
	session := s.open("reg-1")

	s.Run("unknown session", func() {
		missing := session
		missing.ID = uuid.New()
		s.Require().ErrorIs(s.store.UpdateSession(ctx, missing), sentinel.ErrNotFound)
	})

	s.Run("open session transitions to closed", func() {
		now := time.Now()
		closed := session
		closed.Status = cashsession.StatusClosed
		closed.ClosedAt = &now
		s.Require().NoError(s.store.UpdateSession(ctx, closed))

		found, err := s.store.FindSession(ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(cashsession.StatusClosed, found.Status)
	})

	s.Run("terminal state cannot be overwritten", func() {
		now := time.Now()
		cancelled := session
		cancelled.Status = cashsession.StatusCancelled
		cancelled.ClosedAt = &now
		s.Require().ErrorIs(s.store.UpdateSession(ctx, cancelled), sentinel.ErrInvalidState)

		found, err := s.store.FindSession(ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(cashsession.StatusClosed, found.Status)
	})
}

func (s *MemoryStoreSuite) TestMovementsRequireKnownSession() {
	ctx := context.Background()
	session := s.open("reg-1")

	movement := cashsession.Movement{
		ID:        uuid.New(),
		SessionID: session.ID,
		Type:      cashsession.MovementCashIn,
		Amount:    decimal.RequireFromString("50.00"),
		Operator:  "op-1",
		CreatedAt: time.Now(),
	}
	s.Require().NoError(s.store.AppendMovement(ctx, movement))

	orphan := movement
	orphan.ID = uuid.New()
	orphan.SessionID = uuid.New()
	s.Require().ErrorIs(s.store.AppendMovement(ctx, orphan), sentinel.ErrNotFound)

	movements, err := s.store.ListMovements(ctx, session.ID)
	s.Require().NoError(err)
	s.Len(movements, 1)
}
