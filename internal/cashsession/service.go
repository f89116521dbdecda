package cashsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pdv/internal/platform/metrics"
	dErrors "pdv/pkg/domain-errors"
	"pdv/pkg/platform/sentinel"
)

// Service governs whether a register may sell. It owns the session state
// machine: no-session -> open -> {closed | cancelled}. All sale commits are
// gated on an open session for the target register.
type Service struct {
	store   Store
	metrics *metrics.Metrics
}

func NewService(store Store, m *metrics.Metrics) *Service {
	return &Service{store: store, metrics: m}
}

// Open starts a session for the register. Valid only when the register has no
// open session; the store's uniqueness guarantee backs that up against
// concurrent opens.
func (s *Service) Open(ctx context.Context, registerID string, openingBalance decimal.Decimal, operator string) (Session, error) {
	if registerID == "" {
		return Session{}, dErrors.New(dErrors.CodeValidation, "register id is required")
	}
	if openingBalance.IsNegative() {
		return Session{}, dErrors.New(dErrors.CodeValidation, "opening balance cannot be negative")
	}

	session := Session{
		ID:             uuid.New(),
		RegisterID:     registerID,
		OpeningBalance: openingBalance,
		OpenedAt:       time.Now(),
		Status:         StatusOpen,
		Operator:       operator,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Session{}, dErrors.Wrap(err, dErrors.CodeConflict, "register already has an open session").
				WithDetail("register_id", registerID)
		}
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	s.metrics.IncrementSessionTransition("opened")
	return session, nil
}

// Current returns the open session for the register. The absence of one is a
// distinguishable condition, not a generic failure: callers use it to force
// the "open register" flow.
func (s *Service) Current(ctx context.Context, registerID string) (Session, error) {
	session, err := s.store.FindOpenSession(ctx, registerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Session{}, dErrors.Wrap(err, dErrors.CodeSessionNotOpen, "no open session for register").
				WithDetail("register_id", registerID)
		}
		return Session{}, fmt.Errorf("find open session: %w", err)
	}
	return session, nil
}

// RecordMovement appends a ledger entry to the register's open session.
func (s *Service) RecordMovement(ctx context.Context, registerID string, movementType MovementType, amount decimal.Decimal, reference, operator string) (Movement, error) {
	if !movementType.Valid() {
		return Movement{}, dErrors.New(dErrors.CodeValidation, "unknown movement type").
			WithDetail("type", string(movementType))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return Movement{}, dErrors.New(dErrors.CodeValidation, "movement amount must be positive")
	}

	session, err := s.Current(ctx, registerID)
	if err != nil {
		return Movement{}, err
	}

	movement := Movement{
		ID:        uuid.New(),
		SessionID: session.ID,
		Type:      movementType,
		Amount:    amount,
		Reference: reference,
		Operator:  operator,
		CreatedAt: time.Now(),
	}
	if err := s.store.AppendMovement(ctx, movement); err != nil {
		return Movement{}, fmt.Errorf("append movement: %w", err)
	}
	return movement, nil
}

// Close transitions the register's open session to closed, materializing the
// expected balance from the movement ledger and the difference against the
// declared closing balance.
func (s *Service) Close(ctx context.Context, registerID string, closingBalance decimal.Decimal, notes string) (Session, error) {
	session, err := s.Current(ctx, registerID)
	if err != nil {
		return Session{}, err
	}

	movements, err := s.store.ListMovements(ctx, session.ID)
	if err != nil {
		return Session{}, fmt.Errorf("list movements: %w", err)
	}

	now := time.Now()
	session.Status = StatusClosed
	session.ClosingBalance = closingBalance
	session.ExpectedBalance = ExpectedBalance(session.OpeningBalance, movements)
	session.Difference = closingBalance.Sub(session.ExpectedBalance)
	session.Notes = notes
	session.ClosedAt = &now

	if err := s.store.UpdateSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("close session: %w", err)
	}
	s.metrics.IncrementSessionTransition("closed")
	return session, nil
}

// Cancel voids the register's open session without balance computation.
// Administrative override for abandoned or broken sessions.
func (s *Service) Cancel(ctx context.Context, registerID string, notes string) (Session, error) {
	session, err := s.Current(ctx, registerID)
	if err != nil {
		return Session{}, err
	}

	now := time.Now()
	session.Status = StatusCancelled
	session.Notes = notes
	session.ClosedAt = &now

	if err := s.store.UpdateSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("cancel session: %w", err)
	}
	s.metrics.IncrementSessionTransition("cancelled")
	return session, nil
}

// Movements lists the session ledger in append order.
func (s *Service) Movements(ctx context.Context, sessionID uuid.UUID) ([]Movement, error) {
	movements, err := s.store.ListMovements(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}
