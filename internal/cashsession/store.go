package cashsession

import (
	"context"

	"github.com/google/uuid"
)

// Store persists sessions and their movement ledger.
//
// Error contract:
// - CreateSession returns sentinel.ErrConflict (wrapped) when an open session
//   already exists for the register.
// - FindOpenSession returns sentinel.ErrNotFound (wrapped) when the register
//   has no open session.
// - AppendMovement never updates existing rows; the ledger is append-only.
type Store interface {
	CreateSession(ctx context.Context, session Session) error
	FindOpenSession(ctx context.Context, registerID string) (Session, error)
	FindSession(ctx context.Context, id uuid.UUID) (Session, error)
	UpdateSession(ctx context.Context, session Session) error

	AppendMovement(ctx context.Context, movement Movement) error
	ListMovements(ctx context.Context, sessionID uuid.UUID) ([]Movement, error)
}
