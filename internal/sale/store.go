package sale

import (
	"context"

	"github.com/google/uuid"
)

// Store persists sale records. The write methods are granular so the
// coordinator can drive them either inside one SQL transaction (all methods
// honor a transaction carried in context) or step by step with explicit
// compensation when no transactional backend is available.
//
// Error contract: Find methods return sentinel.ErrNotFound (wrapped) for
// unknown ids/keys; CreateHeader returns sentinel.ErrConflict (wrapped) when
// the idempotency key already exists.
type Store interface {
	CreateHeader(ctx context.Context, sale Sale) error
	AddItems(ctx context.Context, saleID uuid.UUID, items []Item) error
	AddPayments(ctx context.Context, saleID uuid.UUID, payments []Payment) error
	UpdateStatus(ctx context.Context, saleID uuid.UUID, status Status) error

	FindByID(ctx context.Context, id uuid.UUID) (Sale, error)
	FindByIdempotencyKey(ctx context.Context, key string) (Sale, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Sale, error)
}

// TxRunner wraps a function in an atomic transaction. The PostgreSQL
// implementation begins a SQL transaction and threads it through context so
// every store write inside fn joins it. When the coordinator has no runner it
// falls back to the compensating saga.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
