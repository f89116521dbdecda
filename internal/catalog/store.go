package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Store is the product/client face of the remote relational store. It is
// interface-driven so the register flow can run against the in-memory
// implementation in tests and against PostgreSQL in production.
//
// Error contract: FindProduct/FindClient return sentinel.ErrNotFound (wrapped)
// for unknown ids; DecrementStock returns sentinel.ErrConflict (wrapped) when
// the live stock is lower than qty, so the commit coordinator can distinguish
// a lost stock race from an infrastructure failure.
type Store interface {
	FindProduct(ctx context.Context, id uuid.UUID) (Product, error)
	FindProductByCode(ctx context.Context, code string) (Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]Product, error)

	FindClient(ctx context.Context, id uuid.UUID) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)

	// DecrementStock applies a conditional decrement: it succeeds only when
	// the stored stock is at least qty, in a single atomic statement.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) error

	// IncrementStock restores stock. Used by saga compensation and refunds.
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
}
