// Package events carries completed sales to back-office consumers through a
// transactional outbox: the commit coordinator appends the event inside the
// sale transaction and a background worker publishes pending rows to Kafka.
// A sale is never visible on the topic without its database record.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event describes a completed sale for downstream consumers.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	SaleID     uuid.UUID       `json:"sale_id"`
	RegisterID string          `json:"register_id"`
	SessionID  uuid.UUID       `json:"session_id"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Store is the outbox. Append participates in a transaction carried in
// context; the worker reads and marks rows outside any transaction.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListPending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Publisher delivers events to the external topic.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}
