package sale

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a persisted sale. A completed sale is
// immutable except for a later transition to cancelled; suspended flags a
// partially-applied commit awaiting manual reconciliation.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusSuspended Status = "suspended"
)

// Sale is the durable commit artifact: header plus items and payments
// mirrored from the cart and payment set at commit time. Created only by the
// commit coordinator.
type Sale struct {
	ID             uuid.UUID
	IdempotencyKey string
	SessionID      uuid.UUID
	RegisterID     string
	ClientID       *uuid.UUID
	Items          []Item
	Payments       []Payment
	Subtotal       decimal.Decimal
	DeliveryFee    decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	Status         Status
	Operator       string
	CreatedAt      time.Time
}

// Item mirrors a cart line at the moment of commit.
type Item struct {
	ID        uuid.UUID
	SaleID    uuid.UUID
	ProductID uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	Discount  decimal.Decimal
	Subtotal  decimal.Decimal
}

// Payment mirrors a tender at the moment of commit.
type Payment struct {
	ID           uuid.UUID
	SaleID       uuid.UUID
	Method       string
	Amount       decimal.Decimal
	Installments int
}
