package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the sellable unit as the remote store knows it. Stock is the
// live count at read time; cart lines cache it as their ceiling, but only the
// commit-time re-read is authoritative.
type Product struct {
	ID    uuid.UUID
	Name  string
	Code  string
	Price decimal.Decimal
	Stock int
}

// Client is a registered buyer attached to a sale for back-office history.
type Client struct {
	ID   uuid.UUID
	Name string
}
