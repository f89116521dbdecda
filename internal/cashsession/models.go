package cashsession

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the cash session lifecycle state.
type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

// MovementType classifies a ledger entry against the session drawer.
type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementRefund     MovementType = "refund"
	MovementCashIn     MovementType = "cash_in"
	MovementCashOut    MovementType = "cash_out"
	MovementAdjustment MovementType = "adjustment"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementSale, MovementRefund, MovementCashIn, MovementCashOut, MovementAdjustment:
		return true
	}
	return false
}

// Sign is +1 for types that add to the expected drawer balance and -1 for
// types that subtract from it.
func (t MovementType) Sign() int {
	switch t {
	case MovementSale, MovementCashIn:
		return 1
	default:
		return -1
	}
}

// Session is the time window during which a register is authorized to record
// sales. Exactly one open session exists per register at a time; the store
// enforces that invariant.
type Session struct {
	ID             uuid.UUID
	RegisterID     string
	OpeningBalance decimal.Decimal
	OpenedAt       time.Time
	Status         Status
	// Closing fields are set on close only. ExpectedBalance folds the opening
	// balance with all movements; Difference is declared minus expected.
	ClosingBalance  decimal.Decimal
	ExpectedBalance decimal.Decimal
	Difference      decimal.Decimal
	Operator        string
	Notes           string
	ClosedAt        *time.Time
}

// Movement is an append-only ledger entry against a session. History is never
// mutated; cancellations and corrections create new entries.
type Movement struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Type      MovementType
	Amount    decimal.Decimal
	Reference string
	Operator  string
	CreatedAt time.Time
}

// ExpectedBalance recomputes the drawer balance by folding the opening
// balance with every movement. The result is never stored as mutable state;
// closing a session materializes it once.
func ExpectedBalance(opening decimal.Decimal, movements []Movement) decimal.Decimal {
	balance := opening
	for _, m := range movements {
		if m.Type.Sign() > 0 {
			balance = balance.Add(m.Amount)
		} else {
			balance = balance.Sub(m.Amount)
		}
	}
	return balance
}
