package payment

import (
	"github.com/shopspring/decimal"

	dErrors "pdv/pkg/domain-errors"
)

// DefaultTolerance is the absolute slack allowed when reconciling the tender
// sum against the target total, in currency units. A fixed absolute value
// regardless of total magnitude, as the register has always behaved.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Set accumulates tenders against a required total. Like the cart it is
// owned by one operator session, synchronous, and never suspends. The UI
// blocks commit when CanCommit is false, but the commit coordinator
// re-validates independently: UI state is never the sole source of truth
// for money.
type Set struct {
	target    decimal.Decimal
	tolerance decimal.Decimal
	tenders   []Tender
	suggested decimal.Decimal
}

// NewSet returns an idle payment set with the default tolerance.
func NewSet() *Set {
	return &Set{tolerance: DefaultTolerance}
}

// NewSetWithTolerance returns an idle payment set with a custom tolerance.
func NewSetWithTolerance(tolerance decimal.Decimal) *Set {
	if tolerance.IsNegative() {
		tolerance = DefaultTolerance
	}
	return &Set{tolerance: tolerance}
}

// Open resets the set for a new target total and suggests the full amount
// as the next tender.
func (s *Set) Open(target decimal.Decimal) error {
	if target.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "payment target cannot be negative")
	}
	s.target = target
	s.tenders = nil
	s.suggested = target
	return nil
}

// AddTender appends a tender. The amount must be positive and may not push
// the collected sum above target plus tolerance. The suggestion is recomputed
// to the new remaining amount, or cleared once the target is covered.
func (s *Set) AddTender(method Method, amount decimal.Decimal, installments int) error {
	if !method.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown payment method").
			WithDetail("method", string(method))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return dErrors.New(dErrors.CodeValidation, "tender amount must be positive")
	}
	if installments < 1 {
		installments = 1
	}
	if method != MethodCredit && installments > 1 {
		return dErrors.New(dErrors.CodeValidation, "installments require the credit method")
	}

	remaining := s.Remaining()
	if amount.GreaterThan(remaining.Add(s.tolerance)) {
		return dErrors.New(dErrors.CodeValidation, "tender exceeds remaining amount").
			WithDetail("remaining", remaining.StringFixed(2))
	}

	s.tenders = append(s.tenders, Tender{Method: method, Amount: amount, Installments: installments})
	s.refreshSuggestion()
	return nil
}

// RemoveTender deletes the tender at index, restoring its amount to the
// remaining balance and the suggestion.
func (s *Set) RemoveTender(index int) error {
	if index < 0 || index >= len(s.tenders) {
		return dErrors.New(dErrors.CodeValidation, "tender index out of range")
	}
	s.tenders = append(s.tenders[:index], s.tenders[index+1:]...)
	s.refreshSuggestion()
	return nil
}

func (s *Set) refreshSuggestion() {
	remaining := s.Remaining()
	if remaining.LessThanOrEqual(decimal.Zero) {
		s.suggested = decimal.Zero
		return
	}
	s.suggested = remaining
}

// Target returns the total the tenders must reach.
func (s *Set) Target() decimal.Decimal { return s.target }

// Paid sums the collected tenders.
func (s *Set) Paid() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range s.tenders {
		sum = sum.Add(t.Amount)
	}
	return sum
}

// Remaining is target minus the collected sum. May be slightly negative,
// bounded by the tolerance.
func (s *Set) Remaining() decimal.Decimal {
	return s.target.Sub(s.Paid())
}

// Suggested is the proposed amount for the next tender, zero once covered.
func (s *Set) Suggested() decimal.Decimal { return s.suggested }

// CanCommit reports whether the collected tenders reach the target within
// tolerance.
func (s *Set) CanCommit() bool {
	return s.Remaining().LessThanOrEqual(s.tolerance)
}

// CashPortion sums cash tenders only. Policy: only cash folds into the
// session's expected drawer balance; other methods are informational.
func (s *Set) CashPortion() decimal.Decimal {
	sum := decimal.Zero
	for _, t := range s.tenders {
		if t.Method == MethodCash {
			sum = sum.Add(t.Amount)
		}
	}
	return sum
}

// Tenders returns a copy of the collected tenders in insertion order.
func (s *Set) Tenders() []Tender {
	out := make([]Tender, len(s.tenders))
	copy(out, s.tenders)
	return out
}

// Clear resets the set to idle.
func (s *Set) Clear() {
	s.target = decimal.Zero
	s.tenders = nil
	s.suggested = decimal.Zero
}
