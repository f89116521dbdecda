package sale_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"pdv/internal/cart"
	"pdv/internal/cashsession"
	sessionstore "pdv/internal/cashsession/store"
	"pdv/internal/catalog"
	catalogstore "pdv/internal/catalog/store"
	"pdv/internal/payment"
	"pdv/internal/platform/events"
	"pdv/internal/sale"
	salestore "pdv/internal/sale/store"
	dErrors "pdv/pkg/domain-errors"
)

// =============================================================================
// Sale Commit Coordinator Suite
// =============================================================================
// Justification for unit tests: the coordinator owns the transactional
// invariant of the whole system. The saga path, compensation ordering and the
// lost-stock-race outcome are exercised here against in-memory stores, where
// failures can be injected deterministically.

type SaleServiceSuite struct {
	suite.Suite
	catalog  *catalogstore.InMemoryStore
	sessions *cashsession.Service
	sales    *salestore.InMemoryStore
	outbox   *events.InMemoryStore
	service  *sale.Service

	sessionID uuid.UUID
}

func TestSaleServiceSuite(t *testing.T) {
	suite.Run(t, new(SaleServiceSuite))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *SaleServiceSuite) SetupTest() {
	s.catalog = catalogstore.NewInMemoryStore()
	s.sessions = cashsession.NewService(sessionstore.NewInMemoryStore(), nil)
	s.sales = salestore.NewInMemoryStore()
	s.outbox = events.NewInMemoryStore()
	s.service = sale.NewService(s.sales, s.catalog, s.sessions, s.outbox, nil, nil, discardLogger())

	session, err := s.sessions.Open(context.Background(), "reg-1", dec("100.00"), "op-1")
	s.Require().NoError(err)
	s.sessionID = session.ID
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (s *SaleServiceSuite) seedProduct(price string, stock int) catalog.Product {
	p := catalog.Product{
		ID:    uuid.New(),
		Name:  "product-" + uuid.NewString()[:8],
		Code:  uuid.NewString()[:8],
		Price: dec(price),
		Stock: stock,
	}
	s.catalog.SeedProduct(p)
	return p
}

// paidCart builds a cart with qty units of p and a cash payment set covering
// the total.
func (s *SaleServiceSuite) paidCart(p catalog.Product, qty int) (*cart.Cart, *payment.Set) {
	c := cart.New()
	s.Require().True(c.AddItem(p, qty))
	set := payment.NewSet()
	s.Require().NoError(set.Open(c.Total()))
	s.Require().NoError(set.AddTender(payment.MethodCash, c.Total(), 1))
	return c, set
}

func (s *SaleServiceSuite) TestCommit() {
	ctx := context.Background()
	p := s.seedProduct("10.00", 5)
	c, set := s.paidCart(p, 2)

	record, err := s.service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Require().NoError(err)
	s.Equal(sale.StatusCompleted, record.Status)
	s.Equal(s.sessionID, record.SessionID)
	s.True(record.Total.Equal(dec("20.00")))
	s.Require().Len(record.Items, 1)
	s.Require().Len(record.Payments, 1)

	s.Run("stock decremented", func() {
		live, err := s.catalog.FindProduct(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(3, live.Stock)
	})

	s.Run("cash movement recorded against the session", func() {
		movements, err := s.sessions.Movements(ctx, s.sessionID)
		s.Require().NoError(err)
		s.Require().Len(movements, 1)
		s.Equal(cashsession.MovementSale, movements[0].Type)
		s.True(movements[0].Amount.Equal(dec("20.00")))
		s.Equal(record.ID.String(), movements[0].Reference)
	})

	s.Run("outbox event appended", func() {
		pending, err := s.outbox.ListPending(ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(record.ID, pending[0].SaleID)
	})

	s.Run("sale is durable and listed under the session", func() {
		found, err := s.service.Find(ctx, record.ID)
		s.Require().NoError(err)
		s.Equal(record.ID, found.ID)

		listed, err := s.service.ListBySession(ctx, s.sessionID)
		s.Require().NoError(err)
		s.Len(listed, 1)
	})
}

func (s *SaleServiceSuite) TestCommitCashlessSkipsMovement() {
	ctx := context.Background()
	p := s.seedProduct("30.00", 3)

	c := cart.New()
	s.Require().True(c.AddItem(p, 1))
	set := payment.NewSet()
	s.Require().NoError(set.Open(c.Total()))
	s.Require().NoError(set.AddTender(payment.MethodPix, c.Total(), 1))

	_, err := s.service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Require().NoError(err)

	movements, err := s.sessions.Movements(ctx, s.sessionID)
	s.Require().NoError(err)
	s.Empty(movements)
}

func (s *SaleServiceSuite) TestCommitRejections() {
	ctx := context.Background()
	p := s.seedProduct("10.00", 5)

	s.Run("empty cart", func() {
		_, err := s.service.Commit(ctx, "reg-1", cart.New(), payment.NewSet(), "op-1")
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	s.Run("no open session", func() {
		c, set := s.paidCart(p, 1)
		_, err := s.service.Commit(ctx, "reg-99", c, set, "op-1")
		s.Equal(dErrors.CodeSessionNotOpen, dErrors.CodeOf(err))
	})

	s.Run("payment target does not match the cart total", func() {
		c := cart.New()
		s.Require().True(c.AddItem(p, 1))
		set := payment.NewSet()
		s.Require().NoError(set.Open(dec("5.00")))
		s.Require().NoError(set.AddTender(payment.MethodCash, dec("5.00"), 1))

		_, err := s.service.Commit(ctx, "reg-1", c, set, "op-1")
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	s.Run("incomplete payment", func() {
		c := cart.New()
		s.Require().True(c.AddItem(p, 1))
		set := payment.NewSet()
		s.Require().NoError(set.Open(c.Total()))
		s.Require().NoError(set.AddTender(payment.MethodCash, dec("4.00"), 1))

		_, err := s.service.Commit(ctx, "reg-1", c, set, "op-1")
		s.Equal(dErrors.CodePaymentIncomplete, dErrors.CodeOf(err))
	})
}

func (s *SaleServiceSuite) TestCommitStaleCartLosesToLiveStock() {
	ctx := context.Background()
	p := s.seedProduct("10.00", 5)
	c, set := s.paidCart(p, 3)

	// Another register sells down the stock after this cart was built.
	p.Stock = 1
	s.catalog.SeedProduct(p)

	_, err := s.service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Equal(dErrors.CodeStockConflict, dErrors.CodeOf(err))

	// Nothing was persisted.
	listed, err := s.service.ListBySession(ctx, s.sessionID)
	s.Require().NoError(err)
	s.Empty(listed)
	live, err := s.catalog.FindProduct(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(1, live.Stock)
}

// failingSaleStore fails a chosen step to drive the compensation path.
type failingSaleStore struct {
	sale.Store
	failAddPayments bool
}

func (f *failingSaleStore) AddPayments(ctx context.Context, saleID uuid.UUID, payments []sale.Payment) error {
	if f.failAddPayments {
		return errors.New("injected payment write failure")
	}
	return f.Store.AddPayments(ctx, saleID, payments)
}

// failingCatalogStore fails the decrement for one product, simulating an
// infrastructure fault mid-saga after earlier decrements already applied.
type failingCatalogStore struct {
	catalog.Store
	failID uuid.UUID
}

func (f *failingCatalogStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	if id == f.failID {
		return errors.New("injected decrement failure")
	}
	return f.Store.DecrementStock(ctx, id, qty)
}

func (s *SaleServiceSuite) TestSagaFailureBeforeStock() {
	ctx := context.Background()
	p := s.seedProduct("10.00", 5)

	failing := &failingSaleStore{Store: s.sales, failAddPayments: true}
	service := sale.NewService(failing, s.catalog, s.sessions, s.outbox, nil, nil, discardLogger())

	c, set := s.paidCart(p, 2)
	_, err := service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Require().Error(err)
	s.NotEqual(dErrors.CodeCommitPartial, dErrors.CodeOf(err))

	s.Run("stock untouched after compensation", func() {
		live, err := s.catalog.FindProduct(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(5, live.Stock)
	})

	s.Run("no completed sale and no movement survive", func() {
		listed, err := service.ListBySession(ctx, s.sessionID)
		s.Require().NoError(err)
		for _, record := range listed {
			s.NotEqual(sale.StatusCompleted, record.Status)
		}

		movements, err := s.sessions.Movements(ctx, s.sessionID)
		s.Require().NoError(err)
		s.Empty(movements)
	})

	s.Run("outbox stays empty", func() {
		pending, err := s.outbox.ListPending(ctx, 10)
		s.Require().NoError(err)
		s.Empty(pending)
	})
}

func (s *SaleServiceSuite) TestSagaCompensationRestocksInReverse() {
	ctx := context.Background()
	a := s.seedProduct("10.00", 5)
	b := s.seedProduct("20.00", 5)

	failing := &failingCatalogStore{Store: s.catalog, failID: b.ID}
	service := sale.NewService(s.sales, failing, s.sessions, s.outbox, nil, nil, discardLogger())

	c := cart.New()
	s.Require().True(c.AddItem(a, 3))
	s.Require().True(c.AddItem(b, 1))
	set := payment.NewSet()
	s.Require().NoError(set.Open(c.Total()))
	s.Require().NoError(set.AddTender(payment.MethodCash, c.Total(), 1))

	_, err := service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Require().Error(err)
	s.NotEqual(dErrors.CodeCommitPartial, dErrors.CodeOf(err))

	s.Run("applied decrement was rolled back", func() {
		live, err := s.catalog.FindProduct(ctx, a.ID)
		s.Require().NoError(err)
		s.Equal(5, live.Stock)
	})

	s.Run("sale is marked cancelled, not completed", func() {
		listed, err := service.ListBySession(ctx, s.sessionID)
		s.Require().NoError(err)
		s.Require().Len(listed, 1)
		s.Equal(sale.StatusCancelled, listed[0].Status)
	})

	s.Run("no movement, no event", func() {
		movements, err := s.sessions.Movements(ctx, s.sessionID)
		s.Require().NoError(err)
		s.Empty(movements)
		pending, err := s.outbox.ListPending(ctx, 10)
		s.Require().NoError(err)
		s.Empty(pending)
	})
}

// failingOutboxStore rejects every append, simulating an outbox fault after
// the cash movement already landed in the session ledger.
type failingOutboxStore struct {
	events.Store
}

func (f *failingOutboxStore) Append(context.Context, events.Event) error {
	return errors.New("injected outbox append failure")
}

func (s *SaleServiceSuite) TestSagaOutboxFailureReversesCashMovement() {
	ctx := context.Background()
	p := s.seedProduct("20.00", 5)

	service := sale.NewService(s.sales, s.catalog, s.sessions, &failingOutboxStore{Store: s.outbox}, nil, nil, discardLogger())

	c, set := s.paidCart(p, 1)
	_, err := service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Require().Error(err)
	s.NotEqual(dErrors.CodeCommitPartial, dErrors.CodeOf(err))

	s.Run("stock restored", func() {
		live, err := s.catalog.FindProduct(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(5, live.Stock)
	})

	s.Run("sale is marked cancelled", func() {
		listed, err := service.ListBySession(ctx, s.sessionID)
		s.Require().NoError(err)
		s.Require().Len(listed, 1)
		s.Equal(sale.StatusCancelled, listed[0].Status)
	})

	s.Run("cash movement is reversed by a refund", func() {
		movements, err := s.sessions.Movements(ctx, s.sessionID)
		s.Require().NoError(err)
		s.Require().Len(movements, 2)
		s.Equal(cashsession.MovementSale, movements[0].Type)
		s.Equal(cashsession.MovementRefund, movements[1].Type)
		s.True(movements[1].Amount.Equal(dec("20.00")))
		s.Equal(movements[0].Reference, movements[1].Reference)
		s.True(cashsession.ExpectedBalance(dec("100.00"), movements).Equal(dec("100.00")))
	})
}

func (s *SaleServiceSuite) TestConcurrentCommitsLastUnit() {
	ctx := context.Background()
	p := s.seedProduct("10.00", 1)

	// Session for the competing register.
	_, err := s.sessions.Open(ctx, "reg-2", dec("0"), "op-2")
	s.Require().NoError(err)

	registers := []string{"reg-1", "reg-2"}
	results := make([]error, len(registers))

	var wg sync.WaitGroup
	for i, reg := range registers {
		i, reg := i, reg
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, set := s.paidCart(p, 1)
			_, results[i] = s.service.Commit(ctx, reg, c, set, "op")
		}()
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case dErrors.CodeOf(err) == dErrors.CodeStockConflict:
			conflicts++
		default:
			s.Failf("unexpected outcome", "error: %v", err)
		}
	}
	s.Equal(1, wins)
	s.Equal(1, conflicts)

	live, err := s.catalog.FindProduct(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(0, live.Stock)
}

func (s *SaleServiceSuite) TestIdempotentRetry() {
	ctx := context.Background()
	p := s.seedProduct("10.00", 5)

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.service.WithClock(func() time.Time { return fixed })

	c, set := s.paidCart(p, 2)
	first, err := s.service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Require().NoError(err)

	retry, err := s.service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Require().NoError(err)
	s.Equal(first.ID, retry.ID)

	s.Run("stock decremented exactly once", func() {
		live, err := s.catalog.FindProduct(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(3, live.Stock)
	})

	s.Run("single movement and outbox event", func() {
		movements, err := s.sessions.Movements(ctx, s.sessionID)
		s.Require().NoError(err)
		s.Len(movements, 1)
		pending, err := s.outbox.ListPending(ctx, 10)
		s.Require().NoError(err)
		s.Len(pending, 1)
	})
}

func (s *SaleServiceSuite) TestRecover() {
	ctx := context.Background()
	p := s.seedProduct("10.00", 5)
	c, set := s.paidCart(p, 1)

	record, err := s.service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Require().NoError(err)

	s.Run("known signature returns the recorded sale", func() {
		recovered, err := s.service.Recover(ctx, record.IdempotencyKey)
		s.Require().NoError(err)
		s.Equal(record.ID, recovered.ID)
	})

	s.Run("unknown signature is not found", func() {
		_, err := s.service.Recover(ctx, "no-such-key")
		s.Equal(dErrors.CodeNotFound, dErrors.CodeOf(err))
	})
}

func (s *SaleServiceSuite) TestCancel() {
	ctx := context.Background()
	p := s.seedProduct("10.00", 5)
	c, set := s.paidCart(p, 2)

	record, err := s.service.Commit(ctx, "reg-1", c, set, "op-1")
	s.Require().NoError(err)

	cancelled, err := s.service.Cancel(ctx, record.ID, "op-2")
	s.Require().NoError(err)
	s.Equal(sale.StatusCancelled, cancelled.Status)

	s.Run("stock restored", func() {
		live, err := s.catalog.FindProduct(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(5, live.Stock)
	})

	s.Run("refund movement recorded for the cash portion", func() {
		movements, err := s.sessions.Movements(ctx, s.sessionID)
		s.Require().NoError(err)
		s.Require().Len(movements, 2)
		s.Equal(cashsession.MovementRefund, movements[1].Type)
		s.True(movements[1].Amount.Equal(dec("20.00")))
	})

	s.Run("cancelling twice conflicts", func() {
		_, err := s.service.Cancel(ctx, record.ID, "op-2")
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	})
}
