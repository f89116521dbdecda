package sale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"pdv/internal/cart"
	"pdv/internal/cashsession"
	"pdv/internal/catalog"
	"pdv/internal/payment"
	"pdv/internal/platform/events"
	"pdv/internal/platform/metrics"
	dErrors "pdv/pkg/domain-errors"
	"pdv/pkg/platform/sentinel"
)

// Service is the sale commit coordinator. It turns an in-memory cart and
// payment set into a durable multi-entity record (header, items, payments),
// applies the stock decrements, and appends the session movement and outbox
// event, as one logical transaction.
//
// Two execution modes:
//   - with a TxRunner (PostgreSQL), every write joins a single SQL
//     transaction and a failure rolls everything back;
//   - without one, the coordinator runs an explicit saga and compensates
//     already-applied steps on failure.
type Service struct {
	sales    Store
	catalog  catalog.Store
	sessions *cashsession.Service
	outbox   events.Store
	tx       TxRunner
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(
	sales Store,
	catalogStore catalog.Store,
	sessions *cashsession.Service,
	outbox events.Store,
	tx TxRunner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		sales:    sales,
		catalog:  catalogStore,
		sessions: sessions,
		outbox:   outbox,
		tx:       tx,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source. Test hook: the idempotency
// signature folds the commit time in, so deterministic tests pin it.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Commit validates server-side and durably records the sale. Client state is
// never trusted: the open session, the payment balance and the live stock are
// all re-checked here regardless of what the register UI believed.
//
// On success the caller clears the cart and payment set; on failure both are
// left untouched so the operator can adjust and retry without re-entering
// data.
func (s *Service) Commit(ctx context.Context, registerID string, c *cart.Cart, set *payment.Set, operator string) (Sale, error) {
	start := s.now()

	record, err := s.commit(ctx, registerID, c, set, operator)
	outcome := "completed"
	if err != nil {
		switch dErrors.CodeOf(err) {
		case dErrors.CodeStockConflict:
			outcome = "stock_conflict"
			s.metrics.IncrementStockConflict()
		case dErrors.CodePaymentIncomplete:
			outcome = "payment_incomplete"
		case dErrors.CodeSessionNotOpen:
			outcome = "session_not_open"
		case dErrors.CodeCommitPartial:
			outcome = "partial_failure"
		case dErrors.CodeValidation:
			outcome = "validation"
		default:
			outcome = "error"
		}
	}
	s.metrics.ObserveCommit(outcome, s.now().Sub(start))
	return record, err
}

func (s *Service) commit(ctx context.Context, registerID string, c *cart.Cart, set *payment.Set, operator string) (Sale, error) {
	lines := c.Lines()
	if len(lines) == 0 {
		return Sale{}, dErrors.New(dErrors.CodeValidation, "cart is empty")
	}

	session, err := s.sessions.Current(ctx, registerID)
	if err != nil {
		return Sale{}, err
	}

	total := c.Total()
	if !set.Target().Equal(total) {
		return Sale{}, dErrors.New(dErrors.CodeValidation, "payment target does not match cart total").
			WithDetail("target", set.Target().StringFixed(2)).
			WithDetail("total", total.StringFixed(2))
	}
	if !set.CanCommit() {
		return Sale{}, dErrors.New(dErrors.CodePaymentIncomplete, "collected tenders do not cover the total").
			WithDetail("remaining", set.Remaining().StringFixed(2))
	}

	// Optimistic pre-check against live stock before any write. The cart's
	// cached ceiling may be stale; the conditional decrement below remains
	// the authoritative guard.
	if err := s.checkLiveStock(ctx, lines); err != nil {
		return Sale{}, err
	}

	record := s.buildSale(registerID, session.ID, c, set, operator)

	// A commit retried under the same idempotency signature returns the
	// already-recorded sale instead of double-selling.
	if existing, err := s.sales.FindByIdempotencyKey(ctx, record.IdempotencyKey); err == nil {
		if existing.Status == StatusCompleted {
			return existing, nil
		}
		return Sale{}, dErrors.New(dErrors.CodeCommitPartial, "previous attempt with this signature requires reconciliation").
			WithDetail("sale_id", existing.ID.String())
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return Sale{}, fmt.Errorf("idempotency lookup: %w", err)
	}

	if s.tx != nil {
		if err := s.commitAtomic(ctx, registerID, record, set); err != nil {
			return Sale{}, err
		}
	} else {
		if err := s.commitSaga(ctx, registerID, record, set); err != nil {
			return Sale{}, err
		}
	}
	return record, nil
}

func (s *Service) checkLiveStock(ctx context.Context, lines []cart.Line) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, line := range lines {
		line := line
		g.Go(func() error {
			live, err := s.catalog.FindProduct(gctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("live stock read for %s: %w", line.ProductID, err)
			}
			if live.Stock < line.Quantity {
				return stockConflictError(line.ProductID, line.Name, line.Quantity, live.Stock)
			}
			return nil
		})
	}
	return g.Wait()
}

func stockConflictError(productID uuid.UUID, name string, wanted, available int) error {
	return dErrors.New(dErrors.CodeStockConflict, "insufficient stock for "+name).
		WithDetail("product_id", productID.String()).
		WithDetail("requested", fmt.Sprintf("%d", wanted)).
		WithDetail("available", fmt.Sprintf("%d", available))
}

func (s *Service) buildSale(registerID string, sessionID uuid.UUID, c *cart.Cart, set *payment.Set, operator string) Sale {
	now := s.now()
	lines := c.Lines()
	saleID := uuid.New()

	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{
			ID:        uuid.New(),
			SaleID:    saleID,
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Discount:  l.Discount,
			Subtotal:  l.Subtotal(),
		})
	}

	tenders := set.Tenders()
	payments := make([]Payment, 0, len(tenders))
	for _, t := range tenders {
		payments = append(payments, Payment{
			ID:           uuid.New(),
			SaleID:       saleID,
			Method:       string(t.Method),
			Amount:       t.Amount,
			Installments: t.Installments,
		})
	}

	return Sale{
		ID:             saleID,
		IdempotencyKey: IdempotencyKey(registerID, sessionID, lines, c.DeliveryFee(), c.Discount(), c.ClientID(), now),
		SessionID:      sessionID,
		RegisterID:     registerID,
		ClientID:       c.ClientID(),
		Items:          items,
		Payments:       payments,
		Subtotal:       c.Subtotal(),
		DeliveryFee:    c.DeliveryFee(),
		Discount:       c.Discount(),
		Total:          c.Total(),
		Status:         StatusCompleted,
		Operator:       operator,
		CreatedAt:      now,
	}
}

// commitAtomic runs every write inside one transaction. The conditional stock
// decrement is the check-then-act guard: when another register took the last
// units between the pre-check and here, the decrement affects zero rows and
// the whole transaction rolls back.
func (s *Service) commitAtomic(ctx context.Context, registerID string, record Sale, set *payment.Set) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.sales.CreateHeader(ctx, record); err != nil {
			return fmt.Errorf("write sale header: %w", err)
		}
		if err := s.sales.AddItems(ctx, record.ID, record.Items); err != nil {
			return fmt.Errorf("write sale items: %w", err)
		}
		if err := s.sales.AddPayments(ctx, record.ID, record.Payments); err != nil {
			return fmt.Errorf("write sale payments: %w", err)
		}
		for _, item := range record.Items {
			if err := s.catalog.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return stockConflictError(item.ProductID, item.Name, item.Quantity, -1)
				}
				return fmt.Errorf("decrement stock: %w", err)
			}
		}
		if err := s.recordSaleMovement(ctx, registerID, record, set); err != nil {
			return err
		}
		if err := s.appendOutboxEvent(ctx, record); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return err
		}
		return fmt.Errorf("sale transaction: %w", err)
	}
	return nil
}

// sagaJournal records which commit steps already took effect, so a failure
// later in the sequence knows exactly what to undo.
type sagaJournal struct {
	registerID  string
	completed   []string
	decremented []Item
	headerOK    bool
	cashMoved   decimal.Decimal
}

// commitSaga applies the steps directly with an explicit compensation
// journal. Used when the backing stores cannot share a transaction.
func (s *Service) commitSaga(ctx context.Context, registerID string, record Sale, set *payment.Set) error {
	journal := sagaJournal{registerID: registerID}

	fail := func(cause error) error {
		return s.compensate(ctx, record, journal, cause)
	}

	if err := s.sales.CreateHeader(ctx, record); err != nil {
		return fmt.Errorf("write sale header: %w", err)
	}
	journal.headerOK = true
	journal.completed = append(journal.completed, "header")

	if err := s.sales.AddItems(ctx, record.ID, record.Items); err != nil {
		return fail(fmt.Errorf("write sale items: %w", err))
	}
	journal.completed = append(journal.completed, "items")

	if err := s.sales.AddPayments(ctx, record.ID, record.Payments); err != nil {
		return fail(fmt.Errorf("write sale payments: %w", err))
	}
	journal.completed = append(journal.completed, "payments")

	for _, item := range record.Items {
		if err := s.catalog.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return fail(stockConflictError(item.ProductID, item.Name, item.Quantity, -1))
			}
			return fail(fmt.Errorf("decrement stock for %s: %w", item.ProductID, err))
		}
		journal.decremented = append(journal.decremented, item)
	}
	journal.completed = append(journal.completed, "stock")

	if err := s.recordSaleMovement(ctx, registerID, record, set); err != nil {
		return fail(err)
	}
	journal.cashMoved = set.CashPortion()
	journal.completed = append(journal.completed, "movement")

	if err := s.appendOutboxEvent(ctx, record); err != nil {
		return fail(err)
	}
	return nil
}

// compensate undoes applied steps in reverse order. When compensation itself
// fails the sale is flagged suspended and the error escalates to a partial
// failure: retry stays blocked until someone reconciles, because a blind
// retry risks double-selling.
func (s *Service) compensate(ctx context.Context, record Sale, journal sagaJournal, cause error) error {
	var compensationErrs []error

	if journal.cashMoved.GreaterThan(decimal.Zero) {
		if _, err := s.sessions.RecordMovement(ctx, journal.registerID, cashsession.MovementRefund, journal.cashMoved, record.ID.String(), record.Operator); err != nil {
			compensationErrs = append(compensationErrs, fmt.Errorf("reverse sale movement: %w", err))
		}
	}

	for i := len(journal.decremented) - 1; i >= 0; i-- {
		item := journal.decremented[i]
		if err := s.catalog.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			compensationErrs = append(compensationErrs, fmt.Errorf("restock %s: %w", item.ProductID, err))
		}
	}

	if journal.headerOK {
		status := StatusCancelled
		if len(compensationErrs) > 0 {
			status = StatusSuspended
		}
		if err := s.sales.UpdateStatus(ctx, record.ID, status); err != nil {
			compensationErrs = append(compensationErrs, fmt.Errorf("mark sale %s: %w", status, err))
		}
	}

	if len(compensationErrs) > 0 {
		s.logger.ErrorContext(ctx, "sale commit partially applied",
			"sale_id", record.ID,
			"idempotency_key", record.IdempotencyKey,
			"completed_steps", strings.Join(journal.completed, ","),
			"cause", cause,
			"compensation_errors", errors.Join(compensationErrs...),
		)
		return dErrors.Wrap(errors.Join(append([]error{cause}, compensationErrs...)...),
			dErrors.CodeCommitPartial, "sale commit partially applied; manual reconciliation required").
			WithDetail("sale_id", record.ID.String()).
			WithDetail("completed_steps", strings.Join(journal.completed, ","))
	}
	return cause
}

// recordSaleMovement appends the session ledger entry for the cash-settled
// portion of the total. Only cash tenders fold into the expected drawer
// balance; a fully cashless sale records no movement.
func (s *Service) recordSaleMovement(ctx context.Context, registerID string, record Sale, set *payment.Set) error {
	cash := set.CashPortion()
	if cash.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	if _, err := s.sessions.RecordMovement(ctx, registerID, cashsession.MovementSale, cash, record.ID.String(), record.Operator); err != nil {
		return fmt.Errorf("record sale movement: %w", err)
	}
	return nil
}

func (s *Service) appendOutboxEvent(ctx context.Context, record Sale) error {
	event := events.Event{
		ID:         uuid.New(),
		SaleID:     record.ID,
		RegisterID: record.RegisterID,
		SessionID:  record.SessionID,
		Total:      record.Total,
		OccurredAt: record.CreatedAt,
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		return fmt.Errorf("append sale event: %w", err)
	}
	return nil
}

// Recover resolves an unknown-outcome commit (e.g. a timeout) by re-querying
// under the idempotency signature instead of retrying blindly.
func (s *Service) Recover(ctx context.Context, idempotencyKey string) (Sale, error) {
	record, err := s.sales.FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Sale{}, dErrors.Wrap(err, dErrors.CodeNotFound, "no sale recorded under this signature")
		}
		return Sale{}, fmt.Errorf("recover sale: %w", err)
	}
	return record, nil
}

// Find returns a persisted sale.
func (s *Service) Find(ctx context.Context, id uuid.UUID) (Sale, error) {
	record, err := s.sales.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Sale{}, dErrors.Wrap(err, dErrors.CodeNotFound, "sale not found")
		}
		return Sale{}, fmt.Errorf("find sale: %w", err)
	}
	return record, nil
}

// ListBySession lists the sales recorded against one cash session.
func (s *Service) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Sale, error) {
	records, err := s.sales.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	return records, nil
}

// Cancel transitions a completed sale to cancelled, restores its stock and
// records a refund movement for the cash portion when the originating session
// is still open.
func (s *Service) Cancel(ctx context.Context, saleID uuid.UUID, operator string) (Sale, error) {
	record, err := s.Find(ctx, saleID)
	if err != nil {
		return Sale{}, err
	}
	if record.Status != StatusCompleted {
		return Sale{}, dErrors.New(dErrors.CodeConflict, "only completed sales can be cancelled").
			WithDetail("status", string(record.Status))
	}

	if err := s.sales.UpdateStatus(ctx, saleID, StatusCancelled); err != nil {
		return Sale{}, fmt.Errorf("cancel sale: %w", err)
	}
	for _, item := range record.Items {
		if err := s.catalog.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.logger.ErrorContext(ctx, "restock after cancellation failed",
				"sale_id", saleID,
				"product_id", item.ProductID,
				"error", err,
			)
		}
	}

	cash := decimal.Zero
	for _, p := range record.Payments {
		if p.Method == string(payment.MethodCash) {
			cash = cash.Add(p.Amount)
		}
	}
	if cash.GreaterThan(decimal.Zero) {
		if _, err := s.sessions.RecordMovement(ctx, record.RegisterID, cashsession.MovementRefund, cash, saleID.String(), operator); err != nil {
			// The session may have closed since the sale; the cancellation
			// itself stands and the drawer difference surfaces at the next
			// close.
			s.logger.WarnContext(ctx, "refund movement not recorded",
				"sale_id", saleID,
				"error", err,
			)
		}
	}

	record.Status = StatusCancelled
	return record, nil
}
