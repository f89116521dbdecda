package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pdv/internal/sale"
	"pdv/pkg/platform/sentinel"
	txcontext "pdv/pkg/platform/tx"
)

// PostgresStore implements sale.Store. All write methods honor a transaction
// carried in context; the commit coordinator wraps them in one so the sale
// record, stock delta and session movement land atomically.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL sale store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) CreateHeader(ctx context.Context, record sale.Sale) error {
	query := `
		INSERT INTO sales (
			id, idempotency_key, session_id, register_id, client_id,
			subtotal, delivery_fee, discount, total, status, operator, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		record.ID,
		record.IdempotencyKey,
		record.SessionID,
		record.RegisterID,
		record.ClientID,
		record.Subtotal,
		record.DeliveryFee,
		record.Discount,
		record.Total,
		string(record.Status),
		record.Operator,
		record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("idempotency key %q: %w", record.IdempotencyKey, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert sale header: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddItems(ctx context.Context, saleID uuid.UUID, items []sale.Item) error {
	query := `
		INSERT INTO sale_items (
			id, sale_id, product_id, name, unit_price, quantity, discount, subtotal
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, item := range items {
		_, err := s.execer(ctx).ExecContext(ctx, query,
			item.ID,
			saleID,
			item.ProductID,
			item.Name,
			item.UnitPrice,
			item.Quantity,
			item.Discount,
			item.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("insert sale item for product %s: %w", item.ProductID, err)
		}
	}
	return nil
}

func (s *PostgresStore) AddPayments(ctx context.Context, saleID uuid.UUID, payments []sale.Payment) error {
	query := `
		INSERT INTO sale_payments (
			id, sale_id, method, amount, installments
		) VALUES ($1, $2, $3, $4, $5)
	`
	for _, p := range payments {
		_, err := s.execer(ctx).ExecContext(ctx, query,
			p.ID,
			saleID,
			p.Method,
			p.Amount,
			p.Installments,
		)
		if err != nil {
			return fmt.Errorf("insert sale payment: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, saleID uuid.UUID, status sale.Status) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE sales SET status = $2 WHERE id = $1`, saleID, string(status))
	if err != nil {
		return fmt.Errorf("update sale status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sale status rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sale %s: %w", saleID, sentinel.ErrNotFound)
	}
	return nil
}

const saleColumns = `
	id, idempotency_key, session_id, register_id, client_id,
	subtotal, delivery_fee, discount, total, status, operator, created_at
`

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (sale.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE id = $1`
	return s.loadSale(ctx, s.execer(ctx).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) FindByIdempotencyKey(ctx context.Context, key string) (sale.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE idempotency_key = $1`
	return s.loadSale(ctx, s.execer(ctx).QueryRowContext(ctx, query, key))
}

func (s *PostgresStore) loadSale(ctx context.Context, row *sql.Row) (sale.Sale, error) {
	record, err := scanSale(row)
	if err != nil {
		return sale.Sale{}, err
	}
	if record.Items, err = s.loadItems(ctx, record.ID); err != nil {
		return sale.Sale{}, err
	}
	if record.Payments, err = s.loadPayments(ctx, record.ID); err != nil {
		return sale.Sale{}, err
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (sale.Sale, error) {
	var (
		record   sale.Sale
		status   string
		clientID uuid.NullUUID
	)
	err := row.Scan(
		&record.ID,
		&record.IdempotencyKey,
		&record.SessionID,
		&record.RegisterID,
		&clientID,
		&record.Subtotal,
		&record.DeliveryFee,
		&record.Discount,
		&record.Total,
		&status,
		&record.Operator,
		&record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return sale.Sale{}, fmt.Errorf("sale: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return sale.Sale{}, fmt.Errorf("scan sale: %w", err)
	}
	record.Status = sale.Status(status)
	if clientID.Valid {
		id := clientID.UUID
		record.ClientID = &id
	}
	return record, nil
}

func (s *PostgresStore) loadItems(ctx context.Context, saleID uuid.UUID) ([]sale.Item, error) {
	query := `
		SELECT id, sale_id, product_id, name, unit_price, quantity, discount, subtotal
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	defer rows.Close()

	var out []sale.Item
	for rows.Next() {
		var item sale.Item
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Name,
			&item.UnitPrice, &item.Quantity, &item.Discount, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadPayments(ctx context.Context, saleID uuid.UUID) ([]sale.Payment, error) {
	query := `
		SELECT id, sale_id, method, amount, installments
		FROM sale_payments
		WHERE sale_id = $1
		ORDER BY id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("load sale payments: %w", err)
	}
	defer rows.Close()

	var out []sale.Payment
	for rows.Next() {
		var p sale.Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.Installments); err != nil {
			return nil, fmt.Errorf("scan sale payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]sale.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE session_id = $1 ORDER BY created_at`
	rows, err := s.execer(ctx).QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var out []sale.Sale
	for rows.Next() {
		record, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Items, err = s.loadItems(ctx, out[i].ID); err != nil {
			return nil, err
		}
		if out[i].Payments, err = s.loadPayments(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
