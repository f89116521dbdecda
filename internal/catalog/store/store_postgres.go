package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pdv/internal/catalog"
	"pdv/pkg/platform/sentinel"
	txcontext "pdv/pkg/platform/tx"
)

// PostgresStore implements catalog.Store over the shared relational store.
// Stock mutations honor a transaction carried in context so the commit
// coordinator can fold them into the sale transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL catalog store.
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

func (s *PostgresStore) FindProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	query := `
		SELECT id, name, code, price, stock
		FROM products
		WHERE id = $1
	`
	return s.scanProduct(s.execer(ctx).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) FindProductByCode(ctx context.Context, code string) (catalog.Product, error) {
	query := `
		SELECT id, name, code, price, stock
		FROM products
		WHERE code = $1
	`
	return s.scanProduct(s.execer(ctx).QueryRowContext(ctx, query, code))
}

func (s *PostgresStore) scanProduct(row *sql.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Price, &p.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, fmt.Errorf("product: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) SearchProducts(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, name, code, price, stock
		FROM products
		WHERE name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%'
		ORDER BY name
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var out []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.Price, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindClient(ctx context.Context, id uuid.UUID) (catalog.Client, error) {
	query := `SELECT id, name FROM clients WHERE id = $1`
	var c catalog.Client
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Client{}, fmt.Errorf("client %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return catalog.Client{}, fmt.Errorf("scan client: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListClients(ctx context.Context) ([]catalog.Client, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT id, name FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []catalog.Client
	for rows.Next() {
		var c catalog.Client
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DecrementStock is the authoritative guard against overselling: the WHERE
// clause makes validation and decrement a single atomic statement, so two
// registers racing for the last unit cannot both succeed.
func (s *PostgresStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	query := `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, id, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("product %s insufficient stock for qty %d: %w", id, qty, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	query := `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query, id, qty)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment stock rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("product %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}
