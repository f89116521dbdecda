package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the tables the stores rely on. Idempotent, run at
// startup. The partial unique index on cash_sessions backs the one-open-
// session-per-register invariant against concurrent opens.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT NOT NULL UNIQUE,
			price NUMERIC(12,2) NOT NULL,
			stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cash_sessions (
			id UUID PRIMARY KEY,
			register_id TEXT NOT NULL,
			opening_balance NUMERIC(12,2) NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			closing_balance NUMERIC(12,2),
			expected_balance NUMERIC(12,2),
			difference NUMERIC(12,2),
			operator TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			closed_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS cash_sessions_one_open
			ON cash_sessions (register_id) WHERE status = 'open'`,
		`CREATE TABLE IF NOT EXISTS cash_movements (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES cash_sessions (id),
			type TEXT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			operator TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS cash_movements_session
			ON cash_movements (session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id UUID PRIMARY KEY,
			idempotency_key TEXT NOT NULL UNIQUE,
			session_id UUID NOT NULL REFERENCES cash_sessions (id),
			register_id TEXT NOT NULL,
			client_id UUID REFERENCES clients (id),
			subtotal NUMERIC(12,2) NOT NULL,
			delivery_fee NUMERIC(12,2) NOT NULL,
			discount NUMERIC(12,2) NOT NULL,
			total NUMERIC(12,2) NOT NULL,
			status TEXT NOT NULL,
			operator TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS sales_session
			ON sales (session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS sale_items (
			id UUID PRIMARY KEY,
			sale_id UUID NOT NULL REFERENCES sales (id),
			product_id UUID NOT NULL,
			name TEXT NOT NULL,
			unit_price NUMERIC(12,2) NOT NULL,
			quantity INTEGER NOT NULL,
			discount NUMERIC(12,2) NOT NULL,
			subtotal NUMERIC(12,2) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sale_payments (
			id UUID PRIMARY KEY,
			sale_id UUID NOT NULL REFERENCES sales (id),
			method TEXT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			installments INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS sale_outbox (
			id UUID PRIMARY KEY,
			sale_id UUID NOT NULL,
			register_id TEXT NOT NULL,
			session_id UUID NOT NULL,
			total NUMERIC(12,2) NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			published_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS sale_outbox_pending
			ON sale_outbox (occurred_at) WHERE published_at IS NULL`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
