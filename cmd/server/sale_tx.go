package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	txcontext "pdv/pkg/platform/tx"
)

// saleTxRunner wraps a sale commit in one SQL transaction. The stores pick
// the transaction up from the context, so every write inside fn joins it.
type saleTxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func newSaleTxRunner(db *sql.DB, timeout time.Duration) *saleTxRunner {
	return &saleTxRunner{db: db, timeout: timeout}
}

func (r *saleTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
