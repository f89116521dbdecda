package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"pdv/internal/cashsession"
	"pdv/pkg/platform/sentinel"
	txcontext "pdv/pkg/platform/tx"
)

// PostgresStore implements cashsession.Store. The schema carries a partial
// unique index on (register_id) WHERE status = 'open', so the
// one-open-session-per-register invariant holds even across concurrent opens
// from different processes.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL session store.
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

func (s *PostgresStore) CreateSession(ctx context.Context, session cashsession.Session) error {
	query := `
		INSERT INTO cash_sessions (
			id, register_id, opening_balance, opened_at, status, operator
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		session.ID,
		session.RegisterID,
		session.OpeningBalance,
		session.OpenedAt,
		string(session.Status),
		session.Operator,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("register %q already has an open session: %w", session.RegisterID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `
	id, register_id, opening_balance, opened_at, status,
	closing_balance, expected_balance, difference, operator, notes, closed_at
`

func (s *PostgresStore) FindOpenSession(ctx context.Context, registerID string) (cashsession.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM cash_sessions WHERE register_id = $1 AND status = 'open'`
	return s.scanSession(s.execer(ctx).QueryRowContext(ctx, query, registerID))
}

func (s *PostgresStore) FindSession(ctx context.Context, id uuid.UUID) (cashsession.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM cash_sessions WHERE id = $1`
	return s.scanSession(s.execer(ctx).QueryRowContext(ctx, query, id))
}

func (s *PostgresStore) scanSession(row *sql.Row) (cashsession.Session, error) {
	var (
		session         cashsession.Session
		status          string
		closingBalance  sql.NullString
		expectedBalance sql.NullString
		difference      sql.NullString
		notes           sql.NullString
		closedAt        sql.NullTime
	)
	err := row.Scan(
		&session.ID,
		&session.RegisterID,
		&session.OpeningBalance,
		&session.OpenedAt,
		&status,
		&closingBalance,
		&expectedBalance,
		&difference,
		&session.Operator,
		&notes,
		&closedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return cashsession.Session{}, fmt.Errorf("session: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return cashsession.Session{}, fmt.Errorf("scan session: %w", err)
	}

	session.Status = cashsession.Status(status)
	session.Notes = notes.String
	if closedAt.Valid {
		t := closedAt.Time
		session.ClosedAt = &t
	}
	if err := scanDecimal(closingBalance, &session.ClosingBalance); err != nil {
		return cashsession.Session{}, err
	}
	if err := scanDecimal(expectedBalance, &session.ExpectedBalance); err != nil {
		return cashsession.Session{}, err
	}
	if err := scanDecimal(difference, &session.Difference); err != nil {
		return cashsession.Session{}, err
	}
	return session, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, session cashsession.Session) error {
	// The status guard keeps close and cancel from racing each other: once a
	// session leaves 'open' the update matches nothing and the second caller
	// gets an invalid-state error instead of overwriting the terminal state.
	query := `
		UPDATE cash_sessions
		SET status = $2, closing_balance = $3, expected_balance = $4,
		    difference = $5, notes = $6, closed_at = $7
		WHERE id = $1 AND status = 'open'
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		session.ID,
		string(session.Status),
		session.ClosingBalance,
		session.ExpectedBalance,
		session.Difference,
		session.Notes,
		session.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s is not open: %w", session.ID, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) AppendMovement(ctx context.Context, movement cashsession.Movement) error {
	query := `
		INSERT INTO cash_movements (
			id, session_id, type, amount, reference, operator, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		movement.ID,
		movement.SessionID,
		string(movement.Type),
		movement.Amount,
		movement.Reference,
		movement.Operator,
		movement.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMovements(ctx context.Context, sessionID uuid.UUID) ([]cashsession.Movement, error) {
	query := `
		SELECT id, session_id, type, amount, reference, operator, created_at
		FROM cash_movements
		WHERE session_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()

	var out []cashsession.Movement
	for rows.Next() {
		var (
			m         cashsession.Movement
			mtype     string
			reference sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &mtype, &m.Amount, &reference, &m.Operator, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.Type = cashsession.MovementType(mtype)
		m.Reference = reference.String
		out = append(out, m)
	}
	return out, rows.Err()
}
