/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements credit.TxStore and loan.TxStore using database/sql over
  mattn/go-sqlite3. In production, the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  credit_lines:       Credit lines with limit, currency, period, status
  credit_sublines:    Sub-allocations with amount, rate, status
  line_adjustments:   Proposed credit line changes (nullable proposed fields)
  amount_adjustments: Proposed subline amount changes
  rate_adjustments:   Proposed subline interest rate changes
  status_adjustments: Proposed subline status changes
  loan_terms:         Repayment terms, one per subline (unique index)
  scheduled_payments: Materialized amortization schedule rows

INTEGRITY:
  The unique index on loan_terms(credit_subline_id) enforces the
  one-term-per-subline invariant at the database level; violations map to
  loan.ErrDuplicateLoanTerm, which is an integrity-kind error.

TRANSACTIONS & POST-COMMIT EFFECTS:
  Both store views expose WithTx(fn(tx, fx)). The closure's writes run in
  one database transaction; effects enqueued on fx are flushed only after
  a successful commit, and discarded on rollback or error. Effects run
  outside the transaction and typically open their own.

CONCURRENCY:
  The connection pool is capped at one connection. SQLite serializes
  writers anyway, a single connection keeps ":memory:" databases coherent
  across goroutines, and it makes "flush after commit" trivially ordered.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency
  and crash recovery.

USAGE:
  store, err := sqlite.New("./data/credit.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  creditSvc := credit.NewService(store.Credit())
  loanSvc := loan.NewService(store.Loan())

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - credit/store.go, loan/store.go: Interface definitions
  - lifecycle/queue.go: Post-commit effect queue semantics
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/althea/credit-engine/credit"
	"github.com/althea/credit-engine/lifecycle"
	"github.com/althea/credit-engine/loan"
)

// querier is the subset of *sql.DB / *sql.Tx the row operations need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements every data operation against a querier. It is
// embedded by both the root Store (q = *sql.DB) and the in-transaction
// view (q = *sql.Tx) so each operation is written exactly once.
type queries struct {
	q querier
}

// Store implements credit.Store and loan.Store using SQLite.
type Store struct {
	db *sql.DB
	queries
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, queries: queries{q: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credit_lines (
		id TEXT PRIMARY KEY,
		credit_limit TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'mxn',
		start_date TEXT NOT NULL,
		end_date TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS credit_sublines (
		id TEXT PRIMARY KEY,
		credit_line_id TEXT NOT NULL REFERENCES credit_lines(id),
		subline_type TEXT,
		subline_amount TEXT NOT NULL,
		amount_disbursed TEXT NOT NULL DEFAULT '0',
		outstanding_balance TEXT NOT NULL DEFAULT '0',
		interest_rate TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sublines_line
		ON credit_sublines(credit_line_id);

	CREATE TABLE IF NOT EXISTS line_adjustments (
		id TEXT PRIMARY KEY,
		credit_line_id TEXT NOT NULL REFERENCES credit_lines(id),
		previous_limit TEXT NOT NULL,
		previous_status TEXT NOT NULL,
		new_limit TEXT,
		new_end_date TEXT,
		new_status TEXT,
		new_currency TEXT,
		adjustment_status TEXT NOT NULL DEFAULT 'pending_review',
		effective_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_line_adjustments_line
		ON line_adjustments(credit_line_id);
	CREATE INDEX IF NOT EXISTS idx_line_adjustments_status
		ON line_adjustments(adjustment_status);

	CREATE TABLE IF NOT EXISTS amount_adjustments (
		id TEXT PRIMARY KEY,
		credit_subline_id TEXT NOT NULL REFERENCES credit_sublines(id),
		initial_amount TEXT NOT NULL,
		adjusted_amount TEXT NOT NULL,
		adjustment_status TEXT NOT NULL DEFAULT 'pending_review',
		effective_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_amount_adjustments_subline
		ON amount_adjustments(credit_subline_id);

	CREATE TABLE IF NOT EXISTS rate_adjustments (
		id TEXT PRIMARY KEY,
		credit_subline_id TEXT NOT NULL REFERENCES credit_sublines(id),
		initial_rate TEXT NOT NULL,
		adjusted_rate TEXT NOT NULL,
		adjustment_status TEXT NOT NULL DEFAULT 'pending_review',
		effective_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rate_adjustments_subline
		ON rate_adjustments(credit_subline_id);

	CREATE TABLE IF NOT EXISTS status_adjustments (
		id TEXT PRIMARY KEY,
		credit_subline_id TEXT NOT NULL REFERENCES credit_sublines(id),
		initial_status TEXT NOT NULL,
		adjusted_status TEXT NOT NULL,
		adjustment_status TEXT NOT NULL DEFAULT 'pending_review',
		effective_date TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_status_adjustments_subline
		ON status_adjustments(credit_subline_id);

	CREATE TABLE IF NOT EXISTS loan_terms (
		id TEXT PRIMARY KEY,
		credit_subline_id TEXT NOT NULL REFERENCES credit_sublines(id),
		term_length INTEGER NOT NULL,
		repayment_frequency TEXT NOT NULL,
		payment_due_day INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	-- CRITICAL: a credit subline has at most one loan term
	CREATE UNIQUE INDEX IF NOT EXISTS idx_loan_terms_subline
		ON loan_terms(credit_subline_id);

	CREATE TABLE IF NOT EXISTS scheduled_payments (
		id TEXT PRIMARY KEY,
		loan_term_id TEXT NOT NULL REFERENCES loan_terms(id),
		due_date TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		principal_component TEXT NOT NULL,
		interest_component TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'pending',
		actual_payment_date TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_scheduled_payments_term
		ON scheduled_payments(loan_term_id);
	CREATE INDEX IF NOT EXISTS idx_scheduled_payments_status
		ON scheduled_payments(payment_status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION VIEWS
// =============================================================================

// txStore is the in-transaction view handed to WithTx closures.
type txStore struct {
	queries
}

// Credit returns the credit.TxStore view of this store.
func (s *Store) Credit() credit.TxStore { return creditView{s} }

// Loan returns the loan.TxStore view of this store.
func (s *Store) Loan() loan.TxStore { return loanView{s} }

type creditView struct{ *Store }

func (v creditView) WithTx(ctx context.Context, fn func(tx credit.Store, fx *lifecycle.Queue) error) error {
	return v.runTx(ctx, func(tx *txStore, fx *lifecycle.Queue) error {
		return fn(tx, fx)
	})
}

type loanView struct{ *Store }

func (v loanView) WithTx(ctx context.Context, fn func(tx loan.Store, fx *lifecycle.Queue) error) error {
	return v.runTx(ctx, func(tx *txStore, fx *lifecycle.Queue) error {
		return fn(tx, fx)
	})
}

// runTx executes fn in one database transaction. Effects enqueued on the
// queue flush strictly after a successful commit; any error discards them.
func (s *Store) runTx(ctx context.Context, fn func(tx *txStore, fx *lifecycle.Queue) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	fx := &lifecycle.Queue{}
	if err := fn(&txStore{queries: queries{q: sqlTx}}, fx); err != nil {
		sqlTx.Rollback()
		fx.Discard()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		fx.Discard()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return fx.Flush(ctx)
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
