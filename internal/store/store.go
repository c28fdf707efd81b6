// Package store persists the finledger data model in SQLite.
//
// All write paths accept a context and run against either the root
// connection or an open transaction; WithTx gives callers all-or-nothing
// semantics over any sequence of store calls.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every store method
// works inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps the SQLite database. A Store handed to a WithTx callback is
// bound to the open transaction; its db field is nil and nesting is not
// supported.
type Store struct {
	db *sql.DB
	q  querier
}

// Open opens (creating if needed) the database at path and migrates the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if strings.Contains(path, ":memory:") {
		// Each pooled connection would get its own empty in-memory db.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, q: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn inside a single database transaction. The *Store passed
// to fn shares the schema but routes every call through the transaction;
// any error from fn rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fmt.Errorf("nested transactions are not supported")
	}
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		pattern TEXT NOT NULL DEFAULT '',
		current_value REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'BRL',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS income_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		cnpj TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		current_expected_amount REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'BRL',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS income_source_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		income_source_id INTEGER NOT NULL REFERENCES income_sources(id) ON DELETE CASCADE,
		expected_amount REAL NOT NULL,
		effective_date TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_income_history_source
		ON income_source_history(income_source_id, effective_date);

	-- No uniqueness on (date, description, amount): duplicate detection is
	-- advisory and the user may approve importing a flagged duplicate.
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		description TEXT NOT NULL,
		amount REAL NOT NULL,
		currency TEXT NOT NULL DEFAULT 'BRL',
		transaction_type TEXT NOT NULL,
		original_category TEXT NOT NULL DEFAULT '',
		category_id INTEGER NOT NULL REFERENCES categories(id),
		subscription_id INTEGER REFERENCES subscriptions(id),
		income_source_id INTEGER REFERENCES income_sources(id),
		source_file TEXT NOT NULL DEFAULT '',
		source_type TEXT NOT NULL,
		raw_data TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
	CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_subscription ON transactions(subscription_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_source_file ON transactions(source_file);

	CREATE TABLE IF NOT EXISTS ignore_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		description TEXT NOT NULL UNIQUE,
		fuzzy_threshold REAL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS name_mappings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pattern TEXT NOT NULL UNIQUE,
		mapped_name TEXT NOT NULL,
		fuzzy_threshold REAL NOT NULL DEFAULT 70,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.q.ExecContext(ctx, schema); err != nil {
		return err
	}
	return s.seed(ctx)
}

// seed inserts the reserved subscriptions category at its fixed id.
func (s *Store) seed(ctx context.Context) error {
	now := formatTime(time.Now().UTC())
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		domain.SubscriptionsCategoryID, domain.SubscriptionsCategoryName, now, now,
	)
	return err
}

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

func formatDate(t time.Time) string { return t.Format(dateLayout) }
func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullFloat64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
