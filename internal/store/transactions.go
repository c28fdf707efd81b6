package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

const transactionColumns = `id, date, description, amount, currency, transaction_type,
	original_category, category_id, subscription_id, income_source_id,
	source_file, source_type, raw_data, created_at, updated_at`

// InsertTransaction persists t and fills in its ID, CreatedAt and
// UpdatedAt.
func (s *Store) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions
		(date, description, amount, currency, transaction_type, original_category,
		 category_id, subscription_id, income_source_id, source_file, source_type,
		 raw_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatDate(t.Date), t.Description, t.Amount, t.Currency, string(t.Direction),
		t.OriginalCategory, t.CategoryID, nullInt64(t.SubscriptionID),
		nullInt64(t.IncomeSourceID), t.SourceFile, string(t.SourceType),
		t.RawPayload, formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transaction id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetTransaction returns the transaction with the given id, or
// domain.ErrNotFound.
func (s *Store) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTransaction rewrites the mutable fields of an existing
// transaction. ID, SourceFile, SourceType and CreatedAt are never changed.
func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE transactions SET
			date = ?, description = ?, amount = ?, currency = ?,
			transaction_type = ?, original_category = ?, category_id = ?,
			subscription_id = ?, income_source_id = ?, raw_data = ?, updated_at = ?
		WHERE id = ?`,
		formatDate(t.Date), t.Description, t.Amount, t.Currency,
		string(t.Direction), t.OriginalCategory, t.CategoryID,
		nullInt64(t.SubscriptionID), nullInt64(t.IncomeSourceID),
		t.RawPayload, formatTime(now), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", t.ID, domain.ErrNotFound)
	}
	t.UpdatedAt = now
	return nil
}

// DeleteTransaction removes a transaction by id.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListTransactions returns all transactions ordered by date then id.
func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY date, id`)
}

// ListTransactionsByMonth returns transactions whose date falls inside the
// given year/month.
func (s *Store) ListTransactionsByMonth(ctx context.Context, year int, month time.Month) ([]domain.Transaction, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE date >= ? AND date < ? ORDER BY date, id`,
		formatDate(start), formatDate(end))
}

// ListTransactionsBySubscription returns all transactions linked to the
// subscription.
func (s *Store) ListTransactionsBySubscription(ctx context.Context, subscriptionID int64) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE subscription_id = ? ORDER BY date, id`, subscriptionID)
}

// CountTransactionsByCategory returns how many transactions reference the
// category. Used to guard category deletion.
func (s *Store) CountTransactionsByCategory(ctx context.Context, categoryID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, categoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions for category %d: %w", categoryID, err)
	}
	return n, nil
}

// SourceFileSummary aggregates one imported statement file.
type SourceFileSummary struct {
	SourceFile string
	SourceType domain.SourceType
	Count      int
	Total      float64
	FirstDate  time.Time
	LastDate   time.Time
	ImportedAt time.Time
}

// ImportHistory summarizes imported transactions grouped by source file,
// most recent import first.
func (s *Store) ImportHistory(ctx context.Context) ([]SourceFileSummary, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT source_file, source_type, COUNT(*), SUM(amount),
		       MIN(date), MAX(date), MAX(created_at)
		FROM transactions
		WHERE source_file != ''
		GROUP BY source_file, source_type
		ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query import history: %w", err)
	}
	defer rows.Close()

	var out []SourceFileSummary
	for rows.Next() {
		var sum SourceFileSummary
		var sourceType, first, last, imported string
		if err := rows.Scan(&sum.SourceFile, &sourceType, &sum.Count, &sum.Total,
			&first, &last, &imported); err != nil {
			return nil, fmt.Errorf("failed to scan import history: %w", err)
		}
		sum.SourceType = domain.SourceType(sourceType)
		sum.FirstDate = parseDate(first)
		sum.LastDate = parseDate(last)
		sum.ImportedAt = parseTime(imported)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// SignatureRow is the minimal projection the duplicate detector needs.
type SignatureRow struct {
	ID          int64
	Date        time.Time
	Description string
	Amount      float64
}

// SignatureRows streams the dedup projection of every stored transaction.
func (s *Store) SignatureRows(ctx context.Context) ([]SignatureRow, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, date, description, amount FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query signatures: %w", err)
	}
	defer rows.Close()

	var out []SignatureRow
	for rows.Next() {
		var r SignatureRow
		var date string
		if err := rows.Scan(&r.ID, &date, &r.Description, &r.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan signature row: %w", err)
		}
		r.Date = parseDate(date)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t                  domain.Transaction
		date, created      string
		updated            string
		direction, source  string
		subID, incomeID    sql.NullInt64
	)
	err := row.Scan(&t.ID, &date, &t.Description, &t.Amount, &t.Currency,
		&direction, &t.OriginalCategory, &t.CategoryID, &subID, &incomeID,
		&t.SourceFile, &source, &t.RawPayload, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	t.Date = parseDate(date)
	t.Direction = domain.Direction(direction)
	t.SourceType = domain.SourceType(source)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	if subID.Valid {
		t.SubscriptionID = &subID.Int64
	}
	if incomeID.Valid {
		t.IncomeSourceID = &incomeID.Int64
	}
	return &t, nil
}
