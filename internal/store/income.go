package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

const incomeSourceColumns = `id, name, cnpj, description, current_expected_amount,
	currency, is_active, created_at, updated_at`

// InsertIncomeSource persists src and fills in its ID and timestamps.
// Returns domain.ErrDuplicateName when the name is taken.
func (s *Store) InsertIncomeSource(ctx context.Context, src *domain.IncomeSource) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO income_sources
		(name, cnpj, description, current_expected_amount, currency, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src.Name, src.CNPJ, src.Description, src.CurrentExpectedAmount,
		src.Currency, src.IsActive, formatTime(now), formatTime(now))
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("income source %q: %w", src.Name, domain.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("failed to insert income source %q: %w", src.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read income source id: %w", err)
	}
	src.ID = id
	src.CreatedAt = now
	src.UpdatedAt = now
	return nil
}

// GetIncomeSource returns the income source with the given id, or
// domain.ErrNotFound.
func (s *Store) GetIncomeSource(ctx context.Context, id int64) (*domain.IncomeSource, error) {
	src, err := scanIncomeSource(s.q.QueryRowContext(ctx,
		`SELECT `+incomeSourceColumns+` FROM income_sources WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("income source %d: %w", id, domain.ErrNotFound)
	}
	return src, err
}

// ListIncomeSources returns income sources ordered by name; activeOnly
// filters out inactive ones.
func (s *Store) ListIncomeSources(ctx context.Context, activeOnly bool) ([]domain.IncomeSource, error) {
	query := `SELECT ` + incomeSourceColumns + ` FROM income_sources ORDER BY name`
	if activeOnly {
		query = `SELECT ` + incomeSourceColumns + ` FROM income_sources WHERE is_active = 1 ORDER BY name`
	}
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query income sources: %w", err)
	}
	defer rows.Close()

	var out []domain.IncomeSource
	for rows.Next() {
		src, err := scanIncomeSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// UpdateIncomeSource rewrites the mutable fields of an existing income
// source.
func (s *Store) UpdateIncomeSource(ctx context.Context, src *domain.IncomeSource) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE income_sources SET
			name = ?, cnpj = ?, description = ?, current_expected_amount = ?,
			currency = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		src.Name, src.CNPJ, src.Description, src.CurrentExpectedAmount,
		src.Currency, src.IsActive, formatTime(now), src.ID)
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("income source %q: %w", src.Name, domain.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("failed to update income source %d: %w", src.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("income source %d: %w", src.ID, domain.ErrNotFound)
	}
	src.UpdatedAt = now
	return nil
}

// InsertIncomeSourceHistory appends one expected-amount change record.
func (s *Store) InsertIncomeSourceHistory(ctx context.Context, h *domain.IncomeSourceHistory) error {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO income_source_history
		(income_source_id, expected_amount, effective_date, note)
		VALUES (?, ?, ?, ?)`,
		h.IncomeSourceID, h.ExpectedAmount, formatDate(h.EffectiveDate), h.Note)
	if err != nil {
		return fmt.Errorf("failed to insert income history for source %d: %w", h.IncomeSourceID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read income history id: %w", err)
	}
	h.ID = id
	return nil
}

// ListIncomeSourceHistory returns a source's history ordered by effective
// date descending, newest first.
func (s *Store) ListIncomeSourceHistory(ctx context.Context, incomeSourceID int64) ([]domain.IncomeSourceHistory, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, income_source_id, expected_amount, effective_date, note
		FROM income_source_history
		WHERE income_source_id = ?
		ORDER BY effective_date DESC, id DESC`, incomeSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query income history: %w", err)
	}
	defer rows.Close()

	var out []domain.IncomeSourceHistory
	for rows.Next() {
		var h domain.IncomeSourceHistory
		var effective string
		if err := rows.Scan(&h.ID, &h.IncomeSourceID, &h.ExpectedAmount, &effective, &h.Note); err != nil {
			return nil, fmt.Errorf("failed to scan income history: %w", err)
		}
		h.EffectiveDate = parseDate(effective)
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanIncomeSource(row rowScanner) (*domain.IncomeSource, error) {
	var src domain.IncomeSource
	var created, updated string
	err := row.Scan(&src.ID, &src.Name, &src.CNPJ, &src.Description,
		&src.CurrentExpectedAmount, &src.Currency, &src.IsActive, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan income source: %w", err)
	}
	src.CreatedAt = parseTime(created)
	src.UpdatedAt = parseTime(updated)
	return &src, nil
}
