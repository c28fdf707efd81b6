package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// InsertNameMapping persists m and fills in its ID and timestamps. Returns
// domain.ErrDuplicateName when a mapping with the same pattern exists.
func (s *Store) InsertNameMapping(ctx context.Context, m *domain.NameMapping) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO name_mappings
		(pattern, mapped_name, fuzzy_threshold, usage_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Pattern, m.MappedName, m.FuzzyThreshold, m.UsageCount,
		formatTime(now), formatTime(now))
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("name mapping %q: %w", m.Pattern, domain.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("failed to insert name mapping %q: %w", m.Pattern, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read name mapping id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// ListNameMappings returns all mappings in insertion order.
func (s *Store) ListNameMappings(ctx context.Context) ([]domain.NameMapping, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, pattern, mapped_name, fuzzy_threshold, usage_count, created_at, updated_at
		FROM name_mappings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query name mappings: %w", err)
	}
	defer rows.Close()

	var out []domain.NameMapping
	for rows.Next() {
		m, err := scanNameMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// UpdateNameMapping rewrites the pattern, mapped name, threshold and usage
// count of an existing mapping.
func (s *Store) UpdateNameMapping(ctx context.Context, m *domain.NameMapping) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE name_mappings SET
			pattern = ?, mapped_name = ?, fuzzy_threshold = ?, usage_count = ?, updated_at = ?
		WHERE id = ?`,
		m.Pattern, m.MappedName, m.FuzzyThreshold, m.UsageCount, formatTime(now), m.ID)
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("name mapping %q: %w", m.Pattern, domain.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("failed to update name mapping %d: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("name mapping %d: %w", m.ID, domain.ErrNotFound)
	}
	m.UpdatedAt = now
	return nil
}

// IncrementNameMappingUsage bumps a mapping's usage counter.
func (s *Store) IncrementNameMappingUsage(ctx context.Context, id int64) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE name_mappings SET usage_count = usage_count + 1, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to increment name mapping %d usage: %w", id, err)
	}
	return nil
}

// DeleteNameMapping removes a mapping by id.
func (s *Store) DeleteNameMapping(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM name_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete name mapping %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("name mapping %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanNameMapping(row rowScanner) (*domain.NameMapping, error) {
	var m domain.NameMapping
	var created, updated string
	err := row.Scan(&m.ID, &m.Pattern, &m.MappedName, &m.FuzzyThreshold,
		&m.UsageCount, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan name mapping: %w", err)
	}
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	return &m, nil
}
