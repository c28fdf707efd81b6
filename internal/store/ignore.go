package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// InsertIgnoreRule persists r and fills in its ID and CreatedAt. Returns
// domain.ErrDuplicateName when a rule with the same description exists.
func (s *Store) InsertIgnoreRule(ctx context.Context, r *domain.IgnoreRule) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO ignore_rules (description, fuzzy_threshold, usage_count, created_at)
		 VALUES (?, ?, ?, ?)`,
		r.Description, nullFloat64(r.FuzzyThreshold), r.UsageCount, formatTime(now))
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("ignore rule %q: %w", r.Description, domain.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("failed to insert ignore rule %q: %w", r.Description, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read ignore rule id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	return nil
}

// GetIgnoreRuleByDescription returns the rule with the exact description,
// or domain.ErrNotFound.
func (s *Store) GetIgnoreRuleByDescription(ctx context.Context, description string) (*domain.IgnoreRule, error) {
	r, err := scanIgnoreRule(s.q.QueryRowContext(ctx,
		`SELECT id, description, fuzzy_threshold, usage_count, created_at
		 FROM ignore_rules WHERE description = ?`, description))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ignore rule %q: %w", description, domain.ErrNotFound)
	}
	return r, err
}

// ListIgnoreRules returns all rules in insertion order. Order matters: the
// fuzzy pass takes the first match, not the best.
func (s *Store) ListIgnoreRules(ctx context.Context) ([]domain.IgnoreRule, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, description, fuzzy_threshold, usage_count, created_at
		 FROM ignore_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ignore rules: %w", err)
	}
	defer rows.Close()

	var out []domain.IgnoreRule
	for rows.Next() {
		r, err := scanIgnoreRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateIgnoreRuleThreshold replaces a rule's fuzzy threshold. A nil
// threshold makes the rule exact-only.
func (s *Store) UpdateIgnoreRuleThreshold(ctx context.Context, id int64, threshold *float64) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE ignore_rules SET fuzzy_threshold = ? WHERE id = ?`,
		nullFloat64(threshold), id)
	if err != nil {
		return fmt.Errorf("failed to update ignore rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ignore rule %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// IncrementIgnoreRuleUsage bumps a rule's usage counter.
func (s *Store) IncrementIgnoreRuleUsage(ctx context.Context, id int64) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE ignore_rules SET usage_count = usage_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment ignore rule %d usage: %w", id, err)
	}
	return nil
}

// DeleteIgnoreRule removes a rule by id.
func (s *Store) DeleteIgnoreRule(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM ignore_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ignore rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ignore rule %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanIgnoreRule(row rowScanner) (*domain.IgnoreRule, error) {
	var r domain.IgnoreRule
	var threshold sql.NullFloat64
	var created string
	err := row.Scan(&r.ID, &r.Description, &threshold, &r.UsageCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ignore rule: %w", err)
	}
	if threshold.Valid {
		r.FuzzyThreshold = &threshold.Float64
	}
	r.CreatedAt = parseTime(created)
	return &r, nil
}
