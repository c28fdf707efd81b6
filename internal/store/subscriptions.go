package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

const subscriptionColumns = `id, name, description, pattern, current_value,
	currency, is_active, created_at, updated_at`

// InsertSubscription persists sub and fills in its ID and timestamps.
// Returns domain.ErrDuplicateName when the name is taken.
func (s *Store) InsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO subscriptions
		(name, description, pattern, current_value, currency, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.Name, sub.Description, sub.Pattern, sub.CurrentValue,
		sub.Currency, sub.IsActive, formatTime(now), formatTime(now))
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("subscription %q: %w", sub.Name, domain.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("failed to insert subscription %q: %w", sub.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read subscription id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt = now
	sub.UpdatedAt = now
	return nil
}

// GetSubscription returns the subscription with the given id, or
// domain.ErrNotFound.
func (s *Store) GetSubscription(ctx context.Context, id int64) (*domain.Subscription, error) {
	sub, err := scanSubscription(s.q.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subscription %d: %w", id, domain.ErrNotFound)
	}
	return sub, err
}

// ListSubscriptions returns subscriptions ordered by name; activeOnly
// filters out inactive ones.
func (s *Store) ListSubscriptions(ctx context.Context, activeOnly bool) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY name`
	if activeOnly {
		query = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE is_active = 1 ORDER BY name`
	}
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// UpdateSubscription rewrites the mutable fields of an existing
// subscription.
func (s *Store) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx, `
		UPDATE subscriptions SET
			name = ?, description = ?, pattern = ?, current_value = ?,
			currency = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		sub.Name, sub.Description, sub.Pattern, sub.CurrentValue,
		sub.Currency, sub.IsActive, formatTime(now), sub.ID)
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("subscription %q: %w", sub.Name, domain.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("failed to update subscription %d: %w", sub.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subscription %d: %w", sub.ID, domain.ErrNotFound)
	}
	sub.UpdatedAt = now
	return nil
}

// SetSubscriptionCurrentValue updates only the denormalized current value.
func (s *Store) SetSubscriptionCurrentValue(ctx context.Context, id int64, value float64) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE subscriptions SET current_value = ?, updated_at = ? WHERE id = ?`,
		value, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("failed to set current value for subscription %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("subscription %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var sub domain.Subscription
	var created, updated string
	err := row.Scan(&sub.ID, &sub.Name, &sub.Description, &sub.Pattern,
		&sub.CurrentValue, &sub.Currency, &sub.IsActive, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	sub.CreatedAt = parseTime(created)
	sub.UpdatedAt = parseTime(updated)
	return &sub, nil
}
