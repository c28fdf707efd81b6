package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// InsertCategory persists c and fills in its ID and timestamps. Returns
// domain.ErrDuplicateName when the name is taken.
func (s *Store) InsertCategory(ctx context.Context, c *domain.Category) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO categories (name, created_at, updated_at) VALUES (?, ?, ?)`,
		c.Name, formatTime(now), formatTime(now))
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("category %q: %w", c.Name, domain.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("failed to insert category %q: %w", c.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read category id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// GetCategory returns the category with the given id, or domain.ErrNotFound.
func (s *Store) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return s.scanOneCategory(s.q.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM categories WHERE id = ?`, id),
		fmt.Sprintf("category %d", id))
}

// GetCategoryByName returns the category with the exact name, or
// domain.ErrNotFound.
func (s *Store) GetCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	return s.scanOneCategory(s.q.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM categories WHERE name = ?`, name),
		fmt.Sprintf("category %q", name))
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		var created, updated string
		if err := rows.Scan(&c.ID, &c.Name, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.CreatedAt = parseTime(created)
		c.UpdatedAt = parseTime(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

// RenameCategory changes a category's name. The protected-category and
// duplicate-name guards live in the category service; this is the raw write.
func (s *Store) RenameCategory(ctx context.Context, id int64, name string) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE categories SET name = ?, updated_at = ? WHERE id = ?`,
		name, formatTime(time.Now().UTC()), id)
	if isUniqueConstraintErr(err) {
		return fmt.Errorf("category %q: %w", name, domain.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("failed to rename category %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteCategory removes a category by id. Referential guards live in the
// category service.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) scanOneCategory(row *sql.Row, what string) (*domain.Category, error) {
	var c domain.Category
	var created, updated string
	err := row.Scan(&c.ID, &c.Name, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", what, err)
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}
