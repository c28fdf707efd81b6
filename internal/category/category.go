// Package category owns the category catalog and its protection rules.
package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/fuzzy"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// Service provides fuzzy lookup-or-create over categories and guards the
// protected subscriptions category.
type Service struct {
	store     *store.Store
	threshold float64
}

// NewService wires the category service to its store. threshold is the
// similarity cutoff for reusing existing categories; pass
// fuzzy.DefaultThreshold unless configured otherwise.
func NewService(s *store.Store, threshold float64) *Service {
	return &Service{store: s, threshold: threshold}
}

// FindOrCreate resolves name to a category. Existing names are matched
// case-insensitively with a fuzzy best-match at the service threshold;
// when nothing qualifies a new category is created verbatim from name.
func (s *Service) FindOrCreate(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = domain.DefaultCategoryName
	}

	existing, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	lowered := make([]string, len(existing))
	for i, c := range existing {
		lowered[i] = strings.ToLower(c.Name)
	}
	if match, ok := fuzzy.BestMatch(strings.ToLower(name), lowered, s.threshold); ok {
		return &existing[match.Index], nil
	}

	c := &domain.Category{Name: name}
	if err := s.store.InsertCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// IsProtected reports whether id is the reserved subscriptions category.
func (s *Service) IsProtected(id int64) bool {
	return id == domain.SubscriptionsCategoryID
}

// Rename changes a category's name. The protected category always fails
// with domain.ErrCategoryProtected.
func (s *Service) Rename(ctx context.Context, id int64, name string) error {
	if s.IsProtected(id) {
		return fmt.Errorf("cannot rename %q: %w", domain.SubscriptionsCategoryName, domain.ErrCategoryProtected)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("category name cannot be empty")
	}
	return s.store.RenameCategory(ctx, id, name)
}

// Delete removes a category. The protected category fails with
// domain.ErrCategoryProtected regardless of usage; any category still
// referenced by transactions fails with domain.ErrCategoryInUse.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if s.IsProtected(id) {
		return fmt.Errorf("cannot delete %q: %w", domain.SubscriptionsCategoryName, domain.ErrCategoryProtected)
	}
	n, err := s.store.CountTransactionsByCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("category %d referenced by %d transactions: %w", id, n, domain.ErrCategoryInUse)
	}
	return s.store.DeleteCategory(ctx, id)
}

// List returns all categories ordered by name.
func (s *Service) List(ctx context.Context) ([]domain.Category, error) {
	return s.store.ListCategories(ctx)
}

// ValidateAssignment enforces the subscription-linkage invariant: a
// transaction linked to a subscription must hold the protected category,
// and one not linked may never hold it. Both violations return
// domain.ErrInvalidCategoryAssignment.
func ValidateAssignment(categoryID int64, subscriptionID *int64) error {
	protected := categoryID == domain.SubscriptionsCategoryID
	linked := subscriptionID != nil
	if linked && !protected {
		return fmt.Errorf("subscription-linked transaction must use the %q category: %w",
			domain.SubscriptionsCategoryName, domain.ErrInvalidCategoryAssignment)
	}
	if !linked && protected {
		return fmt.Errorf("only subscription-linked transactions may use the %q category: %w",
			domain.SubscriptionsCategoryName, domain.ErrInvalidCategoryAssignment)
	}
	return nil
}
