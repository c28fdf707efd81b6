// Package subscription tracks recurring charges and their linkage to
// transactions.
package subscription

import (
	"context"
	"fmt"

	"github.com/rumor-ml/commons.systems/finledger/internal/category"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// Service manages subscriptions and keeps their denormalized current value
// consistent.
type Service struct {
	store *store.Store
}

// NewService wires the subscription service to its store.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Create inserts a new subscription. Name uniqueness is enforced by the
// store (domain.ErrDuplicateName).
func (s *Service) Create(ctx context.Context, name, description, pattern string) (*domain.Subscription, error) {
	sub := &domain.Subscription{
		Name:        name,
		Description: description,
		Pattern:     pattern,
		Currency:    domain.DefaultCurrency,
		IsActive:    true,
	}
	if err := s.store.InsertSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// FindByPattern returns the active subscription whose pattern exactly
// equals pattern, or ok=false. Exact match on purpose: recurring charges
// repeat their description verbatim, and fuzzy matching here would risk
// cross-linking distinct services.
func (s *Service) FindByPattern(ctx context.Context, pattern string) (*domain.Subscription, bool, error) {
	subs, err := s.store.ListSubscriptions(ctx, true)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	for i := range subs {
		if subs[i].Pattern == pattern {
			return &subs[i], true, nil
		}
	}
	return nil, false, nil
}

// FindOrCreateByPattern resolves a subscription for the given description
// pattern, creating one named after the pattern when none exists. Used by
// the import execution phase; idempotent across imports.
func (s *Service) FindOrCreateByPattern(ctx context.Context, pattern string) (*domain.Subscription, error) {
	if sub, ok, err := s.FindByPattern(ctx, pattern); err != nil || ok {
		return sub, err
	}
	return s.Create(ctx, pattern, "", pattern)
}

// Link attaches a transaction to the subscription, forcing it into the
// protected category, and recomputes the subscription's current value.
func (s *Service) Link(ctx context.Context, subscriptionID, transactionID int64) error {
	t, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	t.SubscriptionID = &subscriptionID
	t.CategoryID = domain.SubscriptionsCategoryID
	if err := category.ValidateAssignment(t.CategoryID, t.SubscriptionID); err != nil {
		return err
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return err
	}
	return s.RecomputeCurrentValue(ctx, subscriptionID)
}

// Unlink detaches a transaction from its subscription, reassigning it to
// the fallback category, and recomputes the subscription's current value.
func (s *Service) Unlink(ctx context.Context, transactionID int64, newCategoryID int64) error {
	t, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if t.SubscriptionID == nil {
		return nil
	}
	subID := *t.SubscriptionID
	t.SubscriptionID = nil
	t.CategoryID = newCategoryID
	if err := category.ValidateAssignment(t.CategoryID, t.SubscriptionID); err != nil {
		return err
	}
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return err
	}
	return s.RecomputeCurrentValue(ctx, subID)
}

// RecomputeCurrentValue sets current_value to the amount of the
// chronologically latest linked transaction, or 0 when none is linked.
// Latest by date, not by insertion order; ties go to the higher id.
func (s *Service) RecomputeCurrentValue(ctx context.Context, subscriptionID int64) error {
	txs, err := s.store.ListTransactionsBySubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	var value float64
	if len(txs) > 0 {
		// ListTransactionsBySubscription orders by date then id.
		value = txs[len(txs)-1].Amount
	}
	if err := s.store.SetSubscriptionCurrentValue(ctx, subscriptionID, value); err != nil {
		return fmt.Errorf("failed to recompute subscription %d: %w", subscriptionID, err)
	}
	return nil
}

// List returns subscriptions; activeOnly filters out inactive ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.Subscription, error) {
	return s.store.ListSubscriptions(ctx, activeOnly)
}

// Deactivate marks a subscription inactive without touching its
// transactions.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	sub, err := s.store.GetSubscription(ctx, id)
	if err != nil {
		return err
	}
	sub.IsActive = false
	return s.store.UpdateSubscription(ctx, sub)
}
