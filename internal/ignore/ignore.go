// Package ignore maintains the registry of descriptions suppressed on
// import.
package ignore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/fuzzy"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// Service answers should-ignore queries and manages ignore rules.
type Service struct {
	store *store.Store
}

// NewService wires the ignore registry to its store.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// ShouldIgnore reports whether a description matches an ignore rule.
//
// Exact equality is checked first across ALL rules. Only when no exact hit
// exists does the fuzzy pass run, and it takes the FIRST rule (in insertion
// order) with a non-nil threshold whose score reaches that threshold. Rule
// order matters and is preserved by the store.
func (s *Service) ShouldIgnore(ctx context.Context, description string) (bool, *domain.IgnoreRule, error) {
	rules, err := s.store.ListIgnoreRules(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("failed to evaluate ignore rules: %w", err)
	}

	for i := range rules {
		if rules[i].Description == description {
			return true, &rules[i], nil
		}
	}
	for i := range rules {
		if rules[i].FuzzyThreshold == nil {
			continue
		}
		if fuzzy.Score(description, rules[i].Description) >= *rules[i].FuzzyThreshold {
			return true, &rules[i], nil
		}
	}
	return false, nil, nil
}

// Add upserts an ignore rule for the exact description. A nil threshold
// makes the rule exact-only. If a rule for this description already exists
// its threshold is updated when different; usage count is left alone.
func (s *Service) Add(ctx context.Context, description string, threshold *float64) (*domain.IgnoreRule, error) {
	existing, err := s.store.GetIgnoreRuleByDescription(ctx, description)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		if !thresholdEqual(existing.FuzzyThreshold, threshold) {
			if err := s.store.UpdateIgnoreRuleThreshold(ctx, existing.ID, threshold); err != nil {
				return nil, err
			}
			existing.FuzzyThreshold = threshold
		}
		return existing, nil
	}

	rule := &domain.IgnoreRule{Description: description, FuzzyThreshold: threshold}
	if err := s.store.InsertIgnoreRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// IncrementUsage bumps a rule's usage counter. Called on every preview
// match, so repeated previews of the same file inflate the count.
func (s *Service) IncrementUsage(ctx context.Context, ruleID int64) error {
	return s.store.IncrementIgnoreRuleUsage(ctx, ruleID)
}

// List returns all rules in evaluation order.
func (s *Service) List(ctx context.Context) ([]domain.IgnoreRule, error) {
	return s.store.ListIgnoreRules(ctx)
}

// Remove deletes a rule.
func (s *Service) Remove(ctx context.Context, ruleID int64) error {
	return s.store.DeleteIgnoreRule(ctx, ruleID)
}

func thresholdEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
