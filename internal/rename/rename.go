// Package rename maintains description-to-canonical-name mappings offered
// as suggestions during import preview.
package rename

import (
	"context"
	"fmt"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/fuzzy"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// Service manages the rename registry.
type Service struct {
	store     *store.Store
	threshold float64
}

// NewService wires the rename registry to its store. threshold is the
// similarity cutoff for suggestion lookup and near-duplicate pattern
// replacement; pass fuzzy.DefaultThreshold unless configured otherwise.
func NewService(s *store.Store, threshold float64) *Service {
	return &Service{store: s, threshold: threshold}
}

// FindSuggestion returns the mapped name of the best-matching pattern
// scoring at or above the service threshold, or ok=false.
func (s *Service) FindSuggestion(ctx context.Context, description string) (string, *domain.NameMapping, error) {
	mappings, err := s.store.ListNameMappings(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up rename suggestion: %w", err)
	}
	if len(mappings) == 0 {
		return "", nil, nil
	}

	patterns := make([]string, len(mappings))
	for i, m := range mappings {
		patterns[i] = m.Pattern
	}
	match, ok := fuzzy.BestMatch(description, patterns, s.threshold)
	if !ok {
		return "", nil, nil
	}
	return mappings[match.Index].MappedName, &mappings[match.Index], nil
}

// CreateOrUpdate records that pattern should be renamed to mappedName.
//
// If an existing mapping's pattern fuzzy-matches the new pattern at the
// service threshold, that mapping is REPLACED in place (pattern and mapped
// name rewritten, usage count reset) instead of inserting a near-duplicate.
// This keeps the registry small on purpose.
func (s *Service) CreateOrUpdate(ctx context.Context, pattern, mappedName string) (*domain.NameMapping, error) {
	mappings, err := s.store.ListNameMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load name mappings: %w", err)
	}

	patterns := make([]string, len(mappings))
	for i, m := range mappings {
		patterns[i] = m.Pattern
	}
	if match, ok := fuzzy.BestMatch(pattern, patterns, s.threshold); ok {
		m := mappings[match.Index]
		m.Pattern = pattern
		m.MappedName = mappedName
		m.UsageCount = 0
		if err := s.store.UpdateNameMapping(ctx, &m); err != nil {
			return nil, err
		}
		return &m, nil
	}

	m := &domain.NameMapping{
		Pattern:        pattern,
		MappedName:     mappedName,
		FuzzyThreshold: s.threshold,
	}
	if err := s.store.InsertNameMapping(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// IncrementUsage bumps a mapping's usage counter when its suggestion is
// taken.
func (s *Service) IncrementUsage(ctx context.Context, mappingID int64) error {
	return s.store.IncrementNameMappingUsage(ctx, mappingID)
}

// List returns all mappings in insertion order.
func (s *Service) List(ctx context.Context) ([]domain.NameMapping, error) {
	return s.store.ListNameMappings(ctx)
}

// Remove deletes a mapping.
func (s *Service) Remove(ctx context.Context, mappingID int64) error {
	return s.store.DeleteNameMapping(ctx, mappingID)
}
