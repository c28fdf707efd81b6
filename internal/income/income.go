// Package income tracks expected recurring income sources and their
// history of expected amounts.
package income

import (
	"context"
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// Service manages income sources.
type Service struct {
	store *store.Store
}

// NewService wires the income service to its store.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Create inserts a new income source with an initial history entry at
// effectiveDate.
func (s *Service) Create(ctx context.Context, name, cnpj, description string, expectedAmount float64, effectiveDate time.Time) (*domain.IncomeSource, error) {
	src := &domain.IncomeSource{
		Name:                  name,
		CNPJ:                  cnpj,
		Description:           description,
		CurrentExpectedAmount: expectedAmount,
		Currency:              domain.DefaultCurrency,
		IsActive:              true,
	}
	if err := s.store.InsertIncomeSource(ctx, src); err != nil {
		return nil, err
	}
	h := &domain.IncomeSourceHistory{
		IncomeSourceID: src.ID,
		ExpectedAmount: expectedAmount,
		EffectiveDate:  effectiveDate,
		Note:           "initial amount",
	}
	if err := s.store.InsertIncomeSourceHistory(ctx, h); err != nil {
		return nil, err
	}
	return src, nil
}

// UpdateExpectedAmount sets a new expected amount effective from
// effectiveDate, appending to the history.
func (s *Service) UpdateExpectedAmount(ctx context.Context, id int64, amount float64, effectiveDate time.Time, note string) error {
	src, err := s.store.GetIncomeSource(ctx, id)
	if err != nil {
		return err
	}
	src.CurrentExpectedAmount = amount
	if err := s.store.UpdateIncomeSource(ctx, src); err != nil {
		return err
	}
	h := &domain.IncomeSourceHistory{
		IncomeSourceID: id,
		ExpectedAmount: amount,
		EffectiveDate:  effectiveDate,
		Note:           note,
	}
	if err := s.store.InsertIncomeSourceHistory(ctx, h); err != nil {
		return fmt.Errorf("failed to append income history: %w", err)
	}
	return nil
}

// ExpectedForMonth walks the history newest-first and returns the first
// amount effective on or before the first day of the queried month,
// falling back to the source's current expected amount when no entry
// qualifies. A mid-month change applies from the following month.
func (s *Service) ExpectedForMonth(ctx context.Context, id int64, year int, month time.Month) (float64, error) {
	src, err := s.store.GetIncomeSource(ctx, id)
	if err != nil {
		return 0, err
	}
	history, err := s.store.ListIncomeSourceHistory(ctx, id)
	if err != nil {
		return 0, err
	}

	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for _, h := range history {
		if !h.EffectiveDate.After(monthStart) {
			return h.ExpectedAmount, nil
		}
	}
	return src.CurrentExpectedAmount, nil
}

// List returns income sources; activeOnly filters out inactive ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.IncomeSource, error) {
	return s.store.ListIncomeSources(ctx, activeOnly)
}

// History returns a source's expected-amount history, newest first.
func (s *Service) History(ctx context.Context, id int64) ([]domain.IncomeSourceHistory, error) {
	return s.store.ListIncomeSourceHistory(ctx, id)
}
