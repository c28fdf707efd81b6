// Package report computes read-only monthly aggregations over the
// transaction store.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/income"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// CategoryTotal is one category's spend within a month.
type CategoryTotal struct {
	CategoryID int64   `json:"category_id"`
	Name       string  `json:"name"`
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
}

// IncomeLine compares one income source's expected amount to what was
// actually received in the month.
type IncomeLine struct {
	IncomeSourceID int64   `json:"income_source_id"`
	Name           string  `json:"name"`
	Expected       float64 `json:"expected"`
	Received       float64 `json:"received"`
}

// MonthlySummary aggregates one calendar month.
type MonthlySummary struct {
	Year              int                          `json:"year"`
	Month             time.Month                   `json:"month"`
	Totals            map[domain.Direction]float64 `json:"totals"`
	Counts            map[domain.Direction]int     `json:"counts"`
	Categories        []CategoryTotal              `json:"categories"`
	SubscriptionTotal float64                      `json:"subscription_total"`
	Income            []IncomeLine                 `json:"income"`
}

// Service builds reports from the store.
type Service struct {
	store  *store.Store
	income *income.Service
}

// NewService wires the report service to its store.
func NewService(s *store.Store) *Service {
	return &Service{store: s, income: income.NewService(s)}
}

// Monthly summarizes one calendar month: totals by direction, expense
// totals by category, the subscription total, and expected-vs-received per
// active income source.
func (s *Service) Monthly(ctx context.Context, year int, month time.Month) (*MonthlySummary, error) {
	txs, err := s.store.ListTransactionsByMonth(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for %d-%02d: %w", year, month, err)
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	categoryNames := make(map[int64]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	summary := &MonthlySummary{
		Year:   year,
		Month:  month,
		Totals: make(map[domain.Direction]float64),
		Counts: make(map[domain.Direction]int),
	}
	byCategory := make(map[int64]*CategoryTotal)
	receivedBySource := make(map[int64]float64)

	for _, t := range txs {
		summary.Totals[t.Direction] += t.Amount
		summary.Counts[t.Direction]++

		if t.SubscriptionID != nil {
			summary.SubscriptionTotal += t.Amount
		}
		if t.Direction == domain.DirectionExpense || t.SubscriptionID != nil {
			ct, ok := byCategory[t.CategoryID]
			if !ok {
				ct = &CategoryTotal{CategoryID: t.CategoryID, Name: categoryNames[t.CategoryID]}
				byCategory[t.CategoryID] = ct
			}
			ct.Total += t.Amount
			ct.Count++
		}
		if t.Direction == domain.DirectionIncome && t.IncomeSourceID != nil {
			receivedBySource[*t.IncomeSourceID] += t.Amount
		}
	}

	for _, ct := range byCategory {
		summary.Categories = append(summary.Categories, *ct)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		if summary.Categories[i].Total != summary.Categories[j].Total {
			return summary.Categories[i].Total > summary.Categories[j].Total
		}
		return summary.Categories[i].Name < summary.Categories[j].Name
	})

	sources, err := s.store.ListIncomeSources(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		expected, err := s.income.ExpectedForMonth(ctx, src.ID, year, month)
		if err != nil {
			return nil, err
		}
		summary.Income = append(summary.Income, IncomeLine{
			IncomeSourceID: src.ID,
			Name:           src.Name,
			Expected:       expected,
			Received:       receivedBySource[src.ID],
		})
	}
	return summary, nil
}
