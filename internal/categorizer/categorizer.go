// Package categorizer assigns catalog categories to transaction
// descriptions.
//
// The categorizer is an unreliable external collaborator: its output is
// sanitized before use, and callers must treat a failed call as "everything
// defaults to Outros", never as a failed import.
package categorizer

import (
	"context"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// Categorizer maps a batch of descriptions to category names from the
// fixed catalog, same length and same order as the input.
type Categorizer interface {
	CategorizeBatch(ctx context.Context, descriptions []string) ([]string, error)
}

// Sanitize coerces a raw categorizer response into a same-length,
// catalog-only answer: short responses are padded with the default
// category, long ones truncated, and any name that is off-catalog or equal
// to the protected subscriptions category is replaced by the default.
func Sanitize(descriptions, categories []string) []string {
	out := make([]string, len(descriptions))
	for i := range out {
		name := domain.DefaultCategoryName
		if i < len(categories) {
			name = categories[i]
		}
		if !domain.InCatalog(name) || name == domain.SubscriptionsCategoryName {
			name = domain.DefaultCategoryName
		}
		out[i] = name
	}
	return out
}

// Fallback returns the all-default answer used when the categorizer call
// fails outright.
func Fallback(descriptions []string) []string {
	out := make([]string, len(descriptions))
	for i := range out {
		out[i] = domain.DefaultCategoryName
	}
	return out
}
