// Package dedup flags statement rows that already exist in the store.
//
// Duplicates are advisory: the detector reports them during preview and the
// user decides whether to import anyway or overwrite the stored row. There
// is no database-level uniqueness on the signature.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// Signature builds the duplicate key for a transaction:
// "{ISO date}|{description}|{amount with 2 decimal places}".
// The description is taken as-is; renames produce distinct signatures.
func Signature(date time.Time, description string, amount float64) string {
	return fmt.Sprintf("%s|%s|%.2f", date.Format("2006-01-02"), description, amount)
}

// RowSignature is Signature applied to a parsed statement row.
func RowSignature(row domain.NormalizedRow) string {
	return Signature(row.Date, row.Description, row.Amount)
}

// Index maps signatures of stored transactions to their ids, so overwrite
// actions can locate the conflicting row.
type Index map[string]int64

// Load builds an Index over every transaction currently in the store. When
// the same signature occurs more than once the lowest id wins.
func Load(ctx context.Context, s *store.Store) (Index, error) {
	rows, err := s.SignatureRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load duplicate index: %w", err)
	}
	idx := make(Index, len(rows))
	for _, r := range rows {
		sig := Signature(r.Date, r.Description, r.Amount)
		if existing, ok := idx[sig]; ok && existing <= r.ID {
			continue
		}
		idx[sig] = r.ID
	}
	return idx, nil
}

// Lookup returns the stored transaction id matching the row's signature.
func (idx Index) Lookup(row domain.NormalizedRow) (int64, bool) {
	id, ok := idx[RowSignature(row)]
	return id, ok
}

// Add records a newly inserted transaction so later rows in the same batch
// see it as a duplicate.
func (idx Index) Add(t *domain.Transaction) {
	sig := Signature(t.Date, t.Description, t.Amount)
	if _, ok := idx[sig]; !ok {
		idx[sig] = t.ID
	}
}
