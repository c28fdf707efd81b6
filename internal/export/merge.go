package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/rumor-ml/commons.systems/finledger/internal/dedup"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

// ConflictSummary counts new vs duplicate rows for one table.
type ConflictSummary struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Duplicates int `json:"duplicates"`
}

// ImportPreview is the dry-run analysis of a merge import.
type ImportPreview struct {
	Valid            bool                       `json:"valid"`
	SchemaCompatible bool                       `json:"schema_compatible"`
	Conflicts        map[string]ConflictSummary `json:"conflicts"`
	TotalNew         int                        `json:"total_new_records"`
	TotalSkipped     int                        `json:"total_skipped_records"`
	Errors           []string                   `json:"errors,omitempty"`
}

// ImportResult reports per-table imported and skipped counts.
type ImportResult struct {
	Success  bool           `json:"success"`
	Imported map[string]int `json:"imported"`
	Skipped  map[string]int `json:"skipped"`
	Errors   []string       `json:"errors,omitempty"`
}

// PreviewImport analyzes a document against the current store without
// writing anything.
func (s *Service) PreviewImport(ctx context.Context, doc *Document) (*ImportPreview, error) {
	if errs := Validate(doc); len(errs) > 0 {
		return &ImportPreview{Conflicts: map[string]ConflictSummary{}, Errors: errs}, nil
	}

	existing, err := loadExisting(ctx, s.store)
	if err != nil {
		return nil, err
	}

	p := &ImportPreview{Valid: true, SchemaCompatible: true, Conflicts: map[string]ConflictSummary{}}
	add := func(table string, total, dups int) {
		p.Conflicts[table] = ConflictSummary{Total: total, New: total - dups, Duplicates: dups}
		p.TotalNew += total - dups
		p.TotalSkipped += dups
	}

	var n int
	for _, c := range doc.Tables.Categories {
		if existing.categoryNames[strings.ToLower(c.Name)] != 0 {
			n++
		}
	}
	add("categories", len(doc.Tables.Categories), n)

	n = 0
	for _, sub := range doc.Tables.Subscriptions {
		if existing.subscriptionNames[sub.Name] != 0 {
			n++
		}
	}
	add("subscriptions", len(doc.Tables.Subscriptions), n)

	n = 0
	for _, src := range doc.Tables.IncomeSources {
		if existing.incomeSourceDup(src) {
			n++
		}
	}
	add("income_sources", len(doc.Tables.IncomeSources), n)

	n = 0
	for _, t := range doc.Tables.Transactions {
		if _, dup := existing.signatures[dedup.Signature(t.Date, t.Description, t.Amount)]; dup {
			n++
		}
	}
	add("transactions", len(doc.Tables.Transactions), n)

	n = 0
	for _, r := range doc.Tables.IgnoredTransactions {
		if existing.ignorePatterns[r.Description] {
			n++
		}
	}
	add("ignored_transactions", len(doc.Tables.IgnoredTransactions), n)

	n = 0
	for _, m := range doc.Tables.NameMappings {
		if existing.mappingPatterns[m.Pattern] {
			n++
		}
	}
	add("name_mappings", len(doc.Tables.NameMappings), n)

	// History rows are filtered by parent at import time; counted as new
	// here because their fate depends on the income-source merge outcome.
	p.Conflicts["income_source_history"] = ConflictSummary{
		Total: len(doc.Tables.IncomeSourceHistory),
		New:   len(doc.Tables.IncomeSourceHistory),
	}
	return p, nil
}

// Import merges a document into the store with the skip-duplicate
// strategy, inside one transaction. Duplicate categories and income
// sources keep no id mapping, so their child rows (transactions via
// category, income history via income source) are dropped rather than
// re-parented. Duplicate subscriptions map to the local row instead:
// severing the link would strand their transactions in the subscriptions
// category with no subscription attached.
func (s *Service) Import(ctx context.Context, doc *Document) (*ImportResult, error) {
	if errs := Validate(doc); len(errs) > 0 {
		return &ImportResult{Imported: map[string]int{}, Skipped: map[string]int{}, Errors: errs}, nil
	}

	result := &ImportResult{Imported: map[string]int{}, Skipped: map[string]int{}}
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		return mergeTx(ctx, tx, doc, result)
	})
	if err != nil {
		return &ImportResult{
			Imported: map[string]int{}, Skipped: map[string]int{},
			Errors: []string{fmt.Sprintf("import failed: %v", err)},
		}, nil
	}
	result.Success = true
	return result, nil
}

func mergeTx(ctx context.Context, tx *store.Store, doc *Document, result *ImportResult) error {
	existing, err := loadExisting(ctx, tx)
	if err != nil {
		return err
	}

	// Tables are merged in foreign-key order: parents first so child rows
	// can remap old ids to the newly assigned ones.
	categoryIDs := make(map[int64]int64)
	for _, c := range doc.Tables.Categories {
		if existing.categoryNames[strings.ToLower(c.Name)] != 0 {
			result.Skipped["categories"]++
			continue
		}
		inserted := domain.Category{Name: c.Name}
		if err := tx.InsertCategory(ctx, &inserted); err != nil {
			return err
		}
		categoryIDs[c.ID] = inserted.ID
		result.Imported["categories"]++
	}

	subscriptionIDs := make(map[int64]int64)
	for _, sub := range doc.Tables.Subscriptions {
		if localID := existing.subscriptionNames[sub.Name]; localID != 0 {
			subscriptionIDs[sub.ID] = localID
			result.Skipped["subscriptions"]++
			continue
		}
		inserted := sub
		inserted.ID = 0
		if err := tx.InsertSubscription(ctx, &inserted); err != nil {
			return err
		}
		subscriptionIDs[sub.ID] = inserted.ID
		result.Imported["subscriptions"]++
	}

	incomeSourceIDs := make(map[int64]int64)
	for _, src := range doc.Tables.IncomeSources {
		if existing.incomeSourceDup(src) {
			result.Skipped["income_sources"]++
			continue
		}
		inserted := src
		inserted.ID = 0
		if err := tx.InsertIncomeSource(ctx, &inserted); err != nil {
			return err
		}
		incomeSourceIDs[src.ID] = inserted.ID
		result.Imported["income_sources"]++
	}

	for _, h := range doc.Tables.IncomeSourceHistory {
		newParent, ok := incomeSourceIDs[h.IncomeSourceID]
		if !ok {
			result.Skipped["income_source_history"]++
			continue
		}
		inserted := h
		inserted.ID = 0
		inserted.IncomeSourceID = newParent
		if err := tx.InsertIncomeSourceHistory(ctx, &inserted); err != nil {
			return err
		}
		result.Imported["income_source_history"]++
	}

	for _, t := range doc.Tables.Transactions {
		if _, dup := existing.signatures[dedup.Signature(t.Date, t.Description, t.Amount)]; dup {
			result.Skipped["transactions"]++
			continue
		}
		newCategory, ok := categoryIDs[t.CategoryID]
		if !ok {
			// The protected category keeps its fixed id across databases.
			if t.CategoryID == domain.SubscriptionsCategoryID {
				newCategory = domain.SubscriptionsCategoryID
			} else {
				result.Skipped["transactions"]++
				continue
			}
		}
		inserted := t
		inserted.ID = 0
		inserted.CategoryID = newCategory
		inserted.SubscriptionID = remapOptional(t.SubscriptionID, subscriptionIDs)
		inserted.IncomeSourceID = remapOptional(t.IncomeSourceID, incomeSourceIDs)
		if err := tx.InsertTransaction(ctx, &inserted); err != nil {
			return err
		}
		result.Imported["transactions"]++
	}

	for _, r := range doc.Tables.IgnoredTransactions {
		if existing.ignorePatterns[r.Description] {
			result.Skipped["ignored_transactions"]++
			continue
		}
		inserted := r
		inserted.ID = 0
		if err := tx.InsertIgnoreRule(ctx, &inserted); err != nil {
			return err
		}
		result.Imported["ignored_transactions"]++
	}

	for _, m := range doc.Tables.NameMappings {
		if existing.mappingPatterns[m.Pattern] {
			result.Skipped["name_mappings"]++
			continue
		}
		inserted := m
		inserted.ID = 0
		if err := tx.InsertNameMapping(ctx, &inserted); err != nil {
			return err
		}
		result.Imported["name_mappings"]++
	}
	return nil
}

func remapOptional(old *int64, ids map[int64]int64) *int64 {
	if old == nil {
		return nil
	}
	if mapped, ok := ids[*old]; ok {
		return &mapped
	}
	return nil
}

// existingKeys caches the current store's duplicate keys for one merge
// pass.
type existingKeys struct {
	categoryNames     map[string]int64
	subscriptionNames map[string]int64
	incomeNames       map[string]bool
	incomeCNPJs       map[string]bool
	signatures        map[string]int64
	ignorePatterns    map[string]bool
	mappingPatterns   map[string]bool
}

func (e *existingKeys) incomeSourceDup(src domain.IncomeSource) bool {
	if e.incomeNames[src.Name] {
		return true
	}
	return src.CNPJ != "" && e.incomeCNPJs[src.CNPJ]
}

func loadExisting(ctx context.Context, s *store.Store) (*existingKeys, error) {
	e := &existingKeys{
		categoryNames:     make(map[string]int64),
		subscriptionNames: make(map[string]int64),
		incomeNames:       make(map[string]bool),
		incomeCNPJs:       make(map[string]bool),
		ignorePatterns:    make(map[string]bool),
		mappingPatterns:   make(map[string]bool),
	}

	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range categories {
		e.categoryNames[strings.ToLower(c.Name)] = c.ID
	}

	subs, err := s.ListSubscriptions(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, sub := range subs {
		e.subscriptionNames[sub.Name] = sub.ID
	}

	sources, err := s.ListIncomeSources(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		e.incomeNames[src.Name] = true
		if src.CNPJ != "" {
			e.incomeCNPJs[src.CNPJ] = true
		}
	}

	idx, err := dedup.Load(ctx, s)
	if err != nil {
		return nil, err
	}
	e.signatures = idx

	rules, err := s.ListIgnoreRules(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		e.ignorePatterns[r.Description] = true
	}

	mappings, err := s.ListNameMappings(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range mappings {
		e.mappingPatterns[m.Pattern] = true
	}
	return e, nil
}
