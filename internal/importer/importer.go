// Package importer orchestrates the import reconciliation pipeline:
// parse, preview, and the all-or-nothing execution of user-approved
// per-row actions.
package importer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/categorizer"
	"github.com/rumor-ml/commons.systems/finledger/internal/category"
	"github.com/rumor-ml/commons.systems/finledger/internal/dedup"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/ignore"
	"github.com/rumor-ml/commons.systems/finledger/internal/parser"
	"github.com/rumor-ml/commons.systems/finledger/internal/rename"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
	"github.com/rumor-ml/commons.systems/finledger/internal/subscription"
)

// Action is a user decision for one preview item.
type Action string

const (
	ActionImport       Action = "import"
	ActionIgnoreOnce   Action = "ignore_once"
	ActionIgnoreAlways Action = "ignore_always"
	ActionSubscription Action = "subscription"
	ActionOverwrite    Action = "overwrite"
)

var validActions = map[Action]struct{}{
	ActionImport: {}, ActionIgnoreOnce: {}, ActionIgnoreAlways: {},
	ActionSubscription: {}, ActionOverwrite: {},
}

// Engine runs the preview and execution phases against one store.
type Engine struct {
	store       *store.Store
	categorizer categorizer.Categorizer
	threshold   float64
}

// NewEngine builds the reconciliation engine. The categorizer may be any
// implementation; its failures never fail an import. threshold is the
// similarity cutoff handed to the rename and category registries and to
// ignore rules created by ignore_always actions.
func NewEngine(s *store.Store, c categorizer.Categorizer, threshold float64) *Engine {
	return &Engine{store: s, categorizer: c, threshold: threshold}
}

// PreviewItem is one classified statement row awaiting a user decision.
type PreviewItem struct {
	Index            int               `json:"index"`
	Date             time.Time         `json:"date"`
	Description      string            `json:"description"`
	Amount           float64           `json:"amount"`
	Direction        domain.Direction  `json:"transaction_type"`
	OriginalCategory string            `json:"original_category,omitempty"`
	SourceType       domain.SourceType `json:"source_type"`
	RawPayload       string            `json:"raw_data,omitempty"`
	Ignored          bool              `json:"ignored"`
	IgnoredByRuleID  int64             `json:"ignored_by_rule_id,omitempty"`
	Duplicate        bool              `json:"duplicate"`
	DuplicateOfID    int64             `json:"duplicate_of_id,omitempty"`
	SuggestedName    string            `json:"suggested_name,omitempty"`
}

// Preview is the read-only dry run of one statement file.
type Preview struct {
	SourceFile string            `json:"source_file"`
	Format     domain.SourceType `json:"format"`
	Encoding   string            `json:"encoding"`
	Warnings   []string          `json:"warnings,omitempty"`
	Items      []PreviewItem     `json:"items"`
	Total      int               `json:"total"`
	Ignored    int               `json:"ignored"`
	Duplicates int               `json:"duplicates"`
	New        int               `json:"new"`
}

// Preview parses the file and classifies every row against the ignore
// registry, the duplicate index and the rename registry. It writes nothing
// to transactions, categories or subscriptions; only ignore-rule usage
// counters move, which is an accepted side effect of previewing.
func (e *Engine) Preview(ctx context.Context, path string) (*Preview, error) {
	parsed, err := parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	for _, w := range parsed.Warnings {
		log.Printf("WARN: %s: %s", path, w)
	}

	idx, err := dedup.Load(ctx, e.store)
	if err != nil {
		return nil, err
	}
	ignoreSvc := ignore.NewService(e.store)
	renameSvc := rename.NewService(e.store, e.threshold)

	p := &Preview{
		SourceFile: path,
		Format:     parsed.Format,
		Encoding:   parsed.Encoding,
		Warnings:   parsed.Warnings,
	}
	for i, row := range parsed.Rows {
		item := PreviewItem{
			Index:            i,
			Date:             row.Date,
			Description:      row.Description,
			Amount:           row.Amount,
			Direction:        row.Direction,
			OriginalCategory: row.OriginalCategory,
			SourceType:       row.SourceType,
			RawPayload:       row.RawPayload,
		}

		ignored, rule, err := ignoreSvc.ShouldIgnore(ctx, row.Description)
		if err != nil {
			return nil, err
		}
		if ignored {
			item.Ignored = true
			item.IgnoredByRuleID = rule.ID
			if err := ignoreSvc.IncrementUsage(ctx, rule.ID); err != nil {
				return nil, err
			}
		}

		if id, ok := idx.Lookup(row); ok {
			item.Duplicate = true
			item.DuplicateOfID = id
		}

		if suggestion, _, err := renameSvc.FindSuggestion(ctx, row.Description); err != nil {
			return nil, err
		} else if suggestion != "" && suggestion != row.Description {
			item.SuggestedName = suggestion
		}

		p.Items = append(p.Items, item)
	}

	p.Total = len(p.Items)
	for _, item := range p.Items {
		switch {
		case item.Ignored:
			p.Ignored++
		case item.Duplicate:
			p.Duplicates++
		}
	}
	p.New = p.Total - p.Ignored - p.Duplicates
	return p, nil
}

// RowAction is the user decision for the preview item at the same index.
type RowAction struct {
	Index             int    `json:"index"`
	Action            Action `json:"action"`
	EditedDescription string `json:"edited_description,omitempty"`
	SubscriptionName  string `json:"subscription_name,omitempty"`
}

// ExecuteRequest pairs a preview's items with one action per item.
type ExecuteRequest struct {
	SourceFile string        `json:"source_file"`
	Items      []PreviewItem `json:"items"`
	Actions    []RowAction   `json:"actions"`
}

// Result summarizes one executed import batch.
type Result struct {
	Imported    int      `json:"imported"`
	Ignored     int      `json:"ignored"`
	Subscribed  int      `json:"subscribed"`
	Overwritten int      `json:"overwritten"`
	RowErrors   []string `json:"row_errors,omitempty"`
}

// Execute applies one action per preview item inside a single store
// transaction. Any database error rolls back every insertion, registry
// write and subscription update; a categorizer failure degrades to the
// default category instead.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (*Result, error) {
	actions, err := indexActions(req)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	err = e.store.WithTx(ctx, func(tx *store.Store) error {
		return e.executeTx(ctx, tx, req, actions, result)
	})
	if err != nil {
		return &Result{}, fmt.Errorf("import batch failed, nothing imported: %w", err)
	}
	return result, nil
}

func indexActions(req ExecuteRequest) (map[int]RowAction, error) {
	// Items must be numbered by position; a hand-edited request with
	// shuffled indexes would otherwise pair rows with the wrong actions.
	for i, item := range req.Items {
		if item.Index != i {
			return nil, fmt.Errorf("item at position %d carries index %d", i, item.Index)
		}
	}

	actions := make(map[int]RowAction, len(req.Actions))
	for _, a := range req.Actions {
		if _, ok := validActions[a.Action]; !ok {
			return nil, fmt.Errorf("unknown action %q for item %d", a.Action, a.Index)
		}
		if a.Index < 0 || a.Index >= len(req.Items) {
			return nil, fmt.Errorf("action index %d out of range", a.Index)
		}
		if _, dup := actions[a.Index]; dup {
			return nil, fmt.Errorf("duplicate action for item %d", a.Index)
		}
		actions[a.Index] = a
	}
	if len(actions) != len(req.Items) {
		return nil, fmt.Errorf("expected %d actions, got %d", len(req.Items), len(actions))
	}
	return actions, nil
}

// finalDescription is the user-edited description when one was supplied,
// else the original.
func finalDescription(item PreviewItem, action RowAction) string {
	if action.EditedDescription != "" {
		return action.EditedDescription
	}
	return item.Description
}

func (e *Engine) executeTx(ctx context.Context, tx *store.Store, req ExecuteRequest, actions map[int]RowAction, result *Result) error {
	ignoreSvc := ignore.NewService(tx)
	renameSvc := rename.NewService(tx, e.threshold)
	categorySvc := category.NewService(tx, e.threshold)
	subSvc := subscription.NewService(tx)

	idx, err := dedup.Load(ctx, tx)
	if err != nil {
		return err
	}

	// Registry writes first: ignore rules (deduplicated within the batch)
	// and rename mappings for every edited description, whatever the
	// item's action.
	seenIgnores := make(map[string]struct{})
	for _, item := range req.Items {
		action := actions[item.Index]
		desc := finalDescription(item, action)

		if action.Action == ActionIgnoreAlways {
			if _, seen := seenIgnores[desc]; !seen {
				seenIgnores[desc] = struct{}{}
				threshold := e.threshold
				if _, err := ignoreSvc.Add(ctx, desc, &threshold); err != nil {
					return err
				}
			}
		}

		if action.EditedDescription != "" && action.EditedDescription != item.Description {
			if _, err := renameSvc.CreateOrUpdate(ctx, item.Description, action.EditedDescription); err != nil {
				return err
			}
		}
	}

	// One categorizer call for the whole import partition. Failures fall
	// back to the default category for every row in the batch.
	var importItems []PreviewItem
	for _, item := range req.Items {
		if actions[item.Index].Action == ActionImport {
			importItems = append(importItems, item)
		}
	}
	categories := e.categorizeAll(ctx, importItems, actions)

	touchedSubs := make(map[int64]struct{})
	for _, item := range req.Items {
		action := actions[item.Index]
		switch action.Action {
		case ActionIgnoreOnce, ActionIgnoreAlways:
			result.Ignored++

		case ActionImport:
			if err := e.importRow(ctx, tx, categorySvc, idx, item, action, categories[item.Index], req.SourceFile, result); err != nil {
				return err
			}

		case ActionSubscription:
			if err := e.subscribeRow(ctx, tx, subSvc, idx, item, action, req.SourceFile, touchedSubs, result); err != nil {
				return err
			}

		case ActionOverwrite:
			if err := e.overwriteRow(ctx, tx, item, action, result); err != nil {
				return err
			}
		}
	}

	// Recompute each touched subscription once, after all of its rows in
	// this batch have landed. Latest-by-date wins regardless of file order.
	for subID := range touchedSubs {
		if err := subSvc.RecomputeCurrentValue(ctx, subID); err != nil {
			return err
		}
	}
	return nil
}

// categorizeAll maps item index to the sanitized category name for every
// import-action item.
func (e *Engine) categorizeAll(ctx context.Context, items []PreviewItem, actions map[int]RowAction) map[int]string {
	out := make(map[int]string, len(items))
	if len(items) == 0 {
		return out
	}

	descriptions := make([]string, len(items))
	for i, item := range items {
		descriptions[i] = finalDescription(item, actions[item.Index])
	}

	names, err := e.categorizer.CategorizeBatch(ctx, descriptions)
	if err != nil {
		log.Printf("WARN: categorizer failed, defaulting batch to %s: %v", domain.DefaultCategoryName, err)
		names = categorizer.Fallback(descriptions)
	}
	names = categorizer.Sanitize(descriptions, names)

	for i, item := range items {
		out[item.Index] = names[i]
	}
	return out
}

func (e *Engine) importRow(ctx context.Context, tx *store.Store, categorySvc *category.Service, idx dedup.Index, item PreviewItem, action RowAction, categoryName, sourceFile string, result *Result) error {
	cat, err := categorySvc.FindOrCreate(ctx, categoryName)
	if err != nil {
		return err
	}
	if cat.Protected() {
		// The fuzzy lookup can land on the protected category even though
		// the sanitizer rejects its exact name. Normal imports never use it.
		if cat, err = categorySvc.FindOrCreate(ctx, domain.DefaultCategoryName); err != nil {
			return err
		}
	}

	t := transactionFromItem(item, action, sourceFile, cat.ID)
	if err := category.ValidateAssignment(t.CategoryID, t.SubscriptionID); err != nil {
		return err
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return err
	}
	idx.Add(t)
	result.Imported++
	return nil
}

func (e *Engine) subscribeRow(ctx context.Context, tx *store.Store, subSvc *subscription.Service, idx dedup.Index, item PreviewItem, action RowAction, sourceFile string, touched map[int64]struct{}, result *Result) error {
	// The subscription pattern is the ORIGINAL description: the recurring
	// charge repeats it verbatim on future statements, which is what makes
	// re-imports idempotent.
	sub, ok, err := subSvc.FindByPattern(ctx, item.Description)
	if err != nil {
		return err
	}
	if !ok {
		name := action.SubscriptionName
		if name == "" {
			name = finalDescription(item, action)
		}
		sub, err = subSvc.Create(ctx, name, "", item.Description)
		if err != nil {
			return err
		}
	}

	t := transactionFromItem(item, action, sourceFile, domain.SubscriptionsCategoryID)
	t.SubscriptionID = &sub.ID
	if err := category.ValidateAssignment(t.CategoryID, t.SubscriptionID); err != nil {
		return err
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return err
	}
	idx.Add(t)
	touched[sub.ID] = struct{}{}
	result.Subscribed++
	return nil
}

func (e *Engine) overwriteRow(ctx context.Context, tx *store.Store, item PreviewItem, action RowAction, result *Result) error {
	if !item.Duplicate || item.DuplicateOfID == 0 {
		result.RowErrors = append(result.RowErrors,
			fmt.Sprintf("item %d: overwrite requested but no duplicate recorded", item.Index))
		return nil
	}
	existing, err := tx.GetTransaction(ctx, item.DuplicateOfID)
	if err != nil {
		return err
	}
	existing.Date = item.Date
	existing.Description = finalDescription(item, action)
	existing.Amount = item.Amount
	existing.Direction = item.Direction
	existing.OriginalCategory = item.OriginalCategory
	existing.RawPayload = item.RawPayload
	if err := tx.UpdateTransaction(ctx, existing); err != nil {
		return err
	}
	result.Overwritten++
	return nil
}

func transactionFromItem(item PreviewItem, action RowAction, sourceFile string, categoryID int64) *domain.Transaction {
	return &domain.Transaction{
		Date:             item.Date,
		Description:      finalDescription(item, action),
		Amount:           item.Amount,
		Currency:         domain.DefaultCurrency,
		Direction:        item.Direction,
		OriginalCategory: item.OriginalCategory,
		CategoryID:       categoryID,
		SourceFile:       sourceFile,
		SourceType:       item.SourceType,
		RawPayload:       item.RawPayload,
	}
}

// History summarizes prior imports grouped by source file.
func (e *Engine) History(ctx context.Context) ([]store.SourceFileSummary, error) {
	return e.store.ImportHistory(ctx)
}
