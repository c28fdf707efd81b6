// Package export implements the bulk JSON backup format: a full dump of
// all seven tables plus metadata, and a skip-duplicate merge importer.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

const (
	// Version is the export document version.
	Version = "1.0"
	// SchemaVersion is the table-layout version inside the document.
	SchemaVersion = "1"
)

// Tables holds every exported table, in foreign-key dependency order.
type Tables struct {
	Categories          []domain.Category            `json:"categories"`
	Subscriptions       []domain.Subscription        `json:"subscriptions"`
	IncomeSources       []domain.IncomeSource        `json:"income_sources"`
	IncomeSourceHistory []domain.IncomeSourceHistory `json:"income_source_history"`
	Transactions        []domain.Transaction         `json:"transactions"`
	IgnoredTransactions []domain.IgnoreRule          `json:"ignored_transactions"`
	NameMappings        []domain.NameMapping         `json:"name_mappings"`
}

// DateRange spans the exported transactions.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Metadata carries aggregate statistics about one export.
type Metadata struct {
	TotalTransactions  int        `json:"total_transactions"`
	TotalCategories    int        `json:"total_categories"`
	TotalSubscriptions int        `json:"total_subscriptions"`
	TotalIncomeSources int        `json:"total_income_sources"`
	DateRange          *DateRange `json:"date_range,omitempty"`
}

// Document is the full backup payload.
type Document struct {
	Version       string    `json:"version"`
	ExportedAt    time.Time `json:"exported_at"`
	SchemaVersion string    `json:"schema_version"`
	Tables        Tables    `json:"tables"`
	Metadata      Metadata  `json:"metadata"`
}

// Service reads and writes backup documents against one store.
type Service struct {
	store *store.Store
}

// NewService wires the export service to its store.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Export dumps the entire database into a Document.
func (s *Service) Export(ctx context.Context) (*Document, error) {
	doc := &Document{
		Version:       Version,
		ExportedAt:    time.Now().UTC(),
		SchemaVersion: SchemaVersion,
	}

	var err error
	if doc.Tables.Categories, err = s.store.ListCategories(ctx); err != nil {
		return nil, fmt.Errorf("failed to export categories: %w", err)
	}
	if doc.Tables.Subscriptions, err = s.store.ListSubscriptions(ctx, false); err != nil {
		return nil, fmt.Errorf("failed to export subscriptions: %w", err)
	}
	if doc.Tables.IncomeSources, err = s.store.ListIncomeSources(ctx, false); err != nil {
		return nil, fmt.Errorf("failed to export income sources: %w", err)
	}
	for _, src := range doc.Tables.IncomeSources {
		history, err := s.store.ListIncomeSourceHistory(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to export income history: %w", err)
		}
		doc.Tables.IncomeSourceHistory = append(doc.Tables.IncomeSourceHistory, history...)
	}
	if doc.Tables.Transactions, err = s.store.ListTransactions(ctx); err != nil {
		return nil, fmt.Errorf("failed to export transactions: %w", err)
	}
	if doc.Tables.IgnoredTransactions, err = s.store.ListIgnoreRules(ctx); err != nil {
		return nil, fmt.Errorf("failed to export ignore rules: %w", err)
	}
	if doc.Tables.NameMappings, err = s.store.ListNameMappings(ctx); err != nil {
		return nil, fmt.Errorf("failed to export name mappings: %w", err)
	}

	doc.Metadata = Metadata{
		TotalTransactions:  len(doc.Tables.Transactions),
		TotalCategories:    len(doc.Tables.Categories),
		TotalSubscriptions: len(doc.Tables.Subscriptions),
		TotalIncomeSources: len(doc.Tables.IncomeSources),
	}
	if n := len(doc.Tables.Transactions); n > 0 {
		// ListTransactions orders by date.
		doc.Metadata.DateRange = &DateRange{
			Start: doc.Tables.Transactions[0].Date.Format("2006-01-02"),
			End:   doc.Tables.Transactions[n-1].Date.Format("2006-01-02"),
		}
	}
	return doc, nil
}

// ExportToFile writes the Document as indented JSON.
func (s *Service) ExportToFile(ctx context.Context, path string) (*Document, error) {
	doc, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write export %s: %w", path, err)
	}
	return doc, nil
}

// ReadFile loads and validates a backup document from disk.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse export %s: %w", path, err)
	}
	if errs := Validate(&doc); len(errs) > 0 {
		return nil, fmt.Errorf("invalid export %s: %s", path, errs[0])
	}
	return &doc, nil
}

// Validate checks a document's version and structure, returning every
// problem found.
func Validate(doc *Document) []string {
	var errs []string
	if doc.Version == "" {
		errs = append(errs, "missing required field: version")
	} else if doc.Version != Version {
		errs = append(errs, fmt.Sprintf("unsupported export version %s (supported: %s)", doc.Version, Version))
	}
	if doc.SchemaVersion == "" {
		errs = append(errs, "missing required field: schema_version")
	} else if doc.SchemaVersion != SchemaVersion {
		errs = append(errs, fmt.Sprintf("unsupported schema version %s (supported: %s)", doc.SchemaVersion, SchemaVersion))
	}
	if doc.ExportedAt.IsZero() {
		errs = append(errs, "missing required field: exported_at")
	}
	return errs
}
