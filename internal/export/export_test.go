package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

// seedStore populates a store with one row in every table.
func seedStore(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()

	cat := &domain.Category{Name: "Transporte"}
	if err := s.InsertCategory(ctx, cat); err != nil {
		t.Fatalf("InsertCategory() error = %v", err)
	}

	sub := &domain.Subscription{Name: "Netflix", Pattern: "NETFLIX.COM", Currency: "BRL", IsActive: true}
	if err := s.InsertSubscription(ctx, sub); err != nil {
		t.Fatalf("InsertSubscription() error = %v", err)
	}

	src := &domain.IncomeSource{Name: "Empresa", CNPJ: "12.345.678/0001-90", Currency: "BRL", IsActive: true, CurrentExpectedAmount: 5000}
	if err := s.InsertIncomeSource(ctx, src); err != nil {
		t.Fatalf("InsertIncomeSource() error = %v", err)
	}
	h := &domain.IncomeSourceHistory{IncomeSourceID: src.ID, ExpectedAmount: 5000, EffectiveDate: day(1)}
	if err := s.InsertIncomeSourceHistory(ctx, h); err != nil {
		t.Fatalf("InsertIncomeSourceHistory() error = %v", err)
	}

	for i, tx := range []*domain.Transaction{
		{Date: day(5), Description: "UBER TRIP", Amount: 25, CategoryID: cat.ID},
		{Date: day(9), Description: "NETFLIX.COM", Amount: 55.90, CategoryID: domain.SubscriptionsCategoryID, SubscriptionID: &sub.ID},
	} {
		tx.Currency = domain.DefaultCurrency
		tx.Direction = domain.DirectionExpense
		tx.SourceType = domain.SourceCreditCard
		if err := s.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("InsertTransaction(%d) error = %v", i, err)
		}
	}

	if err := s.InsertIgnoreRule(ctx, &domain.IgnoreRule{Description: "JUROS"}); err != nil {
		t.Fatalf("InsertIgnoreRule() error = %v", err)
	}
	if err := s.InsertNameMapping(ctx, &domain.NameMapping{Pattern: "UBER *TRIP", MappedName: "Uber", FuzzyThreshold: 70}); err != nil {
		t.Fatalf("InsertNameMapping() error = %v", err)
	}
}

func TestExport(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	doc, err := NewService(s).Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if doc.Version != Version || doc.SchemaVersion != SchemaVersion {
		t.Errorf("versions = %q %q", doc.Version, doc.SchemaVersion)
	}
	if doc.ExportedAt.IsZero() {
		t.Error("ExportedAt not set")
	}

	// Two categories: the seeded protected one plus Transporte.
	if len(doc.Tables.Categories) != 2 {
		t.Errorf("%d categories, want 2", len(doc.Tables.Categories))
	}
	if len(doc.Tables.Transactions) != 2 || len(doc.Tables.Subscriptions) != 1 {
		t.Errorf("tables = %d transactions %d subscriptions", len(doc.Tables.Transactions), len(doc.Tables.Subscriptions))
	}
	if len(doc.Tables.IncomeSources) != 1 || len(doc.Tables.IncomeSourceHistory) != 1 {
		t.Error("income tables incomplete")
	}
	if len(doc.Tables.IgnoredTransactions) != 1 || len(doc.Tables.NameMappings) != 1 {
		t.Error("registry tables incomplete")
	}

	m := doc.Metadata
	if m.TotalTransactions != 2 || m.TotalCategories != 2 || m.TotalSubscriptions != 1 || m.TotalIncomeSources != 1 {
		t.Errorf("metadata = %+v", m)
	}
	if m.DateRange == nil || m.DateRange.Start != "2026-01-05" || m.DateRange.End != "2026-01-09" {
		t.Errorf("date range = %+v", m.DateRange)
	}
}

func TestExportToFileAndReadFile(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	path := filepath.Join(t.TempDir(), "backup.json")

	if _, err := NewService(s).ExportToFile(context.Background(), path); err != nil {
		t.Fatalf("ExportToFile() error = %v", err)
	}

	doc, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(doc.Tables.Transactions) != 2 {
		t.Errorf("round-tripped %d transactions, want 2", len(doc.Tables.Transactions))
	}
}

func TestReadFile_RejectsBadVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	content := `{"version":"2.0","schema_version":"1","exported_at":"2026-01-01T00:00:00Z","tables":{},"metadata":{}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadFile(path); err == nil || !strings.Contains(err.Error(), "unsupported export version") {
		t.Errorf("ReadFile() error = %v, want unsupported version", err)
	}
}

func TestValidate(t *testing.T) {
	valid := &Document{Version: Version, SchemaVersion: SchemaVersion, ExportedAt: time.Now()}
	if errs := Validate(valid); len(errs) != 0 {
		t.Errorf("Validate(valid) = %v", errs)
	}

	missing := &Document{}
	errs := Validate(missing)
	if len(errs) != 3 {
		t.Errorf("Validate(empty) = %d errors, want 3: %v", len(errs), errs)
	}
}

func TestImport_IntoFreshStore(t *testing.T) {
	source := newTestStore(t)
	seedStore(t, source)
	doc, err := NewService(source).Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	target := newTestStore(t)
	svc := NewService(target)
	ctx := context.Background()

	result, err := svc.Import(ctx, doc)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Import() failed: %v", result.Errors)
	}

	// The protected category already exists in the target and is skipped;
	// Transporte is new.
	if result.Imported["categories"] != 1 || result.Skipped["categories"] != 1 {
		t.Errorf("categories = %d imported %d skipped", result.Imported["categories"], result.Skipped["categories"])
	}
	if result.Imported["transactions"] != 2 {
		t.Errorf("transactions imported = %d, want 2", result.Imported["transactions"])
	}
	if result.Imported["subscriptions"] != 1 || result.Imported["income_sources"] != 1 {
		t.Errorf("parents = %+v", result.Imported)
	}
	if result.Imported["income_source_history"] != 1 {
		t.Errorf("history imported = %d, want 1", result.Imported["income_source_history"])
	}

	// Foreign keys were remapped, not copied.
	txs, err := target.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	cat, err := target.GetCategoryByName(ctx, "Transporte")
	if err != nil {
		t.Fatalf("GetCategoryByName() error = %v", err)
	}
	var uberCategory, netflixCategory int64
	for _, tx := range txs {
		switch tx.Description {
		case "UBER TRIP":
			uberCategory = tx.CategoryID
		case "NETFLIX.COM":
			netflixCategory = tx.CategoryID
			if tx.SubscriptionID == nil {
				t.Error("subscription link lost in import")
			}
		}
	}
	if uberCategory != cat.ID {
		t.Errorf("UBER TRIP category = %d, want remapped %d", uberCategory, cat.ID)
	}
	if netflixCategory != domain.SubscriptionsCategoryID {
		t.Errorf("NETFLIX.COM category = %d, want fixed protected id", netflixCategory)
	}
}

func TestImport_DuplicateSubscriptionKeepsLink(t *testing.T) {
	source := newTestStore(t)
	seedStore(t, source)
	doc, err := NewService(source).Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	target := newTestStore(t)
	ctx := context.Background()
	local := &domain.Subscription{Name: "Netflix", Pattern: "NETFLIX.COM", Currency: "BRL", IsActive: true}
	if err := target.InsertSubscription(ctx, local); err != nil {
		t.Fatalf("InsertSubscription() error = %v", err)
	}

	result, err := NewService(target).Import(ctx, doc)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if !result.Success {
		t.Fatalf("Import() failed: %v", result.Errors)
	}
	if result.Skipped["subscriptions"] != 1 || result.Imported["transactions"] != 2 {
		t.Errorf("counts = imported %+v skipped %+v", result.Imported, result.Skipped)
	}

	// The skipped subscription maps to the local row, so its transaction
	// keeps both the link and the subscriptions category.
	txs, err := target.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	for _, tx := range txs {
		if tx.Description != "NETFLIX.COM" {
			continue
		}
		if tx.SubscriptionID == nil || *tx.SubscriptionID != local.ID {
			t.Fatalf("subscription link = %v, want local id %d", tx.SubscriptionID, local.ID)
		}
		if tx.CategoryID != domain.SubscriptionsCategoryID {
			t.Errorf("category = %d, want the subscriptions category", tx.CategoryID)
		}
		return
	}
	t.Fatal("NETFLIX.COM transaction not imported")
}

func TestImport_SecondRunSkipsEverything(t *testing.T) {
	source := newTestStore(t)
	seedStore(t, source)
	doc, err := NewService(source).Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	target := newTestStore(t)
	svc := NewService(target)
	ctx := context.Background()

	if _, err := svc.Import(ctx, doc); err != nil {
		t.Fatalf("first Import() error = %v", err)
	}
	second, err := svc.Import(ctx, doc)
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if !second.Success {
		t.Fatalf("second Import() failed: %v", second.Errors)
	}

	for _, table := range []string{"categories", "subscriptions", "income_sources", "transactions", "ignored_transactions", "name_mappings"} {
		if second.Imported[table] != 0 {
			t.Errorf("second import inserted %d into %s, want 0", second.Imported[table], table)
		}
	}
	// Skipped income sources keep no id mapping, so their history rows are
	// dropped rather than re-parented.
	if second.Imported["income_source_history"] != 0 || second.Skipped["income_source_history"] != 1 {
		t.Errorf("history on second import = %d imported %d skipped",
			second.Imported["income_source_history"], second.Skipped["income_source_history"])
	}

	txs, _ := target.ListTransactions(ctx)
	if len(txs) != 2 {
		t.Errorf("%d transactions after double import, want 2", len(txs))
	}
}

func TestPreviewImport(t *testing.T) {
	source := newTestStore(t)
	seedStore(t, source)
	doc, err := NewService(source).Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	target := newTestStore(t)
	svc := NewService(target)
	ctx := context.Background()

	p, err := svc.PreviewImport(ctx, doc)
	if err != nil {
		t.Fatalf("PreviewImport() error = %v", err)
	}
	if !p.Valid || !p.SchemaCompatible {
		t.Errorf("preview = %+v", p)
	}
	if c := p.Conflicts["categories"]; c.Total != 2 || c.Duplicates != 1 {
		t.Errorf("categories conflict = %+v, want 1 duplicate (protected)", c)
	}
	if c := p.Conflicts["transactions"]; c.Total != 2 || c.New != 2 {
		t.Errorf("transactions conflict = %+v", c)
	}

	// Nothing was written.
	txs, _ := target.ListTransactions(ctx)
	if len(txs) != 0 {
		t.Errorf("PreviewImport() wrote %d transactions", len(txs))
	}
}

func TestImport_InvalidDocumentReportsErrors(t *testing.T) {
	target := newTestStore(t)
	svc := NewService(target)

	result, err := svc.Import(context.Background(), &Document{Version: "9.9"})
	if err != nil {
		t.Fatalf("Import() error = %v, validation failures belong in the result", err)
	}
	if result.Success || len(result.Errors) == 0 {
		t.Errorf("result = %+v, want failure with errors", result)
	}
}
