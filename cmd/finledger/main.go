// Command finledger imports Brazilian bank statements into a local SQLite
// ledger: preview a statement, apply reviewed actions, report, and back
// the database up as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rumor-ml/commons.systems/finledger/internal/categorizer"
	"github.com/rumor-ml/commons.systems/finledger/internal/config"
	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
	"github.com/rumor-ml/commons.systems/finledger/internal/export"
	"github.com/rumor-ml/commons.systems/finledger/internal/importer"
	"github.com/rumor-ml/commons.systems/finledger/internal/money"
	"github.com/rumor-ml/commons.systems/finledger/internal/report"
	"github.com/rumor-ml/commons.systems/finledger/internal/store"
	"github.com/rumor-ml/commons.systems/finledger/internal/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	configFile = flag.String("config", "", "YAML config file")
	dbPath     = flag.String("db", "", "SQLite database file (overrides config)")
	verbose    = flag.Bool("verbose", false, "Show detailed logs")

	previewFile = flag.String("preview", "", "Statement file to preview")
	outFile     = flag.String("out", "", "Write preview JSON to this file (default: stdout)")
	applyFile   = flag.String("apply", "", "Execute the reviewed import request in this JSON file")

	exportFile = flag.String("export", "", "Export the database to this JSON file")
	importFile = flag.String("import-db", "", "Merge a JSON export into the database")
	dryRun     = flag.Bool("dry-run", false, "With -import-db: show conflicts without importing")

	reportMonth = flag.String("report", "", "Monthly summary for YYYY-MM")
	historyFlag = flag.Bool("history", false, "Show import history by source file")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `finledger - Brazilian bank statement importer

Usage:
  finledger [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Preview a statement
  finledger -db ledger.db -preview fatura.csv -out preview.json

  # Execute reviewed actions
  finledger -db ledger.db -apply request.json

  # Monthly report
  finledger -db ledger.db -report 2026-01

  # Backup and restore
  finledger -db ledger.db -export backup.json
  finledger -db ledger.db -import-db backup.json -dry-run

`)
	}
	flag.Parse()

	if *versionFlag {
		fmt.Printf("finledger version %s\n", version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	session := uuid.NewString()
	if *verbose {
		fmt.Fprintf(os.Stderr, "session %s, database %s\n", session, cfg.DBPath)
	}

	switch {
	case *previewFile != "":
		return runPreview(ctx, s, cfg)
	case *applyFile != "":
		return runApply(ctx, s, cfg)
	case *exportFile != "":
		return runExport(ctx, s)
	case *importFile != "":
		return runImport(ctx, s)
	case *reportMonth != "":
		return runReport(ctx, s)
	case *historyFlag:
		return runHistory(ctx, s, cfg)
	default:
		flag.Usage()
		return fmt.Errorf("nothing to do: pass -preview, -apply, -export, -import-db, -report or -history")
	}
}

func newEngine(ctx context.Context, s *store.Store, cfg *config.Config) (*importer.Engine, error) {
	var c categorizer.Categorizer
	switch cfg.Categorizer {
	case "gemini":
		gem, err := categorizer.NewGemini(ctx, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		c = gem
	default:
		c = categorizer.NewStatic()
	}
	return importer.NewEngine(s, c, cfg.FuzzyThreshold), nil
}

func runPreview(ctx context.Context, s *store.Store, cfg *config.Config) error {
	ui.Header("Import Preview")
	engine, err := newEngine(ctx, s, cfg)
	if err != nil {
		return err
	}

	preview, err := engine.Preview(ctx, *previewFile)
	if err != nil {
		return err
	}
	for _, w := range preview.Warnings {
		ui.Warning(w)
	}
	ui.Info(fmt.Sprintf("Format %s (%s)", preview.Format, preview.Encoding))
	ui.Success(fmt.Sprintf("%d rows: %d new, %d ignored, %d duplicates",
		preview.Total, preview.New, preview.Ignored, preview.Duplicates))

	data, err := json.MarshalIndent(preview, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preview: %w", err)
	}
	if *outFile == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(*outFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preview %s: %w", *outFile, err)
	}
	ui.Success(fmt.Sprintf("Preview written to %s", *outFile))
	return nil
}

func runApply(ctx context.Context, s *store.Store, cfg *config.Config) error {
	ui.Header("Import Execution")
	engine, err := newEngine(ctx, s, cfg)
	if err != nil {
		return err
	}

	ui.Step(1, 2, fmt.Sprintf("reading reviewed actions from %s", *applyFile))
	data, err := os.ReadFile(*applyFile)
	if err != nil {
		return fmt.Errorf("failed to read request %s: %w", *applyFile, err)
	}
	var req importer.ExecuteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to parse request %s: %w", *applyFile, err)
	}

	ui.Step(2, 2, fmt.Sprintf("applying %d actions", len(req.Actions)))
	result, err := engine.Execute(ctx, req)
	if err != nil {
		return err
	}
	for _, msg := range result.RowErrors {
		ui.YellowText("  " + msg)
	}
	ui.Success(fmt.Sprintf("%d imported, %d subscribed, %d overwritten, %d ignored",
		result.Imported, result.Subscribed, result.Overwritten, result.Ignored))
	return nil
}

func runExport(ctx context.Context, s *store.Store) error {
	ui.Header("Database Export")
	doc, err := export.NewService(s).ExportToFile(ctx, *exportFile)
	if err != nil {
		return err
	}
	ui.Success(fmt.Sprintf("Exported %d transactions, %d categories, %d subscriptions to %s",
		doc.Metadata.TotalTransactions, doc.Metadata.TotalCategories,
		doc.Metadata.TotalSubscriptions, *exportFile))
	return nil
}

func runImport(ctx context.Context, s *store.Store) error {
	ui.Header("Database Import")
	doc, err := export.ReadFile(*importFile)
	if err != nil {
		return err
	}
	svc := export.NewService(s)

	if *dryRun {
		preview, err := svc.PreviewImport(ctx, doc)
		if err != nil {
			return err
		}
		for table, c := range preview.Conflicts {
			ui.Info(fmt.Sprintf("%s: %d total, %d new, %d duplicates", table, c.Total, c.New, c.Duplicates))
		}
		ui.Success(fmt.Sprintf("Dry run: %d new records, %d would be skipped",
			preview.TotalNew, preview.TotalSkipped))
		return nil
	}

	result, err := svc.Import(ctx, doc)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("import failed: %s", strings.Join(result.Errors, "; "))
	}
	for table, n := range result.Imported {
		ui.Info(fmt.Sprintf("%s: %d imported, %d skipped", table, n, result.Skipped[table]))
	}
	ui.Success("Import complete")
	return nil
}

func runReport(ctx context.Context, s *store.Store) error {
	year, month, err := parseMonth(*reportMonth)
	if err != nil {
		return err
	}
	summary, err := report.NewService(s).Monthly(ctx, year, month)
	if err != nil {
		return err
	}

	ui.Header(fmt.Sprintf("Summary %d-%02d", year, month))
	for _, d := range []domain.Direction{
		domain.DirectionExpense, domain.DirectionIncome,
		domain.DirectionPayment, domain.DirectionRefund,
	} {
		if summary.Counts[d] == 0 {
			continue
		}
		ui.Info(fmt.Sprintf("%-8s %s (%d transactions)",
			d, money.FormatAmount(summary.Totals[d], true), summary.Counts[d]))
	}
	if summary.SubscriptionTotal > 0 {
		ui.Info(fmt.Sprintf("Subscriptions: %s", money.FormatAmount(summary.SubscriptionTotal, true)))
	}
	for _, ct := range summary.Categories {
		ui.BlueText(fmt.Sprintf("  %-20s %12s (%d)", ct.Name, money.FormatAmount(ct.Total, true), ct.Count))
	}
	for _, line := range summary.Income {
		ui.Info(fmt.Sprintf("%s: expected %s, received %s", line.Name,
			money.FormatAmount(line.Expected, true), money.FormatAmount(line.Received, true)))
	}
	return nil
}

func runHistory(ctx context.Context, s *store.Store, cfg *config.Config) error {
	ui.Header("Import History")
	summaries, err := importer.NewEngine(s, categorizer.NewStatic(), cfg.FuzzyThreshold).History(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		ui.Info("No imports recorded")
		return nil
	}
	for _, sum := range summaries {
		fmt.Printf("%s  %-15s %4d rows  %12s  %s to %s\n",
			sum.ImportedAt.Format("2006-01-02 15:04"), sum.SourceType, sum.Count,
			money.FormatAmount(sum.Total, true),
			sum.FirstDate.Format("02/01/2006"), sum.LastDate.Format("02/01/2006"))
	}
	return nil
}

func parseMonth(s string) (int, time.Month, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("invalid month in %q", s)
	}
	return year, time.Month(m), nil
}
