// Package main runs one reconciliation pass over fixture pages on disk and
// prints the run summary as JSON.
//
// Fixture layout: <fixture-dir>/<account>/*.json, each page holding
// {"fills": [...], "income": [...]}. Optional --snapshots points at a JSON
// array of balance snapshots loaded before the run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/config"
	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/ingestion"
	"trade-reconciler/internal/logger"
	"trade-reconciler/internal/orchestrator"
	"trade-reconciler/internal/reporting"
	"trade-reconciler/internal/storage"
	"trade-reconciler/internal/storage/memory"
)

func main() {
	cfg := config.FromEnv()

	account := flag.String("account", "", "Account to reconcile (empty: every account under fixture-dir)")
	fixtureDir := flag.String("fixture-dir", cfg.FixtureDir, "Directory of upstream fixture pages")
	snapshotsFile := flag.String("snapshots", "", "JSON file with balance snapshots to preload")
	autoFix := flag.Bool("auto-fix", false, "Auto-resolve discrepancies at or below the threshold")
	threshold := flag.String("threshold", cfg.AutoFixThreshold.String(), "Auto-fix threshold (absolute amount)")
	resultsOnly := flag.Bool("results-only", false, "Print only the per-account reconciliation results (json format)")
	format := flag.String("format", "json", "Output format: json, markdown or csv")
	flag.Parse()

	log := logger.NewWithWriter(logger.Config{Level: cfg.LogLevel, Pretty: true}, os.Stderr)

	thr, err := decimal.NewFromString(*threshold)
	if err != nil || thr.IsNegative() {
		log.Fatal().Str("threshold", *threshold).Msg("--threshold must be a non-negative decimal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := memory.NewGateway()
	if *snapshotsFile != "" {
		if err := loadSnapshots(ctx, gw, *snapshotsFile); err != nil {
			log.Fatal().Err(err).Msg("Failed to load snapshots")
		}
	}

	source := ingestion.NewFileSource(*fixtureDir)
	orch := orchestrator.New(orchestrator.Options{
		Gateway: gw,
		Fetcher: ingestion.NewFetcher(ingestion.FetcherOptions{
			Source:   source,
			Timeout:  cfg.FetchTimeout,
			MaxPages: cfg.FetchMaxPages,
			Logger:   log,
		}),
		Locker:      memory.NewLocker(),
		Reports:     memory.NewRunReportStore(),
		Accounts:    func(context.Context) ([]string, error) { return source.Accounts() },
		Concurrency: cfg.Concurrency,
		Logger:      log,
	})

	params := orchestrator.ParamsFromConfig(cfg)
	params.AccountID = *account
	params.AutoFix = *autoFix
	params.AutoFixThreshold = thr

	summary, runErr := orch.Run(ctx, params)

	switch *format {
	case "json":
		if err := writeJSON(summary, *resultsOnly); err != nil {
			log.Fatal().Err(err).Msg("Failed to write summary")
		}
	case "markdown", "csv":
		report, err := reporting.NewGenerator(gw.Discrepancies(), params.Precision).Generate(ctx, summary, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build report")
		}
		if *format == "csv" {
			fmt.Print(reporting.RenderCSV(report))
		} else {
			fmt.Print(reporting.RenderMarkdown(report))
		}
	default:
		log.Fatal().Str("format", *format).Msg("Unknown output format")
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func writeJSON(summary *orchestrator.Summary, resultsOnly bool) error {
	var out any = summary
	if resultsOnly {
		results := make(map[string]*domain.ReconciliationResult, len(summary.Accounts))
		for _, a := range summary.Accounts {
			results[a.AccountID] = a.Result
		}
		out = results
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadSnapshots(ctx context.Context, gw storage.Gateway, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshots: %w", err)
	}

	var snaps []*domain.BalanceSnapshot
	if err := json.Unmarshal(data, &snaps); err != nil {
		return fmt.Errorf("parse snapshots: %w", err)
	}

	for _, s := range snaps {
		if s.Source == "" {
			s.Source = domain.SourceManual
		}
		if err := gw.Snapshots().Upsert(ctx, s); err != nil {
			return fmt.Errorf("store snapshot %s/%s: %w", s.AccountID, s.Date, err)
		}
	}
	return nil
}
