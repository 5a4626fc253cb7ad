package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/orchestrator"
	"trade-reconciler/internal/reconcile"
	"trade-reconciler/internal/storage"
)

// Generator builds reports from a run summary and the discrepancy store.
type Generator struct {
	discrepancies storage.DiscrepancyStore
	precision     int32
}

// NewGenerator creates a new report generator. A negative precision
// falls back to the default report precision; 0 reports whole units.
func NewGenerator(discrepancies storage.DiscrepancyStore, precision int32) *Generator {
	if precision < 0 {
		precision = reconcile.DefaultPrecision
	}
	return &Generator{discrepancies: discrepancies, precision: precision}
}

// Generate builds a Report for summary. Output is deterministic for the
// same summary and store contents.
func (g *Generator) Generate(ctx context.Context, summary *orchestrator.Summary, generatedAt time.Time) (*Report, error) {
	r := &Report{
		GeneratedAt: generatedAt.UTC(),
		Precision:   g.precision,
		Totals: Totals{
			AccountsChecked:    summary.AccountsChecked,
			AccountsFailed:     len(summary.Failed),
			DiscrepanciesFound: summary.DiscrepanciesFound,
			AutoFixed:          summary.AutoFixed,
			RequiresReview:     summary.RequiresReview,
		},
	}

	for _, a := range summary.Accounts {
		row := g.accountRow(a)
		if row.Reconciled {
			r.Totals.ReconciledAccounts++
		}
		r.Accounts = append(r.Accounts, row)
	}
	sort.Slice(r.Accounts, func(i, j int) bool { return r.Accounts[i].AccountID < r.Accounts[j].AccountID })

	for _, f := range summary.Failed {
		r.Failures = append(r.Failures, FailureRow{AccountID: f.AccountID, Error: f.Error})
	}
	sort.Slice(r.Failures, func(i, j int) bool { return r.Failures[i].AccountID < r.Failures[j].AccountID })

	for _, a := range r.Accounts {
		open, err := g.discrepancies.ListByAccount(ctx, a.AccountID, true)
		if err != nil {
			return nil, fmt.Errorf("list open discrepancies for %s: %w", a.AccountID, err)
		}
		for _, d := range open {
			r.OpenDiscrepancies = append(r.OpenDiscrepancies, g.discrepancyRow(d))
		}
	}
	sort.SliceStable(r.OpenDiscrepancies, func(i, j int) bool {
		a, b := r.OpenDiscrepancies[i], r.OpenDiscrepancies[j]
		if a.AccountID != b.AccountID {
			return a.AccountID < b.AccountID
		}
		if a.SnapshotDate != b.SnapshotDate {
			return a.SnapshotDate < b.SnapshotDate
		}
		return a.ID < b.ID
	})

	return r, nil
}

func (g *Generator) accountRow(a *orchestrator.AccountResult) AccountRow {
	row := AccountRow{
		AccountID:           a.AccountID,
		RunID:               a.RunID,
		UnattributedFunding: a.UnattributedFunding.Round(g.precision),
	}
	if a.Result == nil {
		return row
	}

	stats, rec := a.Result.Stats, a.Result.Reconciliation
	row.ValidTrades = stats.ValidTrades
	row.InvalidTrades = stats.InvalidTrades
	row.Lifecycles = stats.TotalLifecycles
	row.IncompleteLifecycles = stats.IncompleteLifecycles
	row.AggregatedPnl = rec.AggregatedTotalPnl.Round(g.precision)
	row.LedgerPnl = rec.LedgerTotalPnl.Round(g.precision)
	row.Difference = rec.Difference.Round(g.precision)
	row.DifferencePercent = rec.DifferencePercent.Round(g.precision)
	row.Reconciled = rec.IsReconciled

	for _, lc := range a.Result.Trades {
		if !lc.IsClosed() {
			continue
		}
		switch lc.Result {
		case domain.ResultWin:
			row.Wins++
		case domain.ResultLoss:
			row.Losses++
		}
	}
	return row
}

func (g *Generator) discrepancyRow(d *domain.DiscrepancyRecord) DiscrepancyRow {
	return DiscrepancyRow{
		ID:           d.ID,
		AccountID:    d.AccountID,
		SnapshotDate: d.SnapshotDate,
		Expected:     d.ExpectedBalance.Round(g.precision),
		Actual:       d.ActualBalance.Round(g.precision),
		Discrepancy:  d.Discrepancy.Round(g.precision),
	}
}
