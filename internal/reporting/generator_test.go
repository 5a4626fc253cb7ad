package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/orchestrator"
	"trade-reconciler/internal/storage/memory"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupTestData(t *testing.T) (*memory.DiscrepancyStore, *orchestrator.Summary) {
	ctx := context.Background()
	store := memory.NewDiscrepancyStore()

	records := []*domain.DiscrepancyRecord{
		{ID: "d2", AccountID: "acc-b", SnapshotDate: "2024-03-02", ExpectedBalance: d("100"), ActualBalance: d("95.5"), Discrepancy: d("-4.5"), DetectedAt: 2},
		{ID: "d1", AccountID: "acc-b", SnapshotDate: "2024-03-01", ExpectedBalance: d("200"), ActualBalance: d("210"), Discrepancy: d("10"), DetectedAt: 1},
		{ID: "d3", AccountID: "acc-z", SnapshotDate: "2024-03-01", ExpectedBalance: d("1"), ActualBalance: d("2"), Discrepancy: d("1"), DetectedAt: 3},
	}
	for _, r := range records {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert discrepancy failed: %v", err)
		}
	}

	summary := &orchestrator.Summary{
		AccountsChecked:    2,
		DiscrepanciesFound: 2,
		RequiresReview:     2,
		Accounts: []*orchestrator.AccountResult{
			{
				RunID:     "run-b",
				AccountID: "acc-b",
				Result: &domain.ReconciliationResult{
					Stats: domain.ReconciliationStats{ValidTrades: 4, InvalidTrades: 1, TotalLifecycles: 2, IncompleteLifecycles: 1},
					Reconciliation: domain.Reconciliation{
						AggregatedTotalPnl: d("12.345"),
						LedgerTotalPnl:     d("12.3"),
						Difference:         d("0.045"),
						DifferencePercent:  d("0.3658536585"),
						IsReconciled:       false,
					},
					Trades: []*domain.TradeLifecycle{
						{ID: "l1", State: domain.StateClosed, Result: domain.ResultWin},
						{ID: "l2", State: domain.StateOpen, Result: domain.ResultLoss},
					},
				},
				UnattributedFunding: d("-0.126"),
			},
			{
				RunID:     "run-a",
				AccountID: "acc-a",
				Result: &domain.ReconciliationResult{
					Reconciliation: domain.Reconciliation{
						AggregatedTotalPnl: d("5"),
						LedgerTotalPnl:     d("5"),
						Difference:         d("0"),
						DifferencePercent:  d("0"),
						IsReconciled:       true,
					},
					Trades: []*domain.TradeLifecycle{
						{ID: "l3", State: domain.StateClosed, Result: domain.ResultLoss},
					},
				},
				UnattributedFunding: decimal.Zero,
			},
		},
		Failed: []orchestrator.AccountFailure{{AccountID: "acc-c", Error: "upstream timeout"}},
	}
	return store, summary
}

func TestGenerator_Generate(t *testing.T) {
	store, summary := setupTestData(t)
	gen := NewGenerator(store, 2)

	at := time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)
	r, err := gen.Generate(context.Background(), summary, at)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !r.GeneratedAt.Equal(at) {
		t.Errorf("GeneratedAt = %v, want %v", r.GeneratedAt, at)
	}
	if r.Totals.AccountsChecked != 2 || r.Totals.AccountsFailed != 1 || r.Totals.ReconciledAccounts != 1 {
		t.Errorf("unexpected totals: %+v", r.Totals)
	}

	if len(r.Accounts) != 2 {
		t.Fatalf("expected 2 account rows, got %d", len(r.Accounts))
	}
	if r.Accounts[0].AccountID != "acc-a" || r.Accounts[1].AccountID != "acc-b" {
		t.Errorf("accounts not sorted: %s, %s", r.Accounts[0].AccountID, r.Accounts[1].AccountID)
	}

	b := r.Accounts[1]
	if b.Wins != 1 || b.Losses != 0 {
		t.Errorf("acc-b wins/losses = %d/%d, want 1/0 (open lifecycles are not counted)", b.Wins, b.Losses)
	}
	if !b.AggregatedPnl.Equal(d("12.35")) {
		t.Errorf("acc-b aggregated pnl = %s, want 12.35", b.AggregatedPnl)
	}
	if !b.UnattributedFunding.Equal(d("-0.13")) {
		t.Errorf("acc-b unattributed funding = %s, want -0.13", b.UnattributedFunding)
	}

	// acc-z is not part of the run
	if len(r.OpenDiscrepancies) != 2 {
		t.Fatalf("expected 2 open discrepancies, got %d", len(r.OpenDiscrepancies))
	}
	if r.OpenDiscrepancies[0].ID != "d1" || r.OpenDiscrepancies[1].ID != "d2" {
		t.Errorf("discrepancies not sorted by date: %s, %s", r.OpenDiscrepancies[0].ID, r.OpenDiscrepancies[1].ID)
	}
}

func TestGenerator_SkipsResolvedDiscrepancies(t *testing.T) {
	store, summary := setupTestData(t)
	if err := store.Resolve(context.Background(), "d1", domain.ResolutionManual, "checked", 10); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	r, err := NewGenerator(store, -1).Generate(context.Background(), summary, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(r.OpenDiscrepancies) != 1 || r.OpenDiscrepancies[0].ID != "d2" {
		t.Errorf("expected only d2 open, got %+v", r.OpenDiscrepancies)
	}
}

func TestGenerator_ZeroPrecisionRoundsToWholeUnits(t *testing.T) {
	store, summary := setupTestData(t)

	r, err := NewGenerator(store, 0).Generate(context.Background(), summary, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if r.Precision != 0 {
		t.Errorf("Precision = %d, want 0", r.Precision)
	}
	b := r.Accounts[1]
	if !b.AggregatedPnl.Equal(d("12")) {
		t.Errorf("acc-b aggregated pnl = %s, want 12", b.AggregatedPnl)
	}
	if !r.OpenDiscrepancies[1].Actual.Equal(d("96")) {
		t.Errorf("d2 actual = %s, want 96", r.OpenDiscrepancies[1].Actual)
	}
	if got := RenderMarkdown(r); !strings.Contains(got, "| 12 |") {
		t.Errorf("markdown does not render whole units:\n%s", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	store, summary := setupTestData(t)
	r, err := NewGenerator(store, 2).Generate(context.Background(), summary, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Reconciliation Report",
		"Generated: 2024-03-03T00:00:00Z",
		"| Accounts Checked | 2 |",
		"| acc-a | 0 | 0 | 0 | 0 | 0/1 | 5.00 | 5.00 | 0.00 | 0.00 | OK |",
		"| acc-b | 4 | 1 | 2 | 1 | 1/0 | 12.35 | 12.30 | 0.05 | 0.37 | MISMATCH |",
		"### Unattributed Funding",
		"- acc-b: -0.13",
		"- acc-c: upstream timeout",
		"| acc-b | 2024-03-01 | 200.00 | 210.00 | 10.00 | d1 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&Report{GeneratedAt: time.Unix(0, 0).UTC(), Precision: 2})

	if !strings.Contains(md, "No accounts reconciled.") {
		t.Error("expected empty accounts message")
	}
	if !strings.Contains(md, "No open discrepancies.") {
		t.Error("expected empty discrepancies message")
	}
	if strings.Contains(md, "## Failed Accounts") {
		t.Error("failed accounts section should be omitted when empty")
	}
}

func TestRenderCSV(t *testing.T) {
	store, summary := setupTestData(t)
	r, err := NewGenerator(store, 2).Generate(context.Background(), summary, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(RenderCSV(r)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "account_id,run_id,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	want := "acc-b,run-b,4,1,2,1,1,0,12.35,12.30,0.05,0.37,false,-0.13"
	if lines[2] != want {
		t.Errorf("row = %s, want %s", lines[2], want)
	}
}
