package reconcile

import (
	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/matching"
)

// DefaultPrecision is the number of decimal places currency amounts are rounded to in reports.
const DefaultPrecision int32 = 2

// ReportInput carries everything a run computed before the report is assembled.
type ReportInput struct {
	Lifecycles        []*domain.TradeLifecycle
	ValidExecutions   int
	InvalidExecutions int // rejected by the aggregator
	MalformedRecords  int // dropped by the normalizer
	Match             matching.Result
	LedgerTotal       decimal.Decimal
	TolerancePct      decimal.Decimal
	Precision         int32 // negative selects DefaultPrecision; 0 rounds to whole units
}

// AggregatedTotal sums realized P&L across all lifecycles.
func AggregatedTotal(lifecycles []*domain.TradeLifecycle) decimal.Decimal {
	total := decimal.Zero
	for _, lc := range lifecycles {
		total = total.Add(lc.RealizedPnl)
	}
	return total
}

// BuildResult compares totals at full precision and rounds only the reported values.
func BuildResult(in ReportInput) *domain.ReconciliationResult {
	rec := Compare(AggregatedTotal(in.Lifecycles), in.Match.MatchedTotal, in.LedgerTotal, in.TolerancePct)

	p := in.Precision
	if p < 0 {
		p = DefaultPrecision
	}

	stats := domain.ReconciliationStats{
		ValidTrades:     in.ValidExecutions,
		InvalidTrades:   in.InvalidExecutions + in.MalformedRecords,
		WarningTrades:   in.Match.Unmatched,
		TotalLifecycles: len(in.Lifecycles),
	}
	trades := make([]*domain.TradeLifecycle, 0, len(in.Lifecycles))
	for _, lc := range in.Lifecycles {
		if lc.IsComplete() {
			stats.CompleteLifecycles++
		} else {
			stats.IncompleteLifecycles++
		}
		trades = append(trades, lc.Rounded(p))
	}

	return &domain.ReconciliationResult{
		Stats: stats,
		Reconciliation: domain.Reconciliation{
			AggregatedTotalPnl: rec.AggregatedTotalPnl.Round(p),
			MatchedIncomePnl:   rec.MatchedIncomePnl.Round(p),
			LedgerTotalPnl:     rec.LedgerTotalPnl.Round(p),
			Difference:         rec.Difference.Round(p),
			DifferencePercent:  rec.DifferencePercent.Round(p),
			IsReconciled:       rec.IsReconciled,
		},
		Trades: trades,
	}
}
