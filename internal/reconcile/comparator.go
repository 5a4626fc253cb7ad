// Package reconcile compares locally aggregated realized P&L against the
// exchange ledger and assembles the per-run report.
package reconcile

import (
	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
)

// Epsilon is the smallest ledger magnitude used as a percentage denominator.
var Epsilon = decimal.New(1, -8)

// DefaultTolerancePct is the default reconciliation tolerance in percent.
var DefaultTolerancePct = decimal.NewFromInt(1)

var hundred = decimal.NewFromInt(100)

// Compare classifies aggregated against ledger totals.
//
//	difference        = aggregated - ledger
//	differencePercent = difference / max(|ledger|, Epsilon) * 100
//
// A run is reconciled when the difference is exactly zero or its percentage is
// strictly inside tolerancePct. Compare is pure.
func Compare(aggregated, matched, ledger, tolerancePct decimal.Decimal) domain.Reconciliation {
	diff := aggregated.Sub(ledger)
	denom := decimal.Max(ledger.Abs(), Epsilon)
	pct := diff.DivRound(denom, 18).Mul(hundred)

	return domain.Reconciliation{
		AggregatedTotalPnl: aggregated,
		MatchedIncomePnl:   matched,
		LedgerTotalPnl:     ledger,
		Difference:         diff,
		DifferencePercent:  pct,
		IsReconciled:       diff.IsZero() || pct.Abs().LessThan(tolerancePct),
	}
}
