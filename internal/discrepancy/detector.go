// Package discrepancy detects drift between stored account balances and the
// balance implied by the exchange ledger, and drives records through their
// resolution.
package discrepancy

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
)

// DefaultMinAbs is the smallest |actual - expected| reported as a discrepancy.
var DefaultMinAbs = decimal.RequireFromString("0.01")

// DetectInput is everything needed to check one snapshot.
type DetectInput struct {
	Current    *domain.BalanceSnapshot
	Prior      *domain.BalanceSnapshot
	Ledger     []*domain.LedgerEvent
	DetectedAt int64 // unix ms
}

// LedgerDelta sums balance-moving ledger amounts with timestamps in (from, to].
func LedgerDelta(events []*domain.LedgerEvent, from, to int64) decimal.Decimal {
	delta := decimal.Zero
	for _, ev := range events {
		if !ev.Type.AffectsBalance() {
			continue
		}
		if ev.Timestamp <= from || ev.Timestamp > to {
			continue
		}
		delta = delta.Add(ev.Amount)
	}
	return delta
}

// ExpectedBalance returns prior.Balance plus the ledger delta since prior was captured.
func ExpectedBalance(prior, current *domain.BalanceSnapshot, events []*domain.LedgerEvent) decimal.Decimal {
	return prior.Balance.Add(LedgerDelta(events, prior.CapturedAt, current.CapturedAt))
}

// Detect compares the current snapshot against the balance implied by the
// prior snapshot and the ledger. Returns nil when there is no prior snapshot
// or the gap is within minAbs.
func Detect(in DetectInput, minAbs decimal.Decimal) *domain.DiscrepancyRecord {
	if in.Current == nil || in.Prior == nil {
		return nil
	}
	expected := ExpectedBalance(in.Prior, in.Current, in.Ledger)
	return Evaluate(in.Current.AccountID, in.Current.Date, in.Current.Balance, expected, minAbs, in.DetectedAt)
}

// Evaluate returns an unresolved record when |actual - expected| > minAbs, otherwise nil.
func Evaluate(accountID, date string, actual, expected, minAbs decimal.Decimal, detectedAt int64) *domain.DiscrepancyRecord {
	diff := actual.Sub(expected)
	if !diff.Abs().GreaterThan(minAbs) {
		return nil
	}
	return &domain.DiscrepancyRecord{
		ID:              uuid.NewString(),
		AccountID:       accountID,
		SnapshotDate:    date,
		ExpectedBalance: expected,
		ActualBalance:   actual,
		Discrepancy:     diff,
		DetectedAt:      detectedAt,
	}
}
