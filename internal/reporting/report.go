package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is a rendered-ready view of one reconciliation run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Precision   int32

	// Run totals
	Totals Totals

	// Per-account rows (sorted by account_id)
	Accounts []AccountRow

	// Accounts that aborted (sorted by account_id)
	Failures []FailureRow

	// Unresolved discrepancies for the accounts in this run
	// (sorted by account_id, snapshot_date, id)
	OpenDiscrepancies []DiscrepancyRow
}

// Totals aggregates counters over every account in the run.
type Totals struct {
	AccountsChecked    int
	AccountsFailed     int
	ReconciledAccounts int
	DiscrepanciesFound int
	AutoFixed          int
	RequiresReview     int
}

// AccountRow is one account's reconciliation outcome.
type AccountRow struct {
	AccountID            string
	RunID                string
	ValidTrades          int
	InvalidTrades        int
	Lifecycles           int
	IncompleteLifecycles int
	Wins                 int
	Losses               int
	AggregatedPnl        decimal.Decimal
	LedgerPnl            decimal.Decimal
	Difference           decimal.Decimal
	DifferencePercent    decimal.Decimal
	Reconciled           bool
	UnattributedFunding  decimal.Decimal
}

// FailureRow is an account that produced no result.
type FailureRow struct {
	AccountID string
	Error     string
}

// DiscrepancyRow is one unresolved balance discrepancy.
type DiscrepancyRow struct {
	ID           string
	AccountID    string
	SnapshotDate string
	Expected     decimal.Decimal
	Actual       decimal.Decimal
	Discrepancy  decimal.Decimal
}
