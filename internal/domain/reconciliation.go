package domain

import "github.com/shopspring/decimal"

// ReconciliationStats counts rows and lifecycles seen by a run.
type ReconciliationStats struct {
	ValidTrades          int `json:"validTrades"`
	InvalidTrades        int `json:"invalidTrades"`
	WarningTrades        int `json:"warningTrades"`
	TotalLifecycles      int `json:"totalLifecycles"`
	CompleteLifecycles   int `json:"completeLifecycles"`
	IncompleteLifecycles int `json:"incompleteLifecycles"`
}

// Reconciliation compares aggregated P&L against the ledger.
type Reconciliation struct {
	AggregatedTotalPnl decimal.Decimal `json:"aggregatedTotalPnl"`
	MatchedIncomePnl   decimal.Decimal `json:"matchedIncomePnl"`
	LedgerTotalPnl     decimal.Decimal `json:"ledgerTotalPnl"`
	Difference         decimal.Decimal `json:"difference"`
	DifferencePercent  decimal.Decimal `json:"differencePercent"`
	IsReconciled       bool            `json:"isReconciled"`
}

// ReconciliationResult is the per-run report consumed by export and UI collaborators.
// Field names are part of the export contract.
type ReconciliationResult struct {
	Stats          ReconciliationStats `json:"stats"`
	Reconciliation Reconciliation      `json:"reconciliation"`
	Trades         []*TradeLifecycle   `json:"trades"`
}
