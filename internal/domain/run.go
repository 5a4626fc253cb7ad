package domain

import "github.com/shopspring/decimal"

// RunStatus is the outcome of one account reconciliation run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunReport is the history row written after every account run.
type RunReport struct {
	RunID      string    `json:"runId"`
	AccountID  string    `json:"accountId"`
	StartedAt  int64     `json:"startedAt"`  // unix ms
	FinishedAt int64     `json:"finishedAt"` // unix ms
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`

	ValidTrades          int `json:"validTrades"`
	InvalidTrades        int `json:"invalidTrades"`
	WarningTrades        int `json:"warningTrades"`
	TotalLifecycles      int `json:"totalLifecycles"`
	IncompleteLifecycles int `json:"incompleteLifecycles"`

	AggregatedTotalPnl decimal.Decimal `json:"aggregatedTotalPnl"`
	LedgerTotalPnl     decimal.Decimal `json:"ledgerTotalPnl"`
	DifferencePercent  decimal.Decimal `json:"differencePercent"`
	IsReconciled       bool            `json:"isReconciled"`

	DiscrepanciesFound int `json:"discrepanciesFound"`
	AutoFixed          int `json:"autoFixed"`
	RequiresReview     int `json:"requiresReview"`
}
