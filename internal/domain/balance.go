package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for snapshot keys.
const DateLayout = "2006-01-02"

// SnapshotSource identifies who captured a balance snapshot.
type SnapshotSource string

const (
	SourceExchange SnapshotSource = "exchange"
	SourceManual   SnapshotSource = "manual"
	SourcePaper    SnapshotSource = "paper"
)

// Valid reports whether s is a known source.
func (s SnapshotSource) Valid() bool {
	return s == SourceExchange || s == SourceManual || s == SourcePaper
}

// BalanceSnapshot is the stored account balance for one calendar day.
// Keyed by (AccountID, Date); a later capture on the same day overwrites.
type BalanceSnapshot struct {
	AccountID        string          `json:"accountId"`
	Date             string          `json:"date"` // YYYY-MM-DD
	Balance          decimal.Decimal `json:"balance"`
	UnrealizedPnl    decimal.Decimal `json:"unrealizedPnl"`
	RealizedPnlToday decimal.Decimal `json:"realizedPnlToday"`
	Source           SnapshotSource  `json:"source"`
	CapturedAt       int64           `json:"capturedAt"` // unix ms
}

// DateOf formats a unix ms timestamp as a UTC snapshot date.
func DateOf(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(DateLayout)
}
