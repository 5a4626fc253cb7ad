package domain

import "github.com/shopspring/decimal"

// Direction is the side of a net position.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Sign returns +1 for LONG and -1 for SHORT.
func (d Direction) Sign() decimal.Decimal {
	if d == DirectionShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// DirectionOf returns the direction a fill on the given side opens.
func DirectionOf(side Side) Direction {
	if side == SideSell {
		return DirectionShort
	}
	return DirectionLong
}

// LifecycleState is the closure state of a lifecycle.
// Transitions only move forward: open -> partially_closed -> closed.
type LifecycleState string

const (
	StateOpen            LifecycleState = "open"
	StatePartiallyClosed LifecycleState = "partially_closed"
	StateClosed          LifecycleState = "closed"
)

// TradeResult classifies a lifecycle by realized P&L sign.
type TradeResult string

const (
	ResultWin       TradeResult = "win"
	ResultLoss      TradeResult = "loss"
	ResultBreakeven TradeResult = "breakeven"
)

// ResultOf classifies a realized P&L amount.
func ResultOf(pnl decimal.Decimal) TradeResult {
	switch pnl.Sign() {
	case 1:
		return ResultWin
	case -1:
		return ResultLoss
	default:
		return ResultBreakeven
	}
}

// TradeLifecycle is one continuous net-position episode in a symbol,
// from the first opening fill to full closure.
type TradeLifecycle struct {
	ID        string    `json:"id"` // sha256(symbol|firstFillExternalId)
	AccountID string    `json:"accountId,omitempty"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"direction"`

	EntryPrice decimal.Decimal     `json:"entryPrice"`
	ExitPrice  decimal.NullDecimal `json:"exitPrice"` // null while nothing has been closed

	Quantity       decimal.Decimal `json:"quantity"`       // remaining open quantity
	OpenedQuantity decimal.Decimal `json:"openedQuantity"` // total quantity opened
	ClosedQuantity decimal.Decimal `json:"closedQuantity"` // total quantity closed

	RealizedPnl   decimal.Decimal `json:"realizedPnl"`
	Fees          decimal.Decimal `json:"fees"`
	FundingFees   decimal.Decimal `json:"fundingFees"`
	MatchedIncome decimal.Decimal `json:"matchedIncome"`

	FirstFillID     string `json:"firstFillId"`
	FirstFillTime   int64  `json:"firstFillTime"` // unix ms
	LastFillTime    int64  `json:"lastFillTime"`  // unix ms
	HoldTimeMinutes int64  `json:"holdTimeMinutes"`
	FillCount       int    `json:"fillCount"`

	Result     TradeResult    `json:"result"`
	State      LifecycleState `json:"state"`
	Incomplete bool           `json:"incomplete"` // a corrupt fill was skipped inside it
	Unmatched  bool           `json:"unmatched"`  // closed but no ledger income matched
}

// IsClosed reports whether the lifecycle reached zero open quantity.
func (l *TradeLifecycle) IsClosed() bool {
	return l.State == StateClosed
}

// IsComplete reports whether the lifecycle is closed and was built from a clean fill stream.
func (l *TradeLifecycle) IsComplete() bool {
	return l.State == StateClosed && !l.Incomplete
}

// Contains reports whether ts falls inside the lifecycle's holding window.
// Open lifecycles extend indefinitely forward.
func (l *TradeLifecycle) Contains(ts int64) bool {
	if ts < l.FirstFillTime {
		return false
	}
	if l.State != StateClosed {
		return true
	}
	return ts <= l.LastFillTime
}

// Rounded returns a copy with currency amounts rounded to places.
// Only used when building reports; accumulation never rounds.
func (l *TradeLifecycle) Rounded(places int32) *TradeLifecycle {
	c := *l
	c.EntryPrice = l.EntryPrice.Round(places)
	if l.ExitPrice.Valid {
		c.ExitPrice = decimal.NewNullDecimal(l.ExitPrice.Decimal.Round(places))
	}
	c.RealizedPnl = l.RealizedPnl.Round(places)
	c.Fees = l.Fees.Round(places)
	c.FundingFees = l.FundingFees.Round(places)
	c.MatchedIncome = l.MatchedIncome.Round(places)
	return &c
}
