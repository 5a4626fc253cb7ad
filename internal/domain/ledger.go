package domain

import "github.com/shopspring/decimal"

// LedgerEventType classifies an account ledger (income) event.
type LedgerEventType string

const (
	LedgerRealizedPnl LedgerEventType = "REALIZED_PNL"
	LedgerFundingFee  LedgerEventType = "FUNDING_FEE"
	LedgerCommission  LedgerEventType = "COMMISSION"
	LedgerDeposit     LedgerEventType = "DEPOSIT"
	LedgerWithdrawal  LedgerEventType = "WITHDRAWAL"
	LedgerTransfer    LedgerEventType = "TRANSFER"
)

// AffectsBalance reports whether events of this type move the account balance.
func (t LedgerEventType) AffectsBalance() bool {
	switch t {
	case LedgerRealizedPnl, LedgerFundingFee, LedgerCommission,
		LedgerDeposit, LedgerWithdrawal, LedgerTransfer:
		return true
	default:
		return false
	}
}

// LedgerEvent is a canonical account ledger entry reported by the exchange.
// Amount is signed from the account's point of view: withdrawals and paid
// funding are negative.
type LedgerEvent struct {
	ExternalID string          // exchange income id, unique
	Symbol     string          // empty for account-level events (deposits, transfers)
	Type       LedgerEventType // income type
	Amount     decimal.Decimal // signed amount
	Asset      string          // settlement asset
	Timestamp  int64           // event time (unix ms)
}

// SumLedger sums the amounts of events of the given type.
func SumLedger(events []*LedgerEvent, typ LedgerEventType) decimal.Decimal {
	total := decimal.Zero
	for _, e := range events {
		if e.Type == typ {
			total = total.Add(e.Amount)
		}
	}
	return total
}
