package domain

import "github.com/shopspring/decimal"

// Side is the taker side of an execution.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL.
func (s Side) Sign() int {
	if s == SideSell {
		return -1
	}
	return 1
}

// Execution is a canonical exchange fill.
// Produced by the normalizer and never mutated afterwards.
type Execution struct {
	ExternalID string          // exchange trade id, unique
	Symbol     string          // instrument symbol, e.g. BTCUSDT
	Side       Side            // BUY | SELL
	Price      decimal.Decimal // fill price
	Quantity   decimal.Decimal // base quantity
	Fee        decimal.Decimal // commission charged on this fill
	FeeAsset   string          // asset the fee was charged in
	Timestamp  int64           // fill time (unix ms)
	OrderID    string          // parent order id
}
