package lifecycle

import (
	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
)

// AttributeFunding adds FUNDING_FEE ledger events to the lifecycle of the same
// symbol that was open at the event time. When two lifecycles touch the same
// timestamp (a flip), the one opened later receives the event.
//
// Lifecycles are mutated in place. Returns the total of funding events that
// matched no lifecycle.
func AttributeFunding(lifecycles []*domain.TradeLifecycle, events []*domain.LedgerEvent) decimal.Decimal {
	bySymbol := make(map[string][]*domain.TradeLifecycle)
	for _, lc := range lifecycles {
		bySymbol[lc.Symbol] = append(bySymbol[lc.Symbol], lc)
	}
	for _, list := range bySymbol {
		SortLifecycles(list)
	}

	unattributed := decimal.Zero
	for _, ev := range events {
		if ev.Type != domain.LedgerFundingFee {
			continue
		}
		target := holderAt(bySymbol[ev.Symbol], ev.Timestamp)
		if target == nil {
			unattributed = unattributed.Add(ev.Amount)
			continue
		}
		target.FundingFees = target.FundingFees.Add(ev.Amount)
	}
	return unattributed
}

// holderAt returns the newest lifecycle containing ts. list is sorted by first fill time.
func holderAt(list []*domain.TradeLifecycle, ts int64) *domain.TradeLifecycle {
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Contains(ts) {
			return list[i]
		}
	}
	return nil
}
