// Package matching pairs closed lifecycles with the realized P&L entries the
// exchange reported in its ledger.
package matching

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
)

// DefaultWindow is how long after the last fill a ledger entry may still be
// attributed to a lifecycle.
const DefaultWindow = 5 * time.Minute

// Result summarizes one matching pass.
type Result struct {
	MatchedTotal decimal.Decimal // sum of ledger amounts attributed to closed lifecycles
	Matched      int             // closed lifecycles with at least one ledger entry
	Unmatched    int             // closed lifecycles with none
	Unconsumed   int             // REALIZED_PNL entries no lifecycle claimed
}

// Match attributes REALIZED_PNL ledger events to closed lifecycles of the same
// symbol whose window [firstFill, lastFill+window] contains the event time.
//
// Lifecycles are visited in (first_fill_time, symbol, id) order and each
// ledger event is consumed at most once, so overlapping windows never count
// an event twice. MatchedIncome and Unmatched are set on each closed lifecycle.
func Match(lifecycles []*domain.TradeLifecycle, events []*domain.LedgerEvent, window time.Duration) Result {
	if window < 0 {
		window = 0
	}
	windowMs := window.Milliseconds()

	bySymbol := make(map[string][]*domain.LedgerEvent)
	total := 0
	for _, ev := range events {
		if ev.Type != domain.LedgerRealizedPnl {
			continue
		}
		bySymbol[ev.Symbol] = append(bySymbol[ev.Symbol], ev)
		total++
	}
	for _, list := range bySymbol {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Timestamp != list[j].Timestamp {
				return list[i].Timestamp < list[j].Timestamp
			}
			return list[i].ExternalID < list[j].ExternalID
		})
	}

	closed := make([]*domain.TradeLifecycle, 0, len(lifecycles))
	for _, lc := range lifecycles {
		if lc.IsClosed() {
			closed = append(closed, lc)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		a, b := closed[i], closed[j]
		if a.FirstFillTime != b.FirstFillTime {
			return a.FirstFillTime < b.FirstFillTime
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.ID < b.ID
	})

	res := Result{MatchedTotal: decimal.Zero}
	consumed := make(map[string]struct{})

	for _, lc := range closed {
		from, to := lc.FirstFillTime, lc.LastFillTime+windowMs
		sum := decimal.Zero
		hits := 0

		for _, ev := range bySymbol[lc.Symbol] {
			if ev.Timestamp < from {
				continue
			}
			if ev.Timestamp > to {
				break
			}
			if _, ok := consumed[ev.ExternalID]; ok {
				continue
			}
			consumed[ev.ExternalID] = struct{}{}
			sum = sum.Add(ev.Amount)
			hits++
		}

		lc.MatchedIncome = sum
		lc.Unmatched = hits == 0
		if lc.Unmatched {
			res.Unmatched++
			continue
		}
		res.Matched++
		res.MatchedTotal = res.MatchedTotal.Add(sum)
	}

	res.Unconsumed = total - len(consumed)
	return res
}
