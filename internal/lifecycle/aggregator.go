// Package lifecycle reconstructs position lifecycles from canonical executions.
//
// Executions are grouped by symbol. Symbols are independent and are
// aggregated concurrently; within a symbol the scan is strictly sequential
// in (timestamp, external_id) order.
package lifecycle

import (
	"context"
	"runtime"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/idhash"
	"trade-reconciler/internal/normalization"
)

// divPrecision is the number of fractional digits kept by weighted-average divisions.
const divPrecision int32 = 18

// Options configures an aggregation pass.
type Options struct {
	// AccountID is stamped on every lifecycle and scopes its id.
	AccountID string
	// Concurrency bounds the number of symbols aggregated in parallel.
	// Zero means GOMAXPROCS.
	Concurrency int
}

// Result is the output of Aggregate.
type Result struct {
	Lifecycles        []*domain.TradeLifecycle // ordered by (first_fill_time, symbol, id)
	ValidExecutions   int
	InvalidExecutions int
	Errors            []error // one *InvalidExecutionError per skipped execution
}

// Aggregate builds trade lifecycles from executions.
// The input slice is not modified.
func Aggregate(ctx context.Context, execs []*domain.Execution, opts Options) (*Result, error) {
	groups := groupBySymbol(execs)

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	partials := make([]*symbolResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, grp := range groups {
		g.Go(func() error {
			res, err := aggregateSymbol(gctx, opts.AccountID, grp.symbol, grp.execs)
			if err != nil {
				return err
			}
			partials[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{}
	for _, p := range partials {
		out.Lifecycles = append(out.Lifecycles, p.lifecycles...)
		out.ValidExecutions += p.valid
		out.InvalidExecutions += len(p.errs)
		out.Errors = append(out.Errors, p.errs...)
	}
	SortLifecycles(out.Lifecycles)
	return out, nil
}

// SortLifecycles orders lifecycles by (first_fill_time ASC, symbol ASC, id ASC).
func SortLifecycles(lcs []*domain.TradeLifecycle) {
	sort.SliceStable(lcs, func(i, j int) bool {
		a, b := lcs[i], lcs[j]
		if a.FirstFillTime != b.FirstFillTime {
			return a.FirstFillTime < b.FirstFillTime
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.ID < b.ID
	})
}

type symbolGroup struct {
	symbol string
	execs  []*domain.Execution
}

// groupBySymbol splits executions per symbol, each group sorted canonically.
// Groups are returned in symbol order so worker scheduling never affects output.
func groupBySymbol(execs []*domain.Execution) []symbolGroup {
	bySymbol := make(map[string][]*domain.Execution)
	for _, e := range execs {
		if e == nil {
			continue
		}
		bySymbol[e.Symbol] = append(bySymbol[e.Symbol], e)
	}

	symbols := make([]string, 0, len(bySymbol))
	for s := range bySymbol {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	groups := make([]symbolGroup, 0, len(symbols))
	for _, s := range symbols {
		list := bySymbol[s]
		normalization.SortExecutions(list)
		groups = append(groups, symbolGroup{symbol: s, execs: list})
	}
	return groups
}

type symbolResult struct {
	lifecycles []*domain.TradeLifecycle
	valid      int
	errs       []error
}

// builder tracks the lifecycle currently open in a symbol.
type builder struct {
	lc           *domain.TradeLifecycle
	exitNotional decimal.Decimal // sum(closing price * closed qty)
}

func aggregateSymbol(ctx context.Context, accountID, symbol string, execs []*domain.Execution) (*symbolResult, error) {
	res := &symbolResult{}
	var cur *builder
	pendingIncomplete := false

	finish := func(b *builder) {
		finalize(b.lc)
		res.lifecycles = append(res.lifecycles, b.lc)
	}

	for i, e := range execs {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if err := validate(e); err != nil {
			res.errs = append(res.errs, err)
			if cur != nil {
				cur.lc.Incomplete = true
			} else {
				pendingIncomplete = true
			}
			continue
		}
		res.valid++

		dir := domain.DirectionOf(e.Side)

		if cur == nil {
			cur = open(accountID, symbol, e, dir, e.Quantity, e.Fee)
			cur.lc.Incomplete = pendingIncomplete
			pendingIncomplete = false
			continue
		}

		if dir == cur.lc.Direction {
			extend(cur, e)
			continue
		}

		excess, openFee := closeAgainst(cur, e)
		if cur.lc.State == domain.StateClosed {
			finish(cur)
			cur = nil
		}
		if excess.IsPositive() {
			cur = open(accountID, symbol, e, dir, excess, openFee)
		}
	}

	if cur != nil {
		finish(cur)
	}
	return res, nil
}

func validate(e *domain.Execution) error {
	switch {
	case !e.Quantity.IsPositive():
		return &InvalidExecutionError{ExternalID: e.ExternalID, Symbol: e.Symbol, Reason: "quantity must be positive"}
	case !e.Price.IsPositive():
		return &InvalidExecutionError{ExternalID: e.ExternalID, Symbol: e.Symbol, Reason: "price must be positive"}
	case e.Fee.IsNegative():
		return &InvalidExecutionError{ExternalID: e.ExternalID, Symbol: e.Symbol, Reason: "fee must not be negative"}
	}
	return nil
}

// open starts a new lifecycle from e with the given quantity and fee share.
func open(accountID, symbol string, e *domain.Execution, dir domain.Direction, qty, fee decimal.Decimal) *builder {
	return &builder{
		lc: &domain.TradeLifecycle{
			ID:             idhash.ComputeLifecycleID(accountID, symbol, e.ExternalID),
			AccountID:      accountID,
			Symbol:         symbol,
			Direction:      dir,
			EntryPrice:     e.Price,
			Quantity:       qty,
			OpenedQuantity: qty,
			ClosedQuantity: decimal.Zero,
			RealizedPnl:    decimal.Zero,
			Fees:           fee,
			FundingFees:    decimal.Zero,
			MatchedIncome:  decimal.Zero,
			FirstFillID:    e.ExternalID,
			FirstFillTime:  e.Timestamp,
			LastFillTime:   e.Timestamp,
			FillCount:      1,
			State:          domain.StateOpen,
		},
		exitNotional: decimal.Zero,
	}
}

// extend adds a same-direction fill and re-weights the entry price:
// entry' = (entry*openQty + price*qty) / (openQty + qty)
func extend(b *builder, e *domain.Execution) {
	lc := b.lc
	newQty := lc.Quantity.Add(e.Quantity)
	notional := lc.EntryPrice.Mul(lc.Quantity).Add(e.Price.Mul(e.Quantity))

	lc.EntryPrice = notional.DivRound(newQty, divPrecision)
	lc.Quantity = newQty
	lc.OpenedQuantity = lc.OpenedQuantity.Add(e.Quantity)
	lc.Fees = lc.Fees.Add(e.Fee)
	lc.LastFillTime = e.Timestamp
	lc.FillCount++
}

// closeAgainst applies an opposite-direction fill to the open quantity.
// Returns the quantity left over after the lifecycle is flat and the share
// of the fill's fee belonging to that leftover.
func closeAgainst(b *builder, e *domain.Execution) (excess, excessFee decimal.Decimal) {
	lc := b.lc
	closeQty := decimal.Min(e.Quantity, lc.Quantity)
	excess = e.Quantity.Sub(closeQty)

	closeFee := e.Fee
	excessFee = decimal.Zero
	if excess.IsPositive() {
		closeFee = e.Fee.Mul(closeQty).DivRound(e.Quantity, divPrecision)
		excessFee = e.Fee.Sub(closeFee)
	}

	pnl := e.Price.Sub(lc.EntryPrice).Mul(closeQty).Mul(lc.Direction.Sign())
	lc.RealizedPnl = lc.RealizedPnl.Add(pnl)

	b.exitNotional = b.exitNotional.Add(e.Price.Mul(closeQty))
	lc.ClosedQuantity = lc.ClosedQuantity.Add(closeQty)
	lc.ExitPrice = decimal.NewNullDecimal(b.exitNotional.DivRound(lc.ClosedQuantity, divPrecision))

	lc.Quantity = lc.Quantity.Sub(closeQty)
	lc.Fees = lc.Fees.Add(closeFee)
	lc.LastFillTime = e.Timestamp
	lc.FillCount++

	if lc.Quantity.IsZero() {
		lc.State = domain.StateClosed
	} else {
		lc.State = domain.StatePartiallyClosed
	}
	return excess, excessFee
}

func finalize(lc *domain.TradeLifecycle) {
	lc.HoldTimeMinutes = (lc.LastFillTime - lc.FirstFillTime) / 60000
	lc.Result = domain.ResultOf(lc.RealizedPnl)
}
