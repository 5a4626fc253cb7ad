package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

// LifecycleStore implements storage.LifecycleStore using PostgreSQL.
type LifecycleStore struct {
	q querier
}

// NewLifecycleStore creates a new LifecycleStore.
func NewLifecycleStore(pool *Pool) *LifecycleStore {
	return &LifecycleStore{q: pool}
}

// Compile-time interface check.
var _ storage.LifecycleStore = (*LifecycleStore)(nil)

const lifecycleColumns = `
	id, account_id, symbol, direction,
	entry_price::TEXT, exit_price::TEXT,
	quantity::TEXT, opened_quantity::TEXT, closed_quantity::TEXT,
	realized_pnl::TEXT, fees::TEXT, funding_fees::TEXT, matched_income::TEXT,
	first_fill_id, first_fill_time, last_fill_time, hold_time_minutes, fill_count,
	result, state, incomplete, unmatched
`

// InsertBulk adds lifecycles in one batch, skipping IDs that already exist.
func (s *LifecycleStore) InsertBulk(ctx context.Context, lcs []*domain.TradeLifecycle) (int, error) {
	if len(lcs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO trade_lifecycles (
			id, account_id, symbol, direction, entry_price, exit_price,
			quantity, opened_quantity, closed_quantity,
			realized_pnl, fees, funding_fees, matched_income,
			first_fill_id, first_fill_time, last_fill_time, hold_time_minutes, fill_count,
			result, state, incomplete, unmatched
		) VALUES (
			$1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC,
			$7::NUMERIC, $8::NUMERIC, $9::NUMERIC,
			$10::NUMERIC, $11::NUMERIC, $12::NUMERIC, $13::NUMERIC,
			$14, $15, $16, $17, $18,
			$19, $20, $21, $22
		)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, lc := range lcs {
		var exit *string
		if lc.ExitPrice.Valid {
			v := lc.ExitPrice.Decimal.String()
			exit = &v
		}
		batch.Queue(query,
			lc.ID,
			lc.AccountID,
			lc.Symbol,
			string(lc.Direction),
			lc.EntryPrice.String(),
			exit,
			lc.Quantity.String(),
			lc.OpenedQuantity.String(),
			lc.ClosedQuantity.String(),
			lc.RealizedPnl.String(),
			lc.Fees.String(),
			lc.FundingFees.String(),
			lc.MatchedIncome.String(),
			lc.FirstFillID,
			lc.FirstFillTime,
			lc.LastFillTime,
			lc.HoldTimeMinutes,
			lc.FillCount,
			string(lc.Result),
			string(lc.State),
			lc.Incomplete,
			lc.Unmatched,
		)
	}

	br := s.q.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range lcs {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert lifecycle: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// GetByID retrieves a lifecycle by ID. Returns ErrNotFound if not exists.
func (s *LifecycleStore) GetByID(ctx context.Context, id string) (*domain.TradeLifecycle, error) {
	query := `SELECT ` + lifecycleColumns + ` FROM trade_lifecycles WHERE id = $1`

	lc, err := scanLifecycle(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get lifecycle by id: %w", err)
	}
	return lc, nil
}

// ListByAccount retrieves an account's lifecycles in canonical order.
func (s *LifecycleStore) ListByAccount(ctx context.Context, accountID string) ([]*domain.TradeLifecycle, error) {
	query := `SELECT ` + lifecycleColumns + `
		FROM trade_lifecycles
		WHERE account_id = $1
		ORDER BY first_fill_time ASC, symbol ASC, id ASC
	`

	rows, err := s.q.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list lifecycles: %w", err)
	}
	defer rows.Close()

	var out []*domain.TradeLifecycle
	for rows.Next() {
		lc, err := scanLifecycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lifecycle row: %w", err)
		}
		out = append(out, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lifecycle rows: %w", err)
	}
	return out, nil
}

func scanLifecycle(row pgx.Row) (*domain.TradeLifecycle, error) {
	var lc domain.TradeLifecycle
	var direction, result, state string
	var entry, qty, opened, closed, pnl, fees, funding, matched string
	var exit *string

	err := row.Scan(
		&lc.ID,
		&lc.AccountID,
		&lc.Symbol,
		&direction,
		&entry,
		&exit,
		&qty,
		&opened,
		&closed,
		&pnl,
		&fees,
		&funding,
		&matched,
		&lc.FirstFillID,
		&lc.FirstFillTime,
		&lc.LastFillTime,
		&lc.HoldTimeMinutes,
		&lc.FillCount,
		&result,
		&state,
		&lc.Incomplete,
		&lc.Unmatched,
	)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"entry_price", entry, &lc.EntryPrice},
		{"quantity", qty, &lc.Quantity},
		{"opened_quantity", opened, &lc.OpenedQuantity},
		{"closed_quantity", closed, &lc.ClosedQuantity},
		{"realized_pnl", pnl, &lc.RealizedPnl},
		{"fees", fees, &lc.Fees},
		{"funding_fees", funding, &lc.FundingFees},
		{"matched_income", matched, &lc.MatchedIncome},
	}
	for _, f := range fields {
		if *f.dst, err = parseDecimal(f.name, f.raw); err != nil {
			return nil, err
		}
	}
	if exit != nil {
		d, err := parseDecimal("exit_price", *exit)
		if err != nil {
			return nil, err
		}
		lc.ExitPrice = decimal.NewNullDecimal(d)
	}

	lc.Direction = domain.Direction(direction)
	lc.Result = domain.TradeResult(result)
	lc.State = domain.LifecycleState(state)
	return &lc, nil
}
