package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	q querier
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{q: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `
	account_id, to_char(snapshot_date, 'YYYY-MM-DD'), balance::TEXT,
	unrealized_pnl::TEXT, realized_pnl_today::TEXT, source, captured_at
`

// Upsert writes the snapshot for (account_id, date), replacing any existing row.
func (s *SnapshotStore) Upsert(ctx context.Context, snap *domain.BalanceSnapshot) error {
	if snap.AccountID == "" || snap.Date == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO balance_snapshots (
			account_id, snapshot_date, balance, unrealized_pnl, realized_pnl_today, source, captured_at
		) VALUES ($1, $2::DATE, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6, $7)
		ON CONFLICT (account_id, snapshot_date) DO UPDATE SET
			balance = EXCLUDED.balance,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			realized_pnl_today = EXCLUDED.realized_pnl_today,
			source = EXCLUDED.source,
			captured_at = EXCLUDED.captured_at,
			updated_at = NOW()
	`

	_, err := s.q.Exec(ctx, query,
		snap.AccountID,
		snap.Date,
		snap.Balance.String(),
		snap.UnrealizedPnl.String(),
		snap.RealizedPnlToday.String(),
		string(snap.Source),
		snap.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// CorrectBalance sets the balance to `to` only if the row still holds `from`.
func (s *SnapshotStore) CorrectBalance(ctx context.Context, accountID, date string, from, to decimal.Decimal) error {
	query := `
		UPDATE balance_snapshots
		SET balance = $4::NUMERIC, updated_at = NOW()
		WHERE account_id = $1 AND snapshot_date = $2::DATE AND balance = $3::NUMERIC
	`
	tag, err := s.q.Exec(ctx, query, accountID, date, from.String(), to.String())
	if err != nil {
		return fmt.Errorf("correct snapshot balance: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM balance_snapshots WHERE account_id = $1 AND snapshot_date = $2::DATE)`,
		accountID, date,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check snapshot: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrStale
}

// Get retrieves the snapshot for (account_id, date). Returns ErrNotFound if not exists.
func (s *SnapshotStore) Get(ctx context.Context, accountID, date string) (*domain.BalanceSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM balance_snapshots
		WHERE account_id = $1 AND snapshot_date = $2::DATE
	`
	return s.getOne(ctx, "get snapshot", query, accountID, date)
}

// GetLatest retrieves the most recent snapshot for an account.
func (s *SnapshotStore) GetLatest(ctx context.Context, accountID string) (*domain.BalanceSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM balance_snapshots
		WHERE account_id = $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`
	return s.getOne(ctx, "get latest snapshot", query, accountID)
}

// GetBefore retrieves the most recent snapshot strictly before date.
func (s *SnapshotStore) GetBefore(ctx context.Context, accountID, date string) (*domain.BalanceSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM balance_snapshots
		WHERE account_id = $1 AND snapshot_date < $2::DATE
		ORDER BY snapshot_date DESC
		LIMIT 1
	`
	return s.getOne(ctx, "get snapshot before", query, accountID, date)
}

// ListAccounts returns all account IDs with at least one snapshot, sorted ASC.
func (s *SnapshotStore) ListAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.q.Query(ctx, `SELECT DISTINCT account_id FROM balance_snapshots ORDER BY account_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, nil
}

func (s *SnapshotStore) getOne(ctx context.Context, op, query string, args ...any) (*domain.BalanceSnapshot, error) {
	snap, err := scanSnapshot(s.q.QueryRow(ctx, query, args...))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return snap, nil
}

func scanSnapshot(row pgx.Row) (*domain.BalanceSnapshot, error) {
	var snap domain.BalanceSnapshot
	var balance, unrealized, realized, source string

	err := row.Scan(
		&snap.AccountID,
		&snap.Date,
		&balance,
		&unrealized,
		&realized,
		&source,
		&snap.CapturedAt,
	)
	if err != nil {
		return nil, err
	}

	if snap.Balance, err = parseDecimal("balance", balance); err != nil {
		return nil, err
	}
	if snap.UnrealizedPnl, err = parseDecimal("unrealized_pnl", unrealized); err != nil {
		return nil, err
	}
	if snap.RealizedPnlToday, err = parseDecimal("realized_pnl_today", realized); err != nil {
		return nil, err
	}
	snap.Source = domain.SnapshotSource(source)
	return &snap, nil
}
