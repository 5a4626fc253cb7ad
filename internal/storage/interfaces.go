package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
)

// SnapshotStore provides access to balance_snapshots storage.
type SnapshotStore interface {
	// Upsert writes the snapshot for (account_id, date). A later write for the
	// same key overwrites the earlier one.
	Upsert(ctx context.Context, s *domain.BalanceSnapshot) error

	// Get retrieves the snapshot for (account_id, date). Returns ErrNotFound if not exists.
	Get(ctx context.Context, accountID, date string) (*domain.BalanceSnapshot, error)

	// GetLatest retrieves the most recent snapshot for an account. Returns ErrNotFound if none.
	GetLatest(ctx context.Context, accountID string) (*domain.BalanceSnapshot, error)

	// GetBefore retrieves the most recent snapshot strictly before date. Returns ErrNotFound if none.
	GetBefore(ctx context.Context, accountID, date string) (*domain.BalanceSnapshot, error)

	// ListAccounts returns all account IDs with at least one snapshot, sorted ASC.
	ListAccounts(ctx context.Context) ([]string, error)

	// CorrectBalance sets the balance of (account_id, date) to `to` only if it
	// still equals `from`. Other fields are kept. Returns ErrNotFound if the
	// row does not exist and ErrStale if the balance no longer equals from.
	CorrectBalance(ctx context.Context, accountID, date string, from, to decimal.Decimal) error
}

// DiscrepancyStore provides access to discrepancy_records storage.
// Records are never deleted.
type DiscrepancyStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, d *domain.DiscrepancyRecord) error

	// GetByID retrieves a record by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.DiscrepancyRecord, error)

	// Resolve transitions an unresolved record to resolved.
	// Returns ErrNotFound or ErrAlreadyResolved.
	Resolve(ctx context.Context, id string, method domain.ResolutionMethod, notes string, resolvedAt int64) error

	// ListByAccount retrieves records for an account ordered by detected_at ASC, id ASC.
	// An empty accountID lists all accounts.
	ListByAccount(ctx context.Context, accountID string, unresolvedOnly bool) ([]*domain.DiscrepancyRecord, error)
}

// LifecycleStore provides access to trade_lifecycles storage.
// Append-only: rows are keyed by the deterministic lifecycle ID.
type LifecycleStore interface {
	// InsertBulk adds lifecycles, skipping IDs that already exist.
	// Returns the number of rows actually inserted.
	InsertBulk(ctx context.Context, lcs []*domain.TradeLifecycle) (int, error)

	// GetByID retrieves a lifecycle by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TradeLifecycle, error)

	// ListByAccount retrieves an account's lifecycles ordered by first_fill_time ASC, symbol ASC, id ASC.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.TradeLifecycle, error)
}

// IdempotencyStore is a persisted set of processed keys.
// Restarted processes see every key claimed before the restart.
type IdempotencyStore interface {
	// Claim records key under scope. Returns false if the key was already claimed.
	Claim(ctx context.Context, scope, key string) (bool, error)

	// Seen reports whether key has been claimed under scope.
	Seen(ctx context.Context, scope, key string) (bool, error)
}

// RunReportStore provides access to the reconciliation run history.
type RunReportStore interface {
	// Insert appends a run report. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunReport) error

	// ListByAccount retrieves the newest reports for an account, newest first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.RunReport, error)
}

// Tx is the set of stores available inside one account transaction.
type Tx interface {
	Snapshots() SnapshotStore
	Discrepancies() DiscrepancyStore
	Lifecycles() LifecycleStore
	Idempotency() IdempotencyStore
}

// Gateway is the only writer of durable state.
//
// The embedded Tx stores run outside any transaction (single statement
// atomicity). WithinAccountTx runs fn as one atomic unit for accountID: either
// every write fn made is committed or none is. A concurrent holder of the same
// account makes WithinAccountTx fail with ErrConflict without calling fn.
type Gateway interface {
	Tx
	WithinAccountTx(ctx context.Context, accountID string, fn func(tx Tx) error) error
}

// AccountLocker serializes whole runs per account.
type AccountLocker interface {
	// Acquire takes the lock for accountID. Returns ErrConflict if it is held.
	// The returned release func is safe to call more than once.
	Acquire(ctx context.Context, accountID string) (release func(), err error)
}
