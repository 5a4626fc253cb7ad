package postgres

import (
	"context"
	"fmt"
	"time"

	"trade-reconciler/internal/observability"
	"trade-reconciler/internal/storage"
)

// Gateway implements storage.Gateway on a Postgres pool.
// Account transactions are serialized with a transaction-scoped advisory lock
// keyed by hashtext(account_id).
type Gateway struct {
	pool *Pool
	stores
}

// NewGateway creates a new Gateway.
func NewGateway(pool *Pool) *Gateway {
	return &Gateway{pool: pool, stores: newStores(pool)}
}

// Compile-time interface check.
var _ storage.Gateway = (*Gateway)(nil)

// WithinAccountTx runs fn in one transaction holding the account's advisory lock.
// Returns ErrConflict without calling fn if another transaction holds the lock.
func (g *Gateway) WithinAccountTx(ctx context.Context, accountID string, fn func(tx storage.Tx) error) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "account_tx", time.Since(start).Seconds(), err)
	}()

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin account tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, accountID).Scan(&locked); err != nil {
		return fmt.Errorf("acquire account lock: %w", err)
	}
	if !locked {
		return storage.ErrConflict
	}

	if err := fn(newStores(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account tx: %w", err)
	}
	return nil
}

// stores binds one store of each kind to the same querier.
type stores struct {
	snapshots     *SnapshotStore
	discrepancies *DiscrepancyStore
	lifecycles    *LifecycleStore
	idempotency   *IdempotencyStore
}

func newStores(q querier) stores {
	return stores{
		snapshots:     &SnapshotStore{q: q},
		discrepancies: &DiscrepancyStore{q: q},
		lifecycles:    &LifecycleStore{q: q},
		idempotency:   &IdempotencyStore{q: q},
	}
}

func (s stores) Snapshots() storage.SnapshotStore        { return s.snapshots }
func (s stores) Discrepancies() storage.DiscrepancyStore { return s.discrepancies }
func (s stores) Lifecycles() storage.LifecycleStore      { return s.lifecycles }
func (s stores) Idempotency() storage.IdempotencyStore   { return s.idempotency }
