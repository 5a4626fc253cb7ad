package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

// Gateway is an in-memory implementation of storage.Gateway.
//
// Writes made inside WithinAccountTx are journaled and undone in reverse
// order if fn fails, panics or the context is cancelled, so only the keys the
// transaction touched are rolled back.
type Gateway struct {
	snapshots     *SnapshotStore
	discrepancies *DiscrepancyStore
	lifecycles    *LifecycleStore
	idempotency   *IdempotencyStore

	mu     sync.Mutex
	active map[string]struct{}
}

// NewGateway creates a gateway over fresh in-memory stores.
func NewGateway() *Gateway {
	return &Gateway{
		snapshots:     NewSnapshotStore(),
		discrepancies: NewDiscrepancyStore(),
		lifecycles:    NewLifecycleStore(),
		idempotency:   NewIdempotencyStore(),
		active:        make(map[string]struct{}),
	}
}

var _ storage.Gateway = (*Gateway)(nil)

func (g *Gateway) Snapshots() storage.SnapshotStore        { return g.snapshots }
func (g *Gateway) Discrepancies() storage.DiscrepancyStore { return g.discrepancies }
func (g *Gateway) Lifecycles() storage.LifecycleStore      { return g.lifecycles }
func (g *Gateway) Idempotency() storage.IdempotencyStore   { return g.idempotency }

// WithinAccountTx runs fn as one atomic unit for accountID.
func (g *Gateway) WithinAccountTx(ctx context.Context, accountID string, fn func(tx storage.Tx) error) (err error) {
	if accountID == "" {
		return storage.ErrInvalidInput
	}

	g.mu.Lock()
	if _, busy := g.active[accountID]; busy {
		g.mu.Unlock()
		return storage.ErrConflict
	}
	g.active[accountID] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.active, accountID)
		g.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{g: g}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memTx records an undo step for every write.
type memTx struct {
	g    *Gateway
	mu   sync.Mutex
	undo []func()
}

func (t *memTx) push(f func()) {
	t.mu.Lock()
	t.undo = append(t.undo, f)
	t.mu.Unlock()
}

func (t *memTx) rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) Snapshots() storage.SnapshotStore {
	return &txSnapshots{SnapshotStore: t.g.snapshots, tx: t}
}

func (t *memTx) Discrepancies() storage.DiscrepancyStore {
	return &txDiscrepancies{DiscrepancyStore: t.g.discrepancies, tx: t}
}

func (t *memTx) Lifecycles() storage.LifecycleStore {
	return &txLifecycles{LifecycleStore: t.g.lifecycles, tx: t}
}

func (t *memTx) Idempotency() storage.IdempotencyStore {
	return &txIdempotency{IdempotencyStore: t.g.idempotency, tx: t}
}

type txSnapshots struct {
	*SnapshotStore
	tx *memTx
}

func (s *txSnapshots) Upsert(_ context.Context, snap *domain.BalanceSnapshot) error {
	if !validSnapshot(snap) {
		return storage.ErrInvalidInput
	}
	k := snapshotKey{snap.AccountID, snap.Date}
	prev, written := s.put(snap)
	s.tx.push(func() { s.restore(k, prev, written) })
	return nil
}

func (s *txSnapshots) CorrectBalance(_ context.Context, accountID, date string, from, to decimal.Decimal) error {
	k := snapshotKey{accountID, date}
	prev, written, err := s.correct(k, from, to)
	if err != nil {
		return err
	}
	s.tx.push(func() { s.restore(k, prev, written) })
	return nil
}

type txDiscrepancies struct {
	*DiscrepancyStore
	tx *memTx
}

func (s *txDiscrepancies) Insert(ctx context.Context, d *domain.DiscrepancyRecord) error {
	if err := s.DiscrepancyStore.Insert(ctx, d); err != nil {
		return err
	}
	id := d.ID
	s.tx.push(func() { s.replace(id, nil) })
	return nil
}

func (s *txDiscrepancies) Resolve(_ context.Context, id string, method domain.ResolutionMethod, notes string, resolvedAt int64) error {
	prev, err := s.resolve(id, method, notes, resolvedAt)
	if err != nil {
		return err
	}
	s.tx.push(func() { s.replace(id, prev) })
	return nil
}

type txLifecycles struct {
	*LifecycleStore
	tx *memTx
}

func (s *txLifecycles) InsertBulk(_ context.Context, lcs []*domain.TradeLifecycle) (int, error) {
	ids, err := s.insertBulk(lcs)
	if err != nil {
		return 0, err
	}
	s.tx.push(func() { s.remove(ids) })
	return len(ids), nil
}

type txIdempotency struct {
	*IdempotencyStore
	tx *memTx
}

func (s *txIdempotency) Claim(ctx context.Context, scope, key string) (bool, error) {
	claimed, err := s.IdempotencyStore.Claim(ctx, scope, key)
	if err != nil || !claimed {
		return claimed, err
	}
	s.tx.push(func() { s.release(scope, key) })
	return true, nil
}
