package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

type snapshotKey struct {
	accountID string
	date      string
}

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[snapshotKey]*domain.BalanceSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[snapshotKey]*domain.BalanceSnapshot),
	}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

func validSnapshot(s *domain.BalanceSnapshot) bool {
	return s != nil && s.AccountID != "" && s.Date != ""
}

// Upsert writes the snapshot for (account_id, date), last writer wins.
func (s *SnapshotStore) Upsert(_ context.Context, snap *domain.BalanceSnapshot) error {
	if !validSnapshot(snap) {
		return storage.ErrInvalidInput
	}
	s.put(snap)
	return nil
}

// put stores a copy of snap. Returns the value it replaced and the stored copy.
func (s *SnapshotStore) put(snap *domain.BalanceSnapshot) (prev, written *domain.BalanceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := snapshotKey{snap.AccountID, snap.Date}
	prev = s.data[k]
	c := *snap
	s.data[k] = &c
	return prev, &c
}

// restore puts back prev if the key still holds written. A later write by
// anyone else wins and is left alone. A nil prev removes the key.
func (s *SnapshotStore) restore(k snapshotKey, prev, written *domain.BalanceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[k] != written {
		return
	}
	if prev == nil {
		delete(s.data, k)
		return
	}
	s.data[k] = prev
}

// Get retrieves the snapshot for (account_id, date).
func (s *SnapshotStore) Get(_ context.Context, accountID, date string) (*domain.BalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[snapshotKey{accountID, date}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *snap
	return &c, nil
}

// GetLatest retrieves the most recent snapshot for an account.
func (s *SnapshotStore) GetLatest(_ context.Context, accountID string) (*domain.BalanceSnapshot, error) {
	return s.latest(accountID, func(string) bool { return true })
}

// GetBefore retrieves the most recent snapshot strictly before date.
func (s *SnapshotStore) GetBefore(_ context.Context, accountID, date string) (*domain.BalanceSnapshot, error) {
	return s.latest(accountID, func(d string) bool { return d < date })
}

func (s *SnapshotStore) latest(accountID string, keep func(date string) bool) (*domain.BalanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.BalanceSnapshot
	for k, snap := range s.data {
		if k.accountID != accountID || !keep(k.date) {
			continue
		}
		if best == nil || k.date > best.Date {
			best = snap
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	c := *best
	return &c, nil
}

// CorrectBalance sets the balance to `to` if it still equals `from`.
func (s *SnapshotStore) CorrectBalance(_ context.Context, accountID, date string, from, to decimal.Decimal) error {
	_, _, err := s.correct(snapshotKey{accountID, date}, from, to)
	return err
}

// correct swaps the stored value for a corrected copy. Returns the value it
// replaced and the stored copy, like put.
func (s *SnapshotStore) correct(k snapshotKey, from, to decimal.Decimal) (prev, written *domain.BalanceSnapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.data[k]
	if !ok {
		return nil, nil, storage.ErrNotFound
	}
	if !prev.Balance.Equal(from) {
		return nil, nil, storage.ErrStale
	}
	c := *prev
	c.Balance = to
	s.data[k] = &c
	return prev, &c, nil
}

// ListAccounts returns all account IDs with at least one snapshot, sorted ASC.
func (s *SnapshotStore) ListAccounts(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.data {
		seen[k.accountID] = struct{}{}
	}
	accounts := make([]string, 0, len(seen))
	for a := range seen {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)
	return accounts, nil
}
