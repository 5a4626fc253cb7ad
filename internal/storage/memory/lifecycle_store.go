package memory

import (
	"context"
	"sort"
	"sync"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

// LifecycleStore is an in-memory implementation of storage.LifecycleStore.
type LifecycleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeLifecycle // keyed by lifecycle id
}

// NewLifecycleStore creates a new in-memory lifecycle store.
func NewLifecycleStore() *LifecycleStore {
	return &LifecycleStore{
		data: make(map[string]*domain.TradeLifecycle),
	}
}

var _ storage.LifecycleStore = (*LifecycleStore)(nil)

// InsertBulk adds lifecycles, skipping IDs that already exist.
func (s *LifecycleStore) InsertBulk(_ context.Context, lcs []*domain.TradeLifecycle) (int, error) {
	ids, err := s.insertBulk(lcs)
	return len(ids), err
}

// insertBulk validates the whole batch first and returns the IDs it inserted.
func (s *LifecycleStore) insertBulk(lcs []*domain.TradeLifecycle) ([]string, error) {
	for _, lc := range lcs {
		if lc == nil || lc.ID == "" || lc.AccountID == "" {
			return nil, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted []string
	for _, lc := range lcs {
		if _, exists := s.data[lc.ID]; exists {
			continue
		}
		c := *lc
		s.data[lc.ID] = &c
		inserted = append(inserted, lc.ID)
	}
	return inserted, nil
}

func (s *LifecycleStore) remove(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.data, id)
	}
}

// GetByID retrieves a lifecycle by ID.
func (s *LifecycleStore) GetByID(_ context.Context, id string) (*domain.TradeLifecycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lc, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *lc
	return &c, nil
}

// ListByAccount retrieves an account's lifecycles ordered by first_fill_time ASC, symbol ASC, id ASC.
func (s *LifecycleStore) ListByAccount(_ context.Context, accountID string) ([]*domain.TradeLifecycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeLifecycle
	for _, lc := range s.data {
		if lc.AccountID == accountID {
			c := *lc
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.FirstFillTime != b.FirstFillTime {
			return a.FirstFillTime < b.FirstFillTime
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.ID < b.ID
	})
	return result, nil
}
