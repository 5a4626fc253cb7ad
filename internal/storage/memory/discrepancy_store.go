package memory

import (
	"context"
	"sort"
	"sync"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

// DiscrepancyStore is an in-memory implementation of storage.DiscrepancyStore.
type DiscrepancyStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DiscrepancyRecord // keyed by id
}

// NewDiscrepancyStore creates a new in-memory discrepancy store.
func NewDiscrepancyStore() *DiscrepancyStore {
	return &DiscrepancyStore{
		data: make(map[string]*domain.DiscrepancyRecord),
	}
}

var _ storage.DiscrepancyStore = (*DiscrepancyStore)(nil)

func cloneRecord(d *domain.DiscrepancyRecord) *domain.DiscrepancyRecord {
	c := *d
	if d.ResolvedAt != nil {
		at := *d.ResolvedAt
		c.ResolvedAt = &at
	}
	return &c
}

// Insert adds a new record. Returns ErrDuplicateKey if id exists.
func (s *DiscrepancyStore) Insert(_ context.Context, d *domain.DiscrepancyRecord) error {
	if d == nil || d.ID == "" || d.AccountID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[d.ID] = cloneRecord(d)
	return nil
}

// GetByID retrieves a record by ID.
func (s *DiscrepancyStore) GetByID(_ context.Context, id string) (*domain.DiscrepancyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(d), nil
}

// Resolve transitions an unresolved record to resolved.
func (s *DiscrepancyStore) Resolve(_ context.Context, id string, method domain.ResolutionMethod, notes string, resolvedAt int64) error {
	_, err := s.resolve(id, method, notes, resolvedAt)
	return err
}

// resolve returns a copy of the record as it was before the transition.
func (s *DiscrepancyStore) resolve(id string, method domain.ResolutionMethod, notes string, resolvedAt int64) (*domain.DiscrepancyRecord, error) {
	if !method.Valid() {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if d.Resolved {
		return nil, storage.ErrAlreadyResolved
	}
	prev := cloneRecord(d)
	d.MarkResolved(method, notes, resolvedAt)
	return prev, nil
}

// replace sets the stored record for id. A nil d removes it.
func (s *DiscrepancyStore) replace(id string, d *domain.DiscrepancyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d == nil {
		delete(s.data, id)
		return
	}
	s.data[id] = d
}

// ListByAccount retrieves records ordered by detected_at ASC, id ASC.
func (s *DiscrepancyStore) ListByAccount(_ context.Context, accountID string, unresolvedOnly bool) ([]*domain.DiscrepancyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DiscrepancyRecord
	for _, d := range s.data {
		if accountID != "" && d.AccountID != accountID {
			continue
		}
		if unresolvedOnly && d.Resolved {
			continue
		}
		result = append(result, cloneRecord(d))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].DetectedAt != result[j].DetectedAt {
			return result[i].DetectedAt < result[j].DetectedAt
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
