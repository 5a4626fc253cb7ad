package memory

import (
	"context"
	"sort"
	"sync"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

// RunReportStore is an in-memory implementation of storage.RunReportStore.
type RunReportStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunReport // keyed by run_id
}

// NewRunReportStore creates a new in-memory run report store.
func NewRunReportStore() *RunReportStore {
	return &RunReportStore{
		data: make(map[string]*domain.RunReport),
	}
}

var _ storage.RunReportStore = (*RunReportStore)(nil)

// Insert appends a run report. Returns ErrDuplicateKey if run_id exists.
func (s *RunReportStore) Insert(_ context.Context, r *domain.RunReport) error {
	if r == nil || r.RunID == "" || r.AccountID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	c := *r
	s.data[r.RunID] = &c
	return nil
}

// ListByAccount retrieves the newest reports for an account, newest first.
func (s *RunReportStore) ListByAccount(_ context.Context, accountID string, limit int) ([]*domain.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunReport
	for _, r := range s.data {
		if r.AccountID == accountID {
			c := *r
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt != result[j].StartedAt {
			return result[i].StartedAt > result[j].StartedAt
		}
		return result[i].RunID > result[j].RunID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
