package memory

import (
	"context"
	"sync"

	"trade-reconciler/internal/storage"
)

// IdempotencyStore is an in-memory implementation of storage.IdempotencyStore.
type IdempotencyStore struct {
	mu   sync.RWMutex
	keys map[string]map[string]struct{} // scope -> keys
}

// NewIdempotencyStore creates a new in-memory idempotency store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		keys: make(map[string]map[string]struct{}),
	}
}

var _ storage.IdempotencyStore = (*IdempotencyStore)(nil)

// Claim records key under scope. Returns false if already claimed.
func (s *IdempotencyStore) Claim(_ context.Context, scope, key string) (bool, error) {
	if scope == "" || key == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.keys[scope]
	if !ok {
		set = make(map[string]struct{})
		s.keys[scope] = set
	}
	if _, exists := set[key]; exists {
		return false, nil
	}
	set[key] = struct{}{}
	return true, nil
}

// Seen reports whether key has been claimed under scope.
func (s *IdempotencyStore) Seen(_ context.Context, scope, key string) (bool, error) {
	if scope == "" || key == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.keys[scope][key]
	return exists, nil
}

func (s *IdempotencyStore) release(scope, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys[scope], key)
}
