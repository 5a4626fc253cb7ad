package postgres

import (
	"context"
	"fmt"

	"trade-reconciler/internal/storage"
)

// IdempotencyStore implements storage.IdempotencyStore using PostgreSQL.
type IdempotencyStore struct {
	q querier
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(pool *Pool) *IdempotencyStore {
	return &IdempotencyStore{q: pool}
}

// Compile-time interface check.
var _ storage.IdempotencyStore = (*IdempotencyStore)(nil)

// Claim records key under scope. Returns false if the key was already claimed.
func (s *IdempotencyStore) Claim(ctx context.Context, scope, key string) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO idempotency_keys (scope, key)
		VALUES ($1, $2)
		ON CONFLICT (scope, key) DO NOTHING
	`, scope, key)
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Seen reports whether key has been claimed under scope.
func (s *IdempotencyStore) Seen(ctx context.Context, scope, key string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM idempotency_keys WHERE scope = $1 AND key = $2)
	`, scope, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return exists, nil
}
