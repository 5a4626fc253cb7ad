package memory

import (
	"context"
	"sync"

	"trade-reconciler/internal/storage"
)

// Locker is an in-process storage.AccountLocker.
type Locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocker creates a new in-process account locker.
func NewLocker() *Locker {
	return &Locker{held: make(map[string]struct{})}
}

var _ storage.AccountLocker = (*Locker)(nil)

// Acquire takes the lock for accountID without waiting.
func (l *Locker) Acquire(_ context.Context, accountID string) (func(), error) {
	if accountID == "" {
		return nil, storage.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[accountID]; busy {
		return nil, storage.ErrConflict
	}
	l.held[accountID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, accountID)
			l.mu.Unlock()
		})
	}, nil
}
