// Package redislock implements storage.AccountLocker on Redis so that runs for
// the same account are serialized across process instances.
package redislock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"trade-reconciler/internal/storage"
)

// DefaultTTL bounds how long a crashed holder can keep an account locked.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "reconciler:lock:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a SET NX PX lock per account.
type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLocker creates a Locker. A non-positive ttl uses DefaultTTL.
func NewLocker(rdb *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Locker{rdb: rdb, ttl: ttl}
}

// Compile-time interface check.
var _ storage.AccountLocker = (*Locker)(nil)

// Acquire takes the account lock. Returns storage.ErrConflict if it is held.
func (l *Locker) Acquire(ctx context.Context, accountID string) (func(), error) {
	key := keyPrefix + accountID
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", accountID, err)
	}
	if !ok {
		return nil, storage.ErrConflict
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// release must work after the run's context is cancelled
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
		})
	}
	return release, nil
}
