package redislock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"trade-reconciler/internal/storage"
)

func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, rdb.Ping(ctx).Err())

	return rdb, func() {
		_ = rdb.Close()
		_ = container.Terminate(ctx)
	}
}

func TestLocker_ExclusivePerAccount(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	locker := NewLocker(rdb, time.Minute)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "acc-1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "acc-1")
	assert.ErrorIs(t, err, storage.ErrConflict)

	releaseOther, err := locker.Acquire(ctx, "acc-2")
	require.NoError(t, err)
	releaseOther()

	release()
	release()

	again, err := locker.Acquire(ctx, "acc-1")
	require.NoError(t, err)
	again()
}

func TestLocker_StaleReleaseDoesNotDropNewHolder(t *testing.T) {
	rdb, cleanup := setupRedis(t)
	defer cleanup()

	locker := NewLocker(rdb, 200*time.Millisecond)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "acc-1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := rdb.Exists(ctx, keyPrefix+"acc-1").Result()
		return err == nil && n == 0
	}, 5*time.Second, 50*time.Millisecond)

	current, err := NewLocker(rdb, time.Minute).Acquire(ctx, "acc-1")
	require.NoError(t, err)
	defer current()

	stale()

	_, err = locker.Acquire(ctx, "acc-1")
	assert.ErrorIs(t, err, storage.ErrConflict, "expired holder must not release the new lock")
}
