package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

func discrepancyRecord(acc string, detectedAt int64) *domain.DiscrepancyRecord {
	return &domain.DiscrepancyRecord{
		ID:              uuid.NewString(),
		AccountID:       acc,
		SnapshotDate:    "2025-01-02",
		ExpectedBalance: decimal.RequireFromString("1030.00"),
		ActualBalance:   decimal.RequireFromString("1029.98"),
		Discrepancy:     decimal.RequireFromString("-0.02"),
		DetectedAt:      detectedAt,
	}
}

func TestDiscrepancyStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDiscrepancyStore(pool)
	ctx := context.Background()

	rec := discrepancyRecord("acc-1", 1000)
	require.NoError(t, store.Insert(ctx, rec))

	got, err := store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "2025-01-02", got.SnapshotDate)
	assert.True(t, got.Discrepancy.Equal(decimal.RequireFromString("-0.02")))
	assert.False(t, got.Resolved)
	assert.Nil(t, got.ResolvedAt)
	assert.Empty(t, got.ResolutionMethod)

	err = store.Insert(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDiscrepancyStore_ResolveIsOneWay(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDiscrepancyStore(pool)
	ctx := context.Background()

	rec := discrepancyRecord("acc-1", 1000)
	require.NoError(t, store.Insert(ctx, rec))

	require.NoError(t, store.Resolve(ctx, rec.ID, domain.ResolutionManual, "checked statement", 2000))

	got, err := store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, int64(2000), *got.ResolvedAt)
	assert.Equal(t, domain.ResolutionManual, got.ResolutionMethod)
	assert.Equal(t, "checked statement", got.ResolutionNotes)

	err = store.Resolve(ctx, rec.ID, domain.ResolutionIgnored, "", 3000)
	assert.ErrorIs(t, err, storage.ErrAlreadyResolved)

	err = store.Resolve(ctx, uuid.NewString(), domain.ResolutionIgnored, "", 3000)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDiscrepancyStore_ListByAccount(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDiscrepancyStore(pool)
	ctx := context.Background()

	a2 := discrepancyRecord("acc-1", 2000)
	a1 := discrepancyRecord("acc-1", 1000)
	b1 := discrepancyRecord("acc-2", 1500)
	for _, r := range []*domain.DiscrepancyRecord{a2, a1, b1} {
		require.NoError(t, store.Insert(ctx, r))
	}
	require.NoError(t, store.Resolve(ctx, a1.ID, domain.ResolutionIgnored, "", 3000))

	all, err := store.ListByAccount(ctx, "acc-1", false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a1.ID, all[0].ID)
	assert.Equal(t, a2.ID, all[1].ID)

	open, err := store.ListByAccount(ctx, "acc-1", true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a2.ID, open[0].ID)

	everyone, err := store.ListByAccount(ctx, "", true)
	require.NoError(t, err)
	assert.Len(t, everyone, 2)
}
