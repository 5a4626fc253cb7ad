package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

func record(id, account string, detectedAt int64) *domain.DiscrepancyRecord {
	return &domain.DiscrepancyRecord{
		ID:              id,
		AccountID:       account,
		SnapshotDate:    "2025-01-02",
		ExpectedBalance: decimal.RequireFromString("1000.02"),
		ActualBalance:   decimal.RequireFromString("1000"),
		Discrepancy:     decimal.RequireFromString("-0.02"),
		DetectedAt:      detectedAt,
	}
}

func TestDiscrepancyStore_ResolveIsOneWay(t *testing.T) {
	store := NewDiscrepancyStore()
	ctx := context.Background()

	if err := store.Insert(ctx, record("d1", "acc1", 10)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Resolve(ctx, "d1", domain.ResolutionIgnored, "rounding", 20); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "d1")
	if !got.Resolved || got.ResolvedAt == nil || *got.ResolvedAt != 20 {
		t.Errorf("record not resolved: %+v", got)
	}
	if got.ResolutionMethod != domain.ResolutionIgnored {
		t.Errorf("ResolutionMethod: got %s", got.ResolutionMethod)
	}

	err := store.Resolve(ctx, "d1", domain.ResolutionManual, "", 30)
	if !errors.Is(err, storage.ErrAlreadyResolved) {
		t.Errorf("Expected ErrAlreadyResolved, got %v", err)
	}

	err = store.Resolve(ctx, "missing", domain.ResolutionManual, "", 30)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDiscrepancyStore_DuplicateKey(t *testing.T) {
	store := NewDiscrepancyStore()
	ctx := context.Background()

	_ = store.Insert(ctx, record("d1", "acc1", 10))
	if err := store.Insert(ctx, record("d1", "acc1", 10)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestDiscrepancyStore_ListByAccount(t *testing.T) {
	store := NewDiscrepancyStore()
	ctx := context.Background()

	_ = store.Insert(ctx, record("b", "acc1", 10))
	_ = store.Insert(ctx, record("a", "acc1", 10))
	_ = store.Insert(ctx, record("c", "acc1", 5))
	_ = store.Insert(ctx, record("x", "acc2", 1))
	_ = store.Resolve(ctx, "c", domain.ResolutionAuto, "", 11)

	all, _ := store.ListByAccount(ctx, "acc1", false)
	if len(all) != 3 || all[0].ID != "c" || all[1].ID != "a" || all[2].ID != "b" {
		t.Errorf("unexpected order: %v", ids(all))
	}

	open, _ := store.ListByAccount(ctx, "acc1", true)
	if len(open) != 2 {
		t.Errorf("expected 2 unresolved, got %d", len(open))
	}

	every, _ := store.ListByAccount(ctx, "", false)
	if len(every) != 4 {
		t.Errorf("expected 4 records across accounts, got %d", len(every))
	}
}

func ids(records []*domain.DiscrepancyRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
