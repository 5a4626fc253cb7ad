package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

func snap(account, date, balance string) *domain.BalanceSnapshot {
	return &domain.BalanceSnapshot{
		AccountID: account,
		Date:      date,
		Balance:   decimal.RequireFromString(balance),
		Source:    domain.SourceExchange,
	}
}

func TestSnapshotStore_UpsertOverwritesSameDay(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, snap("acc1", "2025-01-01", "1000")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, snap("acc1", "2025-01-01", "1010")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "acc1", "2025-01-01")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(1010)) {
		t.Errorf("Balance mismatch: got %s, want 1010", got.Balance)
	}
}

func TestSnapshotStore_GetBeforeAndLatest(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	for _, s := range []*domain.BalanceSnapshot{
		snap("acc1", "2025-01-01", "100"),
		snap("acc1", "2025-01-03", "300"),
		snap("acc1", "2025-01-02", "200"),
		snap("acc2", "2025-01-05", "500"),
	} {
		if err := store.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	latest, err := store.GetLatest(ctx, "acc1")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if latest.Date != "2025-01-03" {
		t.Errorf("GetLatest date: got %s, want 2025-01-03", latest.Date)
	}

	prior, err := store.GetBefore(ctx, "acc1", "2025-01-03")
	if err != nil {
		t.Fatalf("GetBefore failed: %v", err)
	}
	if prior.Date != "2025-01-02" {
		t.Errorf("GetBefore date: got %s, want 2025-01-02", prior.Date)
	}

	_, err = store.GetBefore(ctx, "acc1", "2025-01-01")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	accounts, _ := store.ListAccounts(ctx)
	if len(accounts) != 2 || accounts[0] != "acc1" || accounts[1] != "acc2" {
		t.Errorf("ListAccounts: got %v", accounts)
	}
}

func TestSnapshotStore_ReturnsCopies(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	s := snap("acc1", "2025-01-01", "100")
	_ = store.Upsert(ctx, s)
	s.Balance = decimal.NewFromInt(999)

	got, _ := store.Get(ctx, "acc1", "2025-01-01")
	got.Balance = decimal.NewFromInt(1)

	again, _ := store.Get(ctx, "acc1", "2025-01-01")
	if !again.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("store leaked a mutable reference: %s", again.Balance)
	}
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	store := NewSnapshotStore()
	err := store.Upsert(context.Background(), &domain.BalanceSnapshot{Date: "2025-01-01"})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestSnapshotStore_CorrectBalance(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, snap("acc1", "2025-01-02", "990")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := store.CorrectBalance(ctx, "acc1", "2025-01-02", decimal.RequireFromString("980"), decimal.RequireFromString("1000")); !errors.Is(err, storage.ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}
	if err := store.CorrectBalance(ctx, "acc1", "2025-01-03", decimal.RequireFromString("990"), decimal.RequireFromString("1000")); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.CorrectBalance(ctx, "acc1", "2025-01-02", decimal.RequireFromString("990.00"), decimal.RequireFromString("1000")); err != nil {
		t.Fatalf("CorrectBalance failed: %v", err)
	}

	got, _ := store.Get(ctx, "acc1", "2025-01-02")
	if !got.Balance.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("balance = %s, want 1000", got.Balance)
	}
	if got.Source != domain.SourceExchange {
		t.Errorf("source = %s, want exchange", got.Source)
	}
}
