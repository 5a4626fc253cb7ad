package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

func TestGateway_CommitKeepsWrites(t *testing.T) {
	gw := NewGateway()
	ctx := context.Background()

	err := gw.WithinAccountTx(ctx, "acc1", func(tx storage.Tx) error {
		if err := tx.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "100")); err != nil {
			return err
		}
		if err := tx.Discrepancies().Insert(ctx, record("d1", "acc1", 1)); err != nil {
			return err
		}
		n, err := tx.Lifecycles().InsertBulk(ctx, []*domain.TradeLifecycle{{ID: "l1", AccountID: "acc1"}})
		if n != 1 {
			t.Errorf("InsertBulk inserted %d, want 1", n)
		}
		return err
	})
	if err != nil {
		t.Fatalf("WithinAccountTx failed: %v", err)
	}

	if _, err := gw.Snapshots().Get(ctx, "acc1", "2025-01-01"); err != nil {
		t.Errorf("snapshot missing after commit: %v", err)
	}
	if _, err := gw.Discrepancies().GetByID(ctx, "d1"); err != nil {
		t.Errorf("discrepancy missing after commit: %v", err)
	}
	if _, err := gw.Lifecycles().GetByID(ctx, "l1"); err != nil {
		t.Errorf("lifecycle missing after commit: %v", err)
	}
}

func TestGateway_RollbackRestoresPriorState(t *testing.T) {
	gw := NewGateway()
	ctx := context.Background()

	_ = gw.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "100"))
	_ = gw.Discrepancies().Insert(ctx, record("d0", "acc1", 1))

	boom := errors.New("boom")
	err := gw.WithinAccountTx(ctx, "acc1", func(tx storage.Tx) error {
		_ = tx.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "150"))
		_ = tx.Snapshots().Upsert(ctx, snap("acc1", "2025-01-02", "200"))
		_ = tx.Discrepancies().Insert(ctx, record("d1", "acc1", 2))
		_ = tx.Discrepancies().Resolve(ctx, "d0", domain.ResolutionAuto, "", 3)
		_, _ = tx.Lifecycles().InsertBulk(ctx, []*domain.TradeLifecycle{{ID: "l1", AccountID: "acc1"}})
		_, _ = tx.Idempotency().Claim(ctx, "discrepancy", "k1")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	s, _ := gw.Snapshots().Get(ctx, "acc1", "2025-01-01")
	if !s.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("snapshot not rolled back: %s", s.Balance)
	}
	if _, err := gw.Snapshots().Get(ctx, "acc1", "2025-01-02"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("new snapshot survived rollback: %v", err)
	}
	if _, err := gw.Discrepancies().GetByID(ctx, "d1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("inserted discrepancy survived rollback: %v", err)
	}
	d0, _ := gw.Discrepancies().GetByID(ctx, "d0")
	if d0.Resolved {
		t.Error("resolution survived rollback")
	}
	if _, err := gw.Lifecycles().GetByID(ctx, "l1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("lifecycle survived rollback: %v", err)
	}
	if seen, _ := gw.Idempotency().Seen(ctx, "discrepancy", "k1"); seen {
		t.Error("idempotency key survived rollback")
	}
}

func TestGateway_RollbackKeepsConcurrentCapture(t *testing.T) {
	gw := NewGateway()
	ctx := context.Background()

	_ = gw.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "100"))

	boom := errors.New("boom")
	err := gw.WithinAccountTx(ctx, "acc1", func(tx storage.Tx) error {
		_ = tx.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "101"))
		// manual capture outside the account transaction
		_ = gw.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "500"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := gw.Snapshots().Get(ctx, "acc1", "2025-01-01")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Balance.Equal(decimal.RequireFromString("500")) {
		t.Errorf("balance = %s, want the capture 500 to survive rollback", got.Balance)
	}
}

func TestGateway_RollbackOfRepeatedWrites(t *testing.T) {
	gw := NewGateway()
	ctx := context.Background()

	_ = gw.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "100"))

	_ = gw.WithinAccountTx(ctx, "acc1", func(tx storage.Tx) error {
		_ = tx.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "101"))
		_ = tx.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "102"))
		return errors.New("boom")
	})

	got, _ := gw.Snapshots().Get(ctx, "acc1", "2025-01-01")
	if got == nil || !got.Balance.Equal(decimal.RequireFromString("100")) {
		t.Errorf("balance after rollback = %v, want 100", got)
	}
}

func TestGateway_ConcurrentSameAccountConflicts(t *testing.T) {
	gw := NewGateway()
	ctx := context.Background()

	err := gw.WithinAccountTx(ctx, "acc1", func(storage.Tx) error {
		inner := gw.WithinAccountTx(ctx, "acc1", func(storage.Tx) error { return nil })
		if !errors.Is(inner, storage.ErrConflict) {
			t.Errorf("Expected ErrConflict, got %v", inner)
		}
		return gw.WithinAccountTx(ctx, "acc2", func(storage.Tx) error { return nil })
	})
	if err != nil {
		t.Fatalf("outer tx failed: %v", err)
	}

	if err := gw.WithinAccountTx(ctx, "acc1", func(storage.Tx) error { return nil }); err != nil {
		t.Errorf("account not released after tx: %v", err)
	}
}

func TestGateway_CancelledContextRollsBack(t *testing.T) {
	gw := NewGateway()
	ctx, cancel := context.WithCancel(context.Background())

	err := gw.WithinAccountTx(ctx, "acc1", func(tx storage.Tx) error {
		_ = tx.Snapshots().Upsert(ctx, snap("acc1", "2025-01-01", "100"))
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := gw.Snapshots().Get(context.Background(), "acc1", "2025-01-01"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("write survived cancellation: %v", err)
	}
}

func TestLocker_AcquireRelease(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "acc1")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := l.Acquire(ctx, "acc1"); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("Expected ErrConflict, got %v", err)
	}
	release()
	release()

	if _, err := l.Acquire(ctx, "acc1"); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}
