package idhash

import (
	"testing"
)

func TestComputeLifecycleID(t *testing.T) {
	tests := []struct {
		name        string
		accountID   string
		symbol      string
		firstFillID string
		wantLen     int // hash length should be 64
	}{
		{
			name:        "long lifecycle",
			accountID:   "acc-1",
			symbol:      "BTCUSDT",
			firstFillID: "fill-0001",
			wantLen:     64,
		},
		{
			name:        "empty fill id",
			accountID:   "acc-1",
			symbol:      "ETHUSDT",
			firstFillID: "",
			wantLen:     64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeLifecycleID(tt.accountID, tt.symbol, tt.firstFillID)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeLifecycleID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeLifecycleID(tt.accountID, tt.symbol, tt.firstFillID)
			if got != got2 {
				t.Errorf("ComputeLifecycleID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeLifecycleID_DifferentInputs(t *testing.T) {
	base := ComputeLifecycleID("acc-1", "BTCUSDT", "f1")

	if base == ComputeLifecycleID("acc-2", "BTCUSDT", "f1") {
		t.Error("Different account should produce different hash")
	}
	if base == ComputeLifecycleID("acc-1", "ETHUSDT", "f1") {
		t.Error("Different symbol should produce different hash")
	}
	if base == ComputeLifecycleID("acc-1", "BTCUSDT", "f2") {
		t.Error("Different first fill should produce different hash")
	}
	// Separator must keep (a|bc) and (ab|c) apart
	if ComputeLifecycleID("acc-1", "a", "bc") == ComputeLifecycleID("acc-1", "ab", "c") {
		t.Error("Field boundaries should affect the hash")
	}
}
