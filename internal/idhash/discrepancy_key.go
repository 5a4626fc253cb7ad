package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// ComputeDiscrepancyKey computes the idempotency key of a detected discrepancy.
// Formula: SHA256(discrepancy|account_id|snapshot_date|expected|actual)
// Amounts are normalized so that 1000.10 and 1000.1 hash identically.
func ComputeDiscrepancyKey(accountID, snapshotDate string, expected, actual decimal.Decimal) string {
	data := fmt.Sprintf("discrepancy|%s|%s|%s|%s",
		accountID,
		snapshotDate,
		expected.String(),
		actual.String(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
