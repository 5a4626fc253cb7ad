package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeLifecycleID computes a deterministic lifecycle id using SHA256.
// Formula: SHA256(account_id|symbol|first_fill_external_id)
// Fill ids are only unique per account, so the account is part of the id.
// Returns hex-encoded hash (64 characters).
func ComputeLifecycleID(accountID, symbol, firstFillExternalID string) string {
	data := fmt.Sprintf("%s|%s|%s", accountID, symbol, firstFillExternalID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
