package discrepancy

import (
	"fmt"

	"trade-reconciler/internal/storage"
)

// ErrAlreadyResolved is returned when resolving a record that is already resolved.
var ErrAlreadyResolved = storage.ErrAlreadyResolved

// DiscrepancyApplyError reports a failed balance correction. The record was
// left unresolved and the operation is safe to retry.
type DiscrepancyApplyError struct {
	DiscrepancyID string
	AccountID     string
	Date          string
	Err           error
}

func (e *DiscrepancyApplyError) Error() string {
	return fmt.Sprintf("apply fix for discrepancy %s (account %s, %s): %v", e.DiscrepancyID, e.AccountID, e.Date, e.Err)
}

func (e *DiscrepancyApplyError) Unwrap() error {
	return e.Err
}
