package orchestrator

import "fmt"

// PersistenceConflictError reports that another run holds the account.
// Nothing was written; the run is safe to retry.
type PersistenceConflictError struct {
	AccountID string
	Err       error
}

func (e *PersistenceConflictError) Error() string {
	return fmt.Sprintf("account %s: concurrent run in progress: %v", e.AccountID, e.Err)
}

func (e *PersistenceConflictError) Unwrap() error {
	return e.Err
}
