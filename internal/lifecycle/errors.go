package lifecycle

import (
	"errors"
	"fmt"
)

// InvalidExecutionError reports an execution with a non-positive quantity or
// price. The execution is skipped and the affected lifecycle is marked incomplete.
type InvalidExecutionError struct {
	ExternalID string
	Symbol     string
	Reason     string
}

func (e *InvalidExecutionError) Error() string {
	return fmt.Sprintf("invalid execution %s (%s): %s", e.ExternalID, e.Symbol, e.Reason)
}

// IsInvalidExecution reports whether err is an *InvalidExecutionError.
func IsInvalidExecution(err error) bool {
	var e *InvalidExecutionError
	return errors.As(err, &e)
}
