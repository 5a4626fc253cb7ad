package ingestion

import (
	"errors"
	"fmt"
	"time"
)

// ErrPageLimit is returned when the upstream still has pages after MaxPages were read.
var ErrPageLimit = errors.New("upstream page limit reached")

// ErrEmptyPage is returned when a source yields neither a page nor an error.
var ErrEmptyPage = errors.New("upstream returned no page")

// UpstreamTimeoutError reports a fetch that did not finish within its deadline.
// Everything fetched so far is discarded.
type UpstreamTimeoutError struct {
	AccountID string
	Pages     int // pages received before the deadline
	Timeout   time.Duration
	Err       error
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("upstream fetch for account %s timed out after %s (%d pages received)", e.AccountID, e.Timeout, e.Pages)
}

func (e *UpstreamTimeoutError) Unwrap() error {
	return e.Err
}
