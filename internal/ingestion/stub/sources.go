package stub

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"trade-reconciler/internal/ingestion"
	"trade-reconciler/internal/normalization"
)

// Source serves fixed in-memory pages per account.
// Implements ingestion.Source.
type Source struct {
	pages map[string][][]normalization.RawRecord
	delay time.Duration
	calls atomic.Int64
}

// NewSource creates a stub source with no accounts.
func NewSource() *Source {
	return &Source{pages: make(map[string][][]normalization.RawRecord)}
}

// AddPage appends a page of records for accountID.
func (s *Source) AddPage(accountID string, records ...normalization.RawRecord) *Source {
	s.pages[accountID] = append(s.pages[accountID], records)
	return s
}

// WithDelay makes every FetchPage call wait d (or until the context ends).
func (s *Source) WithDelay(d time.Duration) *Source {
	s.delay = d
	return s
}

// Calls returns how many pages were requested.
func (s *Source) Calls() int {
	return int(s.calls.Load())
}

// FetchPage returns the page at cursor, which is the decimal page index.
func (s *Source) FetchPage(ctx context.Context, accountID, cursor string) (*ingestion.Page, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	idx := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, fmt.Errorf("bad cursor %q: %w", cursor, err)
		}
		idx = n
	}

	pages := s.pages[accountID]
	if idx >= len(pages) {
		return &ingestion.Page{}, nil
	}

	page := &ingestion.Page{Records: append([]normalization.RawRecord(nil), pages[idx]...)}
	if idx+1 < len(pages) {
		page.NextCursor = strconv.Itoa(idx + 1)
	}
	return page, nil
}
