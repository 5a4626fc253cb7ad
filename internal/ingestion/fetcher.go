package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trade-reconciler/internal/normalization"
)

// Default fetch bounds.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxPages = 50
)

// Fetcher drains a Source for one account within a deadline and page cap.
type Fetcher struct {
	source   Source
	timeout  time.Duration
	maxPages int
	log      zerolog.Logger
}

// FetcherOptions contains configuration for creating a Fetcher.
type FetcherOptions struct {
	Source   Source
	Timeout  time.Duration
	MaxPages int
	Logger   zerolog.Logger
}

// NewFetcher creates a new Fetcher. Zero bounds fall back to the defaults.
func NewFetcher(opts FetcherOptions) *Fetcher {
	f := &Fetcher{
		source:   opts.Source,
		timeout:  opts.Timeout,
		maxPages: opts.MaxPages,
		log:      opts.Logger.With().Str("component", "fetcher").Logger(),
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.maxPages <= 0 {
		f.maxPages = DefaultMaxPages
	}
	return f
}

// Fetch returns every raw record for accountID.
// On timeout it returns *UpstreamTimeoutError and no records.
func (f *Fetcher) Fetch(ctx context.Context, accountID string) ([]normalization.RawRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var (
		records []normalization.RawRecord
		cursor  string
		pages   int
	)
	for {
		if pages == f.maxPages {
			return nil, fmt.Errorf("account %s after %d pages: %w", accountID, pages, ErrPageLimit)
		}

		page, err := f.source.FetchPage(ctx, accountID, cursor)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, &UpstreamTimeoutError{AccountID: accountID, Pages: pages, Timeout: f.timeout, Err: err}
			}
			return nil, fmt.Errorf("fetch page %d for account %s: %w", pages+1, accountID, err)
		}
		if page == nil {
			return nil, fmt.Errorf("fetch page %d for account %s: %w", pages+1, accountID, ErrEmptyPage)
		}
		pages++
		records = append(records, page.Records...)

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	f.log.Debug().
		Str("account_id", accountID).
		Int("pages", pages).
		Int("records", len(records)).
		Msg("upstream fetch complete")
	return records, nil
}
