package ingestion

import (
	"context"

	"trade-reconciler/internal/normalization"
)

// Page is one page of raw upstream records.
type Page struct {
	Records    []normalization.RawRecord
	NextCursor string // empty on the last page
}

// Source provides paginated raw fill and income records for an account.
// Pages may overlap and arrive out of order; the normalizer deduplicates
// and re-sorts.
type Source interface {
	// FetchPage returns the page at cursor. An empty cursor requests the first page.
	FetchPage(ctx context.Context, accountID, cursor string) (*Page, error)
}
