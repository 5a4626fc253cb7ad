package normalization

import (
	"sort"

	"trade-reconciler/internal/domain"
)

// SortExecutions orders executions by (timestamp ASC, external_id ASC).
// This provides deterministic ordering regardless of page delivery order.
func SortExecutions(execs []*domain.Execution) {
	sort.SliceStable(execs, func(i, j int) bool {
		return compareExecutions(execs[i], execs[j]) < 0
	})
}

// SortLedgerEvents orders ledger events by (timestamp ASC, external_id ASC).
func SortLedgerEvents(events []*domain.LedgerEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareLedgerEvents(events[i], events[j]) < 0
	})
}

// compareExecutions returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareExecutions(a, b *domain.Execution) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	if a.ExternalID != b.ExternalID {
		if a.ExternalID < b.ExternalID {
			return -1
		}
		return 1
	}
	return 0
}

// compareLedgerEvents returns comparison result for ledger events.
// Order: (timestamp ASC, external_id ASC)
func compareLedgerEvents(a, b *domain.LedgerEvent) int {
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	if a.ExternalID != b.ExternalID {
		if a.ExternalID < b.ExternalID {
			return -1
		}
		return 1
	}
	return 0
}
