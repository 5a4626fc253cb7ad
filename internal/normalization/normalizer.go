// Package normalization converts raw upstream fill and income records into
// canonical executions and ledger events.
package normalization

import (
	"errors"

	"trade-reconciler/internal/domain"
)

// Batch is the canonical output of one normalization pass.
type Batch struct {
	Executions   []*domain.Execution   // deduplicated, sorted by (timestamp, external_id)
	LedgerEvents []*domain.LedgerEvent // deduplicated, sorted by (timestamp, external_id)

	Malformed  int     // records dropped as malformed
	Duplicates int     // records dropped as already seen in this batch
	Errors     []error // one *MalformedRecordError per dropped record
}

// Normalize canonicalizes raw records.
// Malformed records are dropped and counted, never abort the batch.
// Duplicates (same external id) keep the first delivery.
func Normalize(raw []RawRecord) *Batch {
	b := &Batch{}
	seenFills := make(map[string]struct{})
	seenIncome := make(map[string]struct{})

	for i, rec := range raw {
		switch rec.Kind {
		case KindFill:
			exec, err := ParseFill(i, rec.Payload)
			if err != nil {
				b.drop(err)
				continue
			}
			if _, dup := seenFills[exec.ExternalID]; dup {
				b.Duplicates++
				continue
			}
			seenFills[exec.ExternalID] = struct{}{}
			b.Executions = append(b.Executions, exec)

		case KindIncome:
			event, err := ParseIncome(i, rec.Payload)
			if err != nil {
				b.drop(err)
				continue
			}
			if _, dup := seenIncome[event.ExternalID]; dup {
				b.Duplicates++
				continue
			}
			seenIncome[event.ExternalID] = struct{}{}
			b.LedgerEvents = append(b.LedgerEvents, event)

		default:
			b.drop(&MalformedRecordError{Index: i, Kind: rec.Kind, Field: "kind", Reason: "is not fill or income"})
		}
	}

	SortExecutions(b.Executions)
	SortLedgerEvents(b.LedgerEvents)
	return b
}

func (b *Batch) drop(err error) {
	b.Malformed++
	b.Errors = append(b.Errors, err)
}

// IsMalformed reports whether err is a *MalformedRecordError.
func IsMalformed(err error) bool {
	var m *MalformedRecordError
	return errors.As(err, &m)
}
