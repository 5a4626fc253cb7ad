package normalization

import "fmt"

// MalformedRecordError is returned for a raw record that is missing a
// required field or carries a value that cannot be parsed.
// The record is dropped and counted; the batch continues.
type MalformedRecordError struct {
	Index  int        // position in the raw batch
	Kind   RecordKind // fill | income
	Field  string     // offending field
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record #%d: field %q %s", e.Kind, e.Index, e.Field, e.Reason)
}
