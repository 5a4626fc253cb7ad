package domain

import "github.com/shopspring/decimal"

// ResolutionMethod records how a discrepancy was resolved.
type ResolutionMethod string

const (
	ResolutionAuto    ResolutionMethod = "auto"
	ResolutionManual  ResolutionMethod = "manual"
	ResolutionIgnored ResolutionMethod = "ignored"
)

// Valid reports whether m is a known method.
func (m ResolutionMethod) Valid() bool {
	return m == ResolutionAuto || m == ResolutionManual || m == ResolutionIgnored
}

// DiscrepancyRecord is a detected gap between a stored balance and the
// balance implied by the ledger. Resolved is a one-way transition and
// records are never deleted.
type DiscrepancyRecord struct {
	ID               string           `json:"id"`
	AccountID        string           `json:"accountId"`
	SnapshotDate     string           `json:"snapshotDate"`
	ExpectedBalance  decimal.Decimal  `json:"expectedBalance"`
	ActualBalance    decimal.Decimal  `json:"actualBalance"`
	Discrepancy      decimal.Decimal  `json:"discrepancy"` // actual - expected
	DetectedAt       int64            `json:"detectedAt"`  // unix ms
	Resolved         bool             `json:"resolved"`
	ResolvedAt       *int64           `json:"resolvedAt"`
	ResolutionMethod ResolutionMethod `json:"resolutionMethod,omitempty"`
	ResolutionNotes  string           `json:"resolutionNotes,omitempty"`
}

// Magnitude returns |discrepancy|.
func (d *DiscrepancyRecord) Magnitude() decimal.Decimal {
	return d.Discrepancy.Abs()
}

// MarkResolved transitions the record to resolved.
// Callers must check Resolved first; the transition is never reversed.
func (d *DiscrepancyRecord) MarkResolved(method ResolutionMethod, notes string, at int64) {
	d.Resolved = true
	d.ResolvedAt = &at
	d.ResolutionMethod = method
	d.ResolutionNotes = notes
}
