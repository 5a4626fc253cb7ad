package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Reconciliation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Totals
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Accounts Checked | %d |\n", r.Totals.AccountsChecked))
	sb.WriteString(fmt.Sprintf("| Accounts Failed | %d |\n", r.Totals.AccountsFailed))
	sb.WriteString(fmt.Sprintf("| Accounts Reconciled | %d |\n", r.Totals.ReconciledAccounts))
	sb.WriteString(fmt.Sprintf("| Discrepancies Found | %d |\n", r.Totals.DiscrepanciesFound))
	sb.WriteString(fmt.Sprintf("| Auto-Fixed | %d |\n", r.Totals.AutoFixed))
	sb.WriteString(fmt.Sprintf("| Requires Review | %d |\n", r.Totals.RequiresReview))
	sb.WriteString("\n")

	// Accounts
	sb.WriteString("## Accounts\n\n")
	if len(r.Accounts) > 0 {
		sb.WriteString("| Account | Trades | Invalid | Lifecycles | Incomplete | W/L | Aggregated P&L | Ledger P&L | Difference | Diff% | Status |\n")
		sb.WriteString("|---------|--------|---------|------------|------------|-----|----------------|------------|------------|-------|--------|\n")
		for _, a := range r.Accounts {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d/%d | %s | %s | %s | %s | %s |\n",
				a.AccountID, a.ValidTrades, a.InvalidTrades, a.Lifecycles, a.IncompleteLifecycles,
				a.Wins, a.Losses,
				a.AggregatedPnl.StringFixed(r.Precision), a.LedgerPnl.StringFixed(r.Precision),
				a.Difference.StringFixed(r.Precision), a.DifferencePercent.StringFixed(r.Precision),
				status(a.Reconciled)))
		}
	} else {
		sb.WriteString("No accounts reconciled.\n")
	}
	sb.WriteString("\n")

	// Unattributed funding
	var unattributed []AccountRow
	for _, a := range r.Accounts {
		if !a.UnattributedFunding.IsZero() {
			unattributed = append(unattributed, a)
		}
	}
	if len(unattributed) > 0 {
		sb.WriteString("### Unattributed Funding\n\n")
		for _, a := range unattributed {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", a.AccountID, a.UnattributedFunding.StringFixed(r.Precision)))
		}
		sb.WriteString("\n")
	}

	// Failures
	if len(r.Failures) > 0 {
		sb.WriteString("## Failed Accounts\n\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", f.AccountID, f.Error))
		}
		sb.WriteString("\n")
	}

	// Open discrepancies
	sb.WriteString("## Open Discrepancies\n\n")
	if len(r.OpenDiscrepancies) > 0 {
		sb.WriteString("| Account | Date | Expected | Actual | Discrepancy | ID |\n")
		sb.WriteString("|---------|------|----------|--------|-------------|----|\n")
		for _, d := range r.OpenDiscrepancies {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				d.AccountID, d.SnapshotDate,
				d.Expected.StringFixed(r.Precision), d.Actual.StringFixed(r.Precision),
				d.Discrepancy.StringFixed(r.Precision), d.ID))
		}
	} else {
		sb.WriteString("No open discrepancies.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func status(reconciled bool) string {
	if reconciled {
		return "OK"
	}
	return "MISMATCH"
}
