package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders per-account rows as CSV string.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("account_id,run_id,valid_trades,invalid_trades,lifecycles,incomplete_lifecycles,wins,losses,")
	sb.WriteString("aggregated_pnl,ledger_pnl,difference,difference_pct,is_reconciled,unattributed_funding\n")

	// Rows
	for _, a := range r.Accounts {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%d,%d,%d,%s,%s,%s,%s,%t,%s\n",
			a.AccountID,
			a.RunID,
			a.ValidTrades,
			a.InvalidTrades,
			a.Lifecycles,
			a.IncompleteLifecycles,
			a.Wins,
			a.Losses,
			a.AggregatedPnl.StringFixed(r.Precision),
			a.LedgerPnl.StringFixed(r.Precision),
			a.Difference.StringFixed(r.Precision),
			a.DifferencePercent.StringFixed(r.Precision),
			a.Reconciled,
			a.UnattributedFunding.StringFixed(r.Precision),
		))
	}

	return sb.String()
}
