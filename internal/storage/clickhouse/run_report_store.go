package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/observability"
	"trade-reconciler/internal/storage"
)

// RunReportStore implements storage.RunReportStore using ClickHouse.
// Run history is analytical and append-only, so it lives outside Postgres.
type RunReportStore struct {
	conn *Conn
}

// NewRunReportStore creates a new RunReportStore.
func NewRunReportStore(conn *Conn) *RunReportStore {
	return &RunReportStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RunReportStore = (*RunReportStore)(nil)

// Insert appends a run report. Returns ErrDuplicateKey if run_id exists.
func (s *RunReportStore) Insert(ctx context.Context, r *domain.RunReport) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_run_report", time.Since(start).Seconds(), err)
	}()

	// ReplacingMergeTree would silently collapse a duplicate
	exists, err := s.exists(ctx, r.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO reconciliation_runs (
			run_id, account_id, started_at, finished_at, status, error,
			valid_trades, invalid_trades, warning_trades, total_lifecycles, incomplete_lifecycles,
			aggregated_total_pnl, ledger_total_pnl, difference_percent, is_reconciled,
			discrepancies_found, auto_fixed, requires_review
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	// column types are strict: UInt32 columns take uint32, Decimal takes decimal.Decimal
	err = batch.Append(
		r.RunID, r.AccountID, r.StartedAt, r.FinishedAt, string(r.Status), r.Error,
		uint32(r.ValidTrades), uint32(r.InvalidTrades), uint32(r.WarningTrades),
		uint32(r.TotalLifecycles), uint32(r.IncompleteLifecycles),
		r.AggregatedTotalPnl, r.LedgerTotalPnl, r.DifferencePercent, r.IsReconciled,
		uint32(r.DiscrepanciesFound), uint32(r.AutoFixed), uint32(r.RequiresReview),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("insert run report: %w", err)
	}
	return nil
}

// ListByAccount retrieves the newest reports for an account, newest first.
func (s *RunReportStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.RunReport, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			run_id, account_id, started_at, finished_at, status, error,
			valid_trades, invalid_trades, warning_trades, total_lifecycles, incomplete_lifecycles,
			aggregated_total_pnl, ledger_total_pnl, difference_percent, is_reconciled,
			discrepancies_found, auto_fixed, requires_review
		FROM reconciliation_runs FINAL
		WHERE account_id = ?
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list run reports: %w", err)
	}
	defer rows.Close()

	var reports []*domain.RunReport
	for rows.Next() {
		var (
			r                                domain.RunReport
			status                           string
			valid, invalid, warning, total   uint32
			incomplete, found, fixed, review uint32
			aggregated, ledger, diffPercent  decimal.Decimal
		)
		err := rows.Scan(
			&r.RunID, &r.AccountID, &r.StartedAt, &r.FinishedAt, &status, &r.Error,
			&valid, &invalid, &warning, &total, &incomplete,
			&aggregated, &ledger, &diffPercent, &r.IsReconciled,
			&found, &fixed, &review,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run report row: %w", err)
		}

		r.Status = domain.RunStatus(status)
		r.ValidTrades = int(valid)
		r.InvalidTrades = int(invalid)
		r.WarningTrades = int(warning)
		r.TotalLifecycles = int(total)
		r.IncompleteLifecycles = int(incomplete)
		r.AggregatedTotalPnl = aggregated
		r.LedgerTotalPnl = ledger
		r.DifferencePercent = diffPercent
		r.DiscrepanciesFound = int(found)
		r.AutoFixed = int(fixed)
		r.RequiresReview = int(review)
		reports = append(reports, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run report rows: %w", err)
	}
	return reports, nil
}

func (s *RunReportStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count() FROM reconciliation_runs WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
