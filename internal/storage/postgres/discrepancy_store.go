package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/storage"
)

// DiscrepancyStore implements storage.DiscrepancyStore using PostgreSQL.
type DiscrepancyStore struct {
	q querier
}

// NewDiscrepancyStore creates a new DiscrepancyStore.
func NewDiscrepancyStore(pool *Pool) *DiscrepancyStore {
	return &DiscrepancyStore{q: pool}
}

// Compile-time interface check.
var _ storage.DiscrepancyStore = (*DiscrepancyStore)(nil)

const discrepancyColumns = `
	id::TEXT, account_id, to_char(snapshot_date, 'YYYY-MM-DD'),
	expected_balance::TEXT, actual_balance::TEXT, discrepancy::TEXT,
	detected_at, resolved, resolved_at,
	COALESCE(resolution_method, ''), COALESCE(resolution_notes, '')
`

// Insert adds a new record. Returns ErrDuplicateKey if id exists.
func (s *DiscrepancyStore) Insert(ctx context.Context, d *domain.DiscrepancyRecord) error {
	query := `
		INSERT INTO discrepancy_records (
			id, account_id, snapshot_date, expected_balance, actual_balance, discrepancy,
			detected_at, resolved, resolved_at, resolution_method, resolution_notes
		) VALUES ($1::UUID, $2, $3::DATE, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9, $10, $11)
	`

	_, err := s.q.Exec(ctx, query,
		d.ID,
		d.AccountID,
		d.SnapshotDate,
		d.ExpectedBalance.String(),
		d.ActualBalance.String(),
		d.Discrepancy.String(),
		d.DetectedAt,
		d.Resolved,
		d.ResolvedAt,
		nullString(string(d.ResolutionMethod)),
		nullString(d.ResolutionNotes),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert discrepancy: %w", err)
	}
	return nil
}

// GetByID retrieves a record by ID. Returns ErrNotFound if not exists.
func (s *DiscrepancyStore) GetByID(ctx context.Context, id string) (*domain.DiscrepancyRecord, error) {
	query := `SELECT ` + discrepancyColumns + ` FROM discrepancy_records WHERE id::TEXT = $1`

	d, err := scanDiscrepancy(s.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get discrepancy by id: %w", err)
	}
	return d, nil
}

// Resolve transitions an unresolved record to resolved.
// The WHERE resolved = false guard makes the transition one-way under concurrency.
func (s *DiscrepancyStore) Resolve(ctx context.Context, id string, method domain.ResolutionMethod, notes string, resolvedAt int64) error {
	query := `
		UPDATE discrepancy_records
		SET resolved = TRUE, resolved_at = $2, resolution_method = $3, resolution_notes = $4
		WHERE id::TEXT = $1 AND resolved = FALSE
	`

	tag, err := s.q.Exec(ctx, query, id, resolvedAt, string(method), nullString(notes))
	if err != nil {
		return fmt.Errorf("resolve discrepancy: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM discrepancy_records WHERE id::TEXT = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check discrepancy exists: %w", err)
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrAlreadyResolved
}

// ListByAccount retrieves records ordered by detected_at ASC, id ASC.
// An empty accountID lists all accounts.
func (s *DiscrepancyStore) ListByAccount(ctx context.Context, accountID string, unresolvedOnly bool) ([]*domain.DiscrepancyRecord, error) {
	query := `SELECT ` + discrepancyColumns + `
		FROM discrepancy_records
		WHERE ($1::TEXT = '' OR account_id = $1::TEXT)
		  AND (NOT $2::BOOLEAN OR resolved = FALSE)
		ORDER BY detected_at ASC, id ASC
	`

	rows, err := s.q.Query(ctx, query, accountID, unresolvedOnly)
	if err != nil {
		return nil, fmt.Errorf("list discrepancies: %w", err)
	}
	defer rows.Close()

	var records []*domain.DiscrepancyRecord
	for rows.Next() {
		d, err := scanDiscrepancy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan discrepancy row: %w", err)
		}
		records = append(records, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discrepancy rows: %w", err)
	}
	return records, nil
}

func scanDiscrepancy(row pgx.Row) (*domain.DiscrepancyRecord, error) {
	var d domain.DiscrepancyRecord
	var expected, actual, diff, method string

	err := row.Scan(
		&d.ID,
		&d.AccountID,
		&d.SnapshotDate,
		&expected,
		&actual,
		&diff,
		&d.DetectedAt,
		&d.Resolved,
		&d.ResolvedAt,
		&method,
		&d.ResolutionNotes,
	)
	if err != nil {
		return nil, err
	}

	if d.ExpectedBalance, err = parseDecimal("expected_balance", expected); err != nil {
		return nil, err
	}
	if d.ActualBalance, err = parseDecimal("actual_balance", actual); err != nil {
		return nil, err
	}
	if d.Discrepancy, err = parseDecimal("discrepancy", diff); err != nil {
		return nil, err
	}
	d.ResolutionMethod = domain.ResolutionMethod(method)
	return &d, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
