package discrepancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/idhash"
	"trade-reconciler/internal/storage"
)

// IdempotencyScope namespaces discrepancy detection keys.
const IdempotencyScope = "discrepancy"

// DefaultAutoFixThreshold is the largest |discrepancy| corrected without an operator.
var DefaultAutoFixThreshold = decimal.RequireFromString("1.00")

// Plan partitions unresolved records for an auto-fix pass.
type Plan struct {
	Fix            []*domain.DiscrepancyRecord // |discrepancy| <= threshold
	RequiresReview []*domain.DiscrepancyRecord // |discrepancy| > threshold
}

// PlanAutoFix splits unresolved records by threshold. Resolved records are ignored.
func PlanAutoFix(records []*domain.DiscrepancyRecord, threshold decimal.Decimal) Plan {
	var p Plan
	for _, r := range records {
		if r.Resolved {
			continue
		}
		if r.Magnitude().LessThanOrEqual(threshold) {
			p.Fix = append(p.Fix, r)
		} else {
			p.RequiresReview = append(p.RequiresReview, r)
		}
	}
	return p
}

// ResolveRequest is an operator resolution of one record.
type ResolveRequest struct {
	DiscrepancyID string
	Method        domain.ResolutionMethod // manual or ignored
	Notes         string
	ApplyFix      bool // only honoured for manual
}

// Workflow applies resolutions through the persistence gateway.
type Workflow struct {
	gw  storage.Gateway
	log zerolog.Logger
	now func() time.Time
}

// NewWorkflow creates a resolution workflow.
func NewWorkflow(gw storage.Gateway, log zerolog.Logger) *Workflow {
	return &Workflow{
		gw:  gw,
		log: log.With().Str("component", "discrepancy").Logger(),
		now: time.Now,
	}
}

// Record stores newly detected records, skipping any whose
// (account, date, expected, actual) key was already recorded.
// Returns the records actually inserted.
func Record(ctx context.Context, tx storage.Tx, records []*domain.DiscrepancyRecord) ([]*domain.DiscrepancyRecord, error) {
	var inserted []*domain.DiscrepancyRecord
	for _, r := range records {
		key := idhash.ComputeDiscrepancyKey(r.AccountID, r.SnapshotDate, r.ExpectedBalance, r.ActualBalance)
		claimed, err := tx.Idempotency().Claim(ctx, IdempotencyScope, key)
		if err != nil {
			return nil, fmt.Errorf("claim discrepancy key: %w", err)
		}
		if !claimed {
			continue
		}
		if err := tx.Discrepancies().Insert(ctx, r); err != nil {
			return nil, fmt.Errorf("insert discrepancy %s: %w", r.ID, err)
		}
		inserted = append(inserted, r)
	}
	return inserted, nil
}

// ApplyAutoFix corrects and resolves every record in plan.Fix inside tx.
// A record whose snapshot changed since detection is left unresolved and
// moved to RequiresReview. Returns the plan as applied.
func (w *Workflow) ApplyAutoFix(ctx context.Context, tx storage.Tx, plan Plan) (Plan, error) {
	applied := Plan{RequiresReview: plan.RequiresReview}
	at := w.now().UnixMilli()
	for _, r := range plan.Fix {
		if err := applyCorrection(ctx, tx, r); err != nil {
			if errors.Is(err, storage.ErrStale) {
				w.log.Warn().
					Str("account_id", r.AccountID).
					Str("discrepancy_id", r.ID).
					Msg("snapshot changed since detection, skipping auto-fix")
				applied.RequiresReview = append(applied.RequiresReview, r)
				continue
			}
			return Plan{}, err
		}
		notes := fmt.Sprintf("auto-corrected balance by %s", r.Discrepancy.Neg().String())
		if err := tx.Discrepancies().Resolve(ctx, r.ID, domain.ResolutionAuto, notes, at); err != nil {
			return Plan{}, fmt.Errorf("resolve discrepancy %s: %w", r.ID, err)
		}
		r.MarkResolved(domain.ResolutionAuto, notes, at)
		applied.Fix = append(applied.Fix, r)

		w.log.Info().
			Str("account_id", r.AccountID).
			Str("discrepancy_id", r.ID).
			Str("discrepancy", r.Discrepancy.String()).
			Msg("auto-fixed discrepancy")
	}
	return applied, nil
}

// Resolve applies an operator resolution and returns the mutated record.
//
// With ApplyFix the balance correction is written before the resolution in
// the same account transaction; if the correction fails the record stays
// unresolved and a *DiscrepancyApplyError is returned.
func (w *Workflow) Resolve(ctx context.Context, req ResolveRequest) (*domain.DiscrepancyRecord, error) {
	if req.Method != domain.ResolutionManual && req.Method != domain.ResolutionIgnored {
		return nil, fmt.Errorf("resolution method %q: %w", req.Method, storage.ErrInvalidInput)
	}

	current, err := w.gw.Discrepancies().GetByID(ctx, req.DiscrepancyID)
	if err != nil {
		return nil, fmt.Errorf("load discrepancy %s: %w", req.DiscrepancyID, err)
	}
	if current.Resolved {
		return nil, ErrAlreadyResolved
	}

	var out *domain.DiscrepancyRecord
	err = w.gw.WithinAccountTx(ctx, current.AccountID, func(tx storage.Tx) error {
		rec, err := tx.Discrepancies().GetByID(ctx, req.DiscrepancyID)
		if err != nil {
			return err
		}
		if rec.Resolved {
			return ErrAlreadyResolved
		}

		at := w.now().UnixMilli()
		if req.Method == domain.ResolutionManual && req.ApplyFix {
			if err := applyCorrection(ctx, tx, rec); err != nil {
				return err
			}
		}
		if err := tx.Discrepancies().Resolve(ctx, rec.ID, req.Method, req.Notes, at); err != nil {
			return err
		}
		rec.MarkResolved(req.Method, req.Notes, at)
		out = rec
		return nil
	})
	if err != nil {
		var applyErr *DiscrepancyApplyError
		if errors.As(err, &applyErr) {
			w.log.Warn().Err(err).Str("discrepancy_id", req.DiscrepancyID).Msg("balance correction failed, record left unresolved")
		}
		return nil, err
	}

	w.log.Info().
		Str("account_id", out.AccountID).
		Str("discrepancy_id", out.ID).
		Str("method", string(out.ResolutionMethod)).
		Bool("apply_fix", req.ApplyFix).
		Msg("discrepancy resolved")
	return out, nil
}

// applyCorrection sets the record's snapshot balance to the expected balance,
// provided the snapshot still holds the balance the record was detected on.
// CapturedAt is kept so the next detection window still starts where this one ended.
func applyCorrection(ctx context.Context, tx storage.Tx, r *domain.DiscrepancyRecord) error {
	err := tx.Snapshots().CorrectBalance(ctx, r.AccountID, r.SnapshotDate, r.ActualBalance, r.ExpectedBalance)
	if err != nil {
		return &DiscrepancyApplyError{
			DiscrepancyID: r.ID,
			AccountID:     r.AccountID,
			Date:          r.SnapshotDate,
			Err:           fmt.Errorf("correct snapshot: %w", err),
		}
	}
	return nil
}
