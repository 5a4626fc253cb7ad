// Package orchestrator runs reconciliation for one or many accounts.
// Per account it coordinates: fetch → normalize → aggregate → match →
// reconcile → detect → resolve, committing every write in one transaction.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"trade-reconciler/internal/discrepancy"
	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/ingestion"
	"trade-reconciler/internal/lifecycle"
	"trade-reconciler/internal/matching"
	"trade-reconciler/internal/normalization"
	"trade-reconciler/internal/observability"
	"trade-reconciler/internal/reconcile"
	"trade-reconciler/internal/storage"
)

// Fetcher returns the raw upstream records for an account.
type Fetcher interface {
	Fetch(ctx context.Context, accountID string) ([]normalization.RawRecord, error)
}

// AccountLister returns the accounts a full run covers.
type AccountLister func(ctx context.Context) ([]string, error)

// Orchestrator coordinates account runs.
type Orchestrator struct {
	gateway  storage.Gateway
	locker   storage.AccountLocker
	fetcher  Fetcher
	reports  storage.RunReportStore
	workflow *discrepancy.Workflow
	accounts AccountLister

	concurrency int
	log         zerolog.Logger
	now         func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Gateway storage.Gateway
	Fetcher Fetcher

	// Optional
	Locker      storage.AccountLocker  // defaults to no cross-run lock beyond the gateway's
	Reports     storage.RunReportStore // run history sink
	Workflow    *discrepancy.Workflow
	Accounts    AccountLister // defaults to accounts with snapshots
	Concurrency int           // accounts run in parallel, default 4
	Logger      zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		gateway:     opts.Gateway,
		locker:      opts.Locker,
		fetcher:     opts.Fetcher,
		reports:     opts.Reports,
		workflow:    opts.Workflow,
		accounts:    opts.Accounts,
		concurrency: opts.Concurrency,
		log:         opts.Logger.With().Str("component", "orchestrator").Logger(),
		now:         time.Now,
	}
	if o.workflow == nil {
		o.workflow = discrepancy.NewWorkflow(opts.Gateway, opts.Logger)
	}
	if o.accounts == nil {
		o.accounts = opts.Gateway.Snapshots().ListAccounts
	}
	if o.concurrency <= 0 {
		o.concurrency = 4
	}
	return o
}

// AccountResult is the outcome of one account run.
type AccountResult struct {
	RunID               string                       `json:"runId"`
	AccountID           string                       `json:"accountId"`
	Result              *domain.ReconciliationResult `json:"result"`
	DiscrepanciesFound  int                          `json:"discrepanciesFound"`
	AutoFixed           int                          `json:"autoFixed"`
	RequiresReview      int                          `json:"requiresReview"`
	LifecyclesPersisted int                          `json:"lifecyclesPersisted"`
	UnattributedFunding decimal.Decimal              `json:"unattributedFunding"`
}

// AccountFailure is an account run that aborted without writing anything.
type AccountFailure struct {
	AccountID string `json:"accountId"`
	Error     string `json:"error"`
}

// Summary is the outcome of Run. Counters are always present, even when zero.
type Summary struct {
	AccountsChecked    int              `json:"accountsChecked"`
	DiscrepanciesFound int              `json:"discrepanciesFound"`
	AutoFixed          int              `json:"autoFixed"`
	RequiresReview     int              `json:"requiresReview"`
	Accounts           []*AccountResult `json:"accounts"`
	Failed             []AccountFailure `json:"failed"`
}

// Run reconciles params.AccountID, or every known account when it is empty.
// Accounts are independent: a failed account does not stop the others.
// The returned error joins every account failure; Summary is always non-nil.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) (*Summary, error) {
	summary := &Summary{Accounts: []*AccountResult{}, Failed: []AccountFailure{}}

	accounts := []string{params.AccountID}
	if params.AccountID == "" {
		var err error
		if accounts, err = o.accounts(ctx); err != nil {
			return summary, fmt.Errorf("list accounts: %w", err)
		}
	}

	results := make([]*AccountResult, len(accounts))
	errs := make([]error, len(accounts))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, acc := range accounts {
		g.Go(func() error {
			results[i], errs[i] = o.RunAccount(ctx, acc, params)
			return nil
		})
	}
	_ = g.Wait()

	var failures []error
	for i, acc := range accounts {
		if errs[i] != nil {
			summary.Failed = append(summary.Failed, AccountFailure{AccountID: acc, Error: errs[i].Error()})
			failures = append(failures, errs[i])
			continue
		}
		r := results[i]
		summary.AccountsChecked++
		summary.DiscrepanciesFound += r.DiscrepanciesFound
		summary.AutoFixed += r.AutoFixed
		summary.RequiresReview += r.RequiresReview
		summary.Accounts = append(summary.Accounts, r)
	}

	return summary, errors.Join(failures...)
}

// RunAccount reconciles one account. Every computation happens in memory
// first; writes are committed in a single account transaction at the end.
// On error nothing is written.
func (o *Orchestrator) RunAccount(ctx context.Context, accountID string, params RunParams) (*AccountResult, error) {
	started := o.now()
	runID := uuid.NewString()
	log := o.log.With().Str("account_id", accountID).Str("run_id", runID).Logger()

	res, err := o.runAccount(ctx, log, runID, accountID, params)

	finished := o.now()
	status := domain.RunSucceeded
	if err != nil {
		status = domain.RunFailed
		log.Error().Err(err).Msg("account run failed")
	} else {
		log.Info().
			Bool("reconciled", res.Result.Reconciliation.IsReconciled).
			Int("lifecycles", res.Result.Stats.TotalLifecycles).
			Int("discrepancies", res.DiscrepanciesFound).
			Int("auto_fixed", res.AutoFixed).
			Int("requires_review", res.RequiresReview).
			Dur("took", finished.Sub(started)).
			Msg("account run complete")
	}
	observability.RecordRun(string(status), finished.Sub(started).Seconds(), finished.Unix())
	o.appendReport(ctx, log, runID, accountID, started, finished, status, res, err)

	return res, err
}

func (o *Orchestrator) runAccount(ctx context.Context, log zerolog.Logger, runID, accountID string, params RunParams) (*AccountResult, error) {
	if o.locker != nil {
		release, err := o.locker.Acquire(ctx, accountID)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return nil, &PersistenceConflictError{AccountID: accountID, Err: err}
			}
			return nil, fmt.Errorf("acquire account lock: %w", err)
		}
		defer release()
	}

	// Phase 1: fetch and normalize
	raw, err := o.fetcher.Fetch(ctx, accountID)
	if err != nil {
		var timeout *ingestion.UpstreamTimeoutError
		if errors.As(err, &timeout) {
			observability.RecordFetchError("timeout")
		} else {
			observability.RecordFetchError("upstream")
		}
		return nil, err
	}
	batch := normalization.Normalize(raw)
	observability.RecordFetch(len(raw), batch.Malformed, batch.Duplicates)
	for _, e := range batch.Errors {
		log.Debug().Err(e).Msg("dropped malformed record")
	}

	// Phase 2: aggregate, attribute funding, match income
	agg, err := lifecycle.Aggregate(ctx, batch.Executions, lifecycle.Options{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	for _, e := range agg.Errors {
		log.Warn().Err(e).Msg("skipped invalid execution")
	}
	unattributed := lifecycle.AttributeFunding(agg.Lifecycles, batch.LedgerEvents)
	match := matching.Match(agg.Lifecycles, batch.LedgerEvents, params.MatchWindow)

	// Phase 3: compare against the ledger
	result := reconcile.BuildResult(reconcile.ReportInput{
		Lifecycles:        agg.Lifecycles,
		ValidExecutions:   agg.ValidExecutions,
		InvalidExecutions: agg.InvalidExecutions,
		MalformedRecords:  batch.Malformed,
		Match:             match,
		LedgerTotal:       domain.SumLedger(batch.LedgerEvents, domain.LedgerRealizedPnl),
		TolerancePct:      params.TolerancePct,
		Precision:         params.Precision,
	})
	observability.RecordAggregation(agg.ValidExecutions, agg.InvalidExecutions, countByState(agg.Lifecycles), match.Unmatched)
	observability.RecordReconciliation(result.Reconciliation.IsReconciled)

	out := &AccountResult{
		RunID:               runID,
		AccountID:           accountID,
		Result:              result,
		UnattributedFunding: unattributed,
	}

	closed := make([]*domain.TradeLifecycle, 0, len(agg.Lifecycles))
	for _, lc := range agg.Lifecycles {
		if lc.IsClosed() {
			closed = append(closed, lc)
		}
	}

	// Phase 4: detect, resolve and persist as one unit
	detectedAt := o.now().UnixMilli()
	var open int
	err = o.gateway.WithinAccountTx(ctx, accountID, func(tx storage.Tx) error {
		n, err := tx.Lifecycles().InsertBulk(ctx, closed)
		if err != nil {
			return fmt.Errorf("persist lifecycles: %w", err)
		}
		out.LifecyclesPersisted = n

		detected, err := detect(ctx, tx, accountID, batch.LedgerEvents, params.MinDiscrepancyAbs, detectedAt)
		if err != nil {
			return err
		}
		inserted, err := discrepancy.Record(ctx, tx, detected)
		if err != nil {
			return err
		}
		out.DiscrepanciesFound = len(inserted)

		unresolved, err := tx.Discrepancies().ListByAccount(ctx, accountID, true)
		if err != nil {
			return fmt.Errorf("list unresolved discrepancies: %w", err)
		}
		if !params.AutoFix {
			out.RequiresReview = len(unresolved)
			open = len(unresolved)
			return nil
		}

		plan, err := o.workflow.ApplyAutoFix(ctx, tx, discrepancy.PlanAutoFix(unresolved, params.AutoFixThreshold))
		if err != nil {
			return err
		}
		out.AutoFixed = len(plan.Fix)
		out.RequiresReview = len(plan.RequiresReview)
		open = len(plan.RequiresReview)
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, &PersistenceConflictError{AccountID: accountID, Err: err}
		}
		return nil, err
	}

	observability.RecordDiscrepancies(accountID, out.DiscrepanciesFound, open)
	for i := 0; i < out.AutoFixed; i++ {
		observability.RecordResolution(string(domain.ResolutionAuto))
	}
	return out, nil
}

// detect checks the account's latest snapshot against the one before it.
func detect(ctx context.Context, tx storage.Tx, accountID string, ledger []*domain.LedgerEvent, minAbs decimal.Decimal, at int64) ([]*domain.DiscrepancyRecord, error) {
	current, err := tx.Snapshots().GetLatest(ctx, accountID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	prior, err := tx.Snapshots().GetBefore(ctx, accountID, current.Date)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load prior snapshot: %w", err)
	}

	rec := discrepancy.Detect(discrepancy.DetectInput{
		Current:    current,
		Prior:      prior,
		Ledger:     ledger,
		DetectedAt: at,
	}, minAbs)
	if rec == nil {
		return nil, nil
	}
	return []*domain.DiscrepancyRecord{rec}, nil
}

func countByState(lcs []*domain.TradeLifecycle) map[string]int {
	m := make(map[string]int)
	for _, lc := range lcs {
		m[string(lc.State)]++
	}
	return m
}

// appendReport writes the run history row. Failures are logged and never fail the run.
func (o *Orchestrator) appendReport(ctx context.Context, log zerolog.Logger, runID, accountID string, started, finished time.Time, status domain.RunStatus, res *AccountResult, runErr error) {
	if o.reports == nil {
		return
	}

	r := &domain.RunReport{
		RunID:      runID,
		AccountID:  accountID,
		StartedAt:  started.UnixMilli(),
		FinishedAt: finished.UnixMilli(),
		Status:     status,
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	if res != nil {
		s, rec := res.Result.Stats, res.Result.Reconciliation
		r.ValidTrades = s.ValidTrades
		r.InvalidTrades = s.InvalidTrades
		r.WarningTrades = s.WarningTrades
		r.TotalLifecycles = s.TotalLifecycles
		r.IncompleteLifecycles = s.IncompleteLifecycles
		r.AggregatedTotalPnl = rec.AggregatedTotalPnl
		r.LedgerTotalPnl = rec.LedgerTotalPnl
		r.DifferencePercent = rec.DifferencePercent
		r.IsReconciled = rec.IsReconciled
		r.DiscrepanciesFound = res.DiscrepanciesFound
		r.AutoFixed = res.AutoFixed
		r.RequiresReview = res.RequiresReview
	}

	if err := o.reports.Insert(context.WithoutCancel(ctx), r); err != nil {
		log.Warn().Err(err).Msg("failed to append run report")
	}
}
