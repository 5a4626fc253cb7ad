package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trade-reconciler/internal/orchestrator"
)

// Runner is the part of the orchestrator a scheduled run needs.
type Runner interface {
	Run(ctx context.Context, params orchestrator.RunParams) (*orchestrator.Summary, error)
}

// ReconcileJob reconciles every known account with fixed parameters.
type ReconcileJob struct {
	runner  Runner
	params  orchestrator.RunParams
	timeout time.Duration
	log     zerolog.Logger
}

// ReconcileJobConfig holds configuration for the reconcile job.
type ReconcileJobConfig struct {
	Runner  Runner
	Params  orchestrator.RunParams
	Timeout time.Duration // zero means no deadline beyond the fetcher's
	Log     zerolog.Logger
}

// NewReconcileJob creates a new reconcile job.
func NewReconcileJob(cfg ReconcileJobConfig) *ReconcileJob {
	params := cfg.Params
	params.AccountID = ""
	return &ReconcileJob{
		runner:  cfg.Runner,
		params:  params,
		timeout: cfg.Timeout,
		log:     cfg.Log.With().Str("job", "reconcile").Logger(),
	}
}

// Name returns the job name
func (j *ReconcileJob) Name() string {
	return "reconcile"
}

// Run executes one reconciliation pass over all accounts.
func (j *ReconcileJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	summary, err := j.runner.Run(ctx, j.params)
	if summary != nil {
		j.log.Info().
			Int("accounts_checked", summary.AccountsChecked).
			Int("accounts_failed", len(summary.Failed)).
			Int("discrepancies_found", summary.DiscrepanciesFound).
			Int("auto_fixed", summary.AutoFixed).
			Int("requires_review", summary.RequiresReview).
			Msg("Scheduled reconciliation finished")
	}
	return err
}
