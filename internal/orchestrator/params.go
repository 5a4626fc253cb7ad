package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/config"
	"trade-reconciler/internal/discrepancy"
	"trade-reconciler/internal/matching"
	"trade-reconciler/internal/reconcile"
)

// RunParams are the knobs of one reconciliation run.
type RunParams struct {
	AccountID         string // empty runs every known account
	AutoFix           bool
	AutoFixThreshold  decimal.Decimal
	TolerancePct      decimal.Decimal
	MinDiscrepancyAbs decimal.Decimal
	MatchWindow       time.Duration
	Precision         int32
}

// DefaultParams returns the documented defaults.
func DefaultParams() RunParams {
	return RunParams{
		AutoFixThreshold:  discrepancy.DefaultAutoFixThreshold,
		TolerancePct:      reconcile.DefaultTolerancePct,
		MinDiscrepancyAbs: discrepancy.DefaultMinAbs,
		MatchWindow:       matching.DefaultWindow,
		Precision:         reconcile.DefaultPrecision,
	}
}

// ParamsFromConfig returns run parameters with the configured defaults.
func ParamsFromConfig(cfg *config.Config) RunParams {
	return RunParams{
		AutoFixThreshold:  cfg.AutoFixThreshold,
		TolerancePct:      cfg.TolerancePct,
		MinDiscrepancyAbs: cfg.MinDiscrepancyAbs,
		MatchWindow:       cfg.MatchWindow,
		Precision:         int32(cfg.ReportPrecision),
	}
}
