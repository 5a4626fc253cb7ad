// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RecordsFetched   prometheus.Counter
	MalformedRecords prometheus.Counter
	DuplicateRecords prometheus.Counter
	FetchErrors      *prometheus.CounterVec

	// Aggregation metrics
	ExecutionsProcessed  prometheus.Counter
	InvalidExecutions    prometheus.Counter
	LifecyclesBuilt      *prometheus.CounterVec
	UnmatchedLifecycles  prometheus.Counter
	ReconciliationStatus *prometheus.CounterVec

	// Discrepancy metrics
	DiscrepanciesDetected prometheus.Counter
	DiscrepanciesResolved *prometheus.CounterVec
	OpenDiscrepancies     *prometheus.GaugeVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trade_reconciler"
	}

	return &Metrics{
		// Ingestion metrics
		RecordsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_fetched_total",
			Help:      "Total number of raw upstream records fetched",
		}),
		MalformedRecords: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "malformed_records_total",
			Help:      "Total number of raw records dropped as malformed",
		}),
		DuplicateRecords: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicate_records_total",
			Help:      "Total number of raw records dropped as duplicates",
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed upstream fetches by cause",
		}, []string{"cause"}),

		// Aggregation metrics
		ExecutionsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "executions_processed_total",
			Help:      "Total number of valid executions aggregated",
		}),
		InvalidExecutions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "invalid_executions_total",
			Help:      "Total number of executions rejected by the aggregator",
		}),
		LifecyclesBuilt: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "lifecycles_built_total",
			Help:      "Total number of lifecycles built by state",
		}, []string{"state"}),
		UnmatchedLifecycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "unmatched_lifecycles_total",
			Help:      "Total number of closed lifecycles with no ledger income",
		}),
		ReconciliationStatus: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "reconciliations_total",
			Help:      "Total number of P&L comparisons by outcome",
		}, []string{"outcome"}),

		// Discrepancy metrics
		DiscrepanciesDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discrepancy",
			Name:      "detected_total",
			Help:      "Total number of balance discrepancies recorded",
		}),
		DiscrepanciesResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discrepancy",
			Name:      "resolved_total",
			Help:      "Total number of discrepancies resolved by method",
		}, []string{"method"}),
		OpenDiscrepancies: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discrepancy",
			Name:      "open",
			Help:      "Unresolved discrepancies per account after the last run",
		}, []string{"account_id"}),

		// Run metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of account runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Account run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful account run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetch records the outcome of normalizing one fetched batch.
func RecordFetch(records, malformed, duplicates int) {
	DefaultMetrics.RecordsFetched.Add(float64(records))
	DefaultMetrics.MalformedRecords.Add(float64(malformed))
	DefaultMetrics.DuplicateRecords.Add(float64(duplicates))
}

// RecordFetchError records a failed upstream fetch.
func RecordFetchError(cause string) {
	DefaultMetrics.FetchErrors.WithLabelValues(cause).Inc()
}

// RecordAggregation records executions and lifecycles from one aggregation pass.
func RecordAggregation(valid, invalid int, lifecyclesByState map[string]int, unmatched int) {
	DefaultMetrics.ExecutionsProcessed.Add(float64(valid))
	DefaultMetrics.InvalidExecutions.Add(float64(invalid))
	for state, n := range lifecyclesByState {
		DefaultMetrics.LifecyclesBuilt.WithLabelValues(state).Add(float64(n))
	}
	DefaultMetrics.UnmatchedLifecycles.Add(float64(unmatched))
}

// RecordReconciliation records whether a run's P&L reconciled.
func RecordReconciliation(reconciled bool) {
	outcome := "mismatched"
	if reconciled {
		outcome = "reconciled"
	}
	DefaultMetrics.ReconciliationStatus.WithLabelValues(outcome).Inc()
}

// RecordDiscrepancies records newly detected records and the account's open count.
func RecordDiscrepancies(accountID string, detected, open int) {
	DefaultMetrics.DiscrepanciesDetected.Add(float64(detected))
	DefaultMetrics.OpenDiscrepancies.WithLabelValues(accountID).Set(float64(open))
}

// RecordResolution records a resolved discrepancy.
func RecordResolution(method string) {
	DefaultMetrics.DiscrepanciesResolved.WithLabelValues(method).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordRun records an account run.
func RecordRun(status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
	if status == "succeeded" {
		DefaultMetrics.LastSuccessfulRun.Set(float64(finishedUnix))
	}
}
