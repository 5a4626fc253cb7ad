package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-reconciler/internal/discrepancy"
	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/ingestion"
	"trade-reconciler/internal/orchestrator"
	"trade-reconciler/internal/storage"
	"trade-reconciler/internal/storage/memory"
)

type reconcilerFunc func(ctx context.Context, p orchestrator.RunParams) (*orchestrator.Summary, error)

func (f reconcilerFunc) Run(ctx context.Context, p orchestrator.RunParams) (*orchestrator.Summary, error) {
	return f(ctx, p)
}

type testServer struct {
	srv     *Server
	gw      *memory.Gateway
	reports *memory.RunReportStore
	params  *orchestrator.RunParams
	runErr  error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{gw: memory.NewGateway(), reports: memory.NewRunReportStore()}
	reconciler := reconcilerFunc(func(_ context.Context, p orchestrator.RunParams) (*orchestrator.Summary, error) {
		ts.params = &p
		summary := &orchestrator.Summary{AccountsChecked: 1, Accounts: []*orchestrator.AccountResult{}, Failed: []orchestrator.AccountFailure{}}
		if ts.runErr != nil {
			summary.AccountsChecked = 0
			summary.Failed = append(summary.Failed, orchestrator.AccountFailure{AccountID: "acc-1", Error: ts.runErr.Error()})
		}
		return summary, ts.runErr
	})

	ts.srv = New(Config{
		Reconciler: reconciler,
		Resolver:   discrepancy.NewWorkflow(ts.gw, zerolog.Nop()),
		Gateway:    ts.gw,
		Reports:    ts.reports,
		Defaults:   orchestrator.DefaultParams(),
		Log:        zerolog.Nop(),
		Now:        func() time.Time { return time.UnixMilli(1736000000000) },
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) seedDiscrepancy(t *testing.T) *domain.DiscrepancyRecord {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, ts.gw.Snapshots().Upsert(ctx, &domain.BalanceSnapshot{
		AccountID: "acc-1", Date: "2025-01-02", Balance: decimal.RequireFromString("1029.98"),
		Source: domain.SourceExchange, CapturedAt: 2000,
	}))
	rec := &domain.DiscrepancyRecord{
		ID:              "d-1",
		AccountID:       "acc-1",
		SnapshotDate:    "2025-01-02",
		ExpectedBalance: decimal.RequireFromString("1030.00"),
		ActualBalance:   decimal.RequireFromString("1029.98"),
		Discrepancy:     decimal.RequireFromString("-0.02"),
		DetectedAt:      3000,
	}
	require.NoError(t, ts.gw.Discrepancies().Insert(ctx, rec))
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestRun_PassesParams(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/reconciliation/run", map[string]any{
		"accountId":        "acc-1",
		"autoFix":          true,
		"autoFixThreshold": "2.50",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, ts.params)
	assert.Equal(t, "acc-1", ts.params.AccountID)
	assert.True(t, ts.params.AutoFix)
	assert.True(t, ts.params.AutoFixThreshold.Equal(decimal.RequireFromString("2.5")))

	var summary map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	for _, key := range []string{"accountsChecked", "discrepanciesFound", "autoFixed", "requiresReview"} {
		assert.Contains(t, summary, key)
	}
}

func TestRun_EmptyBodyUsesDefaults(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/reconciliation/run", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, ts.params.AccountID)
	assert.False(t, ts.params.AutoFix)
	assert.True(t, ts.params.AutoFixThreshold.Equal(discrepancy.DefaultAutoFixThreshold))
}

func TestRun_ErrorStatus(t *testing.T) {
	tests := []struct {
		name    string
		account string
		err     error
		want    int
	}{
		{"timeout", "acc-1", &ingestion.UpstreamTimeoutError{AccountID: "acc-1", Timeout: time.Second}, http.StatusGatewayTimeout},
		{"conflict", "acc-1", &orchestrator.PersistenceConflictError{AccountID: "acc-1", Err: storage.ErrConflict}, http.StatusConflict},
		{"page limit", "acc-1", fmt.Errorf("fetch: %w", ingestion.ErrPageLimit), http.StatusBadGateway},
		{"all accounts still return summary", "", fmt.Errorf("boom"), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.runErr = tt.err

			w := ts.do(t, http.MethodPost, "/api/reconciliation/run", map[string]any{"accountId": tt.account})
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestResolve_ManualWithFix(t *testing.T) {
	ts := newTestServer(t)
	ts.seedDiscrepancy(t)

	w := ts.do(t, http.MethodPost, "/api/discrepancies/d-1/resolve", map[string]any{
		"method": "manual", "notes": "bank statement checked", "applyFix": true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	var rec domain.DiscrepancyRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rec))
	assert.True(t, rec.Resolved)
	assert.Equal(t, domain.ResolutionManual, rec.ResolutionMethod)

	snap, err := ts.gw.Snapshots().Get(context.Background(), "acc-1", "2025-01-02")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(decimal.RequireFromString("1030")))

	again := ts.do(t, http.MethodPost, "/api/discrepancies/d-1/resolve", map[string]any{"method": "ignored"})
	assert.Equal(t, http.StatusConflict, again.Code)
}

func TestResolve_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.seedDiscrepancy(t)

	w := ts.do(t, http.MethodPost, "/api/discrepancies/d-1/resolve", map[string]any{"method": "auto"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/discrepancies/missing/resolve", map[string]any{"method": "ignored"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/discrepancies/d-1/resolve", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDiscrepancies(t *testing.T) {
	ts := newTestServer(t)
	ts.seedDiscrepancy(t)

	w := ts.do(t, http.MethodGet, "/api/discrepancies?accountId=acc-1&unresolved=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []domain.DiscrepancyRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "d-1", list[0].ID)

	w = ts.do(t, http.MethodGet, "/api/discrepancies?accountId=acc-2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/discrepancies?unresolved=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutSnapshot(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPut, "/api/accounts/acc-1/snapshots/2025-01-03", map[string]any{"balance": "1500.25"})
	require.Equal(t, http.StatusOK, w.Code)

	snap, err := ts.gw.Snapshots().Get(context.Background(), "acc-1", "2025-01-03")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(decimal.RequireFromString("1500.25")))
	assert.Equal(t, domain.SourceManual, snap.Source)
	assert.Equal(t, int64(1736000000000), snap.CapturedAt)

	w = ts.do(t, http.MethodPut, "/api/accounts/acc-1/snapshots/03-01-2025", map[string]any{"balance": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/accounts/acc-1/snapshots/2025-01-03", map[string]any{"balance": "1", "source": "oracle"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, ts.reports.Insert(ctx, &domain.RunReport{
			RunID: fmt.Sprintf("run-%d", i), AccountID: "acc-1", StartedAt: int64(i * 1000), Status: domain.RunSucceeded,
		}))
	}

	w := ts.do(t, http.MethodGet, "/api/accounts/acc-1/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var runs []domain.RunReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].RunID)

	w = ts.do(t, http.MethodGet, "/api/accounts/acc-1/runs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
