package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"trade-reconciler/internal/discrepancy"
	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/ingestion"
	"trade-reconciler/internal/storage"
)

type runRequest struct {
	AccountID        string           `json:"accountId"`
	AutoFix          bool             `json:"autoFix"`
	AutoFixThreshold *decimal.Decimal `json:"autoFixThreshold"`
}

type resolveRequest struct {
	Method   domain.ResolutionMethod `json:"method"`
	Notes    string                  `json:"notes"`
	ApplyFix bool                    `json:"applyFix"`
}

type snapshotRequest struct {
	Balance          decimal.Decimal  `json:"balance"`
	UnrealizedPnl    *decimal.Decimal `json:"unrealizedPnl"`
	RealizedPnlToday *decimal.Decimal `json:"realizedPnlToday"`
	Source           string           `json:"source"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRun handles POST /api/reconciliation/run.
// A single-account run maps its error to a status code; an all-accounts run
// always returns the summary with failures listed.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := s.defaults
	params.AccountID = req.AccountID
	params.AutoFix = req.AutoFix
	if req.AutoFixThreshold != nil {
		if req.AutoFixThreshold.IsNegative() {
			s.writeError(w, http.StatusBadRequest, "autoFixThreshold must not be negative")
			return
		}
		params.AutoFixThreshold = *req.AutoFixThreshold
	}

	summary, err := s.reconciler.Run(r.Context(), params)
	if err != nil && (params.AccountID != "" || summary == nil) {
		s.log.Warn().Err(err).Str("account_id", params.AccountID).Msg("reconciliation run failed")
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// handleResolve handles POST /api/discrepancies/{id}/resolve.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := s.resolver.Resolve(r.Context(), discrepancy.ResolveRequest{
		DiscrepancyID: chi.URLParam(r, "id"),
		Method:        req.Method,
		Notes:         req.Notes,
		ApplyFix:      req.ApplyFix,
	})
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// handleListDiscrepancies handles GET /api/discrepancies?accountId=&unresolved=.
func (s *Server) handleListDiscrepancies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	unresolved := false
	if v := q.Get("unresolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "unresolved must be a boolean")
			return
		}
		unresolved = b
	}

	records, err := s.gateway.Discrepancies().ListByAccount(r.Context(), q.Get("accountId"), unresolved)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list discrepancies")
		s.writeError(w, statusFor(err), "failed to list discrepancies")
		return
	}
	if records == nil {
		records = []*domain.DiscrepancyRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// handlePutSnapshot handles PUT /api/accounts/{accountId}/snapshots/{date}.
// Manual captures overwrite any snapshot already stored for the day.
func (s *Server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountId")
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid date format, use YYYY-MM-DD")
		return
	}

	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	source := domain.SourceManual
	if req.Source != "" {
		source = domain.SnapshotSource(req.Source)
		if !source.Valid() {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source %q", req.Source))
			return
		}
	}

	snap := &domain.BalanceSnapshot{
		AccountID:        accountID,
		Date:             date,
		Balance:          req.Balance,
		UnrealizedPnl:    decimal.Zero,
		RealizedPnlToday: decimal.Zero,
		Source:           source,
		CapturedAt:       s.now().UnixMilli(),
	}
	if req.UnrealizedPnl != nil {
		snap.UnrealizedPnl = *req.UnrealizedPnl
	}
	if req.RealizedPnlToday != nil {
		snap.RealizedPnlToday = *req.RealizedPnlToday
	}

	if err := s.gateway.Snapshots().Upsert(r.Context(), snap); err != nil {
		s.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to store snapshot")
		s.writeError(w, statusFor(err), "failed to store snapshot")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// handleListRuns handles GET /api/accounts/{accountId}/runs?limit=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		s.writeError(w, http.StatusNotFound, "run history is not configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 || l > 1000 {
			s.writeError(w, http.StatusBadRequest, "invalid limit, must be 1-1000")
			return
		}
		limit = l
	}

	reports, err := s.reports.ListByAccount(r.Context(), chi.URLParam(r, "accountId"), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list runs")
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if reports == nil {
		reports = []*domain.RunReport{}
	}
	s.writeJSON(w, http.StatusOK, reports)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var timeout *ingestion.UpstreamTimeoutError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrAlreadyResolved), errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrStale):
		return http.StatusConflict
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ingestion.ErrPageLimit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
