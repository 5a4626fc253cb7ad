// Package api exposes the operator HTTP surface: triggering runs, resolving
// discrepancies, capturing manual snapshots, health and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"trade-reconciler/internal/discrepancy"
	"trade-reconciler/internal/domain"
	"trade-reconciler/internal/observability"
	"trade-reconciler/internal/orchestrator"
	"trade-reconciler/internal/storage"
)

// Reconciler runs reconciliation passes.
type Reconciler interface {
	Run(ctx context.Context, params orchestrator.RunParams) (*orchestrator.Summary, error)
}

// Resolver applies operator resolutions.
type Resolver interface {
	Resolve(ctx context.Context, req discrepancy.ResolveRequest) (*domain.DiscrepancyRecord, error)
}

// Config holds server configuration
type Config struct {
	Addr       string
	Reconciler Reconciler
	Resolver   Resolver
	Gateway    storage.Gateway
	Reports    storage.RunReportStore // optional
	Defaults   orchestrator.RunParams
	Log        zerolog.Logger
	Now        func() time.Time // optional, for tests
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	server     *http.Server
	reconciler Reconciler
	resolver   Resolver
	gateway    storage.Gateway
	reports    storage.RunReportStore
	defaults   orchestrator.RunParams
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		reconciler: cfg.Reconciler,
		resolver:   cfg.Resolver,
		gateway:    cfg.Gateway,
		reports:    cfg.Reports,
		defaults:   cfg.Defaults,
		log:        cfg.Log.With().Str("component", "api").Logger(),
		now:        cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a full run can take a while
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", observability.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/reconciliation/run", s.handleRun)

		r.Route("/discrepancies", func(r chi.Router) {
			r.Get("/", s.handleListDiscrepancies)
			r.Post("/{id}/resolve", s.handleResolve)
		})

		r.Route("/accounts/{accountId}", func(r chi.Router) {
			r.Put("/snapshots/{date}", s.handlePutSnapshot)
			r.Get("/runs", s.handleListRuns)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
