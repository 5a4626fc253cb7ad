// Package main runs the reconciliation service: the operator HTTP API,
// scheduled reconciliation of every known account, and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"trade-reconciler/internal/api"
	"trade-reconciler/internal/config"
	"trade-reconciler/internal/discrepancy"
	"trade-reconciler/internal/ingestion"
	"trade-reconciler/internal/logger"
	"trade-reconciler/internal/orchestrator"
	"trade-reconciler/internal/scheduler"
	"trade-reconciler/internal/storage"
	chstore "trade-reconciler/internal/storage/clickhouse"
	"trade-reconciler/internal/storage/memory"
	"trade-reconciler/internal/storage/migrations"
	pgstore "trade-reconciler/internal/storage/postgres"
	"trade-reconciler/internal/storage/redislock"
)

// stores holds the storage implementations the service runs on.
type stores struct {
	gateway storage.Gateway
	reports storage.RunReportStore
	locker  storage.AccountLocker
}

func main() {
	cfg := config.FromEnv()

	flag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (run history)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for cross-process account locks")
	flag.StringVar(&cfg.FixtureDir, "fixture-dir", cfg.FixtureDir, "Directory of upstream fixture pages")
	flag.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "Cron schedule for full runs (empty disables)")
	flag.BoolVar(&cfg.ReconcileOnStart, "reconcile-on-start", cfg.ReconcileOnStart, "Run one full reconciliation at startup")
	flag.BoolVar(&cfg.UseMemory, "use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create stores")
	}
	defer cleanup()

	fetcher := ingestion.NewFetcher(ingestion.FetcherOptions{
		Source:   ingestion.NewFileSource(cfg.FixtureDir),
		Timeout:  cfg.FetchTimeout,
		MaxPages: cfg.FetchMaxPages,
		Logger:   log,
	})
	workflow := discrepancy.NewWorkflow(st.gateway, log)
	orch := orchestrator.New(orchestrator.Options{
		Gateway:     st.gateway,
		Fetcher:     fetcher,
		Locker:      st.locker,
		Reports:     st.reports,
		Workflow:    workflow,
		Concurrency: cfg.Concurrency,
		Logger:      log,
	})
	defaults := orchestrator.ParamsFromConfig(cfg)

	srv := api.New(api.Config{
		Addr:       cfg.HTTPAddr,
		Reconciler: orch,
		Resolver:   workflow,
		Gateway:    st.gateway,
		Reports:    st.reports,
		Defaults:   defaults,
		Log:        log,
	})

	sched := scheduler.New(log)
	job := scheduler.NewReconcileJob(scheduler.ReconcileJobConfig{
		Runner: orch,
		Params: defaults,
		Log:    log,
	})
	if cfg.Schedule != "" {
		if err := sched.AddJob(cfg.Schedule, job); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Schedule).Msg("Invalid reconcile schedule")
		}
	}
	sched.Start()
	if cfg.ReconcileOnStart {
		go func() {
			if err := sched.RunNow(job); err != nil {
				log.Error().Err(err).Msg("Startup reconciliation failed")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	sched.Stop()
	log.Info().Msg("Shutdown complete")
}

// createStores wires storage from configuration. Postgres holds durable state,
// ClickHouse the run history, Redis the cross-process account lock; each
// optional backend falls back to its in-memory implementation.
func createStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, func(), error) {
	if cfg.UseMemory {
		log.Info().Msg("Using in-memory storage")
		return &stores{
			gateway: memory.NewGateway(),
			reports: memory.NewRunReportStore(),
			locker:  memory.NewLocker(),
		}, func() {}, nil
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, pool.Close)

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		cleanup()
		return nil, nil, err
	}

	st := &stores{
		gateway: pgstore.NewGateway(pool),
		reports: memory.NewRunReportStore(),
		locker:  memory.NewLocker(),
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = conn.Close() })
		st.reports = chstore.NewRunReportStore(conn)
		log.Info().Msg("Run history stored in ClickHouse")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		st.locker = redislock.NewLocker(rdb, redislock.DefaultTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("Account locks held in Redis")
	}

	return st, cleanup, nil
}
