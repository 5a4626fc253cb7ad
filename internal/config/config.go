// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration
type Config struct {
	// Storage
	UseMemory     bool
	PostgresDSN   string
	ClickhouseDSN string
	RedisAddr     string

	// Server
	HTTPAddr  string
	LogLevel  string
	LogPretty bool

	// Reconciliation defaults
	TolerancePct      decimal.Decimal
	AutoFixThreshold  decimal.Decimal
	MinDiscrepancyAbs decimal.Decimal
	MatchWindow       time.Duration
	ReportPrecision   int

	// Ingestion
	FetchTimeout  time.Duration
	FetchMaxPages int
	FixtureDir    string

	Schedule         string // cron expression, empty disables scheduled runs
	ReconcileOnStart bool   // run one full reconciliation at startup
	Concurrency      int
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads configuration from environment variables, after loading .env
// if present. Callers that layer flags on top validate afterwards.
func FromEnv() *Config {
	_ = godotenv.Load()

	return &Config{
		UseMemory:         getEnvAsBool("USE_MEMORY", false),
		PostgresDSN:       getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN:     getEnv("CLICKHOUSE_DSN", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogPretty:         getEnvAsBool("LOG_PRETTY", false),
		TolerancePct:      getEnvAsDecimal("RECONCILE_TOLERANCE_PCT", decimal.NewFromInt(1)),
		AutoFixThreshold:  getEnvAsDecimal("AUTO_FIX_THRESHOLD", decimal.RequireFromString("1.00")),
		MinDiscrepancyAbs: getEnvAsDecimal("MIN_DISCREPANCY_ABS", decimal.RequireFromString("0.01")),
		MatchWindow:       getEnvAsDuration("MATCH_WINDOW", 5*time.Minute),
		ReportPrecision:   getEnvAsInt("REPORT_PRECISION", 2),
		FetchTimeout:      getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
		FetchMaxPages:     getEnvAsInt("FETCH_MAX_PAGES", 50),
		FixtureDir:        getEnv("FIXTURE_DIR", "./fixtures"),
		Schedule:          getEnv("RECONCILE_SCHEDULE", "@every 1h"),
		ReconcileOnStart:  getEnvAsBool("RECONCILE_ON_START", false),
		Concurrency:       getEnvAsInt("RECONCILE_CONCURRENCY", 4),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required unless USE_MEMORY=true")
	}
	if c.TolerancePct.IsNegative() {
		return fmt.Errorf("RECONCILE_TOLERANCE_PCT must not be negative")
	}
	if c.AutoFixThreshold.IsNegative() {
		return fmt.Errorf("AUTO_FIX_THRESHOLD must not be negative")
	}
	if c.MinDiscrepancyAbs.IsNegative() {
		return fmt.Errorf("MIN_DISCREPANCY_ABS must not be negative")
	}
	if c.FetchMaxPages <= 0 {
		return fmt.Errorf("FETCH_MAX_PAGES must be positive")
	}
	if c.ReportPrecision < 0 {
		return fmt.Errorf("REPORT_PRECISION must not be negative")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
