// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Config holds all configuration values for the API server and tripctl.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// Store selects where trips live: postgres (default) or memory.
	Store string

	// DatabaseURL is the Postgres connection string. Required unless both
	// Store and BackupStore avoid Postgres.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// AppEnv is development or production. Development exposes error
	// details and stacks in 500 responses.
	AppEnv string

	// ErrorLogPath is the append-only JSON-lines file for guard rejections,
	// backup failures and persistence errors.
	ErrorLogPath string

	// RedisURL enables the distributed per-trip lock. Empty means an
	// in-process lock, which is only safe with a single API instance.
	RedisURL string
	LockTTL  time.Duration
	LockWait time.Duration

	// BackupStore selects where pre-write snapshots go: postgres, mongo or memory.
	BackupStore   string
	MongoURL      string
	MongoDatabase string

	// BackupRequired makes a failed backup abort the write. When false the
	// failure is error-logged and the write proceeds.
	BackupRequired bool

	// HeuristicMatch lets id-less incoming items match stored items by
	// title and time.
	HeuristicMatch bool

	// MaxBodyBytes caps request body size.
	MaxBodyBytes int64
}

// IsDevelopment reports whether AppEnv is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, joined
// with any malformed values.
func Load() (Config, error) {
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		Store:         getEnv("STORE", StorePostgres),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSOrigins:   splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		AppEnv:        getEnv("APP_ENV", "development"),
		ErrorLogPath:  getEnv("ERROR_LOG_PATH", "logs/errors.log"),
		RedisURL:      os.Getenv("REDIS_URL"),
		BackupStore:   getEnv("BACKUP_STORE", StorePostgres),
		MongoURL:      os.Getenv("MONGO_URL"),
		MongoDatabase: getEnv("MONGO_DATABASE", "trips"),
	}

	var errs []error
	cfg.LockTTL = parseDuration(&errs, "LOCK_TTL", 30*time.Second)
	cfg.LockWait = parseDuration(&errs, "LOCK_WAIT", 5*time.Second)
	cfg.BackupRequired = parseBool(&errs, "BACKUP_REQUIRED", true)
	cfg.HeuristicMatch = parseBool(&errs, "AGENDA_HEURISTIC_MATCH", true)
	cfg.MaxBodyBytes = parseInt(&errs, "MAX_BODY_BYTES", 1<<20)

	oneOf(&errs, "STORE", cfg.Store, StorePostgres, StoreMemory)
	oneOf(&errs, "BACKUP_STORE", cfg.BackupStore, StorePostgres, StoreMongo, StoreMemory)
	oneOf(&errs, "APP_ENV", cfg.AppEnv, "development", "production")
	oneOf(&errs, "LOG_LEVEL", cfg.LogLevel, "debug", "info", "warn", "error")
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", cfg.MaxBodyBytes))
	}

	var missing []string
	if cfg.DatabaseURL == "" && (cfg.Store == StorePostgres || cfg.BackupStore == StorePostgres) {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.MongoURL == "" && cfg.BackupStore == StoreMongo {
		missing = append(missing, "MONGO_URL")
	}
	if len(missing) > 0 {
		errs = append([]error{fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))}, errs...)
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(errs *[]error, key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

func parseBool(errs *[]error, key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}

func parseInt(errs *[]error, key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func oneOf(errs *[]error, key, value string, allowed ...string) {
	if !slices.Contains(allowed, value) {
		*errs = append(*errs, fmt.Errorf("%s: %q is not one of %s", key, value, strings.Join(allowed, ", ")))
	}
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
