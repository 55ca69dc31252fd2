/*
Package config loads server settings from the environment.

PURPOSE:
  Reads APP_* and related variables (optionally from a .env file) into a
  Config value that cmd/server uses to build the store, policy, router and
  ledger scheduler.

VARIABLES:
  APP_ADDR                  listen address            (default ":8080")
  DB_PATH                   sqlite file or ":memory:" (default "leave.db")
  APP_ENV                   development | production  (default "development")
  LOG_LEVEL                 debug | info | warn | error (default "info")
  CORS_ALLOWED_ORIGINS      comma separated origins   (default: localhost dev origins)
  LEDGER_REFRESH_INTERVAL   Go duration               (default "1h")
  ENTITLEMENT_POLICY_FILE   JSON policy, see factory  (default: statutory)
  PARTIAL_YEAR_MODE         statutory | none | prorated

SEE ALSO:
  - cmd/server/main.go: consumer
  - factory/policy.go: policy file format
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/leave-engine/entitlement"
)

type Config struct {
	Addr                  string
	DBPath                string
	Environment           string
	LogLevel              string
	CORSAllowedOrigins    []string
	LedgerRefreshInterval time.Duration
	EntitlementPolicyFile string
	PartialYearMode       string
}

// Load reads .env (when present) and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment only.
func FromEnv() Config {
	return Config{
		Addr:                  getEnv("APP_ADDR", ":8080"),
		DBPath:                getEnv("DB_PATH", "leave.db"),
		Environment:           getEnv("APP_ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", nil),
		LedgerRefreshInterval: getEnvDuration("LEDGER_REFRESH_INTERVAL", time.Hour),
		EntitlementPolicyFile: getEnv("ENTITLEMENT_POLICY_FILE", ""),
		PartialYearMode:       getEnv("PARTIAL_YEAR_MODE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		// Bare integers are taken as seconds.
		secs, convErr := strconv.Atoi(value)
		if convErr != nil {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("APP_ADDR must not be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.LedgerRefreshInterval < time.Second {
		return fmt.Errorf("LEDGER_REFRESH_INTERVAL must be at least 1s")
	}
	switch entitlement.PartialYearMode(c.PartialYearMode) {
	case "", entitlement.PartialYearStatutory, entitlement.PartialYearNone, entitlement.PartialYearProrated:
	default:
		return fmt.Errorf("PARTIAL_YEAR_MODE %q is not one of statutory, none, prorated", c.PartialYearMode)
	}
	if c.IsProduction() {
		if c.DBPath == ":memory:" {
			return fmt.Errorf("DB_PATH must point to a file in production")
		}
		if slices.Contains(c.CORSAllowedOrigins, "*") {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS must list explicit origins in production")
		}
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is invalid: %w", c.LogLevel, err)
	}
	return level, nil
}

// IsProduction reports whether APP_ENV is "production".
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
