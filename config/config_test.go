package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ADDR", "DB_PATH", "APP_ENV", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS",
		"LEDGER_REFRESH_INTERVAL", "ENTITLEMENT_POLICY_FILE", "PARTIAL_YEAR_MODE"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "leave.db", cfg.DBPath)
	assert.Equal(t, "development", cfg.Environment)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, time.Hour, cfg.LedgerRefreshInterval)
	assert.Empty(t, cfg.EntitlementPolicyFile)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	// GIVEN: Every variable set explicitly
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("APP_ENV", "staging")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("LEDGER_REFRESH_INTERVAL", "90")
	t.Setenv("ENTITLEMENT_POLICY_FILE", "/etc/leave/policy.json")
	t.Setenv("PARTIAL_YEAR_MODE", "prorated")

	// WHEN: Loading
	cfg := FromEnv()

	// THEN: Values are taken as given, bare integers as seconds
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.LedgerRefreshInterval)
	assert.Equal(t, "prorated", cfg.PartialYearMode)
	require.NoError(t, cfg.Validate())

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestFromEnv_BadDurationFallsBack(t *testing.T) {
	t.Setenv("LEDGER_REFRESH_INTERVAL", "soon")
	assert.Equal(t, time.Hour, FromEnv().LedgerRefreshInterval)
}

func TestValidate(t *testing.T) {
	base := Config{Addr: ":8080", DBPath: "leave.db", LogLevel: "info", LedgerRefreshInterval: time.Minute}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = " " }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"tight interval", func(c *Config) { c.LedgerRefreshInterval = time.Millisecond }},
		{"unknown partial year", func(c *Config) { c.PartialYearMode = "weekly" }},
		{"memory db in production", func(c *Config) { c.Environment = "production"; c.DBPath = ":memory:" }},
		{"wildcard origin in production", func(c *Config) {
			c.Environment = "production"
			c.CORSAllowedOrigins = []string{"https://hr.example.com", "*"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_ProductionWithExplicitOrigins(t *testing.T) {
	cfg := Config{
		Addr:                  ":8080",
		DBPath:                "/var/lib/leave/leave.db",
		Environment:           "production",
		LogLevel:              "info",
		CORSAllowedOrigins:    []string{"https://hr.example.com"},
		LedgerRefreshInterval: time.Hour,
	}
	assert.True(t, cfg.IsProduction())
	assert.NoError(t, cfg.Validate())
}
