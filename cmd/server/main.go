/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave approval and entitlement server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the entitlement policy (file or statutory default)
  3. Initialize SQLite store
  4. Create leave service, API handler and router
  5. Start ledger scheduler and HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    HTTP listen address (overrides APP_ADDR)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the ledger scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/leave.db"

  # Run with in-memory database and a custom tier table
  ENTITLEMENT_POLICY_FILE=./policy.json ./server -db=":memory:"

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/entitlement"
	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := api.NewLogger(os.Stdout, level, cfg.Environment)
	slog.SetDefault(logger)

	policy, err := loadPolicy(cfg)
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := leave.NewService(store, store, leave.NewLedgerUpdater(policy), leave.WithLogger(logger))
	handler := api.NewHandler(store, svc, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		LogLevel:       level,
	})

	scheduler := api.NewLedgerScheduler(svc, logger)
	scheduler.CheckInterval = cfg.LedgerRefreshInterval
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Addr), slog.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// loadPolicy reads ENTITLEMENT_POLICY_FILE when set and applies
// PARTIAL_YEAR_MODE on top of whichever table is in use.
func loadPolicy(cfg config.Config) (entitlement.Policy, error) {
	policy := entitlement.StatutoryPolicy()
	if cfg.EntitlementPolicyFile != "" {
		var err error
		if policy, err = factory.NewPolicyFactory().LoadPolicy(cfg.EntitlementPolicyFile); err != nil {
			return entitlement.Policy{}, err
		}
	}
	if cfg.PartialYearMode != "" {
		policy.PartialYear = entitlement.PartialYearMode(cfg.PartialYearMode)
	}
	return policy, policy.Validate()
}
