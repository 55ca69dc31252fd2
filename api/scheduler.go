/*
scheduler.go - Automated ledger rollover scheduler

PURPOSE:
  Periodically recomputes stored entitlement ledgers whose anniversary
  period has ended, so a requester's balance resets at each work
  anniversary without anyone filing a request.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Delegates to leave.Service.RefreshLedgers, which skips ledgers whose
    period still contains the current time
  - Safe to run alongside request traffic: each ledger is rewritten in its
    own store transaction

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour, LEDGER_REFRESH_INTERVAL)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewLedgerScheduler(service, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - leave/service.go: RefreshLedgers
  - leave/ledger.go: LedgerUpdater
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LedgerRefresher is the part of leave.Service the scheduler drives.
type LedgerRefresher interface {
	RefreshLedgers(ctx context.Context, asOf time.Time) (int, error)
}

// LedgerScheduler handles automated anniversary rollover.
type LedgerScheduler struct {
	Service       LedgerRefresher
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewLedgerScheduler creates a new scheduler.
func NewLedgerScheduler(svc LedgerRefresher, logger *slog.Logger) *LedgerScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerScheduler{
		Service:       svc,
		Logger:        logger,
		CheckInterval: time.Hour,
		Enabled:       true,
		now:           time.Now,
	}
}

// Start begins the scheduler. Calling Start on a running scheduler is a no-op.
func (ls *LedgerScheduler) Start() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if !ls.Enabled {
		ls.Logger.Info("ledger scheduler disabled, not starting")
		return
	}
	if ls.ticker != nil {
		return
	}

	ls.ticker = time.NewTicker(ls.CheckInterval)
	ls.stop = make(chan struct{})
	ls.wg.Add(1)

	go ls.run(ls.ticker, ls.stop)

	ls.Logger.Info("ledger scheduler started", slog.Duration("interval", ls.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight refresh to finish.
func (ls *LedgerScheduler) Stop() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.ticker == nil {
		return
	}
	ls.ticker.Stop()
	close(ls.stop)
	ls.wg.Wait()
	ls.ticker = nil
	ls.Logger.Info("ledger scheduler stopped")
}

func (ls *LedgerScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ls.wg.Done()

	// Run immediately on start
	ls.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			ls.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RunOnce performs one refresh pass and returns how many ledgers rolled over.
func (ls *LedgerScheduler) RunOnce(ctx context.Context) int {
	asOf := ls.now()
	n, err := ls.Service.RefreshLedgers(ctx, asOf)
	if err != nil {
		ls.Logger.ErrorContext(ctx, "ledger refresh failed", slog.Time("as_of", asOf), slog.String("error", err.Error()))
		return n
	}
	if n > 0 {
		ls.Logger.DebugContext(ctx, "ledger refresh pass complete", slog.Int("refreshed", n), slog.Time("as_of", asOf))
	}
	return n
}
