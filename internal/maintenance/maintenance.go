// Package maintenance runs periodic background tasks as Go tickers: arming
// upcoming game days and sweeping entities whose purge alarm was lost.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/scoracle-alerts/internal/scheduler"
)

// Sweeper deletes game-day entities older than a cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	RefreshInterval time.Duration // Arm today and tomorrow per league
	SweepInterval   time.Duration // Delete stale entities
	SweepAge        time.Duration // How old a day must be before it is swept
	Leagues         []string
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig(leagues []string) Config {
	return Config{
		RefreshInterval: time.Hour,
		SweepInterval:   6 * time.Hour,
		SweepAge:        7 * 24 * time.Hour,
		Leagues:         leagues,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, refresher Refresher, sweeper Sweeper, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"refresh", cfg.RefreshInterval,
		"sweep", cfg.SweepInterval,
		"leagues", cfg.Leagues)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.RefreshInterval > 0 {
		t := time.NewTicker(cfg.RefreshInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "refresh", func() {
			RefreshUpcoming(ctx, refresher, cfg.Leagues, time.Now(), logger)
		})
	}

	if cfg.SweepInterval > 0 {
		t := time.NewTicker(cfg.SweepInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "sweep", func() {
			sweepStale(ctx, sweeper, time.Now().Add(-cfg.SweepAge), logger)
		})
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// sweepStale removes entities for days before cutoff. Purge alarms normally
// clean these up; this catches any that were lost.
func sweepStale(ctx context.Context, sweeper Sweeper, cutoff time.Time, logger *slog.Logger) {
	n, err := sweeper.Sweep(ctx, cutoff)
	if err != nil {
		logger.Warn("Sweep: failed to delete stale game days", "error", err)
		return
	}
	if n > 0 {
		logger.Info("Sweep: deleted stale game days", "count", n, "cutoff", cutoff.Format(time.DateOnly))
	}
}

// compile-time check that the Postgres host can be swept.
var _ Sweeper = (*scheduler.PGHost)(nil)
