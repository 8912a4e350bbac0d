package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const claimBatchSize = 50

// AlarmSource hands out entities whose alarm is due.
type AlarmSource interface {
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Key, error)
}

// AlarmHandler runs one wake-up of an entity.
type AlarmHandler interface {
	Alarm(ctx context.Context, key Key) error
}

// Runner delivers due alarms. Entities run concurrently with each other but
// never twice at once.
type Runner struct {
	source  AlarmSource
	handler AlarmHandler
	tick    time.Duration
	lease   time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	running map[Key]bool
	wg      sync.WaitGroup
}

// NewRunner creates a Runner polling source every tick.
func NewRunner(source AlarmSource, handler AlarmHandler, tick, lease time.Duration, logger *slog.Logger) *Runner {
	if tick <= 0 {
		tick = 5 * time.Second
	}
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source:  source,
		handler: handler,
		tick:    tick,
		lease:   lease,
		logger:  logger,
		now:     time.Now,
		running: make(map[Key]bool),
	}
}

// Start runs the alarm loop until ctx is cancelled, then waits for
// in-flight cycles. Intended to be called with `go`.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("Game-day runner started", "tick", r.tick, "lease", r.lease)
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunDue(ctx)
		case <-ctx.Done():
			r.wg.Wait()
			r.logger.Info("Game-day runner stopped")
			return
		}
	}
}

// RunDue claims due entities once and starts their cycles.
func (r *Runner) RunDue(ctx context.Context) int {
	keys, err := r.source.ClaimDue(ctx, r.now(), r.lease, claimBatchSize)
	if err != nil {
		r.logger.Error("claim due alarms", "error", err)
		return 0
	}

	started := 0
	for _, key := range keys {
		if !r.acquire(key) {
			continue
		}
		started++
		r.wg.Add(1)
		go func(key Key) {
			defer r.wg.Done()
			defer r.release(key)
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("Alarm panicked", "league", key.League, "day", key.Day,
						"panic", rec, "stack", string(debug.Stack()))
				}
			}()
			if err := r.handler.Alarm(ctx, key); err != nil {
				r.logger.Warn("Alarm failed", "league", key.League, "day", key.Day, "error", err)
			}
		}(key)
	}
	return started
}

// Wait blocks until every started cycle has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) acquire(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[key] {
		return false
	}
	r.running[key] = true
	return true
}

func (r *Runner) release(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, key)
}
