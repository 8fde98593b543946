package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// DefaultFirstFireDelay is how long after process start the first tick
// fires, leaving the process time to finish coming up.
const DefaultFirstFireDelay = 60 * time.Second

// DefaultTickInterval is the steady-state interval between ticks.
const DefaultTickInterval = time.Hour

// CronConfig configures a Cron.
type CronConfig struct {
	Scheduler *Scheduler

	// FirstFireDelay defaults to DefaultFirstFireDelay.
	FirstFireDelay time.Duration

	// Interval defaults to DefaultTickInterval.
	Interval time.Duration

	Logger *slog.Logger
}

// Cron drives the scheduler on a fixed interval.
type Cron struct {
	cfg CronConfig
}

// NewCron creates a Cron.
func NewCron(cfg CronConfig) *Cron {
	if cfg.FirstFireDelay <= 0 {
		cfg.FirstFireDelay = DefaultFirstFireDelay
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickInterval
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Cron{cfg: cfg}
}

// Run blocks until ctx is cancelled, invoking one tick after the first-fire
// delay and then one per interval. Tick failures are logged; the loop
// keeps going.
func (c *Cron) Run(ctx context.Context) {
	first := time.NewTimer(c.cfg.FirstFireDelay)
	defer first.Stop()

	select {
	case <-ctx.Done():
		return
	case <-first.C:
		c.tick(ctx)
	}

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Cron) tick(ctx context.Context) {
	_, err := c.cfg.Scheduler.Tick(ctx, TickOptions{})
	if err != nil {
		c.cfg.Logger.Error("scheduled tick failed", "error", err)
	}
}
