package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/collect-intel/dtef-app-sub001/internal/observability"
	"github.com/collect-intel/dtef-app-sub001/internal/queue"
	"github.com/collect-intel/dtef-app-sub001/internal/scheduler"
	"github.com/collect-intel/dtef-app-sub001/internal/server"
	"github.com/collect-intel/dtef-app-sub001/internal/store"
	"github.com/collect-intel/dtef-app-sub001/pkg/version"
)

// shutdownGrace bounds telemetry flush on exit.
const shutdownGrace = 10 * time.Second

// NewServeCommand creates the daemon command.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator daemon",
		Long: `Runs the full orchestrator: periodic blueprint discovery, the bounded
evaluation queue, incremental summary maintenance, drain-time backfill, the
admin HTTP API, and the diagnostics endpoints.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")

	return cmd
}

func runServe(configPath string) error {
	a, err := buildApp(configPath, observability.ModeServe)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.updater.Start(ctx)

	// The drain continuation re-enters the scheduler, so the queue holds a
	// late-bound reference to it.
	var sched *scheduler.Scheduler

	q := queue.New(ctx, queue.Config{
		Concurrency: a.cfg.Queue.Concurrency,
		DrainWait:   a.cfg.DrainWait(),
		Backfill:    a.backfil.Run,
		OnDrained: func(drainCtx context.Context) error {
			_, tickErr := sched.Tick(drainCtx, scheduler.TickOptions{})

			return tickErr
		},
		Logger: a.logger,
	})

	sched = a.buildScheduler(q)

	cron := scheduler.NewCron(scheduler.CronConfig{
		Scheduler:      sched,
		FirstFireDelay: a.cfg.FirstFireDelay(),
		Interval:       a.cfg.TickInterval(),
		Logger:         a.logger,
	})

	go cron.Run(ctx)

	storeProbe := observability.ReadyProbe{
		Name: "store",
		Probe: func(probeCtx context.Context) error {
			_, getErr := a.store.Get(probeCtx, store.FleetSummaryKey)
			if errors.Is(getErr, store.ErrNotFound) {
				// An empty store is reachable, just not yet populated.
				return nil
			}

			return getErr
		},
	}

	diag, err := observability.NewDiagnosticsServer(a.cfg.Telemetry.DiagnosticsAddr, q.Stats, storeProbe)
	if err != nil {
		return err
	}

	defer func() { _ = diag.Close() }()

	red, err := observability.NewREDMetrics(diag.Meter())
	if err != nil {
		return err
	}

	admin, err := server.New(a.cfg.Server.ListenAddr, server.Deps{
		Scheduler:  sched,
		QueueStats: q.Stats,
		Secret:     a.cfg.Server.AuthSecret,
		Version:    version.Version,
		Metrics:    red,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	defer func() { _ = admin.Close() }()

	a.logger.Info("dtefd started",
		"admin_addr", admin.Addr(),
		"diagnostics_addr", diag.Addr(),
		"version", version.Version)

	<-ctx.Done()

	a.logger.Info("shutting down")

	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return a.obs.Shutdown(flushCtx)
}
