package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/collect-intel/dtef-app-sub001/internal/observability"
	"github.com/collect-intel/dtef-app-sub001/internal/queue"
	"github.com/collect-intel/dtef-app-sub001/internal/scheduler"
)

// inlineSink runs each scheduled job immediately on the calling goroutine.
// One-shot scheduling has no daemon queue to hand jobs to.
type inlineSink struct {
	ctx    context.Context
	count  int
	failed int
}

func (s *inlineSink) Enqueue(id string, fn queue.Job) (position, length int) {
	s.count++

	err := fn(s.ctx)
	if err != nil {
		s.failed++

		fmt.Fprintf(os.Stderr, "evaluation %s failed: %v\n", id, err)
	}

	return 0, 0
}

// NewScheduleCommand creates the one-shot scheduling command.
func NewScheduleCommand() *cobra.Command {
	var (
		configPath string
		force      bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run one scheduling pass and exit",
		Long: `Discovers periodic blueprints, runs the stale ones through the
evaluation pipeline inline, and exits. Useful for cron-driven deployments
and manual catch-up runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchedule(cmd.Context(), configPath, force, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")
	cmd.Flags().BoolVar(&force, "force", false, "schedule even blueprints with a fresh run")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap scheduled evaluations (0 uses the configured batch limit)")

	return cmd
}

func runSchedule(ctx context.Context, configPath string, force bool, limit int) error {
	a, err := buildApp(configPath, observability.ModeCLI)
	if err != nil {
		return err
	}

	a.updater.Start(ctx)

	sink := &inlineSink{ctx: ctx}
	sched := a.buildScheduler(sink)

	report, err := sched.Tick(ctx, scheduler.TickOptions{Force: force, Limit: limit})
	if err != nil {
		return err
	}

	a.logger.Info("scheduling pass complete",
		"commit", report.CommitSHA,
		"discovered", report.Discovered,
		"scheduled", report.Scheduled,
		"skipped_fresh", report.SkippedFresh,
		"errors", report.Errors,
		"run_failures", sink.failed)

	// Derived aggregates are normally rebuilt at queue drain; inline runs
	// trigger the rebuild explicitly when anything was evaluated.
	if sink.count > 0 {
		backfillErr := a.backfil.Run(ctx)
		if backfillErr != nil {
			return backfillErr
		}
	}

	return nil
}
