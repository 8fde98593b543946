// Package main provides the entry point for the dtefd evaluation
// orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/collect-intel/dtef-app-sub001/cmd/dtefd/commands"
	"github.com/collect-intel/dtef-app-sub001/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dtefd",
		Short: "dtefd - periodic evaluation orchestrator",
		Long: `dtefd schedules and aggregates model evaluation runs.

Commands:
  serve     Run the orchestrator daemon
  schedule  Run one scheduling pass and exit
  backfill  Rebuild all derived summaries and exit
  status    Show queue status of a running daemon`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewScheduleCommand())
	rootCmd.AddCommand(commands.NewBackfillCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "dtefd %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
