package commands

import (
	"github.com/spf13/cobra"

	"github.com/collect-intel/dtef-app-sub001/internal/observability"
)

// NewBackfillCommand creates the one-shot aggregate rebuild command.
func NewBackfillCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Rebuild all derived summaries and exit",
		Long: `Rebuilds every derived aggregate from the per-blueprint summaries:
fleet overview, latest runs, homepage, model summaries, and survey
summaries. Safe to run at any time; the rebuild is idempotent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(configPath, observability.ModeCLI)
			if err != nil {
				return err
			}

			return a.backfil.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")

	return cmd
}
