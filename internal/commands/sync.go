package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"pricesync/pkg/syncjob"
)

var (
	syncForce     bool
	syncClear     bool
	syncYearsBack int
	planForce     bool
)

var syncCmd = &cobra.Command{
	Use:   "sync SYMBOL...",
	Short: "Sync the given symbols",
	Long: `Fetch missing daily bars for the given symbols and print the run summary.

Examples:
  # Resume AAPL and MSFT from their last stored bar
  pricesync sync AAPL MSFT

  # Re-fetch full history, keeping existing rows
  pricesync sync SPY --force

  # Delete stored bars and reseed from the earliest available date
  pricesync sync QQQ --clear`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svcCtx, err := loadService()
		if err != nil {
			return err
		}
		var summary *syncjob.SyncSummary
		if syncClear {
			summary, err = svcCtx.Job.Reseed(cmd.Context(), args)
		} else {
			summary, err = svcCtx.Job.SyncSymbols(cmd.Context(), args, syncForce)
		}
		return finish(cmd, summary, err)
	},
}

var syncAllCmd = &cobra.Command{
	Use:   "sync-all",
	Short: "Sync every active symbol",
	Long: `Run an incremental update over all active symbols, or seed symbols
without data from N years back.

Examples:
  pricesync sync-all
  pricesync sync-all --years-back 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncYearsBack < 0 {
			return errors.New("--years-back cannot be negative")
		}
		svcCtx, err := loadService()
		if err != nil {
			return err
		}
		summary, err := svcCtx.Job.SyncAll(cmd.Context(), syncjob.SyncAllOptions{YearsBack: syncYearsBack})
		return finish(cmd, summary, err)
	},
}

var planCmd = &cobra.Command{
	Use:   "plan SYMBOL...",
	Short: "Show the ranges and chunks a sync would fetch",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svcCtx, err := loadService()
		if err != nil {
			return err
		}
		plans, err := svcCtx.Job.Plan(cmd.Context(), args, planForce)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), plans)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "resync from the earliest available date")
	syncCmd.Flags().BoolVar(&syncClear, "clear", false, "delete stored bars before syncing")
	syncCmd.MarkFlagsMutuallyExclusive("force", "clear")
	syncAllCmd.Flags().IntVar(&syncYearsBack, "years-back", 0, "seed symbols without data from N years ago (0 = incremental)")
	planCmd.Flags().BoolVar(&planForce, "force", false, "plan a full resync")

	rootCmd.AddCommand(syncCmd, syncAllCmd, planCmd)
}

// finish prints the summary and fails the command when any symbol failed.
func finish(cmd *cobra.Command, summary *syncjob.SyncSummary, err error) error {
	if summary != nil {
		if perr := printJSON(cmd.OutOrStdout(), summary); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	if summary != nil && summary.Failures > 0 {
		return &failedSymbolsError{count: summary.Failures}
	}
	return nil
}
