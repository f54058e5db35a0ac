package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pricesync/internal/cli"
	marketpersist "pricesync/internal/persistence/market"
	"pricesync/pkg/confkit"
	"pricesync/pkg/market"
)

var (
	exportFrom    string
	exportTo      string
	migrationFile string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check every configured provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcCtx, err := loadService()
		if err != nil {
			return err
		}
		results := svcCtx.Orchestrator.Health(cmd.Context())
		if err := printJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
		for _, r := range results {
			if r.Healthy {
				return nil
			}
		}
		return errors.New("no provider is healthy")
	},
}

var coverageCmd = &cobra.Command{
	Use:   "coverage [SYMBOL...]",
	Short: "Show stored date bounds per symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		svcCtx, err := loadService()
		if err != nil {
			return err
		}
		rows, err := svcCtx.History.Coverage(cmd.Context(), market.NormalizeSymbols(args))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rows)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export SYMBOL...",
	Short: "Write stored bars to the export directory",
	Long: `Re-export stored bars using the configured Export.Dir and Export.Format.

Examples:
  pricesync export AAPL --from 2020-01-01 --to 2020-12-31`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := exportRange(time.Now())
		if err != nil {
			return err
		}
		svcCtx, err := loadService()
		if err != nil {
			return err
		}
		if svcCtx.Exporter == nil {
			return errors.New("export is disabled: set Export.Dir")
		}
		paths, err := svcCtx.Exporter.Reexport(cmd.Context(), svcCtx.History, market.NormalizeSymbols(args), from, to)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), paths)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Postgres.DSN == "" {
			return errors.New("Postgres.DSN is not configured")
		}
		path := migrationFile
		if path == "" {
			if path, err = confkit.ProjectPath("migrations/001_init.sql"); err != nil {
				return err
			}
		}
		script, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration: %w", err)
		}
		store, err := marketpersist.Open(cmd.Context(), cfg.Postgres)
		if err != nil {
			return err
		}
		if err := store.Migrate(cmd.Context(), string(script)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", path)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, line := range cli.ConfigSummaryLines(cfg) {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first date, YYYY-MM-DD (default earliest)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last date, YYYY-MM-DD (default today)")
	migrateCmd.Flags().StringVar(&migrationFile, "file", "", "schema file (default migrations/001_init.sql)")

	rootCmd.AddCommand(healthCmd, coverageCmd, exportCmd, migrateCmd, configCmd)
}

func exportRange(now time.Time) (time.Time, time.Time, error) {
	from, to := market.FallbackEarliest, market.Day(now)
	var err error
	if exportFrom != "" {
		if from, err = market.ParseDay(exportFrom); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
	}
	if exportTo != "" {
		if to, err = market.ParseDay(exportTo); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", market.FormatDay(to), market.FormatDay(from))
	}
	return from, to, nil
}
