package commands

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/internal/config"
	"pricesync/internal/svc"
)

var (
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pricesync",
	Short: "Historical daily price sync",
	Long: `Synchronises daily OHLCV history for stocks and ETFs from Twelve Data,
Alpha Vantage and Yahoo Finance into Postgres.

Each symbol resumes from the day after its last stored bar. Providers are
tried in priority order, and large ranges are fetched in chunks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logx.ErrorLevel
		if verbose {
			level = logx.InfoLevel
		}
		logx.SetLevel(uint32(level))
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "f", "etc/pricesync.yaml", "the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

func loadService() (*svc.ServiceContext, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return svc.NewServiceContext(*cfg)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
