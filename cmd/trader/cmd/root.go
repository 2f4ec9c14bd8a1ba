package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/config"
	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "A risk-gated crypto trading engine for very small accounts",
	Long: `Trader evaluates market snapshots against configured strategies, admits
or rejects each proposed trade through a risk gate sized for a few dollars
of capital, and keeps the portfolio, journal and daily loss breaker in sync.

It provides tools for:
  - Backtesting strategies against historical bars
  - Running the live decision loop against a paper exchange
  - Querying the trade journal
  - Generating and validating configuration files`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log, nil
}

// openJournal opens the configured SQL store and CSV directory. Either may be
// absent; the returned store is nil without a DSN.
func openJournal(cfg config.JournalConfig, dsn string) (journal.Journal, *journal.Store, error) {
	if dsn == "" {
		dsn = cfg.DSN
	}

	var (
		multi journal.Multi
		store *journal.Store
	)
	if dsn != "" {
		s, err := journal.Open(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open journal: %w", err)
		}
		store = s
		multi = append(multi, s)
	}
	if cfg.CSVDir != "" {
		c, err := journal.NewCSV(cfg.CSVDir)
		if err != nil {
			if store != nil {
				store.Close()
			}
			return nil, nil, fmt.Errorf("open csv journal: %w", err)
		}
		multi = append(multi, c)
	}
	if len(multi) == 0 {
		return journal.Discard{}, nil, nil
	}
	return multi, store, nil
}
