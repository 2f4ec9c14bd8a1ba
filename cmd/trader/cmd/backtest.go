package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/backtest"
	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/config"
	"github.com/rustyeddy/autotrader/strategies"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars through the strategies and risk gate",
	Long: `Backtest replays a CSV of bars through the same coordinator, risk gate
and portfolio the live loop uses, and reports trade statistics.

A header row maps columns by name and must name time, symbol and close.
Optional columns: open, high, low, volume, sma_short, sma_long, rsi,
recommended_usd_size, small_account, good_time.

Example:
  trader backtest --bars data/btc_1h.csv --from 2025-01-01 --to 2025-02-01`,
	RunE: runBacktest,
}

var (
	btBarsPath string
	btFrom     string
	btTo       string
	btJSON     bool
	btCloseEnd bool
	btJournal  string
	btCSVDir   string
	btSeed     int64
	btCompute  bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btBarsPath, "bars", "b", "", "path to bar CSV (required)")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "first day to replay (YYYY-MM-DD or RFC3339)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "replay bars before this day (YYYY-MM-DD or RFC3339)")
	backtestCmd.Flags().BoolVar(&btJSON, "json", false, "print trades and metrics as JSON")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", false, "close open positions at the last bar")
	backtestCmd.Flags().StringVar(&btJournal, "journal", "", "journal DSN for the run (sqlite path or postgres:// URL)")
	backtestCmd.Flags().StringVar(&btCSVDir, "csv-dir", "", "also write trades, fills and equity CSVs here")
	backtestCmd.Flags().Int64Var(&btSeed, "seed", 0, "trade ID seed (overrides backtest.seed)")
	backtestCmd.Flags().BoolVar(&btCompute, "indicators", false, "compute SMA 5/10 and RSI 14 for bars missing them")

	backtestCmd.MarkFlagRequired("bars")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	loc, err := cfg.Risk.Location()
	if err != nil {
		return err
	}
	from, err := parseDay(btFrom, loc)
	if err != nil {
		return fmt.Errorf("--from: %w", err)
	}
	to, err := parseDay(btTo, loc)
	if err != nil {
		return fmt.Errorf("--to: %w", err)
	}

	strats, err := strategies.NewAll(cfg.Strategies, cfg.Risk.Limits)
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	feed, err := backtest.NewCSVBarFeed(btBarsPath, from, to)
	if err != nil {
		return fmt.Errorf("open bars: %w", err)
	}
	defer feed.Close()

	j, _, err := openJournal(config.JournalConfig{CSVDir: btCSVDir}, btJournal)
	if err != nil {
		return err
	}
	defer j.Close()

	opts := backtest.Options{
		CloseAtEnd:     btCloseEnd || cfg.Backtest.CloseAtEnd,
		Seed:           cfg.Backtest.Seed,
		DefaultUSDSize: cfg.Backtest.DefaultUSDSize,
		Location:       loc,
		Exchange:       paperExchange(cfg, "backtest"),
		Journal:        j,
	}
	if btSeed != 0 {
		opts.Seed = btSeed
	}
	if p := cfg.Backtest.Indicators; p != nil {
		opts.Indicators = p
	} else if btCompute {
		p := backtest.DefaultIndicatorPeriods()
		opts.Indicators = &p
	}

	runner := &backtest.Runner{
		Limits:         cfg.Risk.Limits,
		InitialCapital: cfg.Account.InitialBalance,
		Strategies:     strats,
		Feed:           feed,
		Options:        opts,
		Log:            log,
	}

	log.Info("backtest starting",
		zap.String("bars", btBarsPath),
		zap.Int("strategies", len(strats)),
		zap.Float64("initial_capital", cfg.Account.InitialBalance))

	res, err := runner.Run(context.Background())
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	if btJSON {
		return backtest.WriteJSON(cmd.OutOrStdout(), res)
	}
	backtest.PrintReport(cmd.OutOrStdout(), res)
	return nil
}

// paperExchange builds the configured paper exchange. Backtests never
// throttle; the rate limit only applies to the live loop.
func paperExchange(cfg *config.Config, name string) *broker.Paper {
	p := broker.NewPaper(name, cfg.Account.InitialBalance)
	p.SlippageBps = cfg.Exchange.SlippageBps
	p.MinNotional = cfg.Exchange.MinNotional
	return p
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
