package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/config"
	"github.com/rustyeddy/autotrader/execution"
	"github.com/rustyeddy/autotrader/live"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/notify"
	"github.com/rustyeddy/autotrader/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the live decision loop against the paper exchange",
	Long: `Run subscribes to the snapshot collector configured in market.feed_url,
evaluates every configured strategy once per engine.cycle_interval and
records fills, trades and equity to the journal. Stop it with Ctrl-C.

Examples:
  trader run --config trader.yaml
  TRADER_MARKET_FEED_URL=ws://localhost:8080/snapshots trader run`,
	Args: cobra.NoArgs,
	RunE: runLive,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Market.FeedURL == "" {
		return fmt.Errorf("market.feed_url is required for run")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trader, closeJournal, err := buildTrader(cfg, log)
	if err != nil {
		return err
	}
	defer closeJournal()

	if err := trader.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	log.Info("trader stopped")
	return nil
}

func buildTrader(cfg *config.Config, log *zap.Logger) (*live.Trader, func(), error) {
	loc, err := cfg.Risk.Location()
	if err != nil {
		return nil, nil, err
	}
	cycle, err := cfg.Engine.Cycle()
	if err != nil {
		return nil, nil, err
	}
	refresh, err := cfg.Engine.Refresh()
	if err != nil {
		return nil, nil, err
	}
	strats, err := strategies.NewAll(cfg.Strategies, cfg.Risk.Limits)
	if err != nil {
		return nil, nil, fmt.Errorf("strategy: %w", err)
	}

	var ex broker.Exchange = paperExchange(cfg, "paper")
	if cfg.Exchange.RateLimitRPS > 0 {
		ex = broker.NewLimited(ex, cfg.Exchange.RateLimitRPS, cfg.Exchange.RateLimitBurst)
	}

	store := market.NewStore()
	var source live.Service
	if cfg.Market.Streaming() {
		source = market.NewFeed(cfg.Market.FeedURL, store, log)
	} else {
		source = market.NewRefresher(market.NewHTTPSource(cfg.Market.FeedURL, cfg.Market.Token),
			store, cfg.Symbols, refresh, log)
	}

	j, sqlStore, err := openJournal(cfg.Journal, "")
	if err != nil {
		return nil, nil, err
	}

	t := &live.Trader{
		Limits:         cfg.Risk.Limits,
		Strategies:     strats,
		Location:       loc,
		InitialBalance: cfg.Account.InitialBalance,
		Exchange:       ex,
		Store:          store,
		Symbols:        cfg.Symbols,
		Interval:       cycle,
		Journal:        j,
		Services:       []live.Service{source},
		Log:            log,
	}
	if sqlStore != nil {
		t.History = sqlStore
	}

	if cfg.Notify.Telegram() {
		tg, err := notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, log)
		if err != nil {
			j.Close()
			return nil, nil, err
		}
		tg.Rejections = cfg.Notify.Rejections
		t.Observers = append(t.Observers, execution.Observer(tg))
		t.Services = append(t.Services, tg)
	}

	return t, func() {
		if err := j.Close(); err != nil {
			log.Error("failed to close journal", zap.Error(err))
		}
	}, nil
}
