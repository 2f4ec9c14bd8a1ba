package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/execution"
	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/pkg/id"
	"github.com/rustyeddy/autotrader/pkg/logging"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/risk"
	"github.com/rustyeddy/autotrader/strategies"
)

// Service is a background loop supervised alongside the cycle loop, such as
// a market.Refresher, a market.Feed or a notifier.
type Service interface {
	Run(ctx context.Context) error
}

// History supplies trades closed in earlier sessions.
type History interface {
	ListTrades(ctx context.Context) ([]portfolio.Trade, error)
}

// Trader runs evaluation cycles on a fixed interval against the latest
// market snapshots. Cycles run on a single goroutine and never overlap.
type Trader struct {
	Limits         risk.Limits
	Strategies     []strategies.Strategy
	Location       *time.Location
	InitialBalance float64
	Exchange       broker.Exchange
	Store          *market.Store
	Symbols        []string
	Interval       time.Duration

	// Optional.
	History   History
	Journal   journal.Journal
	Observers []execution.Observer
	Services  []Service
	Now       func() time.Time
	Log       *zap.Logger

	book  *portfolio.Portfolio
	coord *execution.Coordinator
}

func (t *Trader) validate() error {
	switch {
	case t.Exchange == nil:
		return errors.New("live: Exchange is required")
	case t.Store == nil:
		return errors.New("live: Store is required")
	case len(t.Strategies) == 0:
		return errors.New("live: Strategies is required")
	case len(t.Symbols) == 0:
		return errors.New("live: Symbols is required")
	case t.Interval <= 0:
		return errors.New("live: Interval must be positive")
	case t.InitialBalance <= 0:
		return errors.New("live: InitialBalance must be positive")
	}
	return t.Limits.Validate()
}

func (t *Trader) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Start builds the portfolio, seeds it with past trades and syncs its balance
// from the exchange, then opens the risk window at the synced total.
func (t *Trader) Start(ctx context.Context) error {
	if err := t.validate(); err != nil {
		return err
	}
	log := logging.OrNop(t.Log)

	book, err := portfolio.New(t.InitialBalance, id.NewRandom(), log)
	if err != nil {
		return err
	}

	if t.History != nil {
		trades, err := t.History.ListTrades(ctx)
		if err != nil {
			return fmt.Errorf("load trade history: %w", err)
		}
		book.SeedTrades(trades)
		log.Info("seeded trade history", zap.Int("trades", len(trades)))
	}

	bal, err := t.Exchange.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("sync balance: %w", err)
	}
	if err := book.SyncBalance(bal); err != nil {
		return fmt.Errorf("sync balance: %w", err)
	}

	gate := risk.NewGate(t.Limits, book, t.Location, t.now(), log)
	coord := execution.New(book, gate, t.Strategies, t.Exchange, log)
	for _, o := range t.Observers {
		coord.Observe(o)
	}
	if t.Journal != nil {
		coord.Observe(execution.NewJournalObserver(t.Journal, log))
	}

	t.book, t.coord = book, coord
	log.Info("trader started",
		zap.Float64("balance", bal),
		zap.Strings("symbols", t.Symbols),
		zap.Duration("interval", t.Interval))
	return nil
}

// Portfolio is nil until Start succeeds.
func (t *Trader) Portfolio() *portfolio.Portfolio { return t.book }

// Cycle marks open positions and runs one evaluation over the current store
// view, then records an equity snapshot.
func (t *Trader) Cycle(ctx context.Context) (execution.CycleResult, error) {
	if t.coord == nil {
		return execution.CycleResult{}, errors.New("live: Start has not been called")
	}
	log := logging.OrNop(t.Log)
	now := t.now()

	snaps := t.Store.View().Snapshots(t.Symbols...)
	if len(snaps) == 0 {
		log.Debug("no snapshots yet")
	}
	for _, err := range t.coord.Mark(snaps) {
		log.Warn("mark to market failed", zap.Error(err))
	}

	res := t.coord.RunCycle(ctx, now, snaps)
	if t.Journal != nil {
		if err := t.Journal.RecordEquity(journal.SnapshotOf(now, t.book.Summary())); err != nil {
			log.Error("failed to record equity", zap.Error(err))
		}
	}
	log.Debug("cycle complete",
		zap.Int("snapshots", len(snaps)),
		zap.Int("fills", len(res.Fills)),
		zap.Int("rejections", len(res.Rejections)),
		zap.Int("errors", len(res.Errors)),
		zap.Bool("halted", res.Halted))
	return res, nil
}

// Run starts the trader and supervises the cycle loop and every service until
// ctx is cancelled or one of them fails. Cancellation is a clean exit.
func (t *Trader) Run(ctx context.Context) error {
	if err := t.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range t.Services {
		svc := svc
		g.Go(func() error { return svc.Run(gctx) })
	}
	g.Go(func() error { return t.loop(gctx) })

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

func (t *Trader) loop(ctx context.Context) error {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		if _, err := t.Cycle(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
