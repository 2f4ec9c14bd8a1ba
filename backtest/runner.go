package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

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

// ErrOutOfOrderBar means the input was not strictly increasing in time. It
// ends the run.
var ErrOutOfOrderBar = errors.New("out-of-order historical bar")

// Options controls how the runner behaves beyond the core replay.
type Options struct {
	// CloseAtEnd closes open positions at the last bar's close with reason
	// EndOfBacktest.
	CloseAtEnd bool

	// Seed makes trade IDs reproducible. Zero means 1.
	Seed int64

	// DefaultUSDSize is used for bars without a sizing hint.
	DefaultUSDSize float64

	// Location is the risk gate's day boundary. Nil means UTC.
	Location *time.Location

	// Exchange fills orders. Nil means a fresh paper exchange.
	Exchange broker.Exchange

	// Journal, when set, receives fills, trades and one equity snapshot per bar.
	Journal journal.Journal

	// Indicators, when set, fills SMA and RSI values missing from bars.
	Indicators *IndicatorPeriods
}

// Runner replays bars through the same coordinator, gate and portfolio a
// live run uses. It is single threaded.
type Runner struct {
	Limits         risk.Limits
	InitialCapital float64
	Strategies     []strategies.Strategy
	Feed           BarFeed
	Options        Options

	Log *zap.Logger
}

// Result is everything a run produced.
type Result struct {
	Trades     []portfolio.Trade     `json:"trades"`
	Fills      []execution.Fill      `json:"fills"`
	Rejections []execution.Rejection `json:"rejections"`
	Metrics    Metrics               `json:"metrics"`
	Equity     []EquityPoint         `json:"equity"`
	Summary    portfolio.Summary     `json:"summary"`

	Bars  int       `json:"bars"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Errors holds structural or adapter errors that aborted a single
	// symbol's action. They do not stop the run.
	Errors []error `json:"-"`
}

// Run reads the feed to EOF. For each bar it marks the position in the
// bar's symbol at the close and then runs one cycle at the bar's time.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.Feed == nil {
		return Result{}, fmt.Errorf("backtest: Feed is required")
	}
	defer r.Feed.Close()

	if len(r.Strategies) == 0 {
		return Result{}, fmt.Errorf("backtest: Strategies is required")
	}
	if r.InitialCapital <= 0 {
		return Result{}, fmt.Errorf("backtest: InitialCapital must be positive")
	}
	if err := r.Limits.Validate(); err != nil {
		return Result{}, fmt.Errorf("backtest: %w", err)
	}

	var enrich *Enricher
	if p := r.Options.Indicators; p != nil {
		if err := p.Validate(); err != nil {
			return Result{}, fmt.Errorf("backtest: %w", err)
		}
		enrich = NewEnricher(*p)
	}

	log := logging.OrNop(r.Log).Named("backtest")
	seed := r.Options.Seed
	if seed == 0 {
		seed = 1
	}
	ex := r.Options.Exchange
	if ex == nil {
		ex = broker.NewPaper("backtest", r.InitialCapital)
	}

	book, err := portfolio.New(r.InitialCapital, id.NewGenerator(seed), log)
	if err != nil {
		return Result{}, err
	}

	var (
		res   Result
		prev  time.Time
		coord *execution.Coordinator
		last  market.Snapshot
	)

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		bar, ok, err := r.Feed.Next()
		if err != nil {
			return Result{}, fmt.Errorf("backtest: bar %d: %w", res.Bars, err)
		}
		if !ok {
			break
		}
		if res.Bars > 0 && !bar.Time.After(prev) {
			return Result{}, fmt.Errorf("%w: bar %d (%s %s) is not after %s",
				ErrOutOfOrderBar, res.Bars, bar.Symbol, bar.Time.Format(time.RFC3339Nano), prev.Format(time.RFC3339Nano))
		}
		prev = bar.Time

		if coord == nil {
			// The daily window starts at the first bar, not at wall-clock now.
			gate := risk.NewGate(r.Limits, book, r.Options.Location, bar.Time, log)
			coord = execution.New(book, gate, r.Strategies, ex, log)
			if r.Options.Journal != nil {
				coord.Observe(execution.NewJournalObserver(r.Options.Journal, log))
			}
			res.Start = bar.Time
		}
		res.End = bar.Time
		res.Bars++

		if enrich != nil {
			bar = enrich.Enrich(bar)
		}

		snap := bar.Snapshot()
		if snap.RecommendedUSDSize == 0 {
			snap.RecommendedUSDSize = r.Options.DefaultUSDSize
		}
		last = snap

		res.Errors = append(res.Errors, coord.Mark([]market.Snapshot{snap})...)
		cr := coord.RunCycle(ctx, bar.Time, []market.Snapshot{snap})
		res.Fills = append(res.Fills, cr.Fills...)
		res.Rejections = append(res.Rejections, cr.Rejections...)
		res.Errors = append(res.Errors, cr.Errors...)

		r.recordEquity(book, bar.Time, &res, log)
	}

	if r.Options.CloseAtEnd && coord != nil {
		cr := coord.CloseAll(ctx, last.Time, portfolio.ReasonEndOfBacktest)
		res.Fills = append(res.Fills, cr.Fills...)
		res.Rejections = append(res.Rejections, cr.Rejections...)
		res.Errors = append(res.Errors, cr.Errors...)
	}

	res.Trades = book.Trades()
	res.Summary = book.Summary()
	res.Metrics = ComputeMetrics(r.InitialCapital, res.Summary.Balance.Total, res.Trades, res.Equity)

	log.Info("backtest complete",
		zap.Int("bars", res.Bars),
		zap.Int("trades", res.Metrics.Trades),
		zap.Float64("total_pnl", res.Metrics.TotalPnL),
		zap.Int("errors", len(res.Errors)))
	return res, nil
}

func (r *Runner) recordEquity(book *portfolio.Portfolio, at time.Time, res *Result, log *zap.Logger) {
	s := book.Summary()
	res.Equity = append(res.Equity, EquityPoint{Time: at, Equity: s.Balance.Total + s.TotalUnrealizedPnL})
	if r.Options.Journal == nil {
		return
	}
	if err := r.Options.Journal.RecordEquity(journal.SnapshotOf(at, s)); err != nil {
		log.Error("record equity", zap.Error(err))
	}
}

// Run replays bars with the given limits and starting capital. It is the
// short form of building a Runner over a SliceFeed.
func Run(ctx context.Context, bars []market.Bar, limits risk.Limits, initialCapital float64, strats []strategies.Strategy, opts Options) (Result, error) {
	r := &Runner{
		Limits:         limits,
		InitialCapital: initialCapital,
		Strategies:     strats,
		Feed:           NewSliceFeed(bars),
		Options:        opts,
	}
	return r.Run(ctx)
}
