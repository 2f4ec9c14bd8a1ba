package risk

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/pkg/logging"
	"github.com/rustyeddy/autotrader/portfolio"
)

// Book is the read-only portfolio state the gate decides against.
type Book interface {
	Balance() portfolio.Balance
	OpenCount() int
	UnrealizedPnL() float64
}

// DailyWindow tracks the balance reference points for the current day.
type DailyWindow struct {
	Start            time.Time `json:"start"`
	InitialBalance   float64   `json:"initial_balance"`
	HighWaterBalance float64   `json:"high_water_balance"`
}

// Gate admits or rejects proposed trades. It only reads the book and never
// performs I/O; its own mutable state is the daily window.
type Gate struct {
	mu     sync.Mutex
	limits Limits
	book   Book
	loc    *time.Location
	window DailyWindow
	log    *zap.Logger
}

// NewGate opens the first daily window at now with the book's current total.
// A nil loc means UTC.
func NewGate(limits Limits, book Book, loc *time.Location, now time.Time, log *zap.Logger) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	total := book.Balance().Total
	return &Gate{
		limits: limits,
		book:   book,
		loc:    loc,
		window: DailyWindow{
			Start:            startOfDay(now, loc),
			InitialBalance:   total,
			HighWaterBalance: total,
		},
		log: logging.OrNop(log).Named("risk"),
	}
}

func (g *Gate) Limits() Limits { return g.limits }

// Window returns a copy of the current daily window.
func (g *Gate) Window() DailyWindow {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.window
}

// CheckTradeRisk evaluates the loss a new position would take if its stop is
// hit, against the current total (position risk) and against the day's
// initial balance together with existing unrealized P&L (portfolio risk).
func (g *Gate) CheckTradeRisk(now time.Time, symbol string, entry, stop, quantity float64) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := g.book.Balance().Total
	g.rollLocked(now, total)

	if total <= 0 {
		return reject(CodeInsufficientBalance, "%s: %v (total %.8f)", symbol, ErrInsufficientBalance, total)
	}

	d := admit()
	d.PotentialLoss = PotentialLoss(entry, stop, quantity)
	d.PositionRiskPct = RiskPct(d.PotentialLoss, total)
	if d.PositionRiskPct > g.limits.MaxPositionRiskPct {
		d.add(CodePositionRiskTooHigh, fmt.Sprintf("position risk (%.2f%%) exceeds max allowed (%.2f%%)",
			d.PositionRiskPct, g.limits.MaxPositionRiskPct))
		g.log.Info("trade rejected", zap.String("symbol", symbol), zap.String("code", CodePositionRiskTooHigh),
			zap.Float64("position_risk_pct", d.PositionRiskPct))
		return d
	}

	exposure := abs(g.book.UnrealizedPnL()) + d.PotentialLoss
	d.PortfolioRiskPct = RiskPct(exposure, g.window.InitialBalance)
	if d.PortfolioRiskPct > g.limits.MaxPortfolioRiskPct {
		d.add(CodePortfolioRiskTooHigh, fmt.Sprintf("portfolio risk (%.2f%%) exceeds max allowed (%.2f%%)",
			d.PortfolioRiskPct, g.limits.MaxPortfolioRiskPct))
		g.log.Info("trade rejected", zap.String("symbol", symbol), zap.String("code", CodePortfolioRiskTooHigh),
			zap.Float64("portfolio_risk_pct", d.PortfolioRiskPct))
		return d
	}
	return d
}

// CheckOpenLimits applies the exposure checks for opening a position of usd
// size: open count, size bounds and available funds, in that order.
func (g *Gate) CheckOpenLimits(usd float64) Decision {
	if n := g.book.OpenCount(); n >= g.limits.MaxOpenPositions {
		return reject(CodeTooManyOpenPositions, "open positions %d >= max %d", n, g.limits.MaxOpenPositions)
	}
	if usd < g.limits.MinTradeUSD {
		return reject(CodeTradeTooSmall, "amount $%.2f is below minimum $%.2f", usd, g.limits.MinTradeUSD)
	}
	if usd > g.limits.MaxTradeUSD {
		return reject(CodeTradeTooLarge, "amount $%.2f exceeds maximum $%.2f", usd, g.limits.MaxTradeUSD)
	}
	if avail := g.book.Balance().Available; usd > avail {
		return reject(CodeInsufficientAvailable, "needed $%.2f, available $%.2f", usd, avail)
	}
	return admit()
}

// CheckDailyLossLimit rolls the window when the calendar day in the gate's
// timezone has changed, raises the high-water mark, and reports whether the
// drawdown from that mark has reached MaxDailyLossPct.
func (g *Gate) CheckDailyLossLimit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := g.book.Balance().Total
	g.rollLocked(now, total)

	if total > g.window.HighWaterBalance {
		g.window.HighWaterBalance = total
	}

	dd := DrawdownPct(g.window.HighWaterBalance, total)
	if dd >= g.limits.MaxDailyLossPct {
		g.log.Warn("daily loss limit reached",
			zap.Float64("drawdown_pct", dd),
			zap.Float64("max_daily_loss_pct", g.limits.MaxDailyLossPct),
			zap.Float64("high_water", g.window.HighWaterBalance),
			zap.Float64("total", total))
		return true
	}
	return false
}

func (g *Gate) rollLocked(now time.Time, total float64) {
	day := startOfDay(now, g.loc)
	if day.Equal(g.window.Start) {
		return
	}
	g.window = DailyWindow{
		Start:            day,
		InitialBalance:   total,
		HighWaterBalance: total,
	}
	g.log.Info("daily risk window reset",
		zap.Time("start", day),
		zap.Float64("initial_balance", total))
}

// startOfDay truncates t to midnight of its full calendar date in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
