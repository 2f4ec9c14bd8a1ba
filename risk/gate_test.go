package risk

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/portfolio"
)

// fakeBook is a settable Book for gate tests.
type fakeBook struct {
	bal        portfolio.Balance
	open       int
	unrealized float64
}

func (b *fakeBook) Balance() portfolio.Balance { return b.bal }
func (b *fakeBook) OpenCount() int             { return b.open }
func (b *fakeBook) UnrealizedPnL() float64     { return b.unrealized }

var day1 = time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)

func newGate(t *testing.T, total float64) (*Gate, *fakeBook) {
	t.Helper()
	book := &fakeBook{bal: portfolio.Balance{Total: total, Available: total}}
	return NewGate(DefaultLimits(), book, time.UTC, day1, nil), book
}

func TestCheckTradeRiskAllowed(t *testing.T) {
	t.Parallel()

	g, _ := newGate(t, 5)

	// 0.0004 BTC with a 5% stop risks $1, 20% of a $5 account.
	d := g.CheckTradeRisk(day1, "BTC/USDT", 50000, 47500, 0.0004)
	require.True(t, d.Allowed, d.Reason())
	assert.InDelta(t, 1.0, d.PotentialLoss, 1e-9)
	assert.InDelta(t, 20.0, d.PositionRiskPct, 1e-9)
	assert.Empty(t, d.Reason())
}

func TestCheckTradeRiskPositionTooHigh(t *testing.T) {
	t.Parallel()

	g, _ := newGate(t, 5)

	d := g.CheckTradeRisk(day1, "BTC/USDT", 50000, 40000, 0.002)
	require.False(t, d.Allowed)
	assert.Equal(t, CodePositionRiskTooHigh, d.Code())
	assert.Contains(t, d.Reason(), "position risk")
}

func TestCheckTradeRiskPortfolioTooHigh(t *testing.T) {
	t.Parallel()

	g, book := newGate(t, 5)
	book.unrealized = -1.5

	// $0.75 potential loss is 15% of total, but with $1.50 unrealized loss the
	// portfolio exposure is 45% of the day's initial balance.
	d := g.CheckTradeRisk(day1, "ETH/USDT", 100, 95, 0.15)
	require.False(t, d.Allowed)
	assert.Equal(t, CodePortfolioRiskTooHigh, d.Code())
	assert.InDelta(t, 45.0, d.PortfolioRiskPct, 1e-9)
}

func TestCheckTradeRiskInsufficientBalance(t *testing.T) {
	t.Parallel()

	g, book := newGate(t, 5)
	book.bal = portfolio.Balance{}

	d := g.CheckTradeRisk(day1, "BTC/USDT", 50000, 47500, 0.0001)
	require.False(t, d.Allowed)
	assert.Equal(t, CodeInsufficientBalance, d.Code())
	assert.Contains(t, d.Reason(), ErrInsufficientBalance.Error())
}

func TestPositionRiskMonotonic(t *testing.T) {
	t.Parallel()

	g, book := newGate(t, 5)
	// Huge unrealized loss: portfolio risk would reject anything.
	book.unrealized = -100

	prev := -1.0
	for dist := 0.0; dist <= 5000; dist += 250 {
		d := g.CheckTradeRisk(day1, "BTC/USDT", 50000, 50000-dist, 0.0004)
		assert.GreaterOrEqual(t, d.PositionRiskPct, prev)
		prev = d.PositionRiskPct

		if d.PositionRiskPct > g.Limits().MaxPositionRiskPct {
			assert.Equal(t, CodePositionRiskTooHigh, d.Code())
		} else {
			assert.Equal(t, CodePortfolioRiskTooHigh, d.Code())
		}
	}
}

func TestCheckOpenLimits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		open      int
		available float64
		usd       float64
		wantCode  string
	}{
		{"ok", 0, 5, 1, ""},
		{"max positions", 2, 5, 1, CodeTooManyOpenPositions},
		{"too small", 0, 5, 0.1, CodeTradeTooSmall},
		{"too large", 0, 5, 3, CodeTradeTooLarge},
		{"not enough available", 1, 0.8, 1, CodeInsufficientAvailable},
		{"max positions wins over size", 2, 0, 99, CodeTooManyOpenPositions},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, book := newGate(t, 5)
			book.open = tt.open
			book.bal.Available = tt.available

			d := g.CheckOpenLimits(tt.usd)
			assert.Equal(t, tt.wantCode == "", d.Allowed)
			assert.Equal(t, tt.wantCode, d.Code())
		})
	}
}

func TestDailyLossLimitAndRollover(t *testing.T) {
	t.Parallel()

	g, book := newGate(t, 5)
	assert.False(t, g.CheckDailyLossLimit(day1))

	book.bal = portfolio.Balance{Total: 4, Available: 4}
	assert.True(t, g.CheckDailyLossLimit(day1.Add(time.Hour)))
	assert.Equal(t, 5.0, g.Window().InitialBalance)

	day2 := day1.Add(24 * time.Hour)
	assert.False(t, g.CheckDailyLossLimit(day2))

	w := g.Window()
	assert.Equal(t, 4.0, w.InitialBalance)
	assert.Equal(t, 4.0, w.HighWaterBalance)
	assert.True(t, w.Start.Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDailyLossUsesHighWater(t *testing.T) {
	t.Parallel()

	g, book := newGate(t, 5)

	book.bal.Total = 6
	assert.False(t, g.CheckDailyLossLimit(day1))
	assert.Equal(t, 6.0, g.Window().HighWaterBalance)

	// 5.5 is above the initial balance but 8.3% below the high.
	book.bal.Total = 5.5
	assert.False(t, g.CheckDailyLossLimit(day1))

	book.bal.Total = 5.3
	assert.True(t, g.CheckDailyLossLimit(day1))
}

func TestRolloverUsesFullDateInTimezone(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*3600)
	book := &fakeBook{bal: portfolio.Balance{Total: 5, Available: 5}}

	// 14:00 UTC is 23:00 local; 15:00 UTC is already the next local day.
	start := time.Date(2025, 1, 31, 14, 0, 0, 0, time.UTC)
	g := NewGate(DefaultLimits(), book, loc, start, nil)

	book.bal.Total = 4
	assert.True(t, g.CheckDailyLossLimit(start.Add(30*time.Minute)))
	assert.False(t, g.CheckDailyLossLimit(start.Add(time.Hour)))
	assert.Equal(t, 4.0, g.Window().InitialBalance)

	// Same day-of-month one month later is still a new window.
	book.bal.Total = 3
	g2 := NewGate(DefaultLimits(), book, time.UTC, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), nil)
	book.bal.Total = 2
	assert.False(t, g2.CheckDailyLossLimit(time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2.0, g2.Window().InitialBalance)
}

func TestPriceHelpers(t *testing.T) {
	t.Parallel()

	l := DefaultLimits()
	assert.InDelta(t, 47500.0, l.StopLossPrice(50000, portfolio.Long), 1e-6)
	assert.InDelta(t, 52500.0, l.StopLossPrice(50000, portfolio.Short), 1e-6)
	assert.InDelta(t, 55000.0, l.TakeProfitPrice(50000, portfolio.Long), 1e-6)
	assert.InDelta(t, 45000.0, l.TakeProfitPrice(50000, portfolio.Short), 1e-6)
	assert.InDelta(t, 50960.0, l.TrailingStopPrice(52000, portfolio.Long), 1e-6)
	assert.InDelta(t, 48960.0, l.TrailingStopPrice(48000, portfolio.Short), 1e-6)
}

func TestRiskPct(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 20.0, RiskPct(1, 5), 1e-12)
	assert.True(t, math.IsInf(RiskPct(1, 0), 1))
	assert.Equal(t, 0.0, DrawdownPct(0, 5))
	assert.InDelta(t, 20.0, DrawdownPct(5, 4), 1e-12)
}

func TestLimitsValidateAndCap(t *testing.T) {
	t.Parallel()

	l := DefaultLimits()
	require.NoError(t, l.Validate())
	assert.Equal(t, 2.0, l.CapTradeUSD(7))
	assert.Equal(t, 0.1, l.CapTradeUSD(0.1))

	bad := l
	bad.MaxOpenPositions = 0
	assert.EqualError(t, bad.Validate(), "risk.max_open_positions must be positive")

	bad = l
	bad.StopLossPct = 0
	assert.EqualError(t, bad.Validate(), "risk.stop_loss_pct must be in (0, 100]")
}
