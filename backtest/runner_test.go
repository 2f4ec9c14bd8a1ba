package backtest

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/risk"
	"github.com/rustyeddy/autotrader/strategies"
)

var start = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, price, rsi float64) market.Bar {
	return market.Bar{
		Symbol:             "BTC/USDT",
		Time:               start.Add(time.Duration(i) * time.Hour),
		Close:              price,
		Volume:             5_000_000,
		RSI:                rsi,
		RecommendedUSDSize: 1,
		Suitability:        market.Suitability{SmallAccount: true, GoodTime: true},
	}
}

// fiveBars opens, takes profit on a signal, reopens and is stopped out.
func fiveBars() []market.Bar {
	return []market.Bar{
		bar(0, 50000, 20),
		bar(1, 51000, 50),
		bar(2, 52000, 80),
		bar(3, 52000, 20),
		bar(4, 49000, 50),
	}
}

func rsiOnly(t *testing.T) []strategies.Strategy {
	t.Helper()
	s, err := strategies.NewAll([]strategies.Config{{Type: "rsi"}}, risk.DefaultLimits())
	require.NoError(t, err)
	return s
}

func TestRunFiveBars(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), fiveBars(), risk.DefaultLimits(), 5, rsiOnly(t), Options{})
	require.NoError(t, err)
	require.Empty(t, res.Errors)

	assert.Equal(t, 5, res.Bars)
	assert.Equal(t, start, res.Start)
	assert.Equal(t, start.Add(4*time.Hour), res.End)
	require.Len(t, res.Trades, 2)
	assert.Len(t, res.Fills, 4)
	assert.Len(t, res.Equity, 5)

	win, loss := res.Trades[0], res.Trades[1]
	assert.Equal(t, portfolio.ReasonSignal, win.Reason)
	assert.InDelta(t, 0.04, win.RealizedPnL, 1e-9)
	assert.Equal(t, portfolio.ReasonStopLoss, loss.Reason)
	assert.InDelta(t, -3000.0/52000, loss.RealizedPnL, 1e-9)

	m := res.Metrics
	assert.Equal(t, 2, m.Trades)
	assert.Equal(t, 1, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.Equal(t, 0.5, m.WinRate)
	assert.InDelta(t, 0.04, m.AvgWin, 1e-9)
	assert.InDelta(t, -3000.0/52000, m.AvgLoss, 1e-9)
	assert.InDelta(t, res.Summary.Balance.Total-5, m.TotalPnL, 1e-12)
	assert.InDelta(t, 0.04-3000.0/52000, m.TotalPnL, 1e-9)
	assert.Greater(t, m.MaxDrawdownPct, 0.0)
}

func TestRunIsDeterministic(t *testing.T) {
	t.Parallel()

	render := func() ([]byte, []byte) {
		res, err := Run(context.Background(), fiveBars(), risk.DefaultLimits(), 5, rsiOnly(t), Options{Seed: 42})
		require.NoError(t, err)
		var js, txt bytes.Buffer
		require.NoError(t, WriteJSON(&js, res))
		PrintReport(&txt, res)
		return js.Bytes(), txt.Bytes()
	}

	js1, txt1 := render()
	js2, txt2 := render()
	assert.Equal(t, js1, js2)
	assert.Equal(t, txt1, txt2)
	assert.Contains(t, string(txt1), "Win Rate:      50.00%")
}

func TestRunRejectsOutOfOrderBars(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bars []market.Bar
	}{
		{"equal timestamps", []market.Bar{bar(0, 100, 50), bar(1, 100, 50), bar(1, 101, 50)}},
		{"backwards", []market.Bar{bar(2, 100, 50), bar(1, 100, 50)}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Run(context.Background(), tt.bars, risk.DefaultLimits(), 5, rsiOnly(t), Options{})
			assert.ErrorIs(t, err, ErrOutOfOrderBar)
		})
	}
}

func TestRunValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := (&Runner{}).Run(ctx)
	assert.EqualError(t, err, "backtest: Feed is required")

	_, err = Run(ctx, nil, risk.DefaultLimits(), 5, nil, Options{})
	assert.EqualError(t, err, "backtest: Strategies is required")

	_, err = Run(ctx, nil, risk.DefaultLimits(), 0, rsiOnly(t), Options{})
	assert.EqualError(t, err, "backtest: InitialCapital must be positive")

	bad := risk.DefaultLimits()
	bad.MaxOpenPositions = 0
	_, err = Run(ctx, nil, bad, 5, rsiOnly(t), Options{})
	assert.Error(t, err)
}

func TestRunNoBars(t *testing.T) {
	t.Parallel()

	res, err := Run(context.Background(), nil, risk.DefaultLimits(), 5, rsiOnly(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Bars)
	assert.Equal(t, Metrics{InitialCapital: 5, FinalBalance: 5}, res.Metrics)
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, fiveBars(), risk.DefaultLimits(), 5, rsiOnly(t), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseAtEnd(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{bar(0, 50000, 20), bar(1, 51000, 50)}

	res, err := Run(context.Background(), bars, risk.DefaultLimits(), 5, rsiOnly(t), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Summary.OpenCount)
	assert.Equal(t, 0.0, res.Metrics.TotalPnL)

	res, err = Run(context.Background(), bars, risk.DefaultLimits(), 5, rsiOnly(t), Options{CloseAtEnd: true})
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, portfolio.ReasonEndOfBacktest, res.Trades[0].Reason)
	assert.Equal(t, 51000.0, res.Trades[0].ExitPrice)
	assert.Equal(t, start.Add(time.Hour), res.Trades[0].ClosedAt)
	assert.InDelta(t, 0.02, res.Metrics.TotalPnL, 1e-9)
	assert.Equal(t, 0, res.Summary.OpenCount)
}

func TestDefaultUSDSize(t *testing.T) {
	t.Parallel()

	b := bar(0, 50000, 20)
	b.RecommendedUSDSize = 0

	res, err := Run(context.Background(), []market.Bar{b}, risk.DefaultLimits(), 5, rsiOnly(t), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Fills)

	res, err = Run(context.Background(), []market.Bar{b}, risk.DefaultLimits(), 5, rsiOnly(t), Options{DefaultUSDSize: 1.5})
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	assert.InDelta(t, 1.5/50000, res.Fills[0].Quantity, 1e-15)
}

func TestRunWritesJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := journal.NewCSV(dir)
	require.NoError(t, err)

	_, err = Run(context.Background(), fiveBars(), risk.DefaultLimits(), 5, rsiOnly(t), Options{Journal: j})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	count := func(name string) int {
		fh, err := os.Open(filepath.Join(dir, name))
		require.NoError(t, err)
		defer fh.Close()
		rows, err := csv.NewReader(fh).ReadAll()
		require.NoError(t, err)
		return len(rows) - 1
	}
	assert.Equal(t, 2, count("trades.csv"))
	assert.Equal(t, 4, count("fills.csv"))
	assert.Equal(t, 5, count("equity.csv"))
}

func TestComputeMetrics(t *testing.T) {
	t.Parallel()

	trades := []portfolio.Trade{
		{RealizedPnL: 2},
		{RealizedPnL: -1},
		{RealizedPnL: 4},
		{RealizedPnL: 0},
	}
	curve := []EquityPoint{{Equity: 12}, {Equity: 9}, {Equity: 15}}

	m := ComputeMetrics(10, 15, trades, curve)
	assert.Equal(t, 5.0, m.TotalPnL)
	assert.Equal(t, 50.0, m.ReturnPct)
	assert.Equal(t, 4, m.Trades)
	assert.Equal(t, 2, m.Wins)
	assert.Equal(t, 1, m.Losses)
	assert.Equal(t, 0.5, m.WinRate)
	assert.Equal(t, 3.0, m.AvgWin)
	assert.Equal(t, -1.0, m.AvgLoss)
	assert.Equal(t, 6.0, m.ProfitFactor)
	assert.Equal(t, 25.0, m.MaxDrawdownPct)

	empty := ComputeMetrics(5, 5, nil, nil)
	assert.Equal(t, 0.0, empty.WinRate)
	assert.Equal(t, 0.0, empty.AvgWin)
	assert.Equal(t, 0.0, empty.AvgLoss)
}
