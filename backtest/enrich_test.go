package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/risk"
	"github.com/rustyeddy/autotrader/strategies"
)

func TestEnricherPerSymbol(t *testing.T) {
	t.Parallel()

	e := NewEnricher(IndicatorPeriods{SMAShort: 2, SMALong: 3, RSI: 2})

	b := e.Enrich(market.Bar{Symbol: "A", Close: 10})
	assert.Zero(t, b.SMAShort)
	b = e.Enrich(market.Bar{Symbol: "B", Close: 1000})
	assert.Zero(t, b.SMAShort)

	b = e.Enrich(market.Bar{Symbol: "A", Close: 12})
	assert.Equal(t, 11.0, b.SMAShort)
	assert.Zero(t, b.SMALong)

	b = e.Enrich(market.Bar{Symbol: "A", Close: 14, RSI: 42})
	assert.Equal(t, 13.0, b.SMAShort)
	assert.Equal(t, 12.0, b.SMALong)
	assert.Equal(t, 42.0, b.RSI, "values on the bar are kept")
}

func TestIndicatorPeriodsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultIndicatorPeriods().Validate())
	assert.Error(t, IndicatorPeriods{SMAShort: 10, SMALong: 5, RSI: 14}.Validate())
	assert.Error(t, IndicatorPeriods{SMAShort: 0, SMALong: 5, RSI: 14}.Validate())
}

func TestRunComputesIndicatorsForRawBars(t *testing.T) {
	t.Parallel()

	var bars []market.Bar
	for i := 0; i < 6; i++ {
		bars = append(bars, market.Bar{
			Symbol:             "BTC/USDT",
			Time:               start.Add(time.Duration(i) * time.Hour),
			Close:              100 + float64(i),
			Volume:             5_000_000,
			RecommendedUSDSize: 1,
			Suitability:        market.Suitability{SmallAccount: true, GoodTime: true},
		})
	}
	strats, err := strategies.NewAll([]strategies.Config{{Type: "ma-cross"}}, risk.DefaultLimits())
	require.NoError(t, err)

	// Without indicators the bars carry no averages and nothing trades.
	res, err := Run(context.Background(), bars, risk.DefaultLimits(), 5, strats, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Fills)

	p := IndicatorPeriods{SMAShort: 2, SMALong: 4, RSI: 3}
	res, err = Run(context.Background(), bars, risk.DefaultLimits(), 5, strats, Options{Indicators: &p})
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	// The long average is first ready on the fourth bar.
	assert.True(t, res.Fills[0].Time.Equal(bars[3].Time))
	assert.Equal(t, 103.0, res.Fills[0].Price)

	bad := IndicatorPeriods{SMAShort: 4, SMALong: 2, RSI: 3}
	_, err = Run(context.Background(), bars, risk.DefaultLimits(), 5, strats, Options{Indicators: &bad})
	assert.Error(t, err)
}
