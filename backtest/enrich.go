package backtest

import (
	"fmt"

	"github.com/rustyeddy/autotrader/indicators"
	"github.com/rustyeddy/autotrader/market"
)

// IndicatorPeriods configures the indicators computed for bars that arrive
// without them.
type IndicatorPeriods struct {
	SMAShort int `json:"sma_short" yaml:"sma_short"` // 5
	SMALong  int `json:"sma_long" yaml:"sma_long"`   // 10
	RSI      int `json:"rsi" yaml:"rsi"`             // 14
}

func DefaultIndicatorPeriods() IndicatorPeriods {
	return IndicatorPeriods{SMAShort: 5, SMALong: 10, RSI: 14}
}

func (p IndicatorPeriods) Validate() error {
	if p.SMAShort <= 0 || p.SMALong <= 0 || p.RSI <= 0 {
		return fmt.Errorf("indicator periods must be positive")
	}
	if p.SMAShort >= p.SMALong {
		return fmt.Errorf("sma_short (%d) must be below sma_long (%d)", p.SMAShort, p.SMALong)
	}
	return nil
}

type symbolIndicators struct {
	short, long, rsi indicators.Indicator
}

// Enricher computes moving averages and RSI per symbol from bar closes. A
// value the bar already carries is kept; a value whose indicator is still
// warming up stays zero, which strategies treat as no signal.
type Enricher struct {
	periods IndicatorPeriods
	symbols map[string]*symbolIndicators
}

func NewEnricher(p IndicatorPeriods) *Enricher {
	return &Enricher{periods: p, symbols: map[string]*symbolIndicators{}}
}

func (e *Enricher) Enrich(b market.Bar) market.Bar {
	s, ok := e.symbols[b.Symbol]
	if !ok {
		s = &symbolIndicators{
			short: indicators.NewSMA(e.periods.SMAShort),
			long:  indicators.NewSMA(e.periods.SMALong),
			rsi:   indicators.NewRSI(e.periods.RSI),
		}
		e.symbols[b.Symbol] = s
	}

	s.short.Update(b.Close)
	s.long.Update(b.Close)
	s.rsi.Update(b.Close)

	if b.SMAShort == 0 {
		b.SMAShort = s.short.Value()
	}
	if b.SMALong == 0 {
		b.SMALong = s.long.Value()
	}
	if b.RSI == 0 {
		b.RSI = s.rsi.Value()
	}
	return b
}
