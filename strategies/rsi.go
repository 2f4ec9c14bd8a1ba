package strategies

import (
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/risk"
)

// RSI buys oversold symbols with enough volume and sells them once they are
// overbought. A zero RSI means the collector had no value and never opens.
type RSI struct {
	Oversold   float64 // 30
	Overbought float64 // 70
	MinVolume  float64 // 1,000,000

	name   string
	limits risk.Limits
}

func NewRSI(name string, limits risk.Limits) *RSI {
	return &RSI{
		Oversold:   30,
		Overbought: 70,
		MinVolume:  1_000_000,
		name:       name,
		limits:     limits,
	}
}

func (s *RSI) Name() string { return s.name }

func (s *RSI) Evaluate(snap market.Snapshot, view View) (Action, bool) {
	if a, ok := forcedExit(s.name, snap, view); ok {
		return a, true
	}

	pos, open := view.Position(snap.Symbol)
	switch {
	case open && snap.RSI > s.Overbought:
		return closeAction(s.name, snap, pos, portfolio.ReasonSignal), true
	case !open && snap.RSI > 0 && snap.RSI < s.Oversold && snap.Volume >= s.MinVolume:
		return openAction(s.name, snap, s.limits)
	}
	return Action{}, false
}
