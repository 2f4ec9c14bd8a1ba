package backtest

import (
	"time"

	"github.com/rustyeddy/autotrader/portfolio"
)

// Metrics summarizes a run. WinRate is a fraction in [0, 1]; AvgLoss is
// negative when there were losing trades.
type Metrics struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalBalance   float64 `json:"final_balance"`
	TotalPnL       float64 `json:"total_pnl"`
	ReturnPct      float64 `json:"return_pct"`

	Trades  int     `json:"trades"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`
	AvgWin  float64 `json:"avg_win"`
	AvgLoss float64 `json:"avg_loss"`

	ProfitFactor   float64 `json:"profit_factor"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// EquityPoint is the marked account value after a bar.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// ComputeMetrics derives the run summary from the closed trades and the
// equity curve.
func ComputeMetrics(initial, final float64, trades []portfolio.Trade, curve []EquityPoint) Metrics {
	m := Metrics{
		InitialCapital: initial,
		FinalBalance:   final,
		TotalPnL:       final - initial,
		Trades:         len(trades),
	}
	if initial > 0 {
		m.ReturnPct = m.TotalPnL / initial * 100
	}

	var grossWin, grossLoss float64
	for _, t := range trades {
		switch {
		case t.RealizedPnL > 0:
			m.Wins++
			grossWin += t.RealizedPnL
		case t.RealizedPnL < 0:
			m.Losses++
			grossLoss += t.RealizedPnL
		}
	}
	if m.Trades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.Trades)
	}
	if m.Wins > 0 {
		m.AvgWin = grossWin / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = grossLoss / float64(m.Losses)
	}
	if grossLoss < 0 {
		m.ProfitFactor = grossWin / -grossLoss
	}
	m.MaxDrawdownPct = maxDrawdownPct(initial, curve)
	return m
}

func maxDrawdownPct(initial float64, curve []EquityPoint) float64 {
	peak := initial
	var worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak * 100; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
