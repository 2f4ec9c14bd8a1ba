package risk

import "fmt"

// Limits is the risk configuration for a run. Percentages are expressed as
// 0-100 (10.0 means 10%).
type Limits struct {
	// Exposure limits
	MaxOpenPositions int     `json:"max_open_positions" yaml:"max_open_positions"` // 2
	MinTradeUSD      float64 `json:"min_trade_usd" yaml:"min_trade_usd"`           // 0.5
	MaxTradeUSD      float64 `json:"max_trade_usd" yaml:"max_trade_usd"`           // 2.0

	// Risk limits
	MaxPositionRiskPct  float64 `json:"max_position_risk_pct" yaml:"max_position_risk_pct"`   // 20
	MaxPortfolioRiskPct float64 `json:"max_portfolio_risk_pct" yaml:"max_portfolio_risk_pct"` // 40

	// Circuit breaker
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" yaml:"max_daily_loss_pct"` // 10

	// Exit levels
	StopLossPct     float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`         // 5
	TakeProfitPct   float64 `json:"take_profit_pct" yaml:"take_profit_pct"`     // 10
	TrailingStopPct float64 `json:"trailing_stop_pct" yaml:"trailing_stop_pct"` // 2
}

// DefaultLimits returns limits sized for a five dollar account.
func DefaultLimits() Limits {
	return Limits{
		MaxOpenPositions:    2,
		MinTradeUSD:         0.5,
		MaxTradeUSD:         2.0,
		MaxPositionRiskPct:  20,
		MaxPortfolioRiskPct: 40,
		MaxDailyLossPct:     10,
		StopLossPct:         5,
		TakeProfitPct:       10,
		TrailingStopPct:     2,
	}
}

func (l Limits) Validate() error {
	if l.MaxOpenPositions <= 0 {
		return fmt.Errorf("risk.max_open_positions must be positive")
	}
	if l.MinTradeUSD < 0 {
		return fmt.Errorf("risk.min_trade_usd must not be negative")
	}
	if l.MaxTradeUSD <= 0 || l.MaxTradeUSD < l.MinTradeUSD {
		return fmt.Errorf("risk.max_trade_usd must be positive and >= min_trade_usd")
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"max_position_risk_pct", l.MaxPositionRiskPct},
		{"max_portfolio_risk_pct", l.MaxPortfolioRiskPct},
		{"max_daily_loss_pct", l.MaxDailyLossPct},
		{"stop_loss_pct", l.StopLossPct},
		{"take_profit_pct", l.TakeProfitPct},
		{"trailing_stop_pct", l.TrailingStopPct},
	} {
		if p.v <= 0 || p.v > 100 {
			return fmt.Errorf("risk.%s must be in (0, 100]", p.name)
		}
	}
	return nil
}

// CapTradeUSD limits a proposed trade size to MaxTradeUSD. Sizes under the
// minimum are left alone so the gate reports them.
func (l Limits) CapTradeUSD(usd float64) float64 {
	if l.MaxTradeUSD > 0 && usd > l.MaxTradeUSD {
		return l.MaxTradeUSD
	}
	return usd
}
