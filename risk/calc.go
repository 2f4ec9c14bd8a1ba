package risk

import (
	"math"

	"github.com/rustyeddy/autotrader/portfolio"
)

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PotentialLoss is the quote-currency loss if the stop is hit.
func PotentialLoss(entry, stop, quantity float64) float64 {
	return abs(entry-stop) * quantity
}

// RiskPct expresses loss as a percentage of base. A non-positive base is
// treated as infinite risk.
func RiskPct(loss, base float64) float64 {
	if base <= 0 {
		return math.Inf(1)
	}
	return loss / base * 100
}

// DrawdownPct is the decline from high to current, in percent.
func DrawdownPct(high, current float64) float64 {
	if high <= 0 {
		return 0
	}
	return (high - current) / high * 100
}

// StopLossPrice is the static stop for a position entered at entry.
// Longs stop below, shorts above.
func (l Limits) StopLossPrice(entry float64, side portfolio.Side) float64 {
	if side == portfolio.Short {
		return entry * (1 + l.StopLossPct/100)
	}
	return entry * (1 - l.StopLossPct/100)
}

// TakeProfitPrice is the static target for a position entered at entry.
func (l Limits) TakeProfitPrice(entry float64, side portfolio.Side) float64 {
	if side == portfolio.Short {
		return entry * (1 - l.TakeProfitPct/100)
	}
	return entry * (1 + l.TakeProfitPct/100)
}

// TrailingStopPrice trails current by TrailingStopPct.
func (l Limits) TrailingStopPrice(current float64, side portfolio.Side) float64 {
	if side == portfolio.Short {
		return current * (1 + l.TrailingStopPct/100)
	}
	return current * (1 - l.TrailingStopPct/100)
}
