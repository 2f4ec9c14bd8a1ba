package strategies

import (
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/risk"
)

// forcedExit closes a position whose price has crossed the stop or target it
// was opened with. The stop is checked first.
func forcedExit(strategy string, snap market.Snapshot, view View) (Action, bool) {
	pos, ok := view.Position(snap.Symbol)
	if !ok {
		return Action{}, false
	}
	switch {
	case pos.HitStopLoss(snap.Price):
		return closeAction(strategy, snap, pos, portfolio.ReasonStopLoss), true
	case pos.HitTakeProfit(snap.Price):
		return closeAction(strategy, snap, pos, portfolio.ReasonTakeProfit), true
	}
	return Action{}, false
}

func closeAction(strategy string, snap market.Snapshot, pos portfolio.Position, reason string) Action {
	dir := Sell
	if pos.Side == portfolio.Short {
		dir = Buy
	}
	return Action{
		Symbol:    snap.Symbol,
		Kind:      Close,
		Direction: dir,
		Quantity:  pos.Quantity,
		USDAmount: pos.Quantity * snap.Price,
		Price:     snap.Price,
		Reason:    reason,
		Strategy:  strategy,
	}
}

// openAction sizes a buy from the snapshot's sizing hint. Suitability flags
// veto any open.
func openAction(strategy string, snap market.Snapshot, limits risk.Limits) (Action, bool) {
	if !snap.Suitability.Tradable() || snap.Price <= 0 {
		return Action{}, false
	}
	usd := limits.CapTradeUSD(snap.RecommendedUSDSize)
	if usd <= 0 {
		return Action{}, false
	}
	return Action{
		Symbol:    snap.Symbol,
		Kind:      Open,
		Direction: Buy,
		Quantity:  usd / snap.Price,
		USDAmount: usd,
		Price:     snap.Price,
		Strategy:  strategy,
	}, true
}
