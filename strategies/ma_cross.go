package strategies

import (
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/risk"
)

// MACross trades on the relation between the snapshot's short and long
// simple moving averages:
//   - short above long with no position opens a long
//   - short below long with a long position closes it
//   - equal averages do nothing
type MACross struct {
	name   string
	limits risk.Limits
}

func NewMACross(name string, limits risk.Limits) *MACross {
	return &MACross{name: name, limits: limits}
}

func (s *MACross) Name() string { return s.name }

func (s *MACross) Evaluate(snap market.Snapshot, view View) (Action, bool) {
	if a, ok := forcedExit(s.name, snap, view); ok {
		return a, true
	}
	if snap.SMAShort <= 0 || snap.SMALong <= 0 || snap.SMAShort == snap.SMALong {
		return Action{}, false
	}

	pos, open := view.Position(snap.Symbol)
	switch {
	case snap.SMAShort > snap.SMALong && !open:
		return openAction(s.name, snap, s.limits)
	case snap.SMAShort < snap.SMALong && open && pos.Side == portfolio.Long:
		return closeAction(s.name, snap, pos, portfolio.ReasonSignal), true
	}
	return Action{}, false
}
