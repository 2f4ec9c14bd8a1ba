package strategies

import "github.com/rustyeddy/autotrader/market"

// Noop never proposes anything.
type Noop struct{ name string }

func (n Noop) Name() string {
	if n.name == "" {
		return "noop"
	}
	return n.name
}

func (Noop) Evaluate(market.Snapshot, View) (Action, bool) {
	return Action{}, false
}
