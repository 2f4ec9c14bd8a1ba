package execution

import (
	"time"

	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/strategies"
)

// State is where a symbol's action stands within one cycle.
type State int

const (
	Idle State = iota
	SignalPending
	RiskChecked
	Applied
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case SignalPending:
		return "SignalPending"
	case RiskChecked:
		return "RiskChecked"
	case Applied:
		return "Applied"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// Rejection codes raised by the coordinator itself. Gate codes come from the
// risk package.
const (
	CodeOrderRejected   = "ORDER_REJECTED"
	CodeConflictInCycle = "CONFLICT_IN_CYCLE"
)

// Fill is an action that reached the portfolio.
type Fill struct {
	Time      time.Time            `json:"time"`
	Symbol    string               `json:"symbol"`
	Action    strategies.Kind      `json:"action"`
	Direction strategies.Direction `json:"direction"`
	Price     float64              `json:"price"`
	Quantity  float64              `json:"quantity"`
	Balance   portfolio.Balance    `json:"balance"`
	Strategy  string               `json:"strategy"`
	OrderID   string               `json:"order_id"`

	// Trade is set for closes.
	Trade *portfolio.Trade `json:"trade,omitempty"`
}

// Rejection is a proposed action that was turned down. It is routine, not an
// error.
type Rejection struct {
	Time     time.Time         `json:"time"`
	Symbol   string            `json:"symbol"`
	Strategy string            `json:"strategy"`
	Action   strategies.Action `json:"action"`
	Code     string            `json:"code"`
	Reason   string            `json:"reason"`
}

// CycleResult is everything one cycle did.
type CycleResult struct {
	Time       time.Time        `json:"time"`
	Fills      []Fill           `json:"fills"`
	Rejections []Rejection      `json:"rejections"`
	Errors     []error          `json:"-"`
	Halted     bool             `json:"halted"`
	States     map[string]State `json:"-"`
}

// Observer is told about fills, rejections and daily-loss halts as they
// happen. Implementations must not block.
type Observer interface {
	OnFill(Fill)
	OnRejection(Rejection)
	OnHalt(at, windowStart time.Time)
}
