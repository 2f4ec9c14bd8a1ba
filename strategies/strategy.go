package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/risk"
)

// Kind says whether an action opens or closes a position.
type Kind string

const (
	Open  Kind = "open"
	Close Kind = "close"
)

// Direction is the order side sent to the exchange.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Action is a proposed trade. Open actions carry a quantity sized from the
// snapshot; close actions always close the whole position.
type Action struct {
	Symbol    string    `json:"symbol"`
	Kind      Kind      `json:"kind"`
	Direction Direction `json:"direction"`
	Quantity  float64   `json:"quantity"`
	USDAmount float64   `json:"usd_amount"`
	Price     float64   `json:"price"`

	// Reason is the exit reason for closes.
	Reason   string `json:"reason,omitempty"`
	Strategy string `json:"strategy"`
}

// Side is the position side an open action creates.
func (a Action) Side() portfolio.Side {
	if a.Direction == Sell {
		return portfolio.Short
	}
	return portfolio.Long
}

func (a Action) String() string {
	return fmt.Sprintf("%s %s/%s qty=%.8f @ %.8f", a.Strategy, a.Kind, a.Direction, a.Quantity, a.Price)
}

// View is the read-only portfolio access strategies get.
type View interface {
	Position(symbol string) (portfolio.Position, bool)
}

// Strategy turns a snapshot into at most one proposed action. Strategies are
// stateless apart from their configuration, so the same inputs always give
// the same answer.
type Strategy interface {
	Name() string
	Evaluate(snap market.Snapshot, view View) (Action, bool)
}

// Config selects and parameterizes one strategy.
type Config struct {
	Type string `json:"type" yaml:"type"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// rsi
	Oversold   float64 `json:"oversold,omitempty" yaml:"oversold,omitempty"`
	Overbought float64 `json:"overbought,omitempty" yaml:"overbought,omitempty"`
	MinVolume  float64 `json:"min_volume,omitempty" yaml:"min_volume,omitempty"`
}

// New builds the strategy cfg describes. Sizing is capped by limits.
func New(cfg Config, limits risk.Limits) (Strategy, error) {
	name := cfg.Name
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "noop", "none":
		if name == "" {
			name = "noop"
		}
		return Noop{name: name}, nil

	case "ma-cross", "macross", "sma-cross":
		if name == "" {
			name = "ma-cross"
		}
		return &MACross{name: name, limits: limits}, nil

	case "rsi", "rsi-threshold":
		if name == "" {
			name = "rsi"
		}
		r := NewRSI(name, limits)
		if cfg.Oversold != 0 {
			r.Oversold = cfg.Oversold
		}
		if cfg.Overbought != 0 {
			r.Overbought = cfg.Overbought
		}
		if cfg.MinVolume != 0 {
			r.MinVolume = cfg.MinVolume
		}
		if r.Oversold >= r.Overbought {
			return nil, fmt.Errorf("strategy %s: oversold (%v) must be below overbought (%v)", name, r.Oversold, r.Overbought)
		}
		return r, nil

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: ma-cross, rsi, noop)", cfg.Type)
	}
}

// NewAll builds strategies in declaration order, which is also the order
// they are evaluated in each cycle. Names must be unique.
func NewAll(cfgs []Config, limits risk.Limits) ([]Strategy, error) {
	out := make([]Strategy, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for i, c := range cfgs {
		s, err := New(c, limits)
		if err != nil {
			return nil, fmt.Errorf("strategies[%d]: %w", i, err)
		}
		if seen[s.Name()] {
			return nil, fmt.Errorf("strategies[%d]: duplicate name %q", i, s.Name())
		}
		seen[s.Name()] = true
		out = append(out, s)
	}
	return out, nil
}
