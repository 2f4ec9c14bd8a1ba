package portfolio

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of an open position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

func (s Side) Valid() bool {
	return s == Long || s == Short
}

// ParseSide accepts long/short as well as the order directions buy/sell.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// Balance is the quote-currency account state. Available+Locked always equals Total.
type Balance struct {
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
	Locked    float64 `json:"locked"`
}

// Position is an open holding in a single symbol.
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Quantity      float64   `json:"quantity"`
	EntryPrice    float64   `json:"entry_price"`
	CurrentPrice  float64   `json:"current_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	OpenedAt      time.Time `json:"opened_at"`

	// Exit levels fixed at entry; zero means unset.
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`

	// Funds moved from available to locked when the position was opened.
	Reserved float64 `json:"reserved,omitempty"`
}

// HitStopLoss reports whether price has crossed the entry-time stop.
func (p Position) HitStopLoss(price float64) bool {
	if p.StopLoss <= 0 {
		return false
	}
	if p.Side == Long {
		return price <= p.StopLoss
	}
	return price >= p.StopLoss
}

// HitTakeProfit reports whether price has crossed the entry-time target.
func (p Position) HitTakeProfit(price float64) bool {
	if p.TakeProfit <= 0 {
		return false
	}
	if p.Side == Long {
		return price >= p.TakeProfit
	}
	return price <= p.TakeProfit
}

// Exit reasons recorded on trades.
const (
	ReasonStopLoss      = "StopLoss"
	ReasonTakeProfit    = "TakeProfit"
	ReasonSignal        = "Signal"
	ReasonEndOfBacktest = "EndOfBacktest"
)

// Trade is a closed position. Trades are never modified after creation.
type Trade struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Quantity    float64   `json:"quantity"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	RealizedPnL float64   `json:"realized_pnl"`
	OpenedAt    time.Time `json:"opened_at"`
	ClosedAt    time.Time `json:"closed_at"`
	Reason      string    `json:"reason,omitempty"`
}

// Summary is a read-only projection of the portfolio.
type Summary struct {
	Balance            Balance    `json:"balance"`
	OpenCount          int        `json:"open_count"`
	TotalUnrealizedPnL float64    `json:"total_unrealized_pnl"`
	TotalRealizedPnL   float64    `json:"total_realized_pnl"`
	Positions          []Position `json:"positions"`
}

// OpenRequest describes a position to open.
type OpenRequest struct {
	Symbol     string
	Side       Side
	Quantity   float64
	EntryPrice float64
	OpenedAt   time.Time // zero means now

	StopLoss   float64
	TakeProfit float64

	// Reserve is locked from the available balance atomically with the open.
	Reserve float64
}

// CloseRequest describes a position to close.
type CloseRequest struct {
	Symbol    string
	ExitPrice float64
	ClosedAt  time.Time // zero means now
	Reason    string
}

// PnL returns profit or loss for quantity units moved from entry to exit.
func PnL(side Side, entry, exit, quantity float64) float64 {
	if side == Short {
		return (entry - exit) * quantity
	}
	return (exit - entry) * quantity
}
