package journal

import (
	"errors"
	"time"

	"github.com/rustyeddy/autotrader/portfolio"
)

var ErrTradeNotFound = errors.New("trade not found")

// FillRecord is one applied open or close.
type FillRecord struct {
	Time      time.Time `json:"time"`
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Direction string    `json:"direction"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Balance   float64   `json:"balance"`
	Strategy  string    `json:"strategy"`
	TradeID   string    `json:"trade_id,omitempty"`
}

// EquitySnapshot is the account at one point in time.
type EquitySnapshot struct {
	Time          time.Time `json:"time"`
	Total         float64   `json:"total"`
	Available     float64   `json:"available"`
	Locked        float64   `json:"locked"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	OpenPositions int       `json:"open_positions"`
}

func SnapshotOf(t time.Time, s portfolio.Summary) EquitySnapshot {
	return EquitySnapshot{
		Time:          t,
		Total:         s.Balance.Total,
		Available:     s.Balance.Available,
		Locked:        s.Balance.Locked,
		UnrealizedPnL: s.TotalUnrealizedPnL,
		OpenPositions: s.OpenCount,
	}
}

type Journal interface {
	RecordTrade(portfolio.Trade) error
	RecordFill(FillRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Multi writes every record to each journal in order and joins the errors.
type Multi []Journal

func (m Multi) RecordTrade(t portfolio.Trade) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordTrade(t))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordFill(f FillRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordFill(f))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordEquity(e EquitySnapshot) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordEquity(e))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}

// Discard drops everything.
type Discard struct{}

func (Discard) RecordTrade(portfolio.Trade) error { return nil }
func (Discard) RecordFill(FillRecord) error       { return nil }
func (Discard) RecordEquity(EquitySnapshot) error { return nil }
func (Discard) Close() error                      { return nil }
