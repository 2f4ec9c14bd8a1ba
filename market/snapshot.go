package market

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoSnapshot = errors.New("no snapshot for symbol")

// Suitability is the collector's verdict on whether a symbol can be traded
// with a small account right now.
type Suitability struct {
	SmallAccount bool   `json:"small_account"`
	GoodTime     bool   `json:"good_time"`
	Reason       string `json:"reason,omitempty"`
}

// Tradable reports whether new positions may be opened.
func (s Suitability) Tradable() bool {
	return s.SmallAccount && s.GoodTime
}

// Snapshot is a point-in-time market record for one symbol. Indicator fields
// are computed upstream and consumed as is.
type Snapshot struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`

	Price  float64 `json:"price"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Volume float64 `json:"volume"`

	SMAShort float64 `json:"sma_short"`
	SMALong  float64 `json:"sma_long"`
	RSI      float64 `json:"rsi"`

	// RecommendedUSDSize is the account sizing hint for a new position.
	RecommendedUSDSize float64     `json:"recommended_usd_size"`
	Suitability        Suitability `json:"suitability"`
}

func (s Snapshot) Mid() float64 {
	if s.Bid > 0 && s.Ask > 0 {
		return (s.Bid + s.Ask) / 2
	}
	return s.Price
}

func (s Snapshot) Spread() float64 {
	return s.Ask - s.Bid
}

func (s Snapshot) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("snapshot: symbol is required")
	}
	if s.Price <= 0 {
		return fmt.Errorf("snapshot %s: price must be positive, got %v", s.Symbol, s.Price)
	}
	return nil
}

// Bar is one historical row: OHLCV plus the indicator columns a snapshot
// needs. Backtests replay bars in timestamp order.
type Bar struct {
	Symbol string
	Time   time.Time

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	SMAShort float64
	SMALong  float64
	RSI      float64

	RecommendedUSDSize float64
	Suitability        Suitability
}

// Snapshot converts the bar into the snapshot a live cycle would have seen
// at the bar's close.
func (b Bar) Snapshot() Snapshot {
	return Snapshot{
		Symbol:             b.Symbol,
		Time:               b.Time,
		Price:              b.Close,
		Bid:                b.Close,
		Ask:                b.Close,
		Volume:             b.Volume,
		SMAShort:           b.SMAShort,
		SMALong:            b.SMALong,
		RSI:                b.RSI,
		RecommendedUSDSize: b.RecommendedUSDSize,
		Suitability:        b.Suitability,
	}
}
