// Package indicators provides streaming technical indicators over closing
// prices. They are deterministic and safe to use in live runs and backtests.
package indicators

import "fmt"

// Indicator computes a single streaming value from closes.
type Indicator interface {
	// Name returns a stable identifier like "SMA(5)" or "RSI(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closing price.
	Update(close float64)

	// Ready reports whether Value() is meaningful.
	Ready() bool

	// Value returns the current value, or 0 before warmup completes.
	Value() float64
}

// SMA calculates the Simple Moving Average of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("not enough closes: need %d, got %d", period, len(closes))
	}

	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period), nil
}

// EMA calculates the Exponential Moving Average, seeded with the SMA of the
// first period closes.
func EMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("not enough closes: need %d, got %d", period, len(closes))
	}

	multiplier := 2.0 / float64(period+1)
	ema := 0.0
	for _, c := range closes[:period] {
		ema += c
	}
	ema /= float64(period)

	for _, c := range closes[period:] {
		ema = (c-ema)*multiplier + ema
	}
	return ema, nil
}

// RSI calculates Wilder's Relative Strength Index over closes.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period+1 {
		return 0, fmt.Errorf("not enough closes: need %d, got %d", period+1, len(closes))
	}
	r := NewRSI(period)
	for _, c := range closes {
		r.Update(c)
	}
	return r.Value(), nil
}
