package indicators

import "fmt"

// SimpleMA is a streaming Simple Moving Average.
type SimpleMA struct {
	period int
	window []float64
	next   int
	sum    float64
	count  int
}

func NewSMA(period int) *SimpleMA {
	return &SimpleMA{period: period, window: make([]float64, period)}
}

func (m *SimpleMA) Name() string { return fmt.Sprintf("SMA(%d)", m.period) }
func (m *SimpleMA) Warmup() int  { return m.period }

func (m *SimpleMA) Reset() {
	clear(m.window)
	m.next, m.sum, m.count = 0, 0, 0
}

func (m *SimpleMA) Update(close float64) {
	if m.period <= 0 {
		return
	}
	if m.count == m.period {
		m.sum -= m.window[m.next]
	} else {
		m.count++
	}
	m.window[m.next] = close
	m.sum += close
	m.next = (m.next + 1) % m.period
}

func (m *SimpleMA) Ready() bool { return m.period > 0 && m.count >= m.period }

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.sum / float64(m.period)
}

// ExponentialMA is a streaming Exponential Moving Average
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }
func (e *ExponentialMA) Warmup() int  { return e.period }

func (e *ExponentialMA) Reset() {
	e.ema, e.count, e.warmupSum = 0, 0, 0
}

func (e *ExponentialMA) Update(close float64) {
	if e.count < e.period {
		e.warmupSum += close
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (close-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool { return e.period > 0 && e.count >= e.period }

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// RelativeStrength is Wilder's RSI. The first period changes are averaged,
// later ones are smoothed with weight 1/period.
type RelativeStrength struct {
	period  int
	prev    float64
	seen    int
	avgGain float64
	avgLoss float64
}

func NewRSI(period int) *RelativeStrength {
	return &RelativeStrength{period: period}
}

func (r *RelativeStrength) Name() string { return fmt.Sprintf("RSI(%d)", r.period) }

// Warmup counts closes: period changes need period+1 of them.
func (r *RelativeStrength) Warmup() int { return r.period + 1 }

func (r *RelativeStrength) Reset() {
	r.prev, r.seen, r.avgGain, r.avgLoss = 0, 0, 0, 0
}

func (r *RelativeStrength) Update(close float64) {
	r.seen++
	if r.seen == 1 {
		r.prev = close
		return
	}

	change := close - r.prev
	r.prev = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	n := float64(r.period)
	if r.seen <= r.period+1 {
		r.avgGain += gain / n
		r.avgLoss += loss / n
		return
	}
	r.avgGain = (r.avgGain*(n-1) + gain) / n
	r.avgLoss = (r.avgLoss*(n-1) + loss) / n
}

func (r *RelativeStrength) Ready() bool { return r.period > 0 && r.seen >= r.period+1 }

// Value is 100 when there were no losses and 50 on a flat series.
func (r *RelativeStrength) Value() float64 {
	if !r.Ready() {
		return 0
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := r.avgGain / r.avgLoss
	return 100 - 100/(1+rs)
}
