package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var closes = []float64{102, 105, 106, 108, 110, 111, 113, 114, 116, 118}

func TestSMA(t *testing.T) {
	ma, err := SMA(closes, 5)
	require.NoError(t, err)
	// Last 5 closes: 111,113,114,116,118 => 572/5 = 114.4
	assert.InDelta(t, 114.4, ma, 0.001)

	_, err = SMA(closes[:3], 5)
	assert.Error(t, err)
	_, err = SMA(closes, 0)
	assert.Error(t, err)
}

func TestEMA(t *testing.T) {
	ema, err := EMA(closes[:4], 3)
	require.NoError(t, err)
	seed := (102.0 + 105.0 + 106.0) / 3.0
	assert.InDelta(t, (108.0-seed)*0.5+seed, ema, 0.001)
}

func TestRSI(t *testing.T) {
	// Changes +1, -1 average to 0.5/0.5, then +1 smooths to 0.75/0.25.
	v, err := RSI([]float64{10, 11, 10}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, v, 1e-9)

	v, err = RSI([]float64{10, 11, 10, 11}, 2)
	require.NoError(t, err)
	assert.InDelta(t, 75.0, v, 1e-9)

	v, err = RSI(closes, 5)
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	v, err = RSI([]float64{5, 5, 5}, 2)
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)

	_, err = RSI([]float64{1, 2}, 2)
	assert.Error(t, err)
}
