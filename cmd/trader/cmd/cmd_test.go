package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/config"
	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/portfolio"
)

func TestParseDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)

	d, err := parseDay("", loc)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseDay("2025-03-01", loc)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 2, 28, 15, 0, 0, 0, time.UTC)))

	d, err = parseDay("2025-03-01T12:00:00Z", loc)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))

	_, err = parseDay("yesterday", loc)
	assert.Error(t, err)
}

func TestPrintTrades(t *testing.T) {
	var buf bytes.Buffer
	printTrades(&buf, nil)
	assert.Equal(t, "no trades\n", buf.String())

	buf.Reset()
	printTrades(&buf, []portfolio.Trade{{
		ID: "t1", Symbol: "BTC/USDT", Side: portfolio.Long, Quantity: 0.00002,
		EntryPrice: 50000, ExitPrice: 52000, RealizedPnL: 0.04,
		ClosedAt: time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC), Reason: portfolio.ReasonSignal,
	}})
	out := buf.String()
	assert.Contains(t, out, "SYMBOL")
	assert.Contains(t, out, "BTC/USDT")
	assert.Contains(t, out, "+0.0400")
	assert.Contains(t, out, "Signal")
}

func TestOpenJournal(t *testing.T) {
	j, store, err := openJournal(config.JournalConfig{}, "")
	require.NoError(t, err)
	assert.Nil(t, store)
	assert.Equal(t, journal.Discard{}, j)

	dir := t.TempDir()
	j, store, err = openJournal(config.JournalConfig{CSVDir: dir}, filepath.Join(dir, "trader.db"))
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Len(t, j.(journal.Multi), 2)
	require.NoError(t, j.Close())
}

func TestPaperExchangeUsesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Exchange.SlippageBps = 5
	cfg.Exchange.MinNotional = 0.25

	p := paperExchange(cfg, "bt")
	assert.Equal(t, "bt", p.Name)
	assert.Equal(t, 5.0, p.SlippageBps)
	assert.Equal(t, 0.25, p.MinNotional)
}
