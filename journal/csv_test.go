package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/portfolio"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	j, err := NewCSV(dir)
	require.NoError(t, err)

	at := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordTrade(trade("T1", at, 1)))
	require.NoError(t, j.RecordFill(FillRecord{Time: at, OrderID: "o", Symbol: "BTC/USDT", Action: "close", Direction: "sell", Price: 51000, Quantity: 0.001, Balance: 6, Strategy: "ma", TradeID: "T1"}))
	require.NoError(t, j.RecordEquity(EquitySnapshot{Time: at, Total: 6, Available: 6, OpenPositions: 0}))
	require.NoError(t, j.Close())

	trades := readCSV(t, filepath.Join(dir, "trades.csv"))
	require.Len(t, trades, 2)
	assert.Equal(t, tradeHeader, trades[0])
	assert.Equal(t, []string{"T1", "BTC/USDT", "long", "0.00100000", "50000.00000000", "51000.00000000", "1.00000000",
		"2025-01-02T09:00:00Z", "2025-01-02T10:00:00Z", "Signal"}, trades[1])

	fills := readCSV(t, filepath.Join(dir, "fills.csv"))
	require.Len(t, fills, 2)
	assert.Equal(t, fillHeader, fills[0])
	assert.Equal(t, "T1", fills[1][9])

	equity := readCSV(t, filepath.Join(dir, "equity.csv"))
	require.Len(t, equity, 2)
	assert.Equal(t, equityHeader, equity[0])
	assert.Equal(t, "6.00000000", equity[1][1])
}

type errJournal struct{ Discard }

func (errJournal) RecordTrade(portfolio.Trade) error { return errors.New("disk full") }

func TestMulti(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := NewCSV(dir)
	require.NoError(t, err)

	m := Multi{c, errJournal{}, Discard{}}
	err = m.RecordTrade(trade("T1", time.Now(), 1))
	assert.EqualError(t, err, "disk full")
	assert.NoError(t, m.RecordEquity(EquitySnapshot{Time: time.Now()}))
	assert.NoError(t, m.Close())

	assert.Len(t, readCSV(t, filepath.Join(dir, "trades.csv")), 2)
}

func TestSnapshotOf(t *testing.T) {
	t.Parallel()

	at := time.Unix(0, 0).UTC()
	e := SnapshotOf(at, portfolio.Summary{
		Balance:            portfolio.Balance{Total: 5, Available: 3, Locked: 2},
		OpenCount:          1,
		TotalUnrealizedPnL: -0.25,
	})
	assert.Equal(t, EquitySnapshot{Time: at, Total: 5, Available: 3, Locked: 2, UnrealizedPnL: -0.25, OpenPositions: 1}, e)
}
