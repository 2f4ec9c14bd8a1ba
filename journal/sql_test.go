package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/portfolio"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func trade(id string, closed time.Time, pnl float64) portfolio.Trade {
	return portfolio.Trade{
		ID:          id,
		Symbol:      "BTC/USDT",
		Side:        portfolio.Long,
		Quantity:    0.001,
		EntryPrice:  50000,
		ExitPrice:   50000 + pnl*1000,
		RealizedPnL: pnl,
		OpenedAt:    closed.Add(-time.Hour),
		ClosedAt:    closed,
		Reason:      portfolio.ReasonSignal,
	}
}

func TestStoreSchemaCreated(t *testing.T) {
	t.Parallel()

	s, path := newTestStore(t)
	assert.Equal(t, "sqlite3", s.Driver())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())
	assert.True(t, found["trades"])
	assert.True(t, found["fills"])
	assert.True(t, found["equity"])
}

func TestStoreTradesRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	t1 := trade("T1", time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC), 1.0)
	t2 := trade("T2", time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC), -0.5)
	t2.Side = portfolio.Short
	t2.Reason = portfolio.ReasonStopLoss

	require.NoError(t, s.RecordTrade(t1))
	require.NoError(t, s.RecordTrade(t2))
	// Re-recording the same ID is ignored.
	require.NoError(t, s.RecordTrade(t1))

	got, err := s.ListTrades(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, t2, got[0])
	assert.Equal(t, t1, got[1])

	one, err := s.GetTrade(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, t1, one)

	_, err = s.GetTrade(ctx, "missing")
	assert.ErrorIs(t, err, ErrTradeNotFound)
}

func TestStoreDay(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordTrade(trade("A", time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC), 3)))
	require.NoError(t, s.RecordTrade(trade("B", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), 1)))
	require.NoError(t, s.RecordTrade(trade("C", time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC), -0.5)))
	require.NoError(t, s.RecordTrade(trade("D", time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), 7)))

	r, err := s.Day(ctx, time.Date(2025, 1, 2, 15, 0, 0, 0, time.UTC), time.UTC)
	require.NoError(t, err)
	require.Len(t, r.Trades, 2)
	assert.Equal(t, "B", r.Trades[0].ID)
	assert.Equal(t, "C", r.Trades[1].ID)
	assert.InDelta(t, 0.5, r.RealizedPnL, 1e-12)
	assert.Equal(t, 1, r.Wins)
	assert.Equal(t, 1, r.Losses)
	assert.InDelta(t, 2.0, r.ProfitFactor, 1e-12)
}

func TestStoreFillsAndEquity(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

	fill := FillRecord{
		Time: at, OrderID: "o-1", Symbol: "BTC/USDT", Action: "open", Direction: "buy",
		Price: 50000, Quantity: 0.00002, Balance: 5, Strategy: "rsi",
	}
	require.NoError(t, s.RecordFill(fill))

	eq := EquitySnapshot{Time: at, Total: 5, Available: 4, Locked: 1, UnrealizedPnL: 0.1, OpenPositions: 1}
	require.NoError(t, s.RecordEquity(eq))

	fills, err := s.ListFills(ctx, at, at.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, fill, fills[0])

	eqs, err := s.ListEquity(ctx, at.Add(-time.Minute), at.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, eqs, 1)
	assert.Equal(t, eq, eqs[0])
}

func TestParseDSNAndRebind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dsn, driver, source string
	}{
		{"postgres://u:p@localhost/trader?sslmode=disable", "postgres", "postgres://u:p@localhost/trader?sslmode=disable"},
		{"postgresql://localhost/trader", "postgres", "postgresql://localhost/trader"},
		{"sqlite3:///tmp/j.db", "sqlite3", "/tmp/j.db"},
		{"sqlite://j.db", "sqlite3", "j.db"},
		{" journal.db ", "sqlite3", "journal.db"},
	}
	for _, tt := range tests {
		d, src := ParseDSN(tt.dsn)
		assert.Equal(t, tt.driver, d, tt.dsn)
		assert.Equal(t, tt.source, src, tt.dsn)
	}

	assert.Equal(t, "WHERE a = $1 AND b < $2", Rebind("WHERE a = ? AND b < ?"))

	_, err := Open("")
	assert.Error(t, err)
}
