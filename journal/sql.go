package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/autotrader/portfolio"
)

// Store is a SQL journal backed by SQLite or Postgres.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn. URLs starting with postgres:// or postgresql:// use
// lib/pq; "sqlite3://path", "sqlite://path" or a bare path use SQLite.
func Open(dsn string) (*Store, error) {
	driver, source := ParseDSN(dsn)
	if source == "" {
		return nil, fmt.Errorf("journal: dsn is required")
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite3" {
		// One writer keeps SQLite from returning SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

// ParseDSN splits a journal DSN into a database/sql driver name and source.
func ParseDSN(dsn string) (driver, source string) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn
	case strings.HasPrefix(dsn, "sqlite3://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite3://")
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://")
	default:
		return "sqlite3", dsn
	}
}

func (s *Store) Driver() string { return s.driver }

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *Store) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	return Rebind(q)
}

func Rebind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RecordTrade inserts t. A trade ID already present is left untouched.
func (s *Store) RecordTrade(t portfolio.Trade) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO trades
		(trade_id, symbol, side, quantity, entry_price, exit_price, realized_pnl, opened_at, closed_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (trade_id) DO NOTHING`),
		t.ID, t.Symbol, string(t.Side), t.Quantity, t.EntryPrice,
		t.ExitPrice, t.RealizedPnL, t.OpenedAt.UTC(), t.ClosedAt.UTC(), t.Reason,
	)
	return err
}

func (s *Store) RecordFill(f FillRecord) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO fills
		(time, order_id, symbol, action, direction, price, quantity, balance, strategy, trade_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		f.Time.UTC(), f.OrderID, f.Symbol, f.Action, f.Direction,
		f.Price, f.Quantity, f.Balance, f.Strategy, f.TradeID,
	)
	return err
}

func (s *Store) RecordEquity(e EquitySnapshot) error {
	_, err := s.db.Exec(s.rebind(`
		INSERT INTO equity
		(time, total, available, locked, unrealized_pnl, open_positions)
		VALUES (?, ?, ?, ?, ?, ?)`),
		e.Time.UTC(), e.Total, e.Available, e.Locked, e.UnrealizedPnL, e.OpenPositions,
	)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

const tradeColumns = `trade_id, symbol, side, quantity, entry_price, exit_price, realized_pnl, opened_at, closed_at, reason`

func scanTrade(sc interface{ Scan(...any) error }) (portfolio.Trade, error) {
	var (
		t    portfolio.Trade
		side string
	)
	err := sc.Scan(&t.ID, &t.Symbol, &side, &t.Quantity, &t.EntryPrice,
		&t.ExitPrice, &t.RealizedPnL, &t.OpenedAt, &t.ClosedAt, &t.Reason)
	t.Side = portfolio.Side(side)
	t.OpenedAt = t.OpenedAt.UTC()
	t.ClosedAt = t.ClosedAt.UTC()
	return t, err
}

// GetTrade returns a single trade by ID.
func (s *Store) GetTrade(ctx context.Context, id string) (portfolio.Trade, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`), id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return portfolio.Trade{}, fmt.Errorf("%w: %q", ErrTradeNotFound, id)
	}
	return t, err
}

// ListTrades returns every trade in close order. It is what seeds the
// portfolio's trade log on startup.
func (s *Store) ListTrades(ctx context.Context) ([]portfolio.Trade, error) {
	return s.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades ORDER BY closed_at ASC, trade_id ASC`)
}

// ListTradesClosedBetween returns trades whose closed_at is within [start, end).
func (s *Store) ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]portfolio.Trade, error) {
	return s.queryTrades(ctx, `SELECT `+tradeColumns+` FROM trades
		WHERE closed_at >= ? AND closed_at < ?
		ORDER BY closed_at ASC, trade_id ASC`, start.UTC(), end.UTC())
}

func (s *Store) queryTrades(ctx context.Context, q string, args ...any) ([]portfolio.Trade, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []portfolio.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListFills returns fills in [start, end) in time order.
func (s *Store) ListFills(ctx context.Context, start, end time.Time) ([]FillRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT time, order_id, symbol, action, direction, price, quantity, balance, strategy, trade_id
		FROM fills
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`), start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var f FillRecord
		if err := rows.Scan(&f.Time, &f.OrderID, &f.Symbol, &f.Action, &f.Direction,
			&f.Price, &f.Quantity, &f.Balance, &f.Strategy, &f.TradeID); err != nil {
			return nil, err
		}
		f.Time = f.Time.UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListEquity returns equity snapshots in [start, end) in time order.
func (s *Store) ListEquity(ctx context.Context, start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT time, total, available, locked, unrealized_pnl, open_positions
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`), start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		if err := rows.Scan(&e.Time, &e.Total, &e.Available, &e.Locked, &e.UnrealizedPnL, &e.OpenPositions); err != nil {
			return nil, err
		}
		e.Time = e.Time.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
