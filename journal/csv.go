package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rustyeddy/autotrader/portfolio"
)

var (
	tradeHeader  = []string{"trade_id", "symbol", "side", "quantity", "entry_price", "exit_price", "realized_pnl", "opened_at", "closed_at", "reason"}
	fillHeader   = []string{"time", "order_id", "symbol", "action", "direction", "price", "quantity", "balance", "strategy", "trade_id"}
	equityHeader = []string{"time", "total", "available", "locked", "unrealized_pnl", "open_positions"}
)

// CSVJournal writes trades.csv, fills.csv and equity.csv into a directory.
type CSVJournal struct {
	trades, fills, equity *csv.Writer
	files                 []*os.File
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	create := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.trades, err = create("trades.csv", tradeHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.fills, err = create("fills.csv", fillHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	if j.equity, err = create("equity.csv", equityHeader); err != nil {
		j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordTrade(t portfolio.Trade) error {
	return write(j.trades, []string{
		t.ID,
		t.Symbol,
		string(t.Side),
		f(t.Quantity),
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.RealizedPnL),
		ts(t.OpenedAt),
		ts(t.ClosedAt),
		t.Reason,
	})
}

func (j *CSVJournal) RecordFill(r FillRecord) error {
	return write(j.fills, []string{
		ts(r.Time),
		r.OrderID,
		r.Symbol,
		r.Action,
		r.Direction,
		f(r.Price),
		f(r.Quantity),
		f(r.Balance),
		r.Strategy,
		r.TradeID,
	})
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	return write(j.equity, []string{
		ts(e.Time),
		f(e.Total),
		f(e.Available),
		f(e.Locked),
		f(e.UnrealizedPnL),
		strconv.Itoa(e.OpenPositions),
	})
}

func (j *CSVJournal) Close() error {
	var errs []error
	for _, w := range []*csv.Writer{j.trades, j.fills, j.equity} {
		w.Flush()
		errs = append(errs, w.Error())
	}
	return errors.Join(append(errs, j.closeFiles())...)
}

func (j *CSVJournal) closeFiles() error {
	var errs []error
	for _, fh := range j.files {
		errs = append(errs, fh.Close())
	}
	j.files = nil
	return errors.Join(errs...)
}

func write(w *csv.Writer, rec []string) error {
	if err := w.Write(rec); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 8, 64)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
