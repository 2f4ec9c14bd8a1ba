package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/autotrader/market"
)

// BarFeed yields historical bars one at a time. Implementations return
// (ok=false, err=nil) at EOF and must not reorder their input.
type BarFeed interface {
	Next() (b market.Bar, ok bool, err error)
	Close() error
}

// SliceFeed serves bars from memory.
type SliceFeed struct {
	bars []market.Bar
	i    int
}

func NewSliceFeed(bars []market.Bar) *SliceFeed {
	return &SliceFeed{bars: bars}
}

func (f *SliceFeed) Next() (market.Bar, bool, error) {
	if f.i >= len(f.bars) {
		return market.Bar{}, false, nil
	}
	b := f.bars[f.i]
	f.i++
	return b, true, nil
}

func (f *SliceFeed) Close() error { return nil }

// DefaultColumns is the column order assumed for files without a header.
var DefaultColumns = []string{
	"time", "symbol", "open", "high", "low", "close", "volume",
	"sma_short", "sma_long", "rsi", "recommended_usd_size", "small_account", "good_time",
}

// CSVBarFeed reads bar rows. A header row whose first cell is "time" maps
// columns by name; otherwise DefaultColumns order is assumed. time, symbol
// and close are required. Missing suitability columns mean suitable.
//
// Rows outside [From, To) are skipped when those bounds are set. Empty rows
// are skipped.
type CSVBarFeed struct {
	f    *os.File
	r    *csv.Reader
	from time.Time
	to   time.Time

	cols     map[string]int
	sawFirst bool
	line     int
}

func NewCSVBarFeed(path string, from, to time.Time) (*CSVBarFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	feed := newCSVBarFeed(f, from, to)
	feed.f = f
	return feed, nil
}

func newCSVBarFeed(r io.Reader, from, to time.Time) *CSVBarFeed {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVBarFeed{r: cr, from: from, to: to, cols: columnIndex(DefaultColumns)}
}

func (f *CSVBarFeed) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

func (f *CSVBarFeed) Next() (market.Bar, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return market.Bar{}, false, nil
		}
		if err != nil {
			return market.Bar{}, false, err
		}
		f.line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				f.cols = columnIndex(row)
				for _, req := range []string{"time", "symbol", "close"} {
					if _, ok := f.cols[req]; !ok {
						return market.Bar{}, false, fmt.Errorf("bars: header is missing %q", req)
					}
				}
				continue
			}
		}

		b, err := f.parse(row)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("bars line %d: %w", f.line, err)
		}
		if !inRange(b.Time, f.from, f.to) {
			continue
		}
		return b, true, nil
	}
}

func columnIndex(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, h := range header {
		m[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return m
}

func (f *CSVBarFeed) cell(row []string, name string) string {
	i, ok := f.cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (f *CSVBarFeed) parse(row []string) (market.Bar, error) {
	var b market.Bar

	ts := f.cell(row, "time")
	t, err := parseTime(ts)
	if err != nil {
		return b, err
	}
	b.Time = t

	b.Symbol = f.cell(row, "symbol")
	if b.Symbol == "" {
		return b, fmt.Errorf("symbol is required")
	}

	nums := []struct {
		name     string
		dst      *float64
		required bool
	}{
		{"open", &b.Open, false},
		{"high", &b.High, false},
		{"low", &b.Low, false},
		{"close", &b.Close, true},
		{"volume", &b.Volume, false},
		{"sma_short", &b.SMAShort, false},
		{"sma_long", &b.SMALong, false},
		{"rsi", &b.RSI, false},
		{"recommended_usd_size", &b.RecommendedUSDSize, false},
	}
	for _, n := range nums {
		s := f.cell(row, n.name)
		if s == "" {
			if n.required {
				return b, fmt.Errorf("%s is required", n.name)
			}
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return b, fmt.Errorf("bad %s %q: %w", n.name, s, err)
		}
		*n.dst = v
	}
	if b.Open == 0 {
		b.Open = b.Close
	}
	if b.High == 0 {
		b.High = max(b.Open, b.Close)
	}
	if b.Low == 0 {
		b.Low = min(b.Open, b.Close)
	}

	b.Suitability.SmallAccount, err = parseFlag(f.cell(row, "small_account"))
	if err != nil {
		return b, err
	}
	b.Suitability.GoodTime, err = parseFlag(f.cell(row, "good_time"))
	if err != nil {
		return b, err
	}
	return b, nil
}

// parseTime accepts RFC3339, RFC3339Nano or unix seconds.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("time is required")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

func parseFlag(s string) (bool, error) {
	if s == "" {
		return true, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("bad flag %q: %w", s, err)
	}
	return v, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}
