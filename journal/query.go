package journal

import (
	"context"
	"time"

	"github.com/rustyeddy/autotrader/portfolio"
)

// DayReport summarizes the trades closed during one calendar day.
type DayReport struct {
	Day          time.Time         `json:"day"`
	Trades       []portfolio.Trade `json:"trades"`
	RealizedPnL  float64           `json:"realized_pnl"`
	Wins         int               `json:"wins"`
	Losses       int               `json:"losses"`
	GrossProfit  float64           `json:"gross_profit"`
	GrossLoss    float64           `json:"gross_loss"`
	ProfitFactor float64           `json:"profit_factor"`
}

// Day loads the trades closed on day's calendar date in loc.
func (s *Store) Day(ctx context.Context, day time.Time, loc *time.Location) (DayReport, error) {
	if loc == nil {
		loc = time.UTC
	}
	day = day.In(loc)
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)

	trades, err := s.ListTradesClosedBetween(ctx, start, end)
	if err != nil {
		return DayReport{}, err
	}

	r := DayReport{Day: start, Trades: trades}
	for _, t := range trades {
		r.RealizedPnL += t.RealizedPnL
		switch {
		case t.RealizedPnL > 0:
			r.Wins++
			r.GrossProfit += t.RealizedPnL
		case t.RealizedPnL < 0:
			r.Losses++
			r.GrossLoss -= t.RealizedPnL
		}
	}
	if r.GrossLoss > 0 {
		r.ProfitFactor = r.GrossProfit / r.GrossLoss
	}
	return r, nil
}
