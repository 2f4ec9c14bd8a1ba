package execution

import (
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/pkg/logging"
)

// JournalObserver persists fills and the trades closes produce. Write
// failures are logged; they never affect the cycle.
type JournalObserver struct {
	j   journal.Journal
	log *zap.Logger
}

func NewJournalObserver(j journal.Journal, log *zap.Logger) *JournalObserver {
	return &JournalObserver{j: j, log: logging.OrNop(log).Named("journal")}
}

func (o *JournalObserver) OnFill(f Fill) {
	rec := journal.FillRecord{
		Time:      f.Time,
		OrderID:   f.OrderID,
		Symbol:    f.Symbol,
		Action:    string(f.Action),
		Direction: string(f.Direction),
		Price:     f.Price,
		Quantity:  f.Quantity,
		Balance:   f.Balance.Total,
		Strategy:  f.Strategy,
	}
	if f.Trade != nil {
		rec.TradeID = f.Trade.ID
		if err := o.j.RecordTrade(*f.Trade); err != nil {
			o.log.Error("record trade", zap.String("trade_id", f.Trade.ID), zap.Error(err))
		}
	}
	if err := o.j.RecordFill(rec); err != nil {
		o.log.Error("record fill", zap.String("symbol", f.Symbol), zap.Error(err))
	}
}

func (o *JournalObserver) OnRejection(Rejection) {}

func (o *JournalObserver) OnHalt(time.Time, time.Time) {}
