package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ledger holds the balance in decimal so available+locked==total is exact.
type ledger struct {
	total     decimal.Decimal
	available decimal.Decimal
	locked    decimal.Decimal
}

func newLedger(initial decimal.Decimal) ledger {
	return ledger{total: initial, available: initial, locked: decimal.Zero}
}

func (l *ledger) credit(amt decimal.Decimal) {
	l.total = l.total.Add(amt)
	l.available = l.available.Add(amt)
}

func (l *ledger) debit(amt decimal.Decimal) error {
	if amt.GreaterThan(l.available) {
		return fmt.Errorf("debit %s with %s available: %w", amt, l.available, ErrInsufficientFunds)
	}
	l.total = l.total.Sub(amt)
	l.available = l.available.Sub(amt)
	return nil
}

func (l *ledger) lock(amt decimal.Decimal) error {
	if amt.GreaterThan(l.available) {
		return fmt.Errorf("lock %s with %s available: %w", amt, l.available, ErrInsufficientFunds)
	}
	l.available = l.available.Sub(amt)
	l.locked = l.locked.Add(amt)
	return nil
}

func (l *ledger) release(amt decimal.Decimal) error {
	if amt.GreaterThan(l.locked) {
		return fmt.Errorf("release %s with %s locked: %w", amt, l.locked, ErrInsufficientFunds)
	}
	l.locked = l.locked.Sub(amt)
	l.available = l.available.Add(amt)
	return nil
}

// sync replaces the total with an externally reported figure, keeping locked funds.
func (l *ledger) sync(total decimal.Decimal) error {
	if total.LessThan(l.locked) {
		return fmt.Errorf("sync total %s below locked %s: %w", total, l.locked, ErrInsufficientFunds)
	}
	l.total = total
	l.available = total.Sub(l.locked)
	return nil
}

func (l ledger) consistent() bool {
	return l.available.Add(l.locked).Equal(l.total) && !l.total.IsNegative()
}

func (l ledger) balance() Balance {
	return Balance{
		Total:     l.total.InexactFloat64(),
		Available: l.available.InexactFloat64(),
		Locked:    l.locked.InexactFloat64(),
	}
}
