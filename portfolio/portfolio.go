// Package portfolio owns capital, open positions and the closed-trade log.
//
// Every mutation is serialized by an internal mutex, so concurrent callers
// racing on the same symbol resolve as first writer wins; the loser gets
// ErrDuplicatePosition or ErrPositionNotFound.
package portfolio

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/pkg/id"
	"github.com/rustyeddy/autotrader/pkg/logging"
)

// IDSource mints trade IDs for a close time.
type IDSource interface {
	At(t time.Time) string
}

type Portfolio struct {
	mu        sync.RWMutex
	ledger    ledger
	positions map[string]*holding
	trades    []Trade
	ids       IDSource
	log       *zap.Logger
}

type holding struct {
	pos      Position
	reserved decimal.Decimal
}

// New creates a portfolio holding initialBalance of quote currency.
// A nil ids falls back to random ULIDs, a nil log to a no-op logger.
func New(initialBalance float64, ids IDSource, log *zap.Logger) (*Portfolio, error) {
	if initialBalance < 0 {
		return nil, fmt.Errorf("portfolio: initial balance %.8f is negative", initialBalance)
	}
	if ids == nil {
		ids = id.NewRandom()
	}
	return &Portfolio{
		ledger:    newLedger(decimal.NewFromFloat(initialBalance)),
		positions: make(map[string]*holding),
		ids:       ids,
		log:       logging.OrNop(log).Named("portfolio"),
	}, nil
}

// Credit adds amount to total and available.
func (p *Portfolio) Credit(amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledger.credit(decimal.NewFromFloat(amount))
	return nil
}

// Debit removes amount from total and available.
func (p *Portfolio) Debit(amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.debit(decimal.NewFromFloat(amount))
}

// Lock moves amount from available to locked.
func (p *Portfolio) Lock(amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.lock(decimal.NewFromFloat(amount))
}

// Release moves amount from locked back to available.
func (p *Portfolio) Release(amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.release(decimal.NewFromFloat(amount))
}

// SyncBalance sets the total to an exchange-reported figure. Locked funds are
// kept and the remainder becomes available.
func (p *Portfolio) SyncBalance(total float64) error {
	if total < 0 {
		return ErrInvalidAmount
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.sync(decimal.NewFromFloat(total))
}

// OpenPosition opens a position for req.Symbol. If req.Reserve is set the
// funds are locked in the same step; on any failure nothing is changed.
func (p *Portfolio) OpenPosition(req OpenRequest) (Position, error) {
	sym := strings.TrimSpace(req.Symbol)
	if sym == "" {
		return Position{}, fmt.Errorf("open position: empty symbol")
	}
	if !req.Side.Valid() {
		return Position{}, fmt.Errorf("open position %s: invalid side %q", sym, req.Side)
	}
	if req.Quantity <= 0 {
		return Position{}, fmt.Errorf("open position %s: %w", sym, ErrInvalidQuantity)
	}
	if req.EntryPrice <= 0 {
		return Position{}, fmt.Errorf("open position %s: %w", sym, ErrInvalidPrice)
	}
	if req.Reserve < 0 {
		return Position{}, fmt.Errorf("open position %s: %w", sym, ErrInvalidAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.positions[sym]; ok {
		return Position{}, fmt.Errorf("open position %s: %w", sym, ErrDuplicatePosition)
	}

	openedAt := req.OpenedAt
	if openedAt.IsZero() {
		openedAt = time.Now()
	}

	reserved := decimal.NewFromFloat(req.Reserve)
	if reserved.IsPositive() {
		if err := p.ledger.lock(reserved); err != nil {
			return Position{}, fmt.Errorf("open position %s: %w", sym, err)
		}
	}

	pos := Position{
		Symbol:       sym,
		Side:         req.Side,
		Quantity:     req.Quantity,
		EntryPrice:   req.EntryPrice,
		CurrentPrice: req.EntryPrice,
		OpenedAt:     openedAt,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Reserved:     req.Reserve,
	}
	p.positions[sym] = &holding{pos: pos, reserved: reserved}

	p.log.Debug("position opened",
		zap.String("symbol", sym),
		zap.String("side", string(pos.Side)),
		zap.Float64("quantity", pos.Quantity),
		zap.Float64("entry", pos.EntryPrice))
	return pos, nil
}

// MarkToMarket revalues an open position at currentPrice.
func (p *Portfolio) MarkToMarket(symbol string, currentPrice float64) error {
	if currentPrice <= 0 {
		return fmt.Errorf("mark %s: %w", symbol, ErrInvalidPrice)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.positions[symbol]
	if !ok {
		return fmt.Errorf("mark %s: %w", symbol, ErrPositionNotFound)
	}
	h.pos.CurrentPrice = currentPrice
	h.pos.UnrealizedPnL = PnL(h.pos.Side, h.pos.EntryPrice, currentPrice, h.pos.Quantity)
	return nil
}

// ClosePosition removes the position, releases its reserved funds, books the
// realized P&L into the balance and appends the resulting Trade to the log.
func (p *Portfolio) ClosePosition(req CloseRequest) (Trade, error) {
	if req.ExitPrice <= 0 {
		return Trade{}, fmt.Errorf("close position %s: %w", req.Symbol, ErrInvalidPrice)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.positions[req.Symbol]
	if !ok {
		return Trade{}, fmt.Errorf("close position %s: %w", req.Symbol, ErrPositionNotFound)
	}

	closedAt := req.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now()
	}
	pnl := PnL(h.pos.Side, h.pos.EntryPrice, req.ExitPrice, h.pos.Quantity)

	// Work on a copy so a failed settlement leaves the ledger untouched.
	next := p.ledger
	if h.reserved.IsPositive() {
		if err := next.release(h.reserved); err != nil {
			return Trade{}, fmt.Errorf("close position %s: %w", req.Symbol, err)
		}
	}
	amt := decimal.NewFromFloat(pnl)
	switch {
	case amt.IsPositive():
		next.credit(amt)
	case amt.IsNegative():
		if err := next.debit(amt.Neg()); err != nil {
			return Trade{}, fmt.Errorf("close position %s: %w", req.Symbol, err)
		}
	}

	tr := Trade{
		ID:          p.ids.At(closedAt),
		Symbol:      h.pos.Symbol,
		Side:        h.pos.Side,
		Quantity:    h.pos.Quantity,
		EntryPrice:  h.pos.EntryPrice,
		ExitPrice:   req.ExitPrice,
		RealizedPnL: pnl,
		OpenedAt:    h.pos.OpenedAt,
		ClosedAt:    closedAt,
		Reason:      req.Reason,
	}

	p.ledger = next
	delete(p.positions, req.Symbol)
	p.trades = append(p.trades, tr)

	p.log.Debug("position closed",
		zap.String("symbol", tr.Symbol),
		zap.String("reason", tr.Reason),
		zap.Float64("exit", tr.ExitPrice),
		zap.Float64("realized_pnl", tr.RealizedPnL))
	return tr, nil
}

// SeedTrades appends previously persisted trades to the log. Balance is not
// touched; the exchange balance already reflects them.
func (p *Portfolio) SeedTrades(trades []Trade) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trades = append(p.trades, trades...)
}

func (p *Portfolio) Balance() Balance {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ledger.balance()
}

// Position returns the open position for symbol, if any.
func (p *Portfolio) Position(symbol string) (Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return h.pos, true
}

func (p *Portfolio) OpenCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.positions)
}

// UnrealizedPnL sums unrealized P&L over open positions.
func (p *Portfolio) UnrealizedPnL() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unrealizedLocked()
}

// Positions returns open positions ordered by symbol.
func (p *Portfolio) Positions() []Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.positionsLocked()
}

// Trades returns a copy of the trade log in close order.
func (p *Portfolio) Trades() []Trade {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

func (p *Portfolio) Summary() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var realized float64
	for _, t := range p.trades {
		realized += t.RealizedPnL
	}

	return Summary{
		Balance:            p.ledger.balance(),
		OpenCount:          len(p.positions),
		TotalUnrealizedPnL: p.unrealizedLocked(),
		TotalRealizedPnL:   realized,
		Positions:          p.positionsLocked(),
	}
}

// Consistent reports whether the balance invariant holds.
func (p *Portfolio) Consistent() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.ledger.consistent() {
		return false
	}
	for sym, h := range p.positions {
		if sym != h.pos.Symbol || h.pos.Quantity <= 0 {
			return false
		}
	}
	return true
}

func (p *Portfolio) positionsLocked() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, h := range p.positions {
		out = append(out, h.pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (p *Portfolio) unrealizedLocked() float64 {
	// Sum in symbol order so the float result is stable.
	var sum float64
	for _, pos := range p.positionsLocked() {
		sum += pos.UnrealizedPnL
	}
	return sum
}
