package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/pkg/logging"
	"github.com/rustyeddy/autotrader/portfolio"
	"github.com/rustyeddy/autotrader/risk"
	"github.com/rustyeddy/autotrader/strategies"
)

// Coordinator runs evaluation cycles. It is the only writer of the
// portfolio's positions, and cycles never overlap.
type Coordinator struct {
	mu sync.Mutex

	portfolio  *portfolio.Portfolio
	gate       *risk.Gate
	strategies []strategies.Strategy
	exchange   broker.Exchange
	observers  []Observer
	log        *zap.Logger

	// haltedWindow is the start of the daily window in which the loss limit
	// tripped; opens stay suspended until the window moves on.
	haltedWindow time.Time
}

func New(p *portfolio.Portfolio, g *risk.Gate, strats []strategies.Strategy, ex broker.Exchange, log *zap.Logger) *Coordinator {
	return &Coordinator{
		portfolio:  p,
		gate:       g,
		strategies: strats,
		exchange:   ex,
		log:        logging.OrNop(log).Named("coordinator"),
	}
}

// Observe registers o for fills, rejections and halts.
func (c *Coordinator) Observe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Mark updates open positions to the snapshot prices. Symbols without a
// position are skipped.
func (c *Coordinator) Mark(snaps []market.Snapshot) []error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, s := range snaps {
		if _, ok := c.portfolio.Position(s.Symbol); !ok {
			continue
		}
		if err := c.portfolio.MarkToMarket(s.Symbol, s.Price); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// cycle holds the bookkeeping for one RunCycle call.
type cycle struct {
	now    time.Time
	res    *CycleResult
	opened map[string]bool
}

// RunCycle evaluates every snapshot against every strategy in order. A
// structural or adapter error aborts only the symbol it happened on.
func (c *Coordinator) RunCycle(ctx context.Context, now time.Time, snaps []market.Snapshot) CycleResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := CycleResult{Time: now, States: make(map[string]State, len(snaps))}
	cy := &cycle{now: now, res: &res, opened: map[string]bool{}}

	if c.gate.CheckDailyLossLimit(now) && !c.halted() {
		c.haltedWindow = c.gate.Window().Start
		c.log.Warn("opens suspended for the rest of the day", zap.Time("window", c.haltedWindow))
		for _, o := range c.observers {
			o.OnHalt(now, c.haltedWindow)
		}
	}
	res.Halted = c.halted()

	for _, snap := range snaps {
		res.States[snap.Symbol] = Idle
		if err := snap.Validate(); err != nil {
			res.Errors = append(res.Errors, err)
			c.log.Error("bad snapshot", zap.Error(err))
			continue
		}
		for _, strat := range c.strategies {
			a, ok := strat.Evaluate(snap, c.portfolio)
			if !ok {
				continue
			}
			if a.Strategy == "" {
				a.Strategy = strat.Name()
			}
			res.States[snap.Symbol] = SignalPending

			var err error
			switch a.Kind {
			case strategies.Open:
				err = c.open(ctx, cy, a)
			case strategies.Close:
				err = c.close(ctx, cy, a)
			default:
				err = fmt.Errorf("%s: unknown action kind %q from %s", a.Symbol, a.Kind, a.Strategy)
			}
			if err != nil {
				res.Errors = append(res.Errors, err)
				c.log.Error("action aborted",
					zap.String("symbol", a.Symbol),
					zap.String("strategy", a.Strategy),
					zap.Error(err))
				break
			}
		}
	}
	return res
}

// CloseAll closes every open position at its last marked price, or its
// entry price when it was never marked.
func (c *Coordinator) CloseAll(ctx context.Context, now time.Time, reason string) CycleResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := CycleResult{Time: now, States: map[string]State{}, Halted: c.halted()}
	cy := &cycle{now: now, res: &res, opened: map[string]bool{}}

	for _, pos := range c.portfolio.Positions() {
		price := pos.CurrentPrice
		if price <= 0 {
			price = pos.EntryPrice
		}
		dir := strategies.Sell
		if pos.Side == portfolio.Short {
			dir = strategies.Buy
		}
		a := strategies.Action{
			Symbol:    pos.Symbol,
			Kind:      strategies.Close,
			Direction: dir,
			Quantity:  pos.Quantity,
			USDAmount: pos.Quantity * price,
			Price:     price,
			Reason:    reason,
			Strategy:  "close-all",
		}
		res.States[a.Symbol] = SignalPending
		if err := c.close(ctx, cy, a); err != nil {
			res.Errors = append(res.Errors, err)
			c.log.Error("close-all aborted", zap.String("symbol", a.Symbol), zap.Error(err))
		}
	}
	return res
}

// halted reports whether the loss limit tripped in the current window.
func (c *Coordinator) halted() bool {
	return !c.haltedWindow.IsZero() && c.haltedWindow.Equal(c.gate.Window().Start)
}

func (c *Coordinator) open(ctx context.Context, cy *cycle, a strategies.Action) error {
	if c.halted() {
		c.reject(cy, a, risk.CodeDailyLossLimit, "daily loss limit reached; opens suspended until the next day")
		return nil
	}

	side := a.Side()
	limits := c.gate.Limits()
	d := c.gate.CheckTradeRisk(cy.now, a.Symbol, a.Price, limits.StopLossPrice(a.Price, side), a.Quantity)
	if !d.Allowed {
		c.reject(cy, a, d.Code(), d.Reason())
		return nil
	}
	if d = c.gate.CheckOpenLimits(a.USDAmount); !d.Allowed {
		c.reject(cy, a, d.Code(), d.Reason())
		return nil
	}
	cy.res.States[a.Symbol] = RiskChecked

	if _, exists := c.portfolio.Position(a.Symbol); exists {
		return fmt.Errorf("open %s: %w", a.Symbol, portfolio.ErrDuplicatePosition)
	}

	fill, ok, err := c.place(ctx, cy, a, a.Quantity)
	if err != nil || !ok {
		return err
	}

	// The gate admitted the reference notional. A fill above it (slippage)
	// can exceed what is available, so the reservation is capped there.
	reserve := fill.FillQuantity * fill.FillPrice
	if avail := c.portfolio.Balance().Available; reserve > avail {
		c.log.Warn("fill notional above available, reserving what is left",
			zap.String("symbol", a.Symbol),
			zap.Float64("notional", reserve),
			zap.Float64("available", avail))
		reserve = max(avail, 0)
	}

	pos, err := c.portfolio.OpenPosition(portfolio.OpenRequest{
		Symbol:     a.Symbol,
		Side:       side,
		Quantity:   fill.FillQuantity,
		EntryPrice: fill.FillPrice,
		OpenedAt:   cy.now,
		StopLoss:   limits.StopLossPrice(fill.FillPrice, side),
		TakeProfit: limits.TakeProfitPrice(fill.FillPrice, side),
		Reserve:    reserve,
	})
	if err != nil {
		err = fmt.Errorf("open %s after order %s: %w", a.Symbol, fill.OrderID, err)
		return errors.Join(err, c.unwind(ctx, a, fill))
	}
	cy.opened[a.Symbol] = true

	c.applied(cy, Fill{
		Time:      cy.now,
		Symbol:    a.Symbol,
		Action:    strategies.Open,
		Direction: a.Direction,
		Price:     pos.EntryPrice,
		Quantity:  pos.Quantity,
		Balance:   c.portfolio.Balance(),
		Strategy:  a.Strategy,
		OrderID:   fill.OrderID,
	})
	return nil
}

// close is never subject to risk limits.
func (c *Coordinator) close(ctx context.Context, cy *cycle, a strategies.Action) error {
	if cy.opened[a.Symbol] {
		c.reject(cy, a, CodeConflictInCycle, "position was opened earlier in this cycle")
		return nil
	}
	pos, ok := c.portfolio.Position(a.Symbol)
	if !ok {
		return fmt.Errorf("close %s: %w", a.Symbol, portfolio.ErrPositionNotFound)
	}
	cy.res.States[a.Symbol] = RiskChecked

	fill, ok, err := c.place(ctx, cy, a, pos.Quantity)
	if err != nil || !ok {
		return err
	}

	reason := a.Reason
	if reason == "" {
		reason = portfolio.ReasonSignal
	}
	tr, err := c.portfolio.ClosePosition(portfolio.CloseRequest{
		Symbol:    a.Symbol,
		ExitPrice: fill.FillPrice,
		ClosedAt:  cy.now,
		Reason:    reason,
	})
	if err != nil {
		return fmt.Errorf("close %s after order %s: %w", a.Symbol, fill.OrderID, err)
	}

	c.applied(cy, Fill{
		Time:      cy.now,
		Symbol:    a.Symbol,
		Action:    strategies.Close,
		Direction: a.Direction,
		Price:     tr.ExitPrice,
		Quantity:  tr.Quantity,
		Balance:   c.portfolio.Balance(),
		Strategy:  a.Strategy,
		OrderID:   fill.OrderID,
		Trade:     &tr,
	})
	return nil
}

// unwind sends the opposite order for a fill the portfolio could not record,
// so the exchange is not left holding inventory nobody tracks.
func (c *Coordinator) unwind(ctx context.Context, a strategies.Action, fill broker.OrderResult) error {
	if fill.FillQuantity <= 0 {
		return nil
	}
	dir := broker.Sell
	if a.Direction == strategies.Sell {
		dir = broker.Buy
	}
	res, err := c.exchange.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:    a.Symbol,
		Direction: dir,
		Quantity:  fill.FillQuantity,
		Price:     a.Price,
	})
	if err != nil {
		return broker.Wrap(fmt.Sprintf("unwind %s", a.Symbol), err)
	}
	if !res.Filled() {
		return fmt.Errorf("unwind %s: order %s not filled: %s", a.Symbol, res.OrderID, res.Reason)
	}
	c.log.Warn("unwound orphan fill",
		zap.String("symbol", a.Symbol),
		zap.String("order", fill.OrderID),
		zap.String("unwind_order", res.OrderID))
	return nil
}

// place sends the order. ok is false when the exchange turned it down, which
// is recorded as a rejection.
func (c *Coordinator) place(ctx context.Context, cy *cycle, a strategies.Action, qty float64) (broker.OrderResult, bool, error) {
	res, err := c.exchange.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:    a.Symbol,
		Direction: broker.Direction(a.Direction),
		Quantity:  qty,
		Price:     a.Price,
	})
	if err != nil {
		return res, false, broker.Wrap(fmt.Sprintf("%s %s", a.Kind, a.Symbol), err)
	}
	if !res.Filled() {
		reason := res.Reason
		if reason == "" {
			reason = fmt.Sprintf("order status %s", res.Status)
		}
		c.reject(cy, a, CodeOrderRejected, reason)
		return res, false, nil
	}
	return res, true, nil
}

func (c *Coordinator) reject(cy *cycle, a strategies.Action, code, reason string) {
	r := Rejection{
		Time:     cy.now,
		Symbol:   a.Symbol,
		Strategy: a.Strategy,
		Action:   a,
		Code:     code,
		Reason:   reason,
	}
	cy.res.Rejections = append(cy.res.Rejections, r)
	cy.res.States[a.Symbol] = Rejected
	c.log.Info("action rejected",
		zap.String("symbol", a.Symbol),
		zap.String("strategy", a.Strategy),
		zap.String("kind", string(a.Kind)),
		zap.String("code", code),
		zap.String("reason", reason))
	for _, o := range c.observers {
		o.OnRejection(r)
	}
}

func (c *Coordinator) applied(cy *cycle, f Fill) {
	cy.res.Fills = append(cy.res.Fills, f)
	cy.res.States[f.Symbol] = Applied
	c.log.Info("fill",
		zap.String("symbol", f.Symbol),
		zap.String("strategy", f.Strategy),
		zap.String("action", string(f.Action)),
		zap.Float64("price", f.Price),
		zap.Float64("quantity", f.Quantity),
		zap.Float64("total", f.Balance.Total))
	for _, o := range c.observers {
		o.OnFill(f)
	}
}
