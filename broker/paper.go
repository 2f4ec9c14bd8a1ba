package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// paperNamespace seeds the name-based order IDs so a replay produces the same
// IDs every time.
var paperNamespace = uuid.MustParse("6f1c1f3e-8f7a-4c55-9a43-2f0a3b1f0c11")

// Paper fills every valid order at the reference price adjusted by slippage.
// It keeps a net quantity and average cost per symbol so its balance tracks
// realized P&L the way a real account would.
type Paper struct {
	Name        string
	SlippageBps float64
	MinNotional float64

	mu        sync.Mutex
	balance   float64
	seq       uint64
	positions map[string]*paperPosition
}

type paperPosition struct {
	qty  float64 // signed: >0 long, <0 short
	cost float64 // average entry
}

func NewPaper(name string, balance float64) *Paper {
	return &Paper{
		Name:      name,
		balance:   balance,
		positions: make(map[string]*paperPosition),
	}
}

func (p *Paper) GetBalance(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, Wrap("paper balance", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return OrderResult{}, Wrap("paper order", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	id := uuid.NewSHA1(paperNamespace, []byte(fmt.Sprintf("%s/%d/%s", p.Name, p.seq, req.Symbol))).String()

	switch {
	case req.Direction != Buy && req.Direction != Sell:
		return OrderResult{Status: Rejected, OrderID: id, Reason: fmt.Sprintf("bad direction %q", req.Direction)}, nil
	case req.Quantity <= 0:
		return OrderResult{Status: Rejected, OrderID: id, Reason: "quantity must be positive"}, nil
	case req.Price <= 0:
		return OrderResult{Status: Rejected, OrderID: id, Reason: "paper orders need a reference price"}, nil
	case req.Quantity*req.Price < p.MinNotional:
		return OrderResult{Status: Rejected, OrderID: id,
			Reason: fmt.Sprintf("notional %.4f under minimum %.4f", req.Quantity*req.Price, p.MinNotional)}, nil
	}

	fill := req.Price
	signed := req.Quantity
	if req.Direction == Buy {
		fill *= 1 + p.SlippageBps/10000
	} else {
		fill *= 1 - p.SlippageBps/10000
		signed = -signed
	}
	p.apply(req.Symbol, signed, fill)

	return OrderResult{
		Status:       Filled,
		FillPrice:    fill,
		FillQuantity: req.Quantity,
		OrderID:      id,
	}, nil
}

// apply nets signed quantity into the symbol's position and books realized
// P&L for any part that reduces it.
func (p *Paper) apply(symbol string, signed, price float64) {
	pos := p.positions[symbol]
	if pos == nil {
		pos = &paperPosition{}
		p.positions[symbol] = pos
	}

	if pos.qty == 0 || (pos.qty > 0) == (signed > 0) {
		total := pos.qty + signed
		pos.cost = (pos.cost*abs(pos.qty) + price*abs(signed)) / abs(total)
		pos.qty = total
		return
	}

	closing := min(abs(signed), abs(pos.qty))
	if pos.qty > 0 {
		p.balance += (price - pos.cost) * closing
	} else {
		p.balance += (pos.cost - price) * closing
	}
	pos.qty += signed
	switch {
	case abs(pos.qty) < 1e-12:
		delete(p.positions, symbol)
	case (pos.qty > 0) == (signed > 0):
		// Flipped through zero; the remainder opens at this price.
		pos.cost = price
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
