package broker

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited throttles calls to an exchange. Waiting respects ctx, and a wait
// that cannot finish is reported as an adapter failure.
type Limited struct {
	next Exchange
	lim  *rate.Limiter
}

// NewLimited allows rps calls per second with the given burst.
func NewLimited(next Exchange, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limited) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return OrderResult{}, Wrap("rate limit", err)
	}
	res, err := l.next.PlaceOrder(ctx, req)
	return res, Wrap("place order", err)
}

func (l *Limited) GetBalance(ctx context.Context) (float64, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return 0, Wrap("rate limit", err)
	}
	bal, err := l.next.GetBalance(ctx)
	return bal, Wrap("get balance", err)
}
