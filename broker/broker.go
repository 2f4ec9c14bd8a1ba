package broker

import (
	"context"
	"errors"
	"fmt"
)

// ErrAdapter marks a failure inside an exchange adapter. The engine records it
// and moves on; retries are the adapter's business.
var ErrAdapter = errors.New("exchange adapter failure")

// Wrap tags err as an adapter failure for op. Errors already tagged are
// returned unchanged.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrAdapter) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrAdapter, err)
}

type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

type Status string

const (
	Filled   Status = "filled"
	Rejected Status = "rejected"
)

// Exchange is the order-placement side of an exchange connection.
type Exchange interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	GetBalance(ctx context.Context) (float64, error)
}

type OrderRequest struct {
	Symbol    string
	Direction Direction
	Quantity  float64
	// Price is the reference price; zero means market.
	Price float64
}

type OrderResult struct {
	Status       Status  `json:"status"`
	FillPrice    float64 `json:"fill_price"`
	FillQuantity float64 `json:"fill_quantity"`
	OrderID      string  `json:"order_id"`
	// Reason explains a rejected order.
	Reason string `json:"reason,omitempty"`
}

func (r OrderResult) Filled() bool {
	return r.Status == Filled && r.FillQuantity > 0
}
