package broker

import (
	"context"
	"time"

	"VCPSentinel/internal/model"
)

// Side is the order direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// OrderType selects the execution style.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// OrderStatus is the broker-reported lifecycle state of an order.
// Rejected is terminal for the attempt; Partial remains open until filled or
// canceled.
type OrderStatus string

const (
	StatusPending  OrderStatus = "PENDING"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
)

// OrderHandle identifies a placed order for later status polling.
type OrderHandle struct {
	ID          string
	Symbol      string
	Side        Side
	Quantity    int
	SubmittedAt time.Time
}

// OrderState is a point-in-time view of an order.
type OrderState struct {
	Status         OrderStatus
	FilledQuantity int
	AvgFillPrice   float64
}

// HistorySource provides price data. It is the read-only half of the broker
// capability and can be satisfied by a data-only provider.
type HistorySource interface {
	GetPriceHistory(ctx context.Context, symbol string, days int) ([]model.Bar, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	Name() string
}

// QuoteSource is implemented by sources that can report the current
// session's cumulative volume alongside the price. Callers fall back to
// CurrentPrice with an unknown volume when a source lacks it.
type QuoteSource interface {
	CurrentQuote(ctx context.Context, symbol string) (price, volume float64, err error)
}

// Broker is the full capability any concrete integration must satisfy. The
// core depends only on this interface; all calls are fallible and callers
// treat transport errors as retryable.
type Broker interface {
	HistorySource
	PlaceOrder(ctx context.Context, symbol string, side Side, quantity int, typ OrderType) (OrderHandle, error)
	GetOrderStatus(ctx context.Context, handle OrderHandle) (OrderState, error)
	CancelOrder(ctx context.Context, handle OrderHandle) error
	AccountEquity(ctx context.Context) (float64, error)
}
