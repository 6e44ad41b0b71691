package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// ILogger is the structured-logging contract every component depends on,
// grounded on the teacher's own core.ILogger — implemented by
// internal/logging.ZapLogger.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// Handler processes one event published on the EventBus. It must not panic;
// EventBus recovers and logs, but a well-behaved handler returns its own
// errors instead.
type Handler func(ctx context.Context, payload interface{}) error

// EventBus is the in-process pub/sub contract (spec.md §2, §5).
type EventBus interface {
	Subscribe(event EventType, h Handler)
	Publish(ctx context.Context, event EventType, payload interface{})
}

// ExchangeClient is the out-of-scope venue boundary (spec.md §1, §4.5):
// REST order placement/cancellation/lookup and a latest-price fetch. The
// ticker stream is not part of it (see PriceStreamer below). The core
// only depends on this interface; see internal/execution for the two
// ExecutionBackend implementations and internal/tickerstream for the one
// concrete adapter this module ships.
type ExchangeClient interface {
	PlaceLimitOrder(ctx context.Context, side OrderSide, symbol string, qty, price decimal.Decimal) (*Order, error)
	PlaceMarketOrder(ctx context.Context, side OrderSide, symbol string, qty decimal.Decimal) (*Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetOrder(ctx context.Context, symbol, orderID string) (*Order, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]*Order, error)
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PriceStreamer is the ticker-stream half of ExchangeClient, split out so
// the live/paper GridStrategy loop can depend on it without requiring a
// full order-placement implementation (see internal/tickerstream).
type PriceStreamer interface {
	Start(ctx context.Context, symbol string) (<-chan Tick, error)
	Stop() error
}

// OrderValidator adjusts a proposed quantity/price against venue
// constraints (spec.md §4.4) — treated as an opaque external contract; the
// core only needs the call site and the error path.
type OrderValidator interface {
	Validate(ctx context.Context, side OrderSide, price, qty decimal.Decimal) (decimal.Decimal, error)
}
