package execution

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/shopspring/decimal"

	"gridbot/internal/core"
)

// LiveBackend wraps a raw venue core.ExchangeClient with a failsafe-go
// retry policy and circuit breaker (SPEC_FULL.md §4.5a), grounded on
// pkg/http.Client's identical retry+breaker pipeline composition. The raw
// client is the out-of-scope REST boundary named in spec.md §1; this module
// ships no concrete implementation of it (see DESIGN.md).
type LiveBackend struct {
	raw      core.ExchangeClient
	pipeline failsafe.Executor[any]
	logger   core.ILogger
}

func NewLiveBackend(raw core.ExchangeClient, logger core.ILogger) *LiveBackend {
	retryPolicy := retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool { return err != nil }).
		WithBackoff(200*time.Millisecond, 5*time.Second).
		WithMaxRetries(3).
		Build()

	breaker := circuitbreaker.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool { return err != nil }).
		WithFailureThresholdRatio(5, 10).
		WithDelay(30 * time.Second).
		Build()

	return &LiveBackend{
		raw:      raw,
		pipeline: failsafe.With[any](retryPolicy, breaker),
		logger:   logger,
	}
}

func (b *LiveBackend) PlaceLimitOrder(ctx context.Context, side core.OrderSide, symbol string, qty, price decimal.Decimal) (*core.Order, error) {
	result, err := b.pipeline.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return b.raw.PlaceLimitOrder(ctx, side, symbol, qty, price)
	})
	if err != nil {
		return nil, err
	}
	return result.(*core.Order), nil
}

func (b *LiveBackend) PlaceMarketOrder(ctx context.Context, side core.OrderSide, symbol string, qty decimal.Decimal) (*core.Order, error) {
	result, err := b.pipeline.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return b.raw.PlaceMarketOrder(ctx, side, symbol, qty)
	})
	if err != nil {
		return nil, err
	}
	return result.(*core.Order), nil
}

func (b *LiveBackend) CancelOrder(ctx context.Context, symbol, orderID string) error {
	_, err := b.pipeline.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return nil, b.raw.CancelOrder(ctx, symbol, orderID)
	})
	return err
}

func (b *LiveBackend) GetOrder(ctx context.Context, symbol, orderID string) (*core.Order, error) {
	result, err := b.pipeline.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return b.raw.GetOrder(ctx, symbol, orderID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*core.Order), nil
}

func (b *LiveBackend) GetOpenOrders(ctx context.Context, symbol string) ([]*core.Order, error) {
	result, err := b.pipeline.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return b.raw.GetOpenOrders(ctx, symbol)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*core.Order), nil
}

func (b *LiveBackend) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	result, err := b.pipeline.GetWithExecution(func(exec failsafe.Execution[any]) (any, error) {
		return b.raw.GetLatestPrice(ctx, symbol)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return result.(decimal.Decimal), nil
}
