package statustracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gridbot/internal/bus"
	"gridbot/internal/core"
	"gridbot/internal/orderbook"
)

type fakeExchange struct {
	mu       sync.Mutex
	statuses map[string]core.OrderStatus
	calls    int
}

func (f *fakeExchange) PlaceLimitOrder(ctx context.Context, side core.OrderSide, symbol string, qty, price decimal.Decimal) (*core.Order, error) {
	return nil, nil
}
func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, side core.OrderSide, symbol string, qty decimal.Decimal) (*core.Order, error) {
	return nil, nil
}
func (f *fakeExchange) CancelOrder(ctx context.Context, symbol, orderID string) error { return nil }
func (f *fakeExchange) GetOrder(ctx context.Context, symbol, orderID string) (*core.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &core.Order{ID: orderID, Symbol: symbol, Status: f.statuses[orderID], Filled: decimal.Zero}, nil
}
func (f *fakeExchange) GetOpenOrders(ctx context.Context, symbol string) ([]*core.Order, error) {
	return nil, nil
}
func (f *fakeExchange) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func TestProcessOpenOrders_PublishesFilledAndCancelled(t *testing.T) {
	b := bus.New(nil)
	book := orderbook.New()
	book.AddOrder(&core.Order{ID: "o1", Symbol: "BTCUSDT", Side: core.Buy, Status: core.StatusOpen}, 0)
	book.AddOrder(&core.Order{ID: "o2", Symbol: "BTCUSDT", Side: core.Sell, Status: core.StatusOpen}, 1)

	exch := &fakeExchange{statuses: map[string]core.OrderStatus{
		"o1": core.StatusClosed,
		"o2": core.StatusCanceled,
	}}

	var filled, cancelled []string
	var mu sync.Mutex
	b.Subscribe(core.EventOrderFilled, func(ctx context.Context, payload interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		filled = append(filled, payload.(*core.Order).ID)
		return nil
	})
	b.Subscribe(core.EventOrderCancelled, func(ctx context.Context, payload interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		cancelled = append(cancelled, payload.(*core.Order).ID)
		return nil
	})

	tr := New(book, exch, b, "BTCUSDT", time.Second, 0, nil)
	assert.NoError(t, tr.processOpenOrders(context.Background()))

	assert.ElementsMatch(t, []string{"o1"}, filled)
	assert.ElementsMatch(t, []string{"o2"}, cancelled)
	assert.Equal(t, core.StatusClosed, book.FindOrder("o1").Status)
	assert.Equal(t, core.StatusCanceled, book.FindOrder("o2").Status)
}

func TestStartStop_RunsLoopAndStopsCleanly(t *testing.T) {
	b := bus.New(nil)
	book := orderbook.New()
	exch := &fakeExchange{statuses: map[string]core.OrderStatus{}}

	tr := New(book, exch, b, "BTCUSDT", 10*time.Millisecond, 0, nil)
	tr.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	tr.Stop()

	// Stop must be idempotent.
	tr.Stop()
}
