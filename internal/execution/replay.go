// Package execution implements the two ExecutionBackend variants named by
// spec.md §4.5: ReplayBackend simulates fills against OHLC bars for
// backtest mode, and LiveBackend (live.go) wraps a real venue client with
// failsafe-go resilience for paper/live mode.
package execution

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	apperrors "gridbot/pkg/errors"
)

var nowFunc = time.Now

// ReplayBackend implements core.ExchangeClient against a stream of OHLC
// bars fed through AdvanceBar, grounded on the teacher's
// internal/mock.MockExchange (a deterministic, in-memory stand-in playing
// the identical role against a real venue interface).
type ReplayBackend struct {
	mu sync.Mutex

	bus     core.EventBus
	symbol  string
	feeRate decimal.Decimal

	lastPrice decimal.Decimal
	orders    map[string]*core.Order
}

func NewReplayBackend(bus core.EventBus, symbol string, feeRate decimal.Decimal) *ReplayBackend {
	return &ReplayBackend{
		bus:     bus,
		symbol:  symbol,
		feeRate: feeRate,
		orders:  make(map[string]*core.Order),
	}
}

func (r *ReplayBackend) PlaceLimitOrder(ctx context.Context, side core.OrderSide, symbol string, qty, price decimal.Decimal) (*core.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := &core.Order{
		ID:        uuid.NewString(),
		Status:    core.StatusOpen,
		Type:      core.Limit,
		Side:      side,
		Symbol:    symbol,
		Price:     price,
		Amount:    qty,
		Remaining: qty,
		Timestamp: timeNow(),
	}
	r.orders[order.ID] = order
	return order, nil
}

// PlaceMarketOrder fills immediately at the last observed price. Unlike
// limit orders, market fills bypass the bar-by-bar Simulator entirely, so
// this backend does not publish ORDER_FILLED itself — the caller
// (OrderManager) is responsible for publishing once it has the closed
// order in hand (spec.md §4.6 "TP/SL execution... explicitly publishes
// ORDER_FILLED because market orders bypass the Simulator").
func (r *ReplayBackend) PlaceMarketOrder(ctx context.Context, side core.OrderSide, symbol string, qty decimal.Decimal) (*core.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	price := r.lastPrice
	fee := qty.Mul(price).Mul(r.feeRate)
	order := &core.Order{
		ID:                 uuid.NewString(),
		Status:             core.StatusClosed,
		Type:               core.Market,
		Side:               side,
		Symbol:             symbol,
		Price:              price,
		AverageFillPrice:   price,
		Amount:             qty,
		Filled:             qty,
		Fee:                fee,
		Timestamp:          timeNow(),
		LastTradeTimestamp: timeNow(),
	}
	r.orders[order.ID] = order
	return order, nil
}

func (r *ReplayBackend) CancelOrder(ctx context.Context, symbol, orderID string) error {
	r.mu.Lock()
	order, ok := r.orders[orderID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: order %s not found", apperrors.ErrOrderCancellation, orderID)
	}
	if order.Status != core.StatusOpen {
		r.mu.Unlock()
		return fmt.Errorf("%w: order %s is %s, not open", apperrors.ErrOrderCancellation, orderID, order.Status)
	}
	order.Status = core.StatusCanceled
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(ctx, core.EventOrderCancelled, order)
	}
	return nil
}

func (r *ReplayBackend) GetOrder(ctx context.Context, symbol, orderID string) (*core.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s not found", apperrors.ErrDataFetch, orderID)
	}
	return order, nil
}

func (r *ReplayBackend) GetOpenOrders(ctx context.Context, symbol string) ([]*core.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*core.Order
	for _, o := range r.orders {
		if o.Symbol == symbol && o.Status == core.StatusOpen {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *ReplayBackend) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPrice, nil
}

// AdvanceBar feeds one OHLC bar into the simulator: every resting limit
// order whose price falls within the bar's [Low, High] range is filled at
// its own limit price (original_source/core/order_handling/order_manager.py
// crossed-order test: low_price <= level <= high_price — a gap bar entirely
// below a buy level, or entirely above a sell level, does not fill it).
func (r *ReplayBackend) AdvanceBar(ctx context.Context, bar core.Bar) {
	r.mu.Lock()
	r.lastPrice = bar.Close

	ids := make([]string, 0, len(r.orders))
	for id := range r.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var filled []*core.Order
	for _, id := range ids {
		order := r.orders[id]
		if order.Status != core.StatusOpen {
			continue
		}
		if bar.Low.GreaterThan(order.Price) || bar.High.LessThan(order.Price) {
			continue
		}
		fee := order.Amount.Mul(order.Price).Mul(r.feeRate)
		order.Status = core.StatusClosed
		order.AverageFillPrice = order.Price
		order.Filled = order.Amount
		order.Remaining = decimal.Zero
		order.Fee = fee
		order.LastTradeTimestamp = bar.Timestamp
		filled = append(filled, order)
	}
	r.mu.Unlock()

	if r.bus == nil {
		return
	}
	for _, order := range filled {
		r.bus.Publish(ctx, core.EventOrderFilled, order)
	}
}

func timeNow() time.Time {
	return nowFunc()
}
