// Package statustracker implements OrderStatusTracker (spec.md §4.7): a
// polling loop, live/paper-only, that reconciles the OrderBook's open
// orders against the venue by concurrently re-querying each one and
// publishing ORDER_FILLED/ORDER_CANCELLED on state changes. Grounded on
// original_source/core/order_handling/order_status_tracker.py, translated
// from its asyncio task-set bookkeeping into golang.org/x/sync/errgroup
// fan-out the way the teacher's internal/engine loops use errgroup for
// concurrent per-symbol work, bounded by golang.org/x/time/rate the way
// the teacher's pkg/retry paces venue calls.
package statustracker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gridbot/internal/core"
	"gridbot/internal/orderbook"
)

// DefaultPollingInterval matches the original's polling_interval default
// (spec.md §4.7).
const DefaultPollingInterval = 15 * time.Second

// Tracker polls open orders on a fixed interval and republishes state
// transitions observed from the venue.
type Tracker struct {
	book   *orderbook.OrderBook
	exec   core.ExchangeClient
	bus    core.EventBus
	symbol string
	logger core.ILogger

	interval time.Duration
	limiter  *rate.Limiter

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New builds a Tracker. qps bounds the rate of concurrent GetOrder calls
// issued per poll cycle; pass 0 to fall back to an unbounded limiter.
func New(book *orderbook.OrderBook, exec core.ExchangeClient, bus core.EventBus, symbol string, interval time.Duration, qps float64, logger core.ILogger) *Tracker {
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	limit := rate.Inf
	if qps > 0 {
		limit = rate.Limit(qps)
	}
	return &Tracker{
		book:     book,
		exec:     exec,
		bus:      bus,
		symbol:   symbol,
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

// Start launches the background polling loop. Calling Start while already
// running is a no-op, matching the original's start_tracking guard.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.logInfo("tracker already running")
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true

	go t.run(loopCtx)
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if err := t.processOpenOrders(ctx); err != nil {
			t.logError("error processing open orders", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// processOpenOrders fans out one GetOrder per open order and reconciles
// the result (spec.md §4.7 "concurrently re-queries every open order").
func (t *Tracker) processOpenOrders(ctx context.Context) error {
	open := t.book.OpenOrders()
	if len(open) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, order := range open {
		order := order
		g.Go(func() error {
			if err := t.limiter.Wait(gctx); err != nil {
				return nil
			}
			remote, err := t.exec.GetOrder(gctx, order.Symbol, order.ID)
			if err != nil {
				t.logError("failed to query remote order", "order_id", order.ID, "error", err.Error())
				return nil
			}
			t.handleStatusChange(gctx, remote)
			return nil
		})
	}
	return g.Wait()
}

func (t *Tracker) handleStatusChange(ctx context.Context, remote *core.Order) {
	switch remote.Status {
	case core.StatusUnknown:
		t.logError("remote order missing status field", "order_id", remote.ID)
	case core.StatusClosed:
		t.book.UpdateOrderStatus(remote.ID, core.StatusClosed)
		t.bus.Publish(ctx, core.EventOrderFilled, remote)
		t.logInfo("order filled", "order_id", remote.ID)
	case core.StatusCanceled:
		t.book.UpdateOrderStatus(remote.ID, core.StatusCanceled)
		t.bus.Publish(ctx, core.EventOrderCancelled, remote)
		t.logWarn("order canceled", "order_id", remote.ID)
	case core.StatusOpen:
		if remote.Filled.IsPositive() {
			t.logInfo("order partially filled", "order_id", remote.ID, "filled", remote.Filled.String())
		}
	default:
		t.logWarn("unhandled order status", "order_id", remote.ID, "status", string(remote.Status))
	}
}

// Stop cancels the polling loop and blocks until the in-flight poll cycle
// (and its fanned-out queries) finishes, mirroring stop_tracking's await.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	cancel := t.cancel
	done := t.done
	t.running = false
	t.mu.Unlock()

	cancel()
	<-done
}

func (t *Tracker) logInfo(msg string, fields ...interface{}) {
	if t.logger != nil {
		t.logger.Info(msg, fields...)
	}
}

func (t *Tracker) logWarn(msg string, fields ...interface{}) {
	if t.logger != nil {
		t.logger.Warn(msg, fields...)
	}
}

func (t *Tracker) logError(msg string, fields ...interface{}) {
	if t.logger != nil {
		t.logger.Error(msg, fields...)
	}
}
