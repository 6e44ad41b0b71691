// Package bus implements the in-process publish/subscribe EventBus
// (spec.md §2, §5): a map from event type to handlers, with synchronous,
// panic-recovering delivery — the "single model" spec.md §9 asks for.
package bus

import (
	"context"
	"fmt"
	"sync"

	"gridbot/internal/core"
)

// EventBus is the concrete, concurrency-safe implementation of
// core.EventBus. Publish awaits every subscriber before returning
// (spec.md §5 "publish awaits all callbacks"); a handler panic or error is
// caught and logged, never propagated to peer handlers or the publisher.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[core.EventType][]core.Handler
	logger   core.ILogger
}

// New creates an EventBus. logger may be nil in tests; a nil logger drops
// handler-error diagnostics silently.
func New(logger core.ILogger) *EventBus {
	return &EventBus{
		handlers: make(map[core.EventType][]core.Handler),
		logger:   logger,
	}
}

// Subscribe registers h to run whenever event is published. Subscribers for
// the same event run in registration order.
func (b *EventBus) Subscribe(event core.EventType, h core.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
}

// Publish invokes every handler registered for event, in order, on the
// calling goroutine. Each handler is isolated: a panic or returned error is
// caught and logged, and does not stop subsequent handlers from running
// (spec.md §5, §7 "the core never raises out of an event callback").
func (b *EventBus) Publish(ctx context.Context, event core.EventType, payload interface{}) {
	b.mu.RLock()
	hs := make([]core.Handler, len(b.handlers[event]))
	copy(hs, b.handlers[event])
	b.mu.RUnlock()

	for _, h := range hs {
		b.invoke(ctx, event, h, payload)
	}
}

func (b *EventBus) invoke(ctx context.Context, event core.EventType, h core.Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			b.logf("event handler panicked", event, fmt.Errorf("%v", r))
		}
	}()

	if err := h(ctx, payload); err != nil {
		b.logf("event handler returned error", event, err)
	}
}

func (b *EventBus) logf(msg string, event core.EventType, err error) {
	if b.logger == nil {
		return
	}
	b.logger.Error(msg, "event", string(event), "error", err.Error())
}
