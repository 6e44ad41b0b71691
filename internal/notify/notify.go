// Package notify implements notification dispatch to third-party channels
// (spec.md §4.12, out of scope at the interface level per spec.md §1). It is
// grounded on the teacher's internal/alert package: the same
// Level/Payload/Channel/Manager shape, fire-and-forget fanout with a
// per-sink timeout. The one difference is the dispatch mechanism — the
// teacher spawns a raw goroutine per channel; here that goroutine is a task
// submitted to pkg/concurrency.WorkerPool, matching spec.md §5's "blocking
// work (notifications) is off-loaded to a small worker pool".
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gridbot/internal/core"
	"gridbot/pkg/concurrency"
)

// Level mirrors the teacher's AlertLevel.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelError    Level = "ERROR"
	LevelCritical Level = "CRITICAL"
)

// Event is the payload handed to every Sink. No templating/formatting
// engine is in scope (spec.md §4.12); Fields carries whatever structured
// context the caller wants attached, serialized as raw JSON.
type Event struct {
	Level     Level             `json:"level"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Sink delivers one Event to one third-party channel.
type Sink interface {
	Send(ctx context.Context, event Event) error
	Name() string
}

// sinkTimeout bounds how long Dispatcher waits on any one sink before
// giving up on it, matching the teacher's AlertManager.
const sinkTimeout = 10 * time.Second

// Dispatcher fans an Event out to every registered Sink, each delivery
// submitted as an independent task on pool so a slow or unreachable
// notification channel never blocks the event bus that triggered it.
type Dispatcher struct {
	sinks  []Sink
	pool   *concurrency.WorkerPool
	logger core.ILogger
}

// NewDispatcher builds a Dispatcher backed by pool. logger may be nil.
func NewDispatcher(pool *concurrency.WorkerPool, logger core.ILogger) *Dispatcher {
	return &Dispatcher{pool: pool, logger: logger}
}

// AddSink registers s for future Notify calls.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
	d.logInfo("added notification sink", "name", s.Name())
}

// Notify dispatches event to every sink. With a worker pool, each send is
// submitted as a pool task and Notify does not wait for delivery; with a nil
// pool, sends run synchronously on the caller. Every send gets its own
// sinkTimeout context rooted at context.Background() (ctx is not used for
// it), and failures are logged, never returned.
func (d *Dispatcher) Notify(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	d.logInfo("dispatching notification", "title", event.Title, "level", string(event.Level))

	for _, s := range d.sinks {
		sink := s
		task := func() {
			timeoutCtx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := sink.Send(timeoutCtx, event); err != nil {
				d.logError("notification delivery failed", "sink", sink.Name(), "error", err.Error())
			}
		}
		if d.pool == nil {
			task()
			continue
		}
		if err := d.pool.Submit(task); err != nil {
			d.logError("notification dropped, worker pool saturated", "sink", sink.Name(), "error", err.Error())
		}
	}
}

// SubscribeToBus wires the notification-worthy bus events spec.md names
// directly: ORDER_CANCELLED ("On ORDER_CANCELLED: notify", spec.md §3),
// ORDER_FAILED, and STOP_BOT (the session-ending risk events, spec.md
// §4.10). Handler errors are never returned to the bus — spec.md §7's "the
// core never raises out of an event callback" applies to notification
// failures too.
func (d *Dispatcher) SubscribeToBus(bus core.EventBus) {
	bus.Subscribe(core.EventOrderCancelled, func(ctx context.Context, payload interface{}) error {
		d.Notify(ctx, orderEvent(LevelInfo, "Order cancelled", payload))
		return nil
	})
	bus.Subscribe(core.EventOrderFailed, func(ctx context.Context, payload interface{}) error {
		d.Notify(ctx, orderEvent(LevelError, "Order failed", payload))
		return nil
	})
	bus.Subscribe(core.EventStopBot, func(ctx context.Context, payload interface{}) error {
		d.Notify(ctx, Event{Level: LevelCritical, Title: "Bot stopped", Message: fmt.Sprintf("%v", payload)})
		return nil
	})
}

func orderEvent(level Level, title string, payload interface{}) Event {
	order, ok := payload.(*core.Order)
	if !ok {
		return Event{Level: level, Title: title, Message: fmt.Sprintf("%v", payload)}
	}
	return Event{
		Level:   level,
		Title:   title,
		Message: fmt.Sprintf("%s %s %s @ %s", order.Side, order.Symbol, order.Amount.String(), order.Price.String()),
		Fields: map[string]string{
			"order_id": order.ID,
			"status":   string(order.Status),
			"side":     string(order.Side),
			"symbol":   order.Symbol,
		},
	}
}

func (d *Dispatcher) logInfo(msg string, fields ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, fields...)
	}
}

func (d *Dispatcher) logError(msg string, fields ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, fields...)
	}
}

// WebhookSink POSTs the raw event JSON to a fixed URL (spec.md §4.12: "a
// bare net/http POST to each APPRISE_NOTIFICATION_URLS entry. No
// templating/formatting engine is in scope").
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a sink posting to url with a bounded HTTP client.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{url: url, client: &http.Client{Timeout: sinkTimeout}}
}

func (w *WebhookSink) Name() string { return w.url }

func (w *WebhookSink) Send(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook %s returned status %d", w.url, resp.StatusCode)
	}
	return nil
}

// SinksFromEnv parses the comma-separated APPRISE_NOTIFICATION_URLS value
// (spec.md §6) into one WebhookSink per non-empty entry.
func SinksFromEnv(value string) []Sink {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var sinks []Sink
	for _, raw := range strings.Split(value, ",") {
		url := strings.TrimSpace(raw)
		if url == "" {
			continue
		}
		sinks = append(sinks, NewWebhookSink(url))
	}
	return sinks
}
