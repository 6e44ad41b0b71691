package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/bus"
	"gridbot/internal/core"
	"gridbot/pkg/concurrency"
)

func TestWebhookSink_PostsEventJSON(t *testing.T) {
	var mu sync.Mutex
	var received Event

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	err := sink.Send(context.Background(), Event{Level: LevelInfo, Title: "hello", Message: "world"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "hello", received.Title)
	assert.Equal(t, "world", received.Message)
}

func TestWebhookSink_ErrorStatusIsReturnedAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	err := sink.Send(context.Background(), Event{Title: "x"})
	assert.Error(t, err)
}

func TestSinksFromEnv_ParsesCommaSeparatedURLs(t *testing.T) {
	sinks := SinksFromEnv(" http://a.test , http://b.test ,, ")
	require.Len(t, sinks, 2)
	assert.Equal(t, "http://a.test", sinks[0].Name())
	assert.Equal(t, "http://b.test", sinks[1].Name())
}

func TestSinksFromEnv_EmptyValueReturnsNoSinks(t *testing.T) {
	assert.Empty(t, SinksFromEnv(""))
	assert.Empty(t, SinksFromEnv("   "))
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Send(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, cond(), "condition not met within %s", timeout)
}

func TestDispatcher_NotifyFansOutThroughWorkerPool(t *testing.T) {
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "test-notify"}, noopLogger{})
	sink := &recordingSink{}
	d := NewDispatcher(pool, nil)
	d.AddSink(sink)

	d.Notify(context.Background(), Event{Level: LevelInfo, Title: "t1"})

	waitFor(t, time.Second, func() bool { return sink.count() == 1 })
}

func TestDispatcher_SubscribeToBusRoutesOrderCancelled(t *testing.T) {
	b := bus.New(nil)
	sink := &recordingSink{}
	d := NewDispatcher(nil, nil)
	d.AddSink(sink)
	d.SubscribeToBus(b)

	order := &core.Order{ID: "1", Side: core.Sell, Symbol: "BTCUSDT", Status: core.StatusCanceled, Amount: decimal.NewFromInt(1), Price: decimal.NewFromInt(100)}
	b.Publish(context.Background(), core.EventOrderCancelled, order)

	require.Equal(t, 1, sink.count())
	assert.Equal(t, "Order cancelled", sink.events[0].Title)
	assert.Equal(t, "1", sink.events[0].Fields["order_id"])
}

func TestDispatcher_SubscribeToBusRoutesStopBot(t *testing.T) {
	b := bus.New(nil)
	sink := &recordingSink{}
	d := NewDispatcher(nil, nil)
	d.AddSink(sink)
	d.SubscribeToBus(b)

	b.Publish(context.Background(), core.EventStopBot, "TP or SL hit.")

	require.Equal(t, 1, sink.count())
	assert.Equal(t, LevelCritical, sink.events[0].Level)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, fields ...interface{}) {}
func (noopLogger) Info(msg string, fields ...interface{})  {}
func (noopLogger) Warn(msg string, fields ...interface{})  {}
func (noopLogger) Error(msg string, fields ...interface{}) {}
func (noopLogger) Fatal(msg string, fields ...interface{}) {}
func (noopLogger) WithField(key string, value interface{}) core.ILogger {
	return noopLogger{}
}
func (noopLogger) WithFields(fields map[string]interface{}) core.ILogger {
	return noopLogger{}
}
