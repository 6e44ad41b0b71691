package tickerstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinanceTickerStream_ParsesAndDeliversTick(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"s":"BTCUSDT","c":"123.45","E":1700000000000}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := New(wsURL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks, err := stream.Start(ctx, "BTCUSDT")
	require.NoError(t, err)

	select {
	case tick := <-ticks:
		assert.Equal(t, "BTCUSDT", tick.Symbol)
		assert.Equal(t, "123.45", tick.Price.String())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}

	require.NoError(t, stream.Stop())
}

func TestBinanceTickerStream_BuildsLowercaseStreamPath(t *testing.T) {
	var gotPath string
	done := make(chan struct{}, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		select {
		case done <- struct{}{}:
		default:
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	stream := New(wsURL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := stream.Start(ctx, "BTCUSDT")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received a connection")
	}

	assert.Equal(t, fmt.Sprintf("/%s@ticker", "btcusdt"), gotPath)
	require.NoError(t, stream.Stop())
}
