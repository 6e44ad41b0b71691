// Package tickerstream implements core.PriceStreamer over a venue's public
// ticker WebSocket feed, grounded on the teacher's
// internal/exchange/binancespot.BinanceSpotExchange.StartPriceStream: same
// per-symbol pkg/websocket.Client subscription and JSON event shape, but
// mapped onto the live/paper GridStrategy loop's single-slot "latest price
// wins" channel (spec.md §5) instead of a callback.
package tickerstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"gridbot/internal/core"
	"gridbot/pkg/websocket"
)

// DefaultWSBaseURL is Binance's public spot WebSocket endpoint.
const DefaultWSBaseURL = "wss://stream.binance.com:9443/ws"

// tickerEvent is the subset of Binance's 24hr ticker payload this stream
// needs: symbol and last trade price.
type tickerEvent struct {
	Symbol    string `json:"s"`
	LastPrice string `json:"c"`
	EventTime int64  `json:"E"`
}

// BinanceTickerStream implements core.PriceStreamer for one symbol at a
// time over Binance's "<symbol>@ticker" public stream.
type BinanceTickerStream struct {
	wsBaseURL string
	logger    core.ILogger
	limiter   *rate.Limiter

	client *websocket.Client
	ticks  chan core.Tick
}

// New builds a BinanceTickerStream. wsBaseURL defaults to
// DefaultWSBaseURL when empty. logger may be nil.
func New(wsBaseURL string, logger core.ILogger) *BinanceTickerStream {
	if wsBaseURL == "" {
		wsBaseURL = DefaultWSBaseURL
	}
	return &BinanceTickerStream{
		wsBaseURL: wsBaseURL,
		logger:    logger,
		// bounds how often a burst of venue messages is allowed to
		// overwrite the single-slot channel below (spec.md §5
		// "ticker-callback coalescing").
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
}

// Start subscribes to symbol's ticker stream and returns a channel that
// always holds the most recently observed price: a dropped send overwrites
// the previous value rather than blocking the venue's read loop (spec.md
// §5 "latest price wins").
func (s *BinanceTickerStream) Start(ctx context.Context, symbol string) (<-chan core.Tick, error) {
	s.ticks = make(chan core.Tick, 1)
	streamURL := fmt.Sprintf("%s/%s@ticker", s.wsBaseURL, strings.ToLower(symbol))

	s.client = websocket.NewClient(streamURL, func(message []byte) {
		if !s.limiter.Allow() {
			return
		}
		var event tickerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			s.logWarn("tickerstream: malformed ticker event", "error", err.Error())
			return
		}
		price, err := decimal.NewFromString(event.LastPrice)
		if err != nil {
			s.logWarn("tickerstream: unparseable price", "raw", event.LastPrice, "error", err.Error())
			return
		}

		tick := core.Tick{
			Symbol:    event.Symbol,
			Price:     price,
			Timestamp: time.UnixMilli(event.EventTime),
		}

		select {
		case s.ticks <- tick:
		default:
			select {
			case <-s.ticks:
			default:
			}
			s.ticks <- tick
		}
	}, s.logger)

	s.client.Start()
	go func() {
		<-ctx.Done()
		s.client.Stop()
	}()

	return s.ticks, nil
}

// Stop closes the underlying WebSocket connection and stops reconnecting.
func (s *BinanceTickerStream) Stop() error {
	if s.client != nil {
		s.client.Stop()
	}
	return nil
}

func (s *BinanceTickerStream) logWarn(msg string, fields ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}
