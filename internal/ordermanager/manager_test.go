package ordermanager

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gridbot/internal/bus"
	"gridbot/internal/core"
	"gridbot/internal/execution"
	"gridbot/internal/grid"
	"gridbot/internal/ledger"
	"gridbot/internal/orderbook"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func setup(t *testing.T) (*Manager, *execution.ReplayBackend, *ledger.BalanceLedger, grid.Model, *bus.EventBus) {
	t.Helper()
	b := bus.New(nil)
	book := orderbook.New()
	bal := ledger.New(ledger.PercentFeeCalculator{Rate: decimal.Zero}, nil)
	bal.SetInitialBalances(d("1000"), d("0"))
	b.Subscribe(core.EventOrderFilled, bal.OnOrderFilled)

	model, err := grid.NewSimpleGrid(d("100"), d("200"), 4, core.SpacingArithmetic, core.SizingEqualDollar, d("800"))
	assert.NoError(t, err)

	backend := execution.NewReplayBackend(b, "BTCUSDT", decimal.Zero)
	mgr := New(b, book, bal, model, backend, nil, "BTCUSDT", core.ModeBacktest, nil)
	return mgr, backend, bal, model, b
}

func TestInitialPlacement_PlacesBuysAndSellsAroundCurrentPrice(t *testing.T) {
	mgr, backend, _, model, _ := setup(t)
	backend.AdvanceBar(context.Background(), core.Bar{Timestamp: time.Now(), Close: d("150")})

	assert.NoError(t, mgr.InitialPlacement(context.Background(), d("150")))

	open, err := backend.GetOpenOrders(context.Background(), "BTCUSDT")
	assert.NoError(t, err)
	assert.NotEmpty(t, open)

	for _, o := range open {
		if o.Side == core.Buy {
			assert.True(t, o.Price.LessThan(d("150")))
		} else {
			assert.True(t, o.Price.GreaterThan(d("150")))
		}
	}
	_ = model
}

// A buy fill only produces a paired sell order when some sell-classified
// level is currently eligible (READY_TO_SELL); per spec.md §4.6 and the
// grounding original (grid_manager.py get_paired_sell_level, which searches
// only the static above-central sell levels), if every sell level is
// already resting an order the fill is simply not paired. This test drives
// fill-handling directly — without running the sell side of
// InitialPlacement first — so the sell levels stay untouched and eligible.
func TestFillHandling_BuyFillPlacesPairedSell(t *testing.T) {
	mgr, backend, _, model, _ := setup(t)
	backend.AdvanceBar(context.Background(), core.Bar{Timestamp: time.Now(), Close: d("150")})

	buyIdx := model.BuyIndices()[len(model.BuyIndices())-1] // nearest buy below central
	buyLevel := model.Level(buyIdx)
	assert.NoError(t, mgr.placeLimit(context.Background(), buyIdx, core.Buy, buyLevel.Price, buyLevel.Quantity))
	assert.Equal(t, core.WaitingForBuyFill, buyLevel.State)

	// Drive a bar that crosses the resting buy's price so it fills.
	backend.AdvanceBar(context.Background(), core.Bar{
		Timestamp: time.Now(),
		High:      buyLevel.Price.Add(d("1")),
		Low:       buyLevel.Price.Sub(d("1")),
		Close:     buyLevel.Price,
	})

	assert.Equal(t, core.ReadyToSell, buyLevel.State)

	open, _ := backend.GetOpenOrders(context.Background(), "BTCUSDT")
	foundPairedSell := false
	for _, o := range open {
		if o.Side == core.Sell && o.Price.GreaterThan(buyLevel.Price) {
			foundPairedSell = true
		}
	}
	assert.True(t, foundPairedSell)
}

// When every sell-classified level is already resting an order, a buy fill
// must not place an extra sell order — matching the original's
// can_place_order guard in _handle_buy_order_completion.
func TestFillHandling_BuyFillSkipsPairingWhenNoSellLevelEligible(t *testing.T) {
	mgr, backend, _, model, _ := setup(t)
	backend.AdvanceBar(context.Background(), core.Bar{Timestamp: time.Now(), Close: d("150")})
	assert.NoError(t, mgr.InitialPlacement(context.Background(), d("150")))

	buyIdx := model.BuyIndices()[len(model.BuyIndices())-1]
	buyLevel := model.Level(buyIdx)
	assert.Equal(t, core.WaitingForBuyFill, buyLevel.State)

	before, _ := backend.GetOpenOrders(context.Background(), "BTCUSDT")

	backend.AdvanceBar(context.Background(), core.Bar{
		Timestamp: time.Now(),
		High:      buyLevel.Price.Add(d("1")),
		Low:       buyLevel.Price.Sub(d("1")),
		Close:     buyLevel.Price,
	})

	assert.Equal(t, core.ReadyToSell, buyLevel.State)

	after, _ := backend.GetOpenOrders(context.Background(), "BTCUSDT")
	// the filled buy order is gone, and no new sell order replaces it
	assert.Equal(t, len(before)-1, len(after))
}

func TestExecuteMarketSellAll_LiquidatesAndPublishesInBacktest(t *testing.T) {
	mgr, backend, bal, _, b := setup(t)
	bal.SetInitialBalances(d("0"), d("5"))
	backend.AdvanceBar(context.Background(), core.Bar{Timestamp: time.Now(), Close: d("200")})

	var filled *core.Order
	b.Subscribe(core.EventOrderFilled, func(ctx context.Context, payload interface{}) error {
		if o, ok := payload.(*core.Order); ok && o.Side == core.Sell && o.Type == core.Market {
			filled = o
		}
		return nil
	})

	order, err := mgr.ExecuteMarketSellAll(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, order)
	assert.NotNil(t, filled)
	assert.True(t, bal.AdjustedCryptoBalance().IsZero())
}
