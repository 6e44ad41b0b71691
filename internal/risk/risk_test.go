package risk

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
	"gridbot/internal/ordermanager"
	"gridbot/internal/orderbook"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func staticSetup(t *testing.T) (*Controller, *execution.ReplayBackend, *bus.EventBus) {
	t.Helper()
	b := bus.New(nil)
	book := orderbook.New()
	bal := ledger.New(ledger.PercentFeeCalculator{Rate: decimal.Zero}, nil)
	bal.SetInitialBalances(d("500"), d("5"))
	b.Subscribe(core.EventOrderFilled, bal.OnOrderFilled)

	backend := execution.NewReplayBackend(b, "BTCUSDT", decimal.Zero)
	backend.AdvanceBar(context.Background(), core.Bar{Timestamp: time.Now(), Close: d("150")})
	model, err := grid.NewSimpleGrid(d("100"), d("200"), 4, core.SpacingArithmetic, core.SizingEqualDollar, d("800"))
	assert.NoError(t, err)
	mgr := ordermanager.New(b, book, bal, model, backend, nil, "BTCUSDT", core.ModeBacktest, nil)

	cfg := Config{
		Mode:                core.RiskStatic,
		TakeProfitEnabled:   true,
		TakeProfitThreshold: d("160"),
	}
	c := New(cfg, nil, mgr, bal, b, nil)
	return c, backend, b
}

func TestEvaluate_StaticTakeProfitLiquidatesAndStops(t *testing.T) {
	c, backend, b := staticSetup(t)

	var stopReason interface{}
	b.Subscribe(core.EventStopBot, func(ctx context.Context, payload interface{}) error {
		stopReason = payload
		return nil
	})

	stopped, err := c.Evaluate(context.Background(), d("161"))
	assert.NoError(t, err)
	assert.True(t, stopped)
	assert.NotNil(t, stopReason)

	// crypto balance liquidated
	open, _ := backend.GetOpenOrders(context.Background(), "BTCUSDT")
	assert.Empty(t, open)

	// once stopped, stays stopped
	stopped, err = c.Evaluate(context.Background(), d("100"))
	assert.NoError(t, err)
	assert.True(t, stopped)
}

func TestEvaluate_StaticBelowThresholdDoesNothing(t *testing.T) {
	c, _, _ := staticSetup(t)
	stopped, err := c.Evaluate(context.Background(), d("155"))
	assert.NoError(t, err)
	assert.False(t, stopped)
}

func dynamicSetup(t *testing.T) (*Controller, *ordermanager.Manager, grid.Model) {
	t.Helper()
	b := bus.New(nil)
	book := orderbook.New()
	bal := ledger.New(ledger.PercentFeeCalculator{Rate: decimal.Zero}, nil)
	bal.SetInitialBalances(d("1000"), d("0"))
	b.Subscribe(core.EventOrderFilled, bal.OnOrderFilled)

	backend := execution.NewReplayBackend(b, "BTCUSDT", decimal.Zero)
	backend.AdvanceBar(context.Background(), core.Bar{Timestamp: time.Now(), Close: d("150")})
	model, err := grid.NewSimpleGrid(d("100"), d("200"), 4, core.SpacingArithmetic, core.SizingEqualDollar, d("800"))
	assert.NoError(t, err)
	mgr := ordermanager.New(b, book, bal, model, backend, nil, "BTCUSDT", core.ModeBacktest, nil)
	assert.NoError(t, mgr.InitialPlacement(context.Background(), d("150")))

	factory := func(bottom, top, totalValue decimal.Decimal) (grid.Model, error) {
		return grid.NewSimpleGrid(bottom, top, 4, core.SpacingArithmetic, core.SizingEqualDollar, totalValue)
	}
	cfg := Config{
		Mode:       core.RiskDynamic,
		Spacing:    core.SpacingArithmetic,
		NumGrids:   4,
		RangeWidth: d("100"),
	}
	c := New(cfg, factory, mgr, bal, b, nil)
	return c, mgr, model
}

func TestEvaluate_DynamicTopBreachResetsGridAndNeverStops(t *testing.T) {
	c, mgr, original := dynamicSetup(t)

	stopped, err := c.Evaluate(context.Background(), d("205"))
	assert.NoError(t, err)
	assert.False(t, stopped)

	assert.NotEqual(t, original, mgr.Model())
	assert.True(t, mgr.Model().CentralPrice().Equal(d("205")))
}

func TestEvaluate_DynamicBottomBreachExtendsGridWithoutSellingCrypto(t *testing.T) {
	c, mgr, _ := dynamicSetup(t)
	before := len(mgr.Model().Levels())

	stopped, err := c.Evaluate(context.Background(), d("95"))
	assert.NoError(t, err)
	assert.False(t, stopped)

	after := len(mgr.Model().Levels())
	assert.Greater(t, after, before)

	for i := before; i < after; i++ {
		lvl := mgr.Model().Level(i)
		assert.Equal(t, core.ReadyToBuy, lvl.State)
		assert.True(t, lvl.Price.LessThan(d("100")))
	}
}
