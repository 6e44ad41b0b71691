package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gridbot/internal/core"
	"gridbot/internal/grid"
	"gridbot/internal/orderbook"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestCostBasisLedger_PairedBuySellCreditsProfit(t *testing.T) {
	model, err := grid.NewSimpleGrid(d("100"), d("200"), 4, core.SpacingArithmetic, core.SizingEqualDollar, d("1000"))
	assert.NoError(t, err)
	book := orderbook.New()
	cb := NewCostBasisLedger(model, book)

	buyIdx := model.BuyIndices()[len(model.BuyIndices())-1]
	sellIdx := model.SellIndices()[0]
	model.Pair(buyIdx, sellIdx)

	buyOrder := &core.Order{ID: "b1", Side: core.Buy, Filled: d("1"), AverageFillPrice: d("125"), Fee: d("0")}
	book.AddOrder(buyOrder, buyIdx)
	assert.NoError(t, cb.OnOrderFilled(context.Background(), buyOrder))

	sellOrder := &core.Order{ID: "s1", Side: core.Sell, Filled: d("1"), AverageFillPrice: d("175"), Fee: d("0")}
	book.AddOrder(sellOrder, sellIdx)
	assert.NoError(t, cb.OnOrderFilled(context.Background(), sellOrder))

	assert.True(t, cb.CumulativeProfit().Equal(d("50")))
}

func TestCostBasisLedger_FallsBackToInitialPurchaseBasis(t *testing.T) {
	model, err := grid.NewSimpleGrid(d("100"), d("200"), 4, core.SpacingArithmetic, core.SizingEqualDollar, d("1000"))
	assert.NoError(t, err)
	book := orderbook.New()
	cb := NewCostBasisLedger(model, book)

	initialBuy := &core.Order{ID: "init", Side: core.Buy, Filled: d("2"), AverageFillPrice: d("150"), Fee: d("0")}
	book.AddOrder(initialBuy, -1)
	assert.NoError(t, cb.OnOrderFilled(context.Background(), initialBuy))

	sellOrder := &core.Order{ID: "s1", Side: core.Sell, Filled: d("1"), AverageFillPrice: d("200"), Fee: d("0")}
	book.AddOrder(sellOrder, -1)
	assert.NoError(t, cb.OnOrderFilled(context.Background(), sellOrder))

	assert.True(t, cb.CumulativeProfit().Equal(d("50")))
}
