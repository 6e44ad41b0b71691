package performance

import (
	"testing"
	"time"

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

func TestSummarize_NoSamplesReturnsZeroSummary(t *testing.T) {
	a := New("BTCUSDT", nil, nil, nil, nil)
	s := a.Summarize()
	assert.Equal(t, "BTCUSDT", s.Pair)
	assert.True(t, s.ROIPercent.IsZero())
}

func TestSummarize_ROIAndDrawdownAndRunup(t *testing.T) {
	a := New("BTCUSDT", nil, nil, nil, nil)
	base := time.Unix(0, 0)
	a.Record(base, d("1000"), d("150"))
	a.Record(base.Add(time.Hour), d("1200"), d("160"))
	a.Record(base.Add(2*time.Hour), d("900"), d("140"))
	a.Record(base.Add(3*time.Hour), d("1080"), d("155"))

	s := a.Summarize()
	assert.True(t, s.ROIPercent.Equal(d("8")), "ROI: %s", s.ROIPercent)
	// peak 1200 -> trough 900 = 25% drawdown
	assert.True(t, s.MaxDrawdownPct.Equal(d("25")), "drawdown: %s", s.MaxDrawdownPct)
	// the 1000 -> 1200 leg and, after the running trough drops to 900, the
	// 900 -> 1080 leg are both 20% runups, so the maximum is 20%.
	assert.True(t, s.MaxRunupPct.Equal(d("20")), "runup: %s", s.MaxRunupPct)
}

func TestSummarize_TimeInProfitLoss(t *testing.T) {
	a := New("BTCUSDT", nil, nil, nil, nil)
	base := time.Unix(0, 0)
	a.Record(base, d("1000"), d("150"))
	a.Record(base.Add(time.Hour), d("1100"), d("150"))
	a.Record(base.Add(2*time.Hour), d("900"), d("150"))
	a.Record(base.Add(3*time.Hour), d("950"), d("150"))

	s := a.Summarize()
	assert.True(t, s.TimeInProfitPct.Equal(d("25")))
	assert.True(t, s.TimeInLossPct.Equal(d("75")))
}

func TestSummarize_BuyAndHoldMatchesPriceChange(t *testing.T) {
	a := New("BTCUSDT", nil, nil, nil, nil)
	base := time.Unix(0, 0)
	a.Record(base, d("1000"), d("100"))
	a.Record(base.Add(time.Hour), d("1000"), d("110"))

	s := a.Summarize()
	assert.True(t, s.BuyAndHoldPct.Equal(d("10")))
}

func TestSummarize_SortinoZeroWhenNoDownsideObserved(t *testing.T) {
	a := New("BTCUSDT", nil, nil, nil, nil)
	base := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		a.Record(base.Add(time.Duration(i)*time.Hour), d("1000").Add(decimal.NewFromInt(int64(i*10))), d("100"))
	}
	s := a.Summarize()
	assert.Equal(t, 0.0, s.SortinoRatio)
}

func TestSummarize_TradeLogIncludesGridLevelAndSlippage(t *testing.T) {
	book := orderbook.New()
	model, err := grid.NewSimpleGrid(d("100"), d("200"), 4, core.SpacingArithmetic, core.SizingEqualDollar, d("800"))
	assert.NoError(t, err)

	buyLevel := model.BuyIndices()[0]
	level := model.Level(buyLevel)

	order := &core.Order{
		ID: "o1", Side: core.Buy, Type: core.Limit, Status: core.StatusClosed,
		Price: level.Price, AverageFillPrice: level.Price.Add(d("1")), Filled: d("1"),
		LastTradeTimestamp: time.Unix(0, 0),
	}
	book.AddOrder(order, buyLevel)

	a := New("BTCUSDT", book, nil, model, nil)
	a.Record(time.Unix(0, 0), d("1000"), d("150"))

	s := a.Summarize()
	assert.Len(t, s.TradeLog, 1)
	entry := s.TradeLog[0]
	assert.Equal(t, buyLevel, entry.GridLevelIndex)
	assert.True(t, entry.GridLevelPrice.Equal(level.Price))
	assert.True(t, entry.SlippagePct.GreaterThan(decimal.Zero))
	assert.Equal(t, 1, s.NumBuyTrades)
}

type fakeProfitSource struct{ profit decimal.Decimal }

func (f fakeProfitSource) CumulativeProfit() decimal.Decimal { return f.profit }

func TestSummarize_CumulativeProfitComesFromProfitSource(t *testing.T) {
	a := New("BTCUSDT", nil, nil, nil, fakeProfitSource{profit: d("42.5")})
	a.Record(time.Unix(0, 0), d("1000"), d("150"))

	s := a.Summarize()
	assert.True(t, s.CumulativeProfit.Equal(d("42.5")))
}

func TestSummarize_CumulativeProfitZeroWhenNoProfitSource(t *testing.T) {
	a := New("BTCUSDT", nil, nil, nil, nil)
	a.Record(time.Unix(0, 0), d("1000"), d("150"))

	s := a.Summarize()
	assert.True(t, s.CumulativeProfit.IsZero())
}
