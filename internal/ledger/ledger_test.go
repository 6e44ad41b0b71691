package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gridbot/internal/core"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func zeroFee() FeeCalculator { return PercentFeeCalculator{Rate: decimal.Zero} }

func TestReserveForBuy_InsufficientBalance(t *testing.T) {
	l := New(zeroFee(), nil)
	l.SetInitialBalances(d("100"), d("0"))

	err := l.ReserveForBuy(d("150"))
	assert.Error(t, err)
	assert.True(t, l.AdjustedFiatBalance().Equal(d("100")))
}

func TestReserveForBuy_MovesIntoReserved(t *testing.T) {
	l := New(zeroFee(), nil)
	l.SetInitialBalances(d("100"), d("0"))

	assert.NoError(t, l.ReserveForBuy(d("40")))
	snap := l.Snapshot()
	assert.True(t, snap.Fiat.Equal(d("60")))
	assert.True(t, snap.ReservedFiat.Equal(d("40")))
	assert.True(t, l.AdjustedFiatBalance().Equal(d("100")))
}

func TestOnOrderFilled_Buy_SettlesReservationIncludingFee(t *testing.T) {
	l := New(PercentFeeCalculator{Rate: d("0.01")}, nil)
	l.SetInitialBalances(d("1000"), d("0"))
	assert.NoError(t, l.ReserveForBuy(d("500")))

	order := &core.Order{Side: core.Buy, Filled: d("1"), AverageFillPrice: d("100")}
	err := l.OnOrderFilled(context.Background(), order)
	assert.NoError(t, err)

	// notional=100, fee=1, total cost=101; reservedFiat goes 500-101=399,
	// no underflow since it stayed positive.
	snap := l.Snapshot()
	assert.True(t, snap.ReservedFiat.Equal(d("399")))
	assert.True(t, snap.Crypto.Equal(d("1")))
	assert.True(t, snap.TotalFees.Equal(d("1")))
}

func TestOnOrderFilled_Buy_UnderflowClampsIntoMainBalance(t *testing.T) {
	l := New(zeroFee(), nil)
	l.SetInitialBalances(d("1000"), d("0"))
	assert.NoError(t, l.ReserveForBuy(d("50")))

	// fill cost (100) exceeds the 50 reserved -> excess should be pulled
	// from main fiat, i.e. reservedFiat clamps to 0 and fiat drops by 50.
	order := &core.Order{Side: core.Buy, Filled: d("1"), AverageFillPrice: d("100")}
	assert.NoError(t, l.OnOrderFilled(context.Background(), order))

	snap := l.Snapshot()
	assert.True(t, snap.ReservedFiat.IsZero())
	assert.True(t, snap.Fiat.Equal(d("900")))
	assert.True(t, snap.Crypto.Equal(d("1")))
}

func TestOnOrderFilled_Sell_SettlesFromReservedCrypto(t *testing.T) {
	l := New(zeroFee(), nil)
	l.SetInitialBalances(d("0"), d("10"))
	assert.NoError(t, l.ReserveForSell(d("5")))

	order := &core.Order{Side: core.Sell, Filled: d("3"), AverageFillPrice: d("100")}
	assert.NoError(t, l.OnOrderFilled(context.Background(), order))

	snap := l.Snapshot()
	assert.True(t, snap.ReservedCrypto.Equal(d("2")))
	assert.True(t, snap.Fiat.Equal(d("300")))
}

func TestReleaseAllReservations(t *testing.T) {
	l := New(zeroFee(), nil)
	l.SetInitialBalances(d("100"), d("10"))
	assert.NoError(t, l.ReserveForBuy(d("40")))
	assert.NoError(t, l.ReserveForSell(d("4")))

	l.ReleaseAllReservations()
	snap := l.Snapshot()
	assert.True(t, snap.Fiat.Equal(d("100")))
	assert.True(t, snap.Crypto.Equal(d("10")))
	assert.True(t, snap.ReservedFiat.IsZero())
	assert.True(t, snap.ReservedCrypto.IsZero())
}

func TestTotalValue_IncludesReservedAmounts(t *testing.T) {
	l := New(zeroFee(), nil)
	l.SetInitialBalances(d("100"), d("2"))
	assert.NoError(t, l.ReserveForBuy(d("10")))

	total := l.TotalValue(d("50"))
	// fiat(90)+reservedFiat(10) + crypto(2)*50 = 200
	assert.True(t, total.Equal(d("200")))
}
