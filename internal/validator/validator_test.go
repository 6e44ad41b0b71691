package validator

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gridbot/internal/core"
	apperrors "gridbot/pkg/errors"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeBalances struct {
	fiat, crypto decimal.Decimal
}

func (f fakeBalances) AvailableFiat() decimal.Decimal   { return f.fiat }
func (f fakeBalances) AvailableCrypto() decimal.Decimal { return f.crypto }

func TestValidate_RoundsPriceAndQuantity(t *testing.T) {
	v := &ExchangeConstraintValidator{PriceDecimals: 2, QtyDecimals: 3, MinOrderValue: d("1")}
	qty, err := v.Validate(context.Background(), core.Buy, d("100.12345"), d("0.123456"))
	assert.NoError(t, err)
	assert.True(t, qty.Equal(d("0.123")))
}

func TestValidate_RejectsBelowMinOrderValue(t *testing.T) {
	v := &ExchangeConstraintValidator{PriceDecimals: 2, QtyDecimals: 6, MinOrderValue: d("10")}
	_, err := v.Validate(context.Background(), core.Buy, d("100"), d("0.05"))
	assert.ErrorIs(t, err, apperrors.ErrOrderTooSmall)
}

func TestValidate_RejectsInsufficientFiat(t *testing.T) {
	v := &ExchangeConstraintValidator{
		PriceDecimals: 2, QtyDecimals: 6, MinOrderValue: d("1"),
		Balances: fakeBalances{fiat: d("50")},
	}
	_, err := v.Validate(context.Background(), core.Buy, d("100"), d("1"))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
}

func TestValidate_RejectsInsufficientCrypto(t *testing.T) {
	v := &ExchangeConstraintValidator{
		PriceDecimals: 2, QtyDecimals: 6, MinOrderValue: d("1"),
		Balances: fakeBalances{crypto: d("0.01")},
	}
	_, err := v.Validate(context.Background(), core.Sell, d("100"), d("1"))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientCrypto)
}

func TestValidate_AllowsSufficientBalance(t *testing.T) {
	v := &ExchangeConstraintValidator{
		PriceDecimals: 2, QtyDecimals: 6, MinOrderValue: d("1"),
		Balances: fakeBalances{fiat: d("1000"), crypto: d("10")},
	}
	_, err := v.Validate(context.Background(), core.Buy, d("100"), d("1"))
	assert.NoError(t, err)
}
