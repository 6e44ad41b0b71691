// Package validator implements the default OrderValidator (SPEC_FULL.md
// §4.4a): rounds a proposed order to the venue's price/quantity precision
// and rejects orders too small or too large to place.
package validator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	apperrors "gridbot/pkg/errors"
	"gridbot/pkg/tradingutils"
)

// BalanceSource reports the balance currently available (not reserved) for
// a proposed order, so the validator can reject an order it knows cannot be
// funded before it ever reaches the venue.
type BalanceSource interface {
	AvailableFiat() decimal.Decimal
	AvailableCrypto() decimal.Decimal
}

// ExchangeConstraintValidator is the default OrderValidator implementation
// (SPEC_FULL.md §4.4a), grounded on pkg/tradingutils.RoundPrice/RoundQuantity.
type ExchangeConstraintValidator struct {
	PriceDecimals int
	QtyDecimals   int
	MinOrderValue decimal.Decimal

	Balances BalanceSource
}

// Validate rounds price/qty to the configured precision and rejects the
// order if its notional value falls below MinOrderValue or exceeds the
// caller's available balance for that side.
func (v *ExchangeConstraintValidator) Validate(ctx context.Context, side core.OrderSide, price, qty decimal.Decimal) (decimal.Decimal, error) {
	roundedPrice := tradingutils.RoundPrice(price, v.PriceDecimals)
	roundedQty := tradingutils.RoundQuantity(qty, v.QtyDecimals)

	notional := roundedPrice.Mul(roundedQty)
	if notional.LessThan(v.MinOrderValue) {
		return decimal.Zero, fmt.Errorf("%w: notional %s below minimum %s", apperrors.ErrOrderTooSmall, notional, v.MinOrderValue)
	}

	if v.Balances == nil {
		return roundedQty, nil
	}

	switch side {
	case core.Buy:
		if v.Balances.AvailableFiat().LessThan(notional) {
			return decimal.Zero, fmt.Errorf("%w: need %s fiat, have %s", apperrors.ErrInsufficientBalance, notional, v.Balances.AvailableFiat())
		}
	case core.Sell:
		if v.Balances.AvailableCrypto().LessThan(roundedQty) {
			return decimal.Zero, fmt.Errorf("%w: need %s crypto, have %s", apperrors.ErrInsufficientCrypto, roundedQty, v.Balances.AvailableCrypto())
		}
	}

	return roundedQty, nil
}
