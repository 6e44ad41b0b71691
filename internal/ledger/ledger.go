// Package ledger tracks fiat/crypto balances and their reservations across
// pending orders (spec.md §4.3), grounded on the reserve-then-settle
// accounting in the original bot's balance_tracker.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	apperrors "gridbot/pkg/errors"
)

// FeeCalculator computes the trading fee charged on a notional trade value.
type FeeCalculator interface {
	Fee(notional decimal.Decimal) decimal.Decimal
}

// PercentFeeCalculator charges a fixed percentage of notional value.
type PercentFeeCalculator struct {
	Rate decimal.Decimal // e.g. 0.001 for 10 bps
}

func (f PercentFeeCalculator) Fee(notional decimal.Decimal) decimal.Decimal {
	return notional.Mul(f.Rate)
}

// BalanceLedger is the single source of truth for available and reserved
// fiat/crypto balances (spec.md §4.3). All mutating methods are safe for
// concurrent use.
type BalanceLedger struct {
	mu sync.Mutex

	fee    FeeCalculator
	logger core.ILogger

	fiat           decimal.Decimal
	crypto         decimal.Decimal
	reservedFiat   decimal.Decimal
	reservedCrypto decimal.Decimal
	totalFees      decimal.Decimal
}

func New(fee FeeCalculator, logger core.ILogger) *BalanceLedger {
	return &BalanceLedger{
		fee:    fee,
		logger: logger,
	}
}

// SetInitialBalances seeds balances for backtest/paper mode, or to record
// what was fetched live from the venue.
func (l *BalanceLedger) SetInitialBalances(fiat, crypto decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fiat = fiat
	l.crypto = crypto
}

// ReserveForBuy moves amount out of the available fiat balance into the
// reserved-fiat bucket for a pending buy order.
func (l *BalanceLedger) ReserveForBuy(amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fiat.LessThan(amount) {
		return fmt.Errorf("%w: have %s, need %s", apperrors.ErrInsufficientBalance, l.fiat, amount)
	}
	l.fiat = l.fiat.Sub(amount)
	l.reservedFiat = l.reservedFiat.Add(amount)
	return nil
}

// ReserveForSell moves quantity out of the available crypto balance into the
// reserved-crypto bucket for a pending sell order.
func (l *BalanceLedger) ReserveForSell(quantity decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.crypto.LessThan(quantity) {
		return fmt.Errorf("%w: have %s, need %s", apperrors.ErrInsufficientCrypto, l.crypto, quantity)
	}
	l.crypto = l.crypto.Sub(quantity)
	l.reservedCrypto = l.reservedCrypto.Add(quantity)
	return nil
}

// OnOrderFilled is the EventBus handler for core.EventOrderFilled. It
// settles the reservation the fill corresponds to, clamping any
// reservation underflow back into the main balance.
func (l *BalanceLedger) OnOrderFilled(ctx context.Context, payload interface{}) error {
	order, ok := payload.(*core.Order)
	if !ok {
		return fmt.Errorf("ledger: expected *core.Order, got %T", payload)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	notional := order.Filled.Mul(order.AverageFillPrice)
	fee := l.fee.Fee(notional)

	switch order.Side {
	case core.Buy:
		totalCost := notional.Add(fee)
		l.reservedFiat = l.reservedFiat.Sub(totalCost)
		if l.reservedFiat.IsNegative() {
			l.fiat = l.fiat.Add(l.reservedFiat)
			l.reservedFiat = decimal.Zero
		}
		l.crypto = l.crypto.Add(order.Filled)
	case core.Sell:
		proceeds := notional.Sub(fee)
		if order.Filled.LessThanOrEqual(l.reservedCrypto) {
			l.reservedCrypto = l.reservedCrypto.Sub(order.Filled)
		} else {
			remaining := order.Filled.Sub(l.reservedCrypto)
			l.reservedCrypto = decimal.Zero
			l.crypto = l.crypto.Sub(remaining)
		}
		l.fiat = l.fiat.Add(proceeds)
	}
	l.totalFees = l.totalFees.Add(fee)

	if l.logger != nil {
		l.logger.Info("balance updated on fill",
			"order_id", order.ID, "side", string(order.Side), "filled", order.Filled.String())
	}
	return nil
}

// ReleaseAllReservations returns every reserved amount back to the
// available balances. Used when the engine cancels all outstanding orders
// (e.g. on shutdown or a risk-triggered restart).
func (l *BalanceLedger) ReleaseAllReservations() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fiat = l.fiat.Add(l.reservedFiat)
	l.crypto = l.crypto.Add(l.reservedCrypto)
	l.reservedFiat = decimal.Zero
	l.reservedCrypto = decimal.Zero
}

func (l *BalanceLedger) AdjustedFiatBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fiat.Add(l.reservedFiat)
}

func (l *BalanceLedger) AdjustedCryptoBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.crypto.Add(l.reservedCrypto)
}

// TotalValue returns the account's total value in fiat terms at price.
func (l *BalanceLedger) TotalValue(price decimal.Decimal) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	fiat := l.fiat.Add(l.reservedFiat)
	crypto := l.crypto.Add(l.reservedCrypto)
	return fiat.Add(crypto.Mul(price))
}

func (l *BalanceLedger) TotalFees() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalFees
}

// Snapshot returns a point-in-time copy of every tracked balance, mainly
// for reporting and tests.
type Snapshot struct {
	Fiat           decimal.Decimal
	Crypto         decimal.Decimal
	ReservedFiat   decimal.Decimal
	ReservedCrypto decimal.Decimal
	TotalFees      decimal.Decimal
}

func (l *BalanceLedger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Fiat:           l.fiat,
		Crypto:         l.crypto,
		ReservedFiat:   l.reservedFiat,
		ReservedCrypto: l.reservedCrypto,
		TotalFees:      l.totalFees,
	}
}
