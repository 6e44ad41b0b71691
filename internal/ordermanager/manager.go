// Package ordermanager implements the OrderManager component (spec.md
// §4.6): initial grid placement, fill-driven pairing between buy and sell
// levels, and market-sell execution for take-profit/stop-loss.
package ordermanager

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	"gridbot/internal/grid"
	"gridbot/internal/ledger"
	"gridbot/internal/orderbook"
)

// centralProximity is the "already owned from the initial purchase"
// exclusion band around the grid's central price (spec.md §4.6 step 2:
// "excluding any level within 0.01% of central").
var centralProximity = decimal.NewFromFloat(0.0001)

// rebalanceThreshold is the minimum fiat/crypto imbalance, as a fraction of
// total portfolio value, worth correcting on a dynamic top breach (spec.md
// §4.10: "only when the imbalance exceeds 1% of total portfolio value").
var rebalanceThreshold = decimal.NewFromFloat(0.01)

type Manager struct {
	bus       core.EventBus
	book      *orderbook.OrderBook
	bal       *ledger.BalanceLedger
	model     grid.Model
	exec      core.ExchangeClient
	validator core.OrderValidator
	symbol    string
	mode      core.TradingMode
	logger    core.ILogger
}

func New(
	bus core.EventBus,
	book *orderbook.OrderBook,
	bal *ledger.BalanceLedger,
	model grid.Model,
	exec core.ExchangeClient,
	validator core.OrderValidator,
	symbol string,
	mode core.TradingMode,
	logger core.ILogger,
) *Manager {
	m := &Manager{
		bus: bus, book: book, bal: bal, model: model,
		exec: exec, validator: validator, symbol: symbol, mode: mode, logger: logger,
	}
	bus.Subscribe(core.EventOrderFilled, m.onOrderFilled)
	bus.Subscribe(core.EventOrderCancelled, m.onOrderCancelled)
	return m
}

// InitialPlacement performs the trigger-crossing sequence (spec.md §4.6):
// a 50/50-targeting initial market purchase, then one limit order per
// eligible grid level on either side of currentPrice.
func (m *Manager) InitialPlacement(ctx context.Context, currentPrice decimal.Decimal) error {
	fiat := m.bal.AdjustedFiatBalance()
	crypto := m.bal.AdjustedCryptoBalance()
	cryptoValue := crypto.Mul(currentPrice)
	totalValue := fiat.Add(cryptoValue)
	targetCryptoValue := totalValue.Div(decimal.NewFromInt(2))
	deficitValue := targetCryptoValue.Sub(cryptoValue)

	if deficitValue.IsPositive() {
		qty := deficitValue.Div(currentPrice)
		if adjQty, err := m.validate(ctx, core.Buy, currentPrice, qty); err == nil {
			order, err := m.exec.PlaceMarketOrder(ctx, core.Buy, m.symbol, adjQty)
			if err != nil {
				return fmt.Errorf("initial purchase failed: %w", err)
			}
			m.book.AddOrder(order, -1)
			if order.Status == core.StatusClosed && m.mode == core.ModeBacktest {
				m.bus.Publish(ctx, core.EventOrderFilled, order)
			}
		}
	}

	m.PlaceGridLimits(ctx, currentPrice)
	return nil
}

// PlaceGridLimits places one limit order per eligible grid level on either
// side of currentPrice, excluding the band already owned from the initial
// purchase. Split out of InitialPlacement so RiskController's dynamic top
// breach (spec.md §4.10) can re-seed a freshly reset grid without repeating
// the 50/50 initial purchase, which it performs itself via Rebalance.
func (m *Manager) PlaceGridLimits(ctx context.Context, currentPrice decimal.Decimal) {
	central := m.model.CentralPrice()
	band := central.Mul(centralProximity)

	for _, i := range m.model.BuyIndices() {
		lvl := m.model.Level(i)
		if lvl.Price.GreaterThanOrEqual(currentPrice) {
			continue
		}
		if lvl.Price.Sub(central).Abs().LessThanOrEqual(band) {
			continue
		}
		if err := m.placeLimit(ctx, i, core.Buy, lvl.Price, lvl.Quantity); err != nil {
			m.logInfo("initial buy placement skipped", "level", i, "error", err.Error())
		}
	}

	for _, i := range m.model.SellIndices() {
		lvl := m.model.Level(i)
		if lvl.Price.LessThanOrEqual(currentPrice) {
			continue
		}
		if lvl.Price.Sub(central).Abs().LessThanOrEqual(band) {
			continue
		}
		if err := m.placeLimit(ctx, i, core.Sell, lvl.Price, lvl.Quantity); err != nil {
			m.logInfo("initial sell placement skipped", "level", i, "error", err.Error())
		}
	}
}

func (m *Manager) placeLimit(ctx context.Context, levelIdx int, side core.OrderSide, price, qty decimal.Decimal) error {
	if !m.model.CanPlaceOrder(levelIdx, side) {
		return nil
	}
	adjQty, err := m.validate(ctx, side, price, qty)
	if err != nil {
		return err
	}

	if side == core.Buy {
		if err := m.bal.ReserveForBuy(adjQty.Mul(price)); err != nil {
			return err
		}
	} else {
		if err := m.bal.ReserveForSell(adjQty); err != nil {
			return err
		}
	}

	order, err := m.exec.PlaceLimitOrder(ctx, side, m.symbol, adjQty, price)
	if err != nil {
		return err
	}
	m.book.AddOrder(order, levelIdx)
	m.model.MarkOrderPending(levelIdx, order, side)
	return nil
}

func (m *Manager) validate(ctx context.Context, side core.OrderSide, price, qty decimal.Decimal) (decimal.Decimal, error) {
	if m.validator == nil {
		return qty, nil
	}
	return m.validator.Validate(ctx, side, price, qty)
}

// onOrderFilled is the ORDER_FILLED subscriber (spec.md §4.6 "Fill
// handling"). Non-grid orders (initial purchase, TP/SL) are looked up in
// the book and silently ignored for pairing purposes.
func (m *Manager) onOrderFilled(ctx context.Context, payload interface{}) error {
	order, ok := payload.(*core.Order)
	if !ok {
		return fmt.Errorf("ordermanager: expected *core.Order, got %T", payload)
	}

	levelIdx, ok := m.book.GridLevelForOrder(order.ID)
	if !ok {
		return nil
	}

	switch order.Side {
	case core.Buy:
		return m.onBuyFilled(ctx, levelIdx, order)
	case core.Sell:
		return m.onSellFilled(ctx, levelIdx, order)
	}
	return nil
}

func (m *Manager) onBuyFilled(ctx context.Context, levelIdx int, order *core.Order) error {
	m.model.CompleteOrder(levelIdx, core.Buy)

	sellIdx := m.model.PairedSellLevel(levelIdx)
	if sellIdx < 0 {
		return nil
	}
	sellLevel := m.model.Level(sellIdx)
	if err := m.placeLimit(ctx, sellIdx, core.Sell, sellLevel.Price, order.Filled); err != nil {
		m.logInfo("paired sell placement failed", "level", sellIdx, "error", err.Error())
		return nil
	}
	m.model.Pair(levelIdx, sellIdx)
	return nil
}

func (m *Manager) onSellFilled(ctx context.Context, levelIdx int, order *core.Order) error {
	m.model.CompleteOrder(levelIdx, core.Sell)

	lvl := m.model.Level(levelIdx)
	buyIdx := -1
	if lvl.PairedBuyIndex != nil && m.model.CanPlaceOrder(*lvl.PairedBuyIndex, core.Buy) {
		buyIdx = *lvl.PairedBuyIndex
	} else {
		buyIdx = m.model.PairedBuyLevelBelow(levelIdx)
	}
	if buyIdx < 0 {
		return nil
	}
	buyLevel := m.model.Level(buyIdx)
	if err := m.placeLimit(ctx, buyIdx, core.Buy, buyLevel.Price, order.Filled); err != nil {
		m.logInfo("paired buy placement failed", "level", buyIdx, "error", err.Error())
		return nil
	}
	m.model.Pair(buyIdx, levelIdx)
	return nil
}

// Model returns the grid model currently in use.
func (m *Manager) Model() grid.Model { return m.model }

// ResetGrid swaps in a freshly built grid model, used by RiskController
// when a dynamic-mode top breach re-initializes the grid centered on the
// current price (spec.md §4.10).
func (m *Manager) ResetGrid(model grid.Model) { m.model = model }

// CancelAllPending cancels every order still resting on the venue and
// releases their reservations back to the available balances (spec.md
// §4.10 dynamic top breach: "cancel all pending orders and release
// reservations"). Cancellation failures are logged and otherwise ignored
// since the grid is about to be reset regardless.
func (m *Manager) CancelAllPending(ctx context.Context) {
	for _, o := range m.book.OpenOrders() {
		if err := m.exec.CancelOrder(ctx, o.Symbol, o.ID); err != nil {
			m.logInfo("cancel during risk reset failed", "order_id", o.ID, "error", err.Error())
		}
	}
	m.bal.ReleaseAllReservations()
}

// Rebalance issues a simulated market buy or sell sized to bring the
// fiat/crypto split back toward 50/50 at currentPrice, but only when the
// imbalance exceeds rebalanceThreshold of total portfolio value (spec.md
// §4.10 dynamic top breach).
func (m *Manager) Rebalance(ctx context.Context, currentPrice decimal.Decimal) error {
	fiat := m.bal.AdjustedFiatBalance()
	crypto := m.bal.AdjustedCryptoBalance()
	cryptoValue := crypto.Mul(currentPrice)
	total := fiat.Add(cryptoValue)
	if !total.IsPositive() {
		return nil
	}

	imbalance := fiat.Sub(cryptoValue)
	if imbalance.Abs().LessThanOrEqual(total.Mul(rebalanceThreshold)) {
		return nil
	}

	side := core.Buy
	half := imbalance.Abs().Div(decimal.NewFromInt(2))
	if imbalance.IsNegative() {
		side = core.Sell
	}
	qty := half.Div(currentPrice)

	adjQty, err := m.validate(ctx, side, currentPrice, qty)
	if err != nil {
		m.logInfo("rebalance order skipped", "error", err.Error())
		return nil
	}
	order, err := m.exec.PlaceMarketOrder(ctx, side, m.symbol, adjQty)
	if err != nil {
		return fmt.Errorf("rebalance market order failed: %w", err)
	}
	m.book.AddOrder(order, -1)
	if order.Status == core.StatusClosed && m.mode == core.ModeBacktest {
		m.bus.Publish(ctx, core.EventOrderFilled, order)
	}
	return nil
}

func (m *Manager) onOrderCancelled(ctx context.Context, payload interface{}) error {
	order, ok := payload.(*core.Order)
	if !ok {
		return fmt.Errorf("ordermanager: expected *core.Order, got %T", payload)
	}
	m.logInfo("order cancelled", "order_id", order.ID)
	return nil
}

// ExecuteMarketSellAll liquidates the full adjusted crypto balance at
// market (spec.md §4.6 "TP/SL execution").
func (m *Manager) ExecuteMarketSellAll(ctx context.Context) (*core.Order, error) {
	qty := m.bal.AdjustedCryptoBalance()
	if !qty.IsPositive() {
		return nil, nil
	}

	order, err := m.exec.PlaceMarketOrder(ctx, core.Sell, m.symbol, qty)
	if err != nil {
		return nil, fmt.Errorf("stop/take-profit market sell failed: %w", err)
	}
	m.book.AddOrder(order, -1)

	if order.Status == core.StatusClosed && m.mode == core.ModeBacktest {
		m.bus.Publish(ctx, core.EventOrderFilled, order)
	}
	return order, nil
}

func (m *Manager) logInfo(msg string, fields ...interface{}) {
	if m.logger != nil {
		m.logger.Info(msg, fields...)
	}
}
