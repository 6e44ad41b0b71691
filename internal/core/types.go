// Package core defines the shared types and interfaces used across the
// grid trading engine: orders, grid levels, balances, and the small set of
// interfaces that let the event-driven components above be wired together
// without import cycles.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType distinguishes limit from market orders.
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// OrderStatus mirrors the venue-reported lifecycle of an order.
type OrderStatus string

const (
	StatusOpen     OrderStatus = "OPEN"
	StatusClosed   OrderStatus = "CLOSED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// Order is the engine's order record. It is created once by the
// OrderManager/Simulator and thereafter only mutated in place by the
// EventBus fill/cancel handlers — never deleted, so it can accumulate in
// the OrderBook for reporting.
type Order struct {
	ID                 string
	Status             OrderStatus
	Type               OrderType
	Side               OrderSide
	Symbol             string
	Price              decimal.Decimal
	AverageFillPrice   decimal.Decimal
	Amount             decimal.Decimal
	Filled             decimal.Decimal
	Remaining          decimal.Decimal
	Fee                decimal.Decimal
	Timestamp          time.Time
	LastTradeTimestamp time.Time

	// GridLevelIndex references the grid level this order belongs to, or
	// -1 for non-grid orders (initial purchase, take-profit, stop-loss).
	GridLevelIndex int
}

// Before orders orders by LastTradeTimestamp, per spec.md §3 ("orders may
// be compared by last_trade_timestamp").
func (o *Order) Before(other *Order) bool {
	return o.LastTradeTimestamp.Before(other.LastTradeTimestamp)
}

// GridCycleState is the per-level state machine described in spec.md §3.
type GridCycleState string

const (
	ReadyToBuy        GridCycleState = "READY_TO_BUY"
	WaitingForBuyFill GridCycleState = "WAITING_FOR_BUY_FILL"
	ReadyToSell       GridCycleState = "READY_TO_SELL"
	WaitingForSellFill GridCycleState = "WAITING_FOR_SELL_FILL"
	ReadyToBuyOrSell  GridCycleState = "READY_TO_BUY_OR_SELL"
)

// EventType enumerates the events carried on the EventBus (spec.md §6).
type EventType string

const (
	EventOrderFilled    EventType = "ORDER_FILLED"
	EventOrderCancelled EventType = "ORDER_CANCELLED"
	EventOrderFailed    EventType = "ORDER_FAILED"
	EventStartBot       EventType = "START_BOT"
	EventStopBot        EventType = "STOP_BOT"
)

// Bar is one OHLCV row consumed by the backtest loop and the Simulator.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Tick is a single streamed price update consumed by the live/paper loop.
type Tick struct {
	Symbol    string
	Price     decimal.Decimal
	Timestamp time.Time
}

// RangeMode selects how the grid's [bottom, top] bounds are derived.
type RangeMode string

const (
	RangeManual     RangeMode = "manual"
	RangeCryptoZero RangeMode = "crypto_zero"
)

// SpacingMode selects arithmetic vs geometric level spacing.
type SpacingMode string

const (
	SpacingArithmetic SpacingMode = "arithmetic"
	SpacingGeometric  SpacingMode = "geometric"
)

// SizingMode selects the per-level order-sizing rule.
type SizingMode string

const (
	SizingEqualDollar SizingMode = "equal_dollar"
	SizingEqualCrypto SizingMode = "equal_crypto"
)

// GridVariant selects the strategy variant (simple vs hedged grid).
type GridVariant string

const (
	VariantSimpleGrid GridVariant = "simple_grid"
	VariantHedgedGrid GridVariant = "hedged_grid"
)

// RiskMode selects between static take-profit/stop-loss and dynamic restart.
type RiskMode string

const (
	RiskStatic  RiskMode = "take_profit_stop_loss"
	RiskDynamic RiskMode = "dynamic"
)

// TradingMode selects the execution backend.
type TradingMode string

const (
	ModeBacktest     TradingMode = "backtest"
	ModePaperTrading TradingMode = "paper_trading"
	ModeLive         TradingMode = "live"
)
