// Package apperrors holds the sentinel errors shared across the engine, so
// callers can branch on kind with errors.Is instead of string matching.
package apperrors

import "errors"

var (
	// ErrInsufficientBalance is returned by BalanceLedger reservation calls
	// when fiat is too low to cover a buy reservation (spec.md §4.3).
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientCrypto is the sell-side counterpart of
	// ErrInsufficientBalance.
	ErrInsufficientCrypto = errors.New("insufficient crypto balance")
	// ErrOrderExecutionFailed wraps a venue rejection of a place/cancel
	// request (spec.md §4.5, §7).
	ErrOrderExecutionFailed = errors.New("order execution failed")
	// ErrOrderCancellation signals a venue-side cancellation failure.
	ErrOrderCancellation = errors.New("order cancellation failed")
	// ErrDataFetch covers venue read failures (tickers, order status, klines).
	ErrDataFetch = errors.New("data fetch failed")
	// ErrUnsupportedExchange is returned by the exchange client factory for
	// an unrecognized venue name.
	ErrUnsupportedExchange = errors.New("unsupported exchange")
	// ErrMissingEnvVar names a required credential environment variable
	// that was not set (spec.md §6). config.Load reports that case as a
	// config.ValidationError and does not return this sentinel.
	ErrMissingEnvVar = errors.New("missing required environment variable")
	// ErrConfigNotFound/ErrConfigParse are fatal at startup (spec.md §7).
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("config parse error")
	// ErrInvalidGridRange flags a non-monotonic or degenerate [bottom, top].
	ErrInvalidGridRange = errors.New("invalid grid range")
	// ErrLevelNotEligible names an order attempted against a grid level
	// whose state does not permit it (spec.md §8 invariant 4). No function
	// in this module returns it: OrderManager skips ineligible levels
	// without an error.
	ErrLevelNotEligible = errors.New("grid level not eligible for order")
	// ErrOrderTooSmall is returned by OrderValidator when a proposed order's
	// notional value falls below the configured minimum (spec.md §4.4).
	ErrOrderTooSmall = errors.New("order notional below minimum")
)
