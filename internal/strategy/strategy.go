// Package strategy implements GridStrategy (spec.md §4.9): the backtest
// and live/paper driving loops that decide when to trigger the initial
// grid placement, feed bars/ticks to the Simulator and RiskController, and
// record account-value time series for the PerformanceAnalyzer. Grounded
// on original_source/strategies/grid_trading_strategy.py, translated from
// its asyncio ticker-callback loop into a goroutine driven by a ticker the
// way the teacher's gridengine.GridEngine.OnPriceUpdate is driven by a
// price-update channel.
package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	"gridbot/internal/ledger"
	"gridbot/internal/ordermanager"
	"gridbot/internal/simulator"
)

// DefaultTickerRefreshInterval matches the original's TICKER_REFRESH_INTERVAL.
const DefaultTickerRefreshInterval = 3 * time.Second

// Recorder captures one (timestamp, account value, price) sample for the
// PerformanceAnalyzer (spec.md §4.9 "Record account_value...").
type Recorder interface {
	Record(ts time.Time, accountValue, price decimal.Decimal)
}

// RiskEvaluator is the subset of RiskController that GridStrategy's loops
// drive on every price observation (spec.md §4.10).
type RiskEvaluator interface {
	Evaluate(ctx context.Context, price decimal.Decimal) (stopped bool, err error)
}

// GridStrategy coordinates one trading session end to end.
type GridStrategy struct {
	mgr   *ordermanager.Manager
	bal   *ledger.BalanceLedger
	sim   *simulator.Simulator
	risk  RiskEvaluator
	rec   Recorder
	mode  core.TradingMode
	logger core.ILogger

	triggerPrice decimal.Decimal

	initialized bool
	lastPrice   decimal.Decimal
	havePrice   bool
}

func New(
	mgr *ordermanager.Manager,
	bal *ledger.BalanceLedger,
	sim *simulator.Simulator,
	risk RiskEvaluator,
	rec Recorder,
	mode core.TradingMode,
	triggerPrice decimal.Decimal,
	logger core.ILogger,
) *GridStrategy {
	return &GridStrategy{
		mgr: mgr, bal: bal, sim: sim, risk: risk, rec: rec,
		mode: mode, triggerPrice: triggerPrice, logger: logger,
	}
}

// RunBacktest iterates bars in order, performing the trigger-crossing
// check, bar-by-bar simulation, and TP/SL evaluation described by spec.md
// §4.9's backtest loop. It returns early (without error) the moment a
// static TP/SL stop fires.
func (s *GridStrategy) RunBacktest(ctx context.Context, bars []core.Bar) error {
	for _, bar := range bars {
		initializedNow, err := s.maybeInitialize(ctx, bar.Close)
		if err != nil {
			return err
		}
		if !initializedNow {
			s.record(bar.Timestamp, bar.Close)
			s.lastPrice, s.havePrice = bar.Close, true
			continue
		}

		s.sim.ProcessBar(ctx, bar)

		stopped, err := s.risk.Evaluate(ctx, bar.Close)
		if err != nil {
			s.logError("risk evaluation failed", "error", err.Error())
		}
		if stopped {
			s.record(bar.Timestamp, bar.Close)
			return nil
		}

		s.record(bar.Timestamp, bar.Close)
		s.lastPrice, s.havePrice = bar.Close, true
	}
	return nil
}

// RunLive drives the live/paper loop from a stream of ticks (spec.md §4.9
// "Live/paper loop"). It blocks until ticks is closed or ctx is cancelled.
func (s *GridStrategy) RunLive(ctx context.Context, ticks <-chan core.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick, ok := <-ticks:
			if !ok {
				return nil
			}
			if err := s.onTick(ctx, tick); err != nil {
				s.logError("error handling tick", "error", err.Error())
			}
		}
	}
}

func (s *GridStrategy) onTick(ctx context.Context, tick core.Tick) error {
	accountValue := s.bal.TotalValue(tick.Price)
	s.rec.Record(tick.Timestamp, accountValue, tick.Price)

	initializedNow, err := s.maybeInitialize(ctx, tick.Price)
	if err != nil {
		return err
	}
	if !initializedNow {
		s.lastPrice, s.havePrice = tick.Price, true
		return nil
	}

	stopped, err := s.risk.Evaluate(ctx, tick.Price)
	if err != nil {
		return err
	}
	if stopped {
		return nil
	}
	s.lastPrice, s.havePrice = tick.Price, true
	return nil
}

// maybeInitialize performs the initial purchase and grid placement the
// first time current crosses the trigger price (spec.md §4.9 step 1:
// "last_close <= trigger <= current_close, or last_close == trigger").
func (s *GridStrategy) maybeInitialize(ctx context.Context, current decimal.Decimal) (bool, error) {
	if s.initialized {
		return true, nil
	}
	if !s.havePrice {
		return false, nil
	}

	crossed := (s.lastPrice.LessThanOrEqual(s.triggerPrice) && s.triggerPrice.LessThanOrEqual(current)) ||
		s.lastPrice.Equal(s.triggerPrice)
	if !crossed {
		return false, nil
	}

	if err := s.mgr.InitialPlacement(ctx, current); err != nil {
		return false, err
	}
	s.initialized = true
	return true, nil
}

func (s *GridStrategy) record(ts time.Time, price decimal.Decimal) {
	if s.rec == nil {
		return
	}
	s.rec.Record(ts, s.bal.TotalValue(price), price)
}

func (s *GridStrategy) logError(msg string, fields ...interface{}) {
	if s.logger != nil {
		s.logger.Error(msg, fields...)
	}
}
