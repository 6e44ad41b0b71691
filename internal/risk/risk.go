// Package risk implements RiskController (spec.md §4.10): static
// take-profit/stop-loss liquidation, and dynamic-mode grid boundary
// handling. The retrieval pack's original Python source only carries the
// RiskManagementMode enum and references to "dynamic" rebalancing inside
// grid_manager.py/balance_tracker.py — the dynamic-restart algorithm
// itself is not present in the kept source files, so this package follows
// spec.md's explicit rules directly, in the same "evaluate once per price
// observation" shape as the original's _evaluate_tp_or_sl.
package risk

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	"gridbot/internal/grid"
	"gridbot/internal/ledger"
	"gridbot/internal/ordermanager"
)

// hundredth is the fallback bottom, as a fraction of price, used when a
// top-breach re-initialization would otherwise put the grid's bottom at or
// below zero.
var hundredth = decimal.NewFromFloat(0.01)

// GridFactory builds a fresh grid.Model spanning [bottom, top], sized off
// totalValue, for the dynamic top-breach re-initialization.
type GridFactory func(bottom, top, totalValue decimal.Decimal) (grid.Model, error)

// Config carries the subset of the strategy's grid/risk configuration the
// controller needs: the thresholds for static mode, and the spacing/width
// it reuses for dynamic mode's grid extension and re-initialization.
type Config struct {
	Mode core.RiskMode

	TakeProfitEnabled   bool
	TakeProfitThreshold decimal.Decimal
	StopLossEnabled     bool
	StopLossThreshold   decimal.Decimal

	Spacing    core.SpacingMode
	NumGrids   int
	RangeWidth decimal.Decimal // top - bottom of the originally configured grid
}

// Controller evaluates risk-management rules once per price observation
// via Evaluate, satisfying strategy.RiskEvaluator.
type Controller struct {
	mu sync.Mutex

	cfg     Config
	factory GridFactory

	mgr    *ordermanager.Manager
	bal    *ledger.BalanceLedger
	bus    core.EventBus
	logger core.ILogger

	stopped bool
}

func New(cfg Config, factory GridFactory, mgr *ordermanager.Manager, bal *ledger.BalanceLedger, bus core.EventBus, logger core.ILogger) *Controller {
	return &Controller{cfg: cfg, factory: factory, mgr: mgr, bal: bal, bus: bus, logger: logger}
}

// Evaluate runs the configured risk rule for the given price. In static
// mode it returns true once TP/SL has fired (and on every subsequent call,
// since the session has ended); in dynamic mode it never stops the
// session and always returns false.
func (c *Controller) Evaluate(ctx context.Context, price decimal.Decimal) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return true, nil
	}
	if c.cfg.Mode == core.RiskDynamic {
		return false, c.evaluateDynamic(ctx, price)
	}
	return c.evaluateStatic(ctx, price)
}

// evaluateStatic implements spec.md §4.10 "Static (take_profit_stop_loss)".
func (c *Controller) evaluateStatic(ctx context.Context, price decimal.Decimal) (bool, error) {
	if c.bal.AdjustedCryptoBalance().IsZero() {
		return false, nil
	}

	triggered := (c.cfg.TakeProfitEnabled && price.GreaterThanOrEqual(c.cfg.TakeProfitThreshold)) ||
		(c.cfg.StopLossEnabled && price.LessThanOrEqual(c.cfg.StopLossThreshold))
	if !triggered {
		return false, nil
	}

	if _, err := c.mgr.ExecuteMarketSellAll(ctx); err != nil {
		return false, err
	}
	c.stopped = true
	if c.bus != nil {
		c.bus.Publish(ctx, core.EventStopBot, "TP or SL hit.")
	}
	return true, nil
}

// evaluateDynamic implements spec.md §4.10 "Dynamic": boundary crossings
// are handled without ever ending the session.
func (c *Controller) evaluateDynamic(ctx context.Context, price decimal.Decimal) error {
	levels := c.mgr.Model().Levels()
	if len(levels) == 0 {
		return nil
	}

	minIdx, maxIdx := extremeLevels(levels)
	switch {
	case price.GreaterThanOrEqual(levels[maxIdx].Price):
		return c.handleTopBreach(ctx, price)
	case price.LessThanOrEqual(levels[minIdx].Price):
		return c.handleBottomBreach(ctx, levels, minIdx)
	default:
		return nil
	}
}

// handleTopBreach cancels everything resting, rebalances toward 50/50,
// and re-initializes the grid centered on price (spec.md §4.10 "top
// breach"). cumulative_profit and total_fees live in CostBasisLedger and
// BalanceLedger respectively and are untouched by a grid reset.
func (c *Controller) handleTopBreach(ctx context.Context, price decimal.Decimal) error {
	c.mgr.CancelAllPending(ctx)

	if err := c.mgr.Rebalance(ctx, price); err != nil {
		c.logWarn("top-breach rebalance failed", "error", err.Error())
	}

	half := c.cfg.RangeWidth.Div(decimal.NewFromInt(2))
	bottom := price.Sub(half)
	top := price.Add(half)
	if !bottom.IsPositive() {
		bottom = price.Mul(hundredth)
	}

	model, err := c.factory(bottom, top, c.bal.TotalValue(price))
	if err != nil {
		return fmt.Errorf("risk: grid re-initialization failed: %w", err)
	}
	c.mgr.ResetGrid(model)
	c.mgr.PlaceGridLimits(ctx, price)
	c.logInfo("dynamic top breach: grid re-initialized", "price", price.String(), "bottom", bottom.String(), "top", top.String())
	return nil
}

// handleBottomBreach extends the grid downward without selling existing
// crypto (spec.md §4.10 "bottom breach"). Per spec.md §9's open question,
// the original's own placement policy for these new levels is an
// incomplete stub ("logs Would place buy order"); this preserves that
// contract rather than guessing one — new levels are recorded in the grid
// model but no order is actually routed to the execution backend.
func (c *Controller) handleBottomBreach(ctx context.Context, levels []*grid.Level, minIdx int) error {
	if c.cfg.NumGrids < 4 {
		return nil
	}
	maxNew := c.cfg.NumGrids / 2
	if maxNew <= 0 {
		return nil
	}

	quarter := decimal.NewFromInt(int64(c.cfg.NumGrids)).Div(decimal.NewFromInt(4))
	dollarPerLevel := c.bal.AdjustedFiatBalance().Div(quarter)
	if !dollarPerLevel.IsPositive() {
		return nil
	}

	spacing := levelSpacing(levels, c.cfg.Spacing)
	if spacing.IsZero() {
		return nil
	}

	cursor := levels[minIdx].Price
	prices := make([]decimal.Decimal, 0, maxNew)
	quantities := make([]decimal.Decimal, 0, maxNew)
	for i := 0; i < maxNew; i++ {
		cursor = stepDown(cursor, spacing, c.cfg.Spacing)
		if !cursor.IsPositive() {
			break
		}
		prices = append(prices, cursor)
		quantities = append(quantities, dollarPerLevel.Div(cursor))
	}
	if len(prices) == 0 {
		return nil
	}

	added := c.mgr.Model().ExtendDown(prices, quantities, minIdx)
	for _, idx := range added {
		lvl := c.mgr.Model().Level(idx)
		c.logInfo("would place buy order", "level", idx, "price", lvl.Price.String(), "quantity", lvl.Quantity.String())
	}
	return nil
}

func extremeLevels(levels []*grid.Level) (minIdx, maxIdx int) {
	for i, l := range levels {
		if l.Price.LessThan(levels[minIdx].Price) {
			minIdx = i
		}
		if l.Price.GreaterThan(levels[maxIdx].Price) {
			maxIdx = i
		}
	}
	return minIdx, maxIdx
}

// levelSpacing derives the existing spacing from the two lowest prices in
// the grid, since the controller does not otherwise know the originally
// configured spacing after a dynamic top-breach rebuild.
func levelSpacing(levels []*grid.Level, mode core.SpacingMode) decimal.Decimal {
	prices := make([]decimal.Decimal, len(levels))
	for i, l := range levels {
		prices[i] = l.Price
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	if len(prices) < 2 {
		return decimal.Zero
	}
	if mode == core.SpacingGeometric {
		return prices[1].Div(prices[0])
	}
	return prices[1].Sub(prices[0])
}

func stepDown(price, spacing decimal.Decimal, mode core.SpacingMode) decimal.Decimal {
	if mode == core.SpacingGeometric {
		return price.Div(spacing)
	}
	return price.Sub(spacing)
}

func (c *Controller) logInfo(msg string, fields ...interface{}) {
	if c.logger != nil {
		c.logger.Info(msg, fields...)
	}
}

func (c *Controller) logWarn(msg string, fields ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, fields...)
	}
}
