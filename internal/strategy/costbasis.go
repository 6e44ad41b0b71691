package strategy

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	"gridbot/internal/grid"
	"gridbot/internal/orderbook"
)

type levelBasis struct {
	qty  decimal.Decimal
	cost decimal.Decimal
}

// CostBasisLedger implements spec.md §4.9 "Profit accounting": per-buy-level
// cost basis (quantity and total cost including fees), debited
// proportionally on the paired SELL fill and credited to CumulativeProfit.
// It subscribes to ORDER_FILLED independently of OrderManager's pairing
// subscriber — grounded on the original's account_value/cumulative_profit
// bookkeeping in grid_trading_strategy.py's backtest loop, expressed here
// as its own EventBus subscriber the way the teacher keeps fill-driven
// bookkeeping (balance_tracker, PnL trackers) out of the order-placement
// path.
type CostBasisLedger struct {
	mu sync.Mutex

	model grid.Model
	book  *orderbook.OrderBook

	byLevel          map[int]*levelBasis
	initial          levelBasis
	cumulativeProfit decimal.Decimal
}

func NewCostBasisLedger(model grid.Model, book *orderbook.OrderBook) *CostBasisLedger {
	return &CostBasisLedger{
		model:   model,
		book:    book,
		byLevel: make(map[int]*levelBasis),
	}
}

func (c *CostBasisLedger) CumulativeProfit() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cumulativeProfit
}

// OnOrderFilled is the ORDER_FILLED subscriber.
func (c *CostBasisLedger) OnOrderFilled(ctx context.Context, payload interface{}) error {
	order, ok := payload.(*core.Order)
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	levelIdx, hasLevel := c.book.GridLevelForOrder(order.ID)
	cost := order.Filled.Mul(order.AverageFillPrice).Add(order.Fee)

	switch order.Side {
	case core.Buy:
		c.recordBuy(levelIdx, hasLevel, order.Filled, cost)
	case core.Sell:
		sellIdx := levelIdx
		if !hasLevel {
			sellIdx = -1
		}
		c.recordSell(sellIdx, hasLevel, order.Filled, order.Filled.Mul(order.AverageFillPrice).Sub(order.Fee))
	}
	return nil
}

func (c *CostBasisLedger) recordBuy(levelIdx int, hasLevel bool, qty, cost decimal.Decimal) {
	if !hasLevel {
		c.initial.qty = c.initial.qty.Add(qty)
		c.initial.cost = c.initial.cost.Add(cost)
		return
	}
	b, ok := c.byLevel[levelIdx]
	if !ok {
		b = &levelBasis{}
		c.byLevel[levelIdx] = b
	}
	b.qty = b.qty.Add(qty)
	b.cost = b.cost.Add(cost)
}

// recordSell debits cost basis for qty sold and credits net proceeds minus
// the debited basis to CumulativeProfit. The preferred source is the
// selling level's recorded paired-buy level; absent that, the nearest
// lower level with outstanding quantity; absent that, the initial-purchase
// basis (spec.md §4.9 "Profit accounting" fallback chain).
func (c *CostBasisLedger) recordSell(levelIdx int, hasLevel bool, qty, netProceeds decimal.Decimal) {
	remaining := qty
	costBasis := decimal.Zero

	if hasLevel {
		if lvl := c.model.Level(levelIdx); lvl.PairedBuyIndex != nil {
			remaining, costBasis = c.debit(*lvl.PairedBuyIndex, remaining, costBasis)
		}
	}
	if remaining.IsPositive() {
		for _, idx := range c.levelsBelow(levelIdx) {
			if !remaining.IsPositive() {
				break
			}
			remaining, costBasis = c.debit(idx, remaining, costBasis)
		}
	}
	if remaining.IsPositive() && c.initial.qty.IsPositive() {
		take := decimal.Min(remaining, c.initial.qty)
		avgCost := c.initial.cost.Div(c.initial.qty)
		spent := avgCost.Mul(take)
		c.initial.qty = c.initial.qty.Sub(take)
		c.initial.cost = c.initial.cost.Sub(spent)
		costBasis = costBasis.Add(spent)
		remaining = remaining.Sub(take)
	}

	c.cumulativeProfit = c.cumulativeProfit.Add(netProceeds.Sub(costBasis))
}

func (c *CostBasisLedger) debit(idx int, remaining, costBasis decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	b, ok := c.byLevel[idx]
	if !ok || !b.qty.IsPositive() {
		return remaining, costBasis
	}
	take := decimal.Min(remaining, b.qty)
	avgCost := b.cost.Div(b.qty)
	spent := avgCost.Mul(take)
	b.qty = b.qty.Sub(take)
	b.cost = b.cost.Sub(spent)
	return remaining.Sub(take), costBasis.Add(spent)
}

// levelsBelow returns every grid level index below levelIdx (or every
// recorded level, if the sell was a non-grid order), sorted descending so
// the nearest lower level is tried first.
func (c *CostBasisLedger) levelsBelow(levelIdx int) []int {
	var idxs []int
	for idx := range c.byLevel {
		if !isLevelBelow(levelIdx, idx) {
			continue
		}
		idxs = append(idxs, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(idxs)))
	return idxs
}

func isLevelBelow(sellIdx, candidate int) bool {
	if sellIdx < 0 {
		return true
	}
	return candidate < sellIdx
}
