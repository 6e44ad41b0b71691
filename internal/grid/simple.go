package grid

import (
	"github.com/shopspring/decimal"

	"gridbot/internal/core"
)

// SimpleGrid implements the non-hedged variant (spec.md §3, §4.1): a level
// oscillates READY_TO_BUY -> WAITING_FOR_BUY_FILL -> READY_TO_SELL ->
// WAITING_FOR_SELL_FILL -> READY_TO_BUY. When num_grids is even the
// inserted midpoint is recorded as the central price and then dropped, so
// Levels() always has exactly num_grids entries.
type SimpleGrid struct {
	levels       []*Level
	centralPrice decimal.Decimal
	buyIdx       []int
	sellIdx      []int
}

// NewSimpleGrid builds the grid and assigns per-level starting states and
// quantities. totalValue and sizingMode drive §4.1 "Sizing".
func NewSimpleGrid(bottom, top decimal.Decimal, n int, spacing core.SpacingMode, sizingMode core.SizingMode, totalValue decimal.Decimal) (*SimpleGrid, error) {
	prices, centralIdx, inserted, err := generatePrices(bottom, top, n, string(spacing))
	if err != nil {
		return nil, err
	}
	centralPrice := prices[centralIdx]
	if inserted {
		prices = append(prices[:centralIdx], prices[centralIdx+1:]...)
	}

	qty := ComputeQuantities(sizingMode, totalValue, prices, centralPrice)

	g := &SimpleGrid{centralPrice: centralPrice}
	g.levels = make([]*Level, len(prices))
	for i, p := range prices {
		lvl := &Level{Price: p, Quantity: qty[i]}
		if p.LessThanOrEqual(centralPrice) {
			lvl.State = core.ReadyToBuy
			g.buyIdx = append(g.buyIdx, i)
		} else {
			lvl.State = core.ReadyToSell
			g.sellIdx = append(g.sellIdx, i)
		}
		g.levels[i] = lvl
	}
	return g, nil
}

func (g *SimpleGrid) Levels() []*Level         { return g.levels }
func (g *SimpleGrid) Level(i int) *Level       { return g.levels[i] }
func (g *SimpleGrid) CentralPrice() decimal.Decimal { return g.centralPrice }
func (g *SimpleGrid) BuyIndices() []int        { return g.buyIdx }
func (g *SimpleGrid) SellIndices() []int       { return g.sellIdx }

func (g *SimpleGrid) CanPlaceOrder(i int, side core.OrderSide) bool {
	lvl := g.levels[i]
	switch side {
	case core.Buy:
		return lvl.State == core.ReadyToBuy
	case core.Sell:
		return lvl.State == core.ReadyToSell
	default:
		return false
	}
}

func (g *SimpleGrid) MarkOrderPending(i int, order *core.Order, side core.OrderSide) {
	lvl := g.levels[i]
	lvl.attach(order)
	if side == core.Buy {
		lvl.State = core.WaitingForBuyFill
	} else {
		lvl.State = core.WaitingForSellFill
	}
}

func (g *SimpleGrid) CompleteOrder(i int, side core.OrderSide) {
	lvl := g.levels[i]
	if side == core.Buy {
		lvl.State = core.ReadyToSell
	} else {
		lvl.State = core.ReadyToBuy
	}
}

// PairedSellLevel searches upward through the sorted sell levels for the
// first one still eligible to place a sell (spec.md §4.1).
func (g *SimpleGrid) PairedSellLevel(i int) int {
	for _, j := range g.sellIdx {
		if g.CanPlaceOrder(j, core.Sell) {
			return j
		}
	}
	return -1
}

func (g *SimpleGrid) PairedBuyLevelBelow(i int) int {
	if i <= 0 {
		return -1
	}
	return i - 1
}

func (g *SimpleGrid) Pair(buyIdx, sellIdx int) {
	b, s := buyIdx, sellIdx
	g.levels[buyIdx].PairedSellIndex = &s
	g.levels[sellIdx].PairedBuyIndex = &b
}

func (g *SimpleGrid) ExtendDown(prices, quantities []decimal.Decimal, pairedSellIdx int) []int {
	start := len(g.levels)
	added := make([]int, 0, len(prices))
	for i, p := range prices {
		sellIdx := pairedSellIdx
		lvl := &Level{Price: p, Quantity: quantities[i], State: core.ReadyToBuy, PairedSellIndex: &sellIdx}
		g.levels = append(g.levels, lvl)
		idx := start + i
		g.buyIdx = append(g.buyIdx, idx)
		added = append(added, idx)
	}
	return added
}
