package grid

import (
	"github.com/shopspring/decimal"

	"gridbot/internal/core"
)

// HedgedGrid implements the hedged variant (spec.md §3, §4.1): every level
// rests in READY_TO_BUY_OR_SELL except the topmost (born READY_TO_SELL).
// Unlike SimpleGrid, the inserted midpoint (when num_grids is even) is kept
// as a real level, so Levels() has num_grids+1 entries in that case.
// Every non-top level is pre-paired to its immediate neighbor above at
// construction time (spec.md §4.1 "HedgedGrid... returns the immediate
// next higher level regardless of state").
type HedgedGrid struct {
	levels       []*Level
	centralPrice decimal.Decimal
	buyIdx       []int
	sellIdx      []int
}

func NewHedgedGrid(bottom, top decimal.Decimal, n int, spacing core.SpacingMode, sizingMode core.SizingMode, totalValue decimal.Decimal) (*HedgedGrid, error) {
	prices, centralIdx, _, err := generatePrices(bottom, top, n, string(spacing))
	if err != nil {
		return nil, err
	}
	centralPrice := prices[centralIdx]

	qty := ComputeQuantities(sizingMode, totalValue, prices, centralPrice)

	g := &HedgedGrid{centralPrice: centralPrice}
	g.levels = make([]*Level, len(prices))
	topIdx := len(prices) - 1
	for i, p := range prices {
		lvl := &Level{Price: p, Quantity: qty[i]}
		if i == topIdx {
			lvl.State = core.ReadyToSell
		} else {
			lvl.State = core.ReadyToBuyOrSell
		}
		g.levels[i] = lvl
		if i != topIdx {
			g.buyIdx = append(g.buyIdx, i)
		}
		if i != 0 {
			g.sellIdx = append(g.sellIdx, i)
		}
	}
	for i := 0; i < topIdx; i++ {
		g.Pair(i, i+1)
	}
	return g, nil
}

func (g *HedgedGrid) Levels() []*Level              { return g.levels }
func (g *HedgedGrid) Level(i int) *Level            { return g.levels[i] }
func (g *HedgedGrid) CentralPrice() decimal.Decimal { return g.centralPrice }
func (g *HedgedGrid) BuyIndices() []int             { return g.buyIdx }
func (g *HedgedGrid) SellIndices() []int            { return g.sellIdx }

func (g *HedgedGrid) CanPlaceOrder(i int, side core.OrderSide) bool {
	lvl := g.levels[i]
	switch side {
	case core.Buy:
		return lvl.State == core.ReadyToBuy || lvl.State == core.ReadyToBuyOrSell
	case core.Sell:
		return lvl.State == core.ReadyToSell || lvl.State == core.ReadyToBuyOrSell
	default:
		return false
	}
}

func (g *HedgedGrid) MarkOrderPending(i int, order *core.Order, side core.OrderSide) {
	lvl := g.levels[i]
	lvl.attach(order)
	if side == core.Buy {
		lvl.State = core.WaitingForBuyFill
	} else {
		lvl.State = core.WaitingForSellFill
	}
}

// CompleteOrder moves the filled level back to the neutral resting state
// and, additionally, advances the paired level per spec.md §4.1: a BUY
// fill readies its paired sell level; a SELL fill readies its paired buy
// level.
func (g *HedgedGrid) CompleteOrder(i int, side core.OrderSide) {
	lvl := g.levels[i]
	lvl.State = core.ReadyToBuyOrSell
	switch side {
	case core.Buy:
		if lvl.PairedSellIndex != nil {
			g.levels[*lvl.PairedSellIndex].State = core.ReadyToSell
		}
	case core.Sell:
		if lvl.PairedBuyIndex != nil {
			g.levels[*lvl.PairedBuyIndex].State = core.ReadyToBuy
		}
	}
}

func (g *HedgedGrid) PairedSellLevel(i int) int {
	if i+1 >= len(g.levels) {
		return -1
	}
	return i + 1
}

func (g *HedgedGrid) PairedBuyLevelBelow(i int) int {
	if i <= 0 {
		return -1
	}
	return i - 1
}

func (g *HedgedGrid) Pair(buyIdx, sellIdx int) {
	b, s := buyIdx, sellIdx
	g.levels[buyIdx].PairedSellIndex = &s
	g.levels[sellIdx].PairedBuyIndex = &b
}

func (g *HedgedGrid) ExtendDown(prices, quantities []decimal.Decimal, pairedSellIdx int) []int {
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
