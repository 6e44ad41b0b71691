// Package grid implements the grid price-level model and its per-level
// state machine (spec.md §3, §4.1): level generation (arithmetic/
// geometric), the SimpleGrid/HedgedGrid variants, sizing rules, and
// pairing between a filled buy and its counter-sell (or vice versa).
package grid

import (
	"github.com/shopspring/decimal"

	"gridbot/internal/core"
)

// Level is one grid price level. Pairing is modeled as indices into the
// owning Model's level slice rather than pointers, to avoid reference
// cycles between paired buy/sell levels (SPEC_FULL.md §9).
type Level struct {
	Price    decimal.Decimal
	State    core.GridCycleState
	Orders   []*core.Order
	Quantity decimal.Decimal

	PairedBuyIndex  *int
	PairedSellIndex *int
}

// attach records order as "ever attached" to this level. Orders is
// append-only: entries are never removed.
func (l *Level) attach(o *core.Order) {
	l.Orders = append(l.Orders, o)
}

// Model is the shared contract implemented by SimpleGrid and HedgedGrid
// (spec.md §4.1). Levels are indexed 0..len(Levels())-1; at construction
// they are in ascending price order, and levels added by ExtendDown are
// appended after them (so they sit at the end of the slice although their
// prices are lower). CentralPrice is the trigger price.
type Model interface {
	Levels() []*Level
	Level(i int) *Level
	CentralPrice() decimal.Decimal
	BuyIndices() []int
	SellIndices() []int

	CanPlaceOrder(i int, side core.OrderSide) bool
	MarkOrderPending(i int, order *core.Order, side core.OrderSide)
	CompleteOrder(i int, side core.OrderSide)

	// PairedSellLevel returns the index of the sell level that should
	// receive the counter-order after a BUY fills at level i, or -1 if
	// none is eligible.
	PairedSellLevel(i int) int
	// PairedBuyLevelBelow returns the index of the next grid level below i
	// (used as the fallback when a sell's recorded paired-buy level is not
	// eligible), or -1 if i is already the lowest level.
	PairedBuyLevelBelow(i int) int

	// Pair records a bidirectional reference between a buy level and a
	// sell level (spec.md §4.1 "pair(source, target, kind)").
	Pair(buyIdx, sellIdx int)

	// ExtendDown appends new buy-only levels below the existing grid
	// (spec.md §4.10 dynamic bottom breach). Each new level is born
	// READY_TO_BUY and optimistically paired to pairedSellIdx, the closest
	// existing higher level. Returns the indices of the appended levels.
	ExtendDown(prices, quantities []decimal.Decimal, pairedSellIdx int) []int
}
