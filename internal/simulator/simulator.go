// Package simulator implements the Simulator component named by spec.md
// §4.8: replay-only fill synthesis against OHLC bars. The actual
// order-matching logic lives on execution.ReplayBackend (it owns the
// order store the matcher mutates in place — see DESIGN.md); Simulator is
// the named seam GridStrategy's backtest loop drives per bar, grounded on
// the original's OrderManager.simulate_order_fills entry point.
package simulator

import (
	"context"

	"gridbot/internal/core"
	"gridbot/internal/execution"
)

// Simulator drives one ReplayBackend through a sequence of bars.
type Simulator struct {
	backend *execution.ReplayBackend
}

func New(backend *execution.ReplayBackend) *Simulator {
	return &Simulator{backend: backend}
}

// ProcessBar synthesizes fills for every resting limit order crossed by
// bar, publishing ORDER_FILLED for each (spec.md §4.8 steps 1-3).
func (s *Simulator) ProcessBar(ctx context.Context, bar core.Bar) {
	s.backend.AdvanceBar(ctx, bar)
}
