package grid

import (
	"github.com/shopspring/decimal"

	"gridbot/internal/core"
)

// RangeConfig is the resolved [bottom, top] plus any risk-management
// thresholds that a RangeMode auto-derives (spec.md §3 "Range modes").
type RangeConfig struct {
	Bottom             decimal.Decimal
	Top                decimal.Decimal
	TakeProfitOverride *decimal.Decimal
	StopLossOverride   *decimal.Decimal
}

// ResolveRange implements spec.md §3's two range modes. p0 is the first
// observed price and is only consulted for CryptoZero.
func ResolveRange(mode core.RangeMode, manualBottom, manualTop, p0 decimal.Decimal) RangeConfig {
	if mode == core.RangeCryptoZero {
		five := decimal.NewFromInt(5)
		bottom := p0.Div(five)
		top := p0.Add(p0.Sub(bottom)) // 9*p0/5
		tp := top
		sl := decimal.Zero
		return RangeConfig{Bottom: bottom, Top: top, TakeProfitOverride: &tp, StopLossOverride: &sl}
	}
	return RangeConfig{Bottom: manualBottom, Top: manualTop}
}
