package grid

import (
	"github.com/shopspring/decimal"

	"gridbot/internal/core"
)

// ComputeQuantities implements spec.md §4.1 "Sizing": given a total
// portfolio value V and N grid levels, returns the order quantity for each
// price in prices.
func ComputeQuantities(mode core.SizingMode, totalValue decimal.Decimal, prices []decimal.Decimal, centralPrice decimal.Decimal) []decimal.Decimal {
	n := decimal.NewFromInt(int64(len(prices)))
	perLevel := totalValue.Div(n)

	qty := make([]decimal.Decimal, len(prices))
	switch mode {
	case core.SizingEqualCrypto:
		flat := perLevel.Div(centralPrice)
		for i := range prices {
			qty[i] = flat
		}
	case core.SizingEqualDollar:
		fallthrough
	default:
		for i, p := range prices {
			qty[i] = perLevel.Div(p)
		}
	}
	return qty
}
