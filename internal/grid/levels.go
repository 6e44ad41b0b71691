package grid

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	apperrors "gridbot/pkg/errors"
)

// generatePrices computes the N (or N+1, see below) sorted price points for
// a grid between bottom and top (spec.md §4.1 "Level generation").
//
// When n is even, one extra point is inserted at the midpoint so a
// well-defined central price exists; generatePrices always returns that
// extra point — callers decide whether to keep it (HedgedGrid) or drop it
// after recording the central price (SimpleGrid).
//
// Returns the sorted prices, the index of the central (midpoint) price
// within that slice, and whether an extra point was inserted.
func generatePrices(bottom, top decimal.Decimal, n int, spacing string) ([]decimal.Decimal, int, bool, error) {
	if n < 2 {
		return nil, 0, false, fmt.Errorf("%w: num_grids must be >= 2, got %d", apperrors.ErrInvalidGridRange, n)
	}
	if !bottom.IsPositive() || !top.IsPositive() || !top.GreaterThan(bottom) {
		return nil, 0, false, fmt.Errorf("%w: top (%s) must be greater than bottom (%s), both positive", apperrors.ErrInvalidGridRange, top, bottom)
	}

	inserted := n%2 == 0
	nEff := n
	if inserted {
		nEff = n + 1
	}

	prices := make([]decimal.Decimal, nEff)
	switch spacing {
	case "geometric":
		// The ratio r = (top/bottom)^(1/(nEff-1)) has a fractional
		// exponent; shopspring/decimal.Pow only handles integer exponents
		// precisely, so the root is taken in float64 and the result fed
		// back into decimal arithmetic, matching spec.md's tolerance of
		// 1e-9 on consecutive-ratio equality.
		ratioF := math.Pow(top.Div(bottom).InexactFloat64(), 1.0/float64(nEff-1))
		ratio := decimal.NewFromFloat(ratioF)
		cur := bottom
		for i := 0; i < nEff; i++ {
			prices[i] = cur
			cur = cur.Mul(ratio)
		}
		prices[nEff-1] = top // avoid float drift at the boundary
	case "arithmetic", "":
		step := top.Sub(bottom).Div(decimal.NewFromInt(int64(nEff - 1)))
		for i := 0; i < nEff; i++ {
			prices[i] = bottom.Add(step.Mul(decimal.NewFromInt(int64(i))))
		}
		prices[nEff-1] = top
	default:
		return nil, 0, false, fmt.Errorf("%w: unknown spacing mode %q", apperrors.ErrInvalidGridRange, spacing)
	}

	centralIdx := (nEff - 1) / 2
	return prices, centralIdx, inserted, nil
}
