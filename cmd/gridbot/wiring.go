package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"gridbot/internal/config"
	"gridbot/internal/core"
	"gridbot/internal/execution"
	"gridbot/internal/simulator"
)

// simulatorFor returns a Simulator driving exec when it is the in-process
// ReplayBackend (backtest mode), or nil otherwise — GridStrategy.RunLive
// never dereferences its sim field, only RunBacktest does (internal/strategy
// strategy.go), so a nil Simulator is safe for paper/live.
func simulatorFor(exec core.ExchangeClient) *simulator.Simulator {
	replay, ok := exec.(*execution.ReplayBackend)
	if !ok {
		return nil
	}
	return simulator.New(replay)
}

// resolveFirstPrice determines P0 (spec.md §3 "central price"; §3 "Range
// modes" CryptoZero): the first bar's close in backtest mode, or one
// synchronous price fetch through the venue client otherwise.
func resolveFirstPrice(ctx context.Context, mode core.TradingMode, bars []core.Bar, exec core.ExchangeClient, symbol string) (decimal.Decimal, error) {
	if mode == core.ModeBacktest {
		if len(bars) == 0 {
			return decimal.Zero, fmt.Errorf("no historical bars loaded")
		}
		return bars[0].Close, nil
	}
	if exec == nil {
		return decimal.Zero, fmt.Errorf("no exchange client available to fetch an initial price")
	}
	return exec.GetLatestPrice(ctx, symbol)
}

// computeGridRange implements spec.md §3 "Range modes": Manual takes
// bottom/top from config; CryptoZero derives bottom = P0/5, top = 9*P0/5
// and auto-sets take-profit to top, stop-loss to 0.
func computeGridRange(cfg *config.Config, firstPrice decimal.Decimal) (bottom, top decimal.Decimal, tpEnabled bool, tpThreshold decimal.Decimal, slEnabled bool, slThreshold decimal.Decimal) {
	if cfg.GridStrategy.Range.Mode == "crypto_zero" {
		bottom = firstPrice.Div(decimal.NewFromInt(5))
		top = firstPrice.Add(firstPrice.Sub(bottom))
		return bottom, top, true, top, true, decimal.Zero
	}

	bottom = decimal.NewFromFloat(cfg.GridStrategy.Range.Bottom)
	top = decimal.NewFromFloat(cfg.GridStrategy.Range.Top)
	tpEnabled = cfg.RiskManagement.TakeProfit.Enabled
	tpThreshold = decimal.NewFromFloat(cfg.RiskManagement.TakeProfit.Threshold)
	slEnabled = cfg.RiskManagement.StopLoss.Enabled
	slThreshold = decimal.NewFromFloat(cfg.RiskManagement.StopLoss.Threshold)
	return bottom, top, tpEnabled, tpThreshold, slEnabled, slThreshold
}
