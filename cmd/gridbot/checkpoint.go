package main

import (
	"context"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	"gridbot/internal/grid"
	"gridbot/internal/ledger"
	"gridbot/internal/orderbook"
	"gridbot/internal/store"
	"gridbot/internal/strategy"
)

// subscribeCheckpointing wires SessionSnapshot persistence to every
// order-mutating bus event (SPEC_FULL.md §4.13: "checkpointing... after
// every bus-driven mutation batch"). Each handler is registered after
// OrderManager's and BalanceLedger's own EventOrderFilled/EventOrderCancelled
// subscribers, so by the time it runs the book, ledger and grid model
// already reflect the mutation being checkpointed (EventBus.Publish invokes
// subscribers in registration order).
func subscribeCheckpointing(
	bus core.EventBus,
	st store.Store,
	symbol string,
	book *orderbook.OrderBook,
	bal *ledger.BalanceLedger,
	model grid.Model,
	costBasis *strategy.CostBasisLedger,
	logger core.ILogger,
) {
	checkpoint := func(ctx context.Context, _ interface{}) error {
		snap := buildSnapshot(symbol, book, bal, model, costBasis)
		if err := st.SaveSession(ctx, snap); err != nil {
			logger.Warn("failed to checkpoint session state", "error", err.Error())
		}
		return nil
	}
	bus.Subscribe(core.EventOrderFilled, checkpoint)
	bus.Subscribe(core.EventOrderCancelled, checkpoint)
}

func buildSnapshot(symbol string, book *orderbook.OrderBook, bal *ledger.BalanceLedger, model grid.Model, costBasis *strategy.CostBasisLedger) store.SessionSnapshot {
	balSnap := bal.Snapshot()

	var cumulativeProfit decimal.Decimal
	if costBasis != nil {
		cumulativeProfit = costBasis.CumulativeProfit()
	}

	levels := model.Levels()
	levelSnaps := make([]store.LevelSnapshot, len(levels))
	for i, lvl := range levels {
		levelSnaps[i] = store.LevelSnapshot{
			Price:           lvl.Price,
			Quantity:        lvl.Quantity,
			State:           lvl.State,
			PairedBuyIndex:  lvl.PairedBuyIndex,
			PairedSellIndex: lvl.PairedSellIndex,
		}
	}

	return store.SessionSnapshot{
		Symbol:           symbol,
		Fiat:             balSnap.Fiat,
		Crypto:           balSnap.Crypto,
		ReservedFiat:     balSnap.ReservedFiat,
		ReservedCrypto:   balSnap.ReservedCrypto,
		TotalFees:        balSnap.TotalFees,
		CumulativeProfit: cumulativeProfit,
		Levels:           levelSnaps,
		OpenOrders:       book.OpenOrders(),
	}
}

// restoreSession logs the most recent checkpoint for symbol, if one exists.
// Replaying it back into a freshly constructed BalanceLedger/grid.Model is
// left for a future iteration (SPEC_FULL.md §4.13 names checkpointing;
// resuming mid-grid is not yet implemented) — surfacing it here at least
// makes an operator aware that state exists rather than silently ignoring it.
func restoreSession(ctx context.Context, st store.Store, symbol string, logger core.ILogger) {
	snap, found, err := st.LoadSession(ctx, symbol)
	if err != nil {
		logger.Warn("failed to read prior session checkpoint", "error", err.Error())
		return
	}
	if !found {
		return
	}
	logger.Info("found a prior session checkpoint; resuming mid-grid from it is not yet implemented, starting fresh",
		"symbol", symbol,
		"checkpoint_updated_at", snap.UpdatedAt.String(),
		"checkpoint_open_orders", len(snap.OpenOrders),
	)
}
