// Command gridbot is the CLI entrypoint (spec.md §6, SPEC_FULL.md §6):
// loads one or more --config files, wires every component named by
// SPEC_FULL.md §2 for the configured trading_mode, and drives either the
// backtest loop over a historical_data_file or the live/paper loop over a
// venue ticker stream, grounded on the teacher's cmd/live_server/main.go
// flag-parsing and startup-logging shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"gridbot/internal/bus"
	"gridbot/internal/config"
	"gridbot/internal/core"
	"gridbot/internal/execution"
	"gridbot/internal/grid"
	"gridbot/internal/ledger"
	"gridbot/internal/logging"
	"gridbot/internal/notify"
	"gridbot/internal/ordermanager"
	"gridbot/internal/orderbook"
	"gridbot/internal/performance"
	"gridbot/internal/risk"
	"gridbot/internal/statustracker"
	"gridbot/internal/store"
	"gridbot/internal/strategy"
	"gridbot/internal/telemetry"
	"gridbot/internal/tickerstream"
	"gridbot/internal/validator"
	"gridbot/pkg/concurrency"
	apperrors "gridbot/pkg/errors"
)

// Defaults for values spec.md names only at the config-key level
// (trading_settings, grid_strategy) and never pins to a concrete
// precision/minimum — the retrieval pack carries no per-venue precision
// table, so these follow the teacher's own BTCUSDT defaults
// (pkg/tradingutils callers elsewhere in the pack round to 8/2).
const (
	defaultPriceDecimals = 2
	defaultQtyDecimals   = 8
	defaultMinOrderValue = "10"

	statusPollInterval = 5 * time.Second
	statusPollQPS      = 5.0
)

// newVenueClient is the seam spec.md §1 leaves unimplemented ("the venue
// client... specified only at their interface"): a real REST/WS exchange
// integration. This module ships none; paper/live trading fails fast here
// unless a concrete core.ExchangeClient is wired in by replacing this var
// (e.g. from a main package in a downstream deployment).
var newVenueClient = func(cfg *config.Config, logger core.ILogger) (core.ExchangeClient, error) {
	return nil, fmt.Errorf("%w: no concrete venue client is wired for exchange %q; paper/live trading requires supplying one (spec.md §1)",
		apperrors.ErrUnsupportedExchange, cfg.Exchange.Name)
}

type stringSlice []string

func (s *stringSlice) String() string     { return strings.Join(*s, ",") }
func (s *stringSlice) Set(v string) error { *s = append(*s, v); return nil }

func main() {
	var configPaths stringSlice
	flag.Var(&configPaths, "config", "path to a YAML config file (repeatable, later files override earlier ones)")
	savePerfPath := flag.String("save_performance_results", "", "append the run's performance summary to this JSON file")
	noPlot := flag.Bool("no-plot", false, "disable plotting (always a no-op here: this module ships no plotter, SPEC_FULL.md §1)")
	profile := flag.Bool("profile", false, "write a CPU profile to cpu.pprof for the duration of the run")
	flag.Parse()

	if len(configPaths) == 0 {
		fmt.Fprintln(os.Stderr, "gridbot: at least one --config <path> is required")
		os.Exit(1)
	}
	_ = noPlot

	cfg, err := config.Load(configPaths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridbot: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(cfg.Logging.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridbot: failed to build logger: %v\n", err)
		os.Exit(1)
	}

	if *profile {
		f, err := os.Create("cpu.pprof")
		if err != nil {
			logger.Fatal("failed to create cpu profile", "error", err.Error())
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Fatal("failed to start cpu profile", "error", err.Error())
		}
		defer pprof.StopCPUProfile()
	}

	telem, err := telemetry.Setup("gridbot")
	if err != nil {
		logger.Warn("failed to initialize metrics exporter", "error", err.Error())
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = telem.Shutdown(shutdownCtx)
		}()
	}

	symbol := cfg.Pair.BaseCurrency + cfg.Pair.QuoteCurrency
	mode := core.TradingMode(cfg.Exchange.TradingMode)

	logger.Info("starting gridbot",
		"symbol", symbol,
		"trading_mode", string(mode),
		"grid_type", cfg.GridStrategy.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, stopping")
		cancel()
	}()

	eventBus := bus.New(logger)
	book := orderbook.New()
	feeRate := decimal.NewFromFloat(cfg.Exchange.TradingFee)
	bal := ledger.New(ledger.PercentFeeCalculator{Rate: feeRate}, logger)

	notifyPool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "notify",
		MaxWorkers:  4,
		MaxCapacity: 256,
		NonBlocking: true,
	}, logger)
	defer notifyPool.Stop()
	dispatcher := notify.NewDispatcher(notifyPool, logger)
	for _, sink := range notify.SinksFromEnv(os.Getenv("APPRISE_NOTIFICATION_URLS")) {
		dispatcher.AddSink(sink)
	}
	dispatcher.SubscribeToBus(eventBus)

	var bars []core.Bar
	var execBackend core.ExchangeClient
	var priceStream core.PriceStreamer
	var sessionStore store.Store

	switch mode {
	case core.ModeBacktest:
		bars, err = loadBarsCSV(cfg.TradingSettings.HistoricalDataFile)
		if err != nil {
			logger.Fatal("failed to load historical data", "error", err.Error())
		}
		execBackend = execution.NewReplayBackend(eventBus, symbol, feeRate)

	case core.ModePaperTrading, core.ModeLive:
		raw, err := newVenueClient(cfg, logger)
		if err != nil {
			logger.Fatal("no venue client available", "error", err.Error())
		}
		execBackend = execution.NewLiveBackend(raw, logger)

		priceStream = tickerstream.New("", logger)

		sqliteStore, storeErr := store.NewSQLiteStore(fmt.Sprintf("%s.gridbot.db", strings.ToLower(symbol)))
		if storeErr != nil {
			logger.Warn("failed to open session store; dynamic-mode restarts will not survive a process restart", "error", storeErr.Error())
		} else {
			sessionStore = sqliteStore
		}

	default:
		logger.Fatal("unrecognized trading_mode", "mode", string(mode))
	}

	firstPrice, err := resolveFirstPrice(ctx, mode, bars, execBackend, symbol)
	if err != nil {
		logger.Fatal("failed to determine an initial price", "error", err.Error())
	}

	bottom, top, tpEnabled, tpThreshold, slEnabled, slThreshold := computeGridRange(cfg, firstPrice)
	totalValue := decimal.NewFromFloat(cfg.TradingSettings.InitialBalance)
	spacing := core.SpacingMode(cfg.GridStrategy.Spacing)
	sizing := core.SizingMode(cfg.GridStrategy.OrderSizing)

	buildGrid := func(b, t, tv decimal.Decimal) (grid.Model, error) {
		if cfg.GridStrategy.Type == "hedged_grid" {
			return grid.NewHedgedGrid(b, t, cfg.GridStrategy.NumGrids, spacing, sizing, tv)
		}
		return grid.NewSimpleGrid(b, t, cfg.GridStrategy.NumGrids, spacing, sizing, tv)
	}

	model, err := buildGrid(bottom, top, totalValue)
	if err != nil {
		logger.Fatal("failed to build grid", "error", err.Error())
	}

	bal.SetInitialBalances(totalValue, decimal.Zero)

	priceValidator := &validator.ExchangeConstraintValidator{
		PriceDecimals: defaultPriceDecimals,
		QtyDecimals:   defaultQtyDecimals,
		MinOrderValue: decimal.RequireFromString(defaultMinOrderValue),
		Balances:      balanceSourceAdapter{bal},
	}

	// BalanceLedger's fill-settlement handler must be registered before
	// OrderManager's own subscriber so reservations are settled (crypto
	// credited, fiat/fees adjusted) before OrderManager acts on a fill to
	// place its paired counter-order (spec.md §5 registration-order
	// guarantee; see DESIGN.md).
	eventBus.Subscribe(core.EventOrderFilled, bal.OnOrderFilled)

	mgr := ordermanager.New(eventBus, book, bal, model, execBackend, priceValidator, symbol, mode, logger)

	costBasis := strategy.NewCostBasisLedger(model, book)
	eventBus.Subscribe(core.EventOrderFilled, costBasis.OnOrderFilled)

	riskCfg := risk.Config{
		Mode:                core.RiskMode(cfg.RiskManagement.Mode),
		TakeProfitEnabled:   tpEnabled,
		TakeProfitThreshold: tpThreshold,
		StopLossEnabled:     slEnabled,
		StopLossThreshold:   slThreshold,
		Spacing:             spacing,
		NumGrids:            cfg.GridStrategy.NumGrids,
		RangeWidth:          top.Sub(bottom),
	}
	riskCtrl := risk.New(riskCfg, buildGrid, mgr, bal, eventBus, logger)

	analyzer := performance.New(symbol, book, bal, model, costBasis)

	sim := simulatorFor(execBackend)

	gridStrategy := strategy.New(mgr, bal, sim, riskCtrl, analyzer, mode, model.CentralPrice(), logger)

	if mode != core.ModeBacktest && execBackend != nil {
		tracker := statustracker.New(book, execBackend, eventBus, symbol, statusPollInterval, statusPollQPS, logger)
		go tracker.Start(ctx)
		defer tracker.Stop()
	}
	if sessionStore != nil {
		defer sessionStore.Close()
		restoreSession(ctx, sessionStore, symbol, logger)
		subscribeCheckpointing(eventBus, sessionStore, symbol, book, bal, model, costBasis, logger)
	}

	eventBus.Publish(ctx, core.EventStartBot, symbol)

	switch mode {
	case core.ModeBacktest:
		if err := gridStrategy.RunBacktest(ctx, bars); err != nil {
			logger.Error("backtest run ended with error", "error", err.Error())
		}
	default:
		ticks, err := priceStream.Start(ctx, symbol)
		if err != nil {
			logger.Fatal("failed to start price stream", "error", err.Error())
		}
		if err := gridStrategy.RunLive(ctx, ticks); err != nil && err != context.Canceled {
			logger.Error("live run ended with error", "error", err.Error())
		}
		_ = priceStream.Stop()
	}

	eventBus.Publish(ctx, core.EventStopBot, symbol)

	summary := analyzer.Summarize()
	logger.Info("run complete",
		"roi_pct", summary.ROIPercent.String(),
		"max_drawdown_pct", summary.MaxDrawdownPct.String(),
		"total_fees", summary.TotalFees.String(),
	)

	if *savePerfPath != "" {
		if err := appendPerformanceResults(*savePerfPath, cfg, summary); err != nil {
			logger.Error("failed to save performance results", "error", err.Error())
		}
	}
}

// balanceSourceAdapter satisfies validator.BalanceSource over the ledger's
// unreserved balances (fiat/crypto not held by active reservations).
type balanceSourceAdapter struct{ bal *ledger.BalanceLedger }

func (a balanceSourceAdapter) AvailableFiat() decimal.Decimal   { return a.bal.Snapshot().Fiat }
func (a balanceSourceAdapter) AvailableCrypto() decimal.Decimal { return a.bal.Snapshot().Crypto }
