package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names, namespaced for this engine (SPEC_FULL.md §4.11).
const (
	MetricAccountValue      = "gridbot_account_value"
	MetricCumulativeProfit  = "gridbot_cumulative_profit_total"
	MetricDrawdownPercent   = "gridbot_drawdown_percent"
	MetricOrdersPlacedTotal = "gridbot_orders_placed_total"
	MetricOrdersFilledTotal = "gridbot_orders_filled_total"
	MetricFeesPaidTotal     = "gridbot_fees_paid_total"
	MetricRiskTriggered     = "gridbot_risk_triggered"
	MetricOpenGridLevels    = "gridbot_open_grid_levels"
)

// MetricsHolder holds the engine's OTel instruments, grounded on the
// teacher's pkg/telemetry.MetricsHolder observable-gauge pattern.
type MetricsHolder struct {
	OrdersPlacedTotal metric.Int64Counter
	OrdersFilledTotal metric.Int64Counter
	FeesPaidTotal     metric.Float64Counter

	AccountValue   metric.Float64ObservableGauge
	Drawdown       metric.Float64ObservableGauge
	RiskTriggered  metric.Int64ObservableGauge
	OpenGridLevels metric.Int64ObservableGauge

	mu                sync.RWMutex
	accountValueMap   map[string]float64
	drawdownMap       map[string]float64
	riskTriggeredMap  map[string]int64
	openGridLevelsMap map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the process-wide metrics singleton.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			accountValueMap:   make(map[string]float64),
			drawdownMap:       make(map[string]float64),
			riskTriggeredMap:  make(map[string]int64),
			openGridLevelsMap: make(map[string]int64),
		}
	})
	return globalMetrics
}

// InitMetrics registers every instrument against meter.
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total grid orders placed"))
	if err != nil {
		return err
	}
	m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal, metric.WithDescription("Total grid orders filled"))
	if err != nil {
		return err
	}
	m.FeesPaidTotal, err = meter.Float64Counter(MetricFeesPaidTotal, metric.WithDescription("Cumulative trading fees paid"))
	if err != nil {
		return err
	}

	m.AccountValue, err = meter.Float64ObservableGauge(MetricAccountValue, metric.WithDescription("Total account value in quote currency"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.accountValueMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.Drawdown, err = meter.Float64ObservableGauge(MetricDrawdownPercent, metric.WithDescription("Current drawdown from peak account value, percent"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.drawdownMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.RiskTriggered, err = meter.Int64ObservableGauge(MetricRiskTriggered, metric.WithDescription("Risk controller triggered state (1=triggered, 0=normal)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.riskTriggeredMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.OpenGridLevels, err = meter.Int64ObservableGauge(MetricOpenGridLevels, metric.WithDescription("Number of grid levels currently awaiting a fill"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.openGridLevelsMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

func (m *MetricsHolder) SetAccountValue(symbol string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountValueMap[symbol] = value
}

func (m *MetricsHolder) SetDrawdown(symbol string, percent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drawdownMap[symbol] = percent
}

func (m *MetricsHolder) SetRiskTriggered(symbol string, triggered bool) {
	val := int64(0)
	if triggered {
		val = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riskTriggeredMap[symbol] = val
}

func (m *MetricsHolder) SetOpenGridLevels(symbol string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openGridLevelsMap[symbol] = count
}
