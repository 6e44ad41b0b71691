// Package telemetry wires OpenTelemetry metrics (spec.md §4.11
// PerformanceAnalyzer) behind a Prometheus exporter, grounded on the
// teacher's pkg/telemetry — trimmed to the metric provider only, since this
// module does not carry the teacher's trace/log exporters (see DESIGN.md).
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Telemetry owns the process-wide MeterProvider lifecycle.
type Telemetry struct {
	mp *sdkmetric.MeterProvider
}

// Setup installs a Prometheus-backed MeterProvider as the global OTel
// provider and initializes the grid-engine's metric instruments.
func Setup(serviceName string) (*Telemetry, error) {
	res, err := resource.New(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	metricExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricExporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	if err := GetGlobalMetrics().InitMetrics(mp.Meter(serviceName)); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return &Telemetry{mp: mp}, nil
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.mp.Shutdown(ctx)
}

// GetMeter returns a meter for the given instrumentation name.
func GetMeter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}
