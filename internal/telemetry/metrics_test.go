package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestInitMetrics_RegistersInstrumentsAndObservesGaugeState(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	holder := &MetricsHolder{
		accountValueMap:   make(map[string]float64),
		drawdownMap:       make(map[string]float64),
		riskTriggeredMap:  make(map[string]int64),
		openGridLevelsMap: make(map[string]int64),
	}
	assert.NoError(t, holder.InitMetrics(mp.Meter("test")))

	holder.SetAccountValue("BTCUSDT", 10500.25)
	holder.SetDrawdown("BTCUSDT", 3.2)
	holder.SetRiskTriggered("BTCUSDT", true)
	holder.SetOpenGridLevels("BTCUSDT", 4)

	var data sdkmetric.ResourceMetrics
	assert.NoError(t, reader.Collect(context.Background(), &data))
	assert.NotEmpty(t, data.ScopeMetrics)
}
