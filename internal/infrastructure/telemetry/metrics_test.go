package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap/zaptest"

	"github.com/erp/invoice-relay/internal/infrastructure/telemetry"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Minute,
		ServiceName:       "invoice-relay-test",
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, cfg, mp.GetConfig())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestMetricHelpers_NoopMeter(t *testing.T) {
	ctx := context.Background()
	meter := noop.NewMeterProvider().Meter("test")

	counter, err := telemetry.NewCounter(meter, "relay_test_total", "Test counter", "1")
	require.NoError(t, err)
	histogram, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:       "relay_test_seconds",
		Unit:       "s",
		Boundaries: telemetry.ProviderDurationBuckets,
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		counter.Inc(ctx, telemetry.AttrVariant.String("seller_root"))
		counter.Add(ctx, 3)
		histogram.Record(ctx, 0.2)
		histogram.RecordDuration(ctx, 150*time.Millisecond, telemetry.AttrOperation.String("create_invoice"))
	})
}

func TestBuckets(t *testing.T) {
	for _, buckets := range [][]float64{telemetry.ProviderDurationBuckets, telemetry.AmountBuckets} {
		require.NotEmpty(t, buckets)
		for i := 1; i < len(buckets); i++ {
			assert.Greater(t, buckets[i], buckets[i-1])
		}
	}
}
