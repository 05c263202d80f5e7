package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/antaeus/billing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "test-service",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test-meter"))
	assert.NoError(t, mp.ForceFlush(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.NoError(t, mp.Shutdown(cancelled))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily, so no collector is needed to build the provider.
	if testing.Short() {
		t.Skip("skipping exporter setup in short mode")
	}
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "test-service",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = mp.Shutdown(shutdownCtx)
}

func TestCounter(t *testing.T) {
	reader, provider := newManualMeter(t)
	counter, err := telemetry.NewCounter(provider.Meter("test"), "test_total", "test counter", "{items}")
	require.NoError(t, err)

	ctx := context.Background()
	counter.Inc(ctx, attribute.String("kind", "a"))
	counter.Add(ctx, 4, attribute.String("kind", "a"))
	counter.Add(ctx, 2, attribute.String("kind", "b"))

	got := sumByAttr(t, collect(t, reader)["test_total"], attribute.Key("kind"))
	assert.Equal(t, map[string]int64{"a": 5, "b": 2}, got)
}

func TestHistogram(t *testing.T) {
	tests := []struct {
		name       string
		boundaries []float64
	}{
		{"custom boundaries", telemetry.DBDurationBuckets},
		{"sdk defaults", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, provider := newManualMeter(t)
			h, err := telemetry.NewHistogram(provider.Meter("test"), telemetry.HistogramOpts{
				Name:        "test_duration_seconds",
				Description: "test histogram",
				Unit:        "s",
				Boundaries:  tt.boundaries,
			})
			require.NoError(t, err)

			ctx := context.Background()
			h.Record(ctx, 0.25)
			h.RecordDuration(ctx, 750*time.Millisecond)

			data, ok := collect(t, reader)["test_duration_seconds"].Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			require.Len(t, data.DataPoints, 1)
			assert.Equal(t, uint64(2), data.DataPoints[0].Count)
			assert.InDelta(t, 1.0, data.DataPoints[0].Sum, 1e-9)
			if tt.boundaries != nil {
				assert.Equal(t, tt.boundaries, data.DataPoints[0].Bounds)
			}
		})
	}
}

func TestGauge_KeepsLastValue(t *testing.T) {
	reader, provider := newManualMeter(t)

	gauge, err := telemetry.NewGauge(provider.Meter("test"), "test_gauge", "int gauge", "{invoices}")
	require.NoError(t, err)

	ctx := context.Background()
	gauge.Record(ctx, 3, telemetry.AttrInvoiceStatus.String("PENDING"))
	gauge.Record(ctx, 9, telemetry.AttrInvoiceStatus.String("PENDING"))
	gauge.Record(ctx, 4, telemetry.AttrInvoiceStatus.String("PAID"))

	data, ok := collect(t, reader)["test_gauge"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	got := make(map[string]int64)
	for _, dp := range data.DataPoints {
		v, _ := dp.Attributes.Value(telemetry.AttrInvoiceStatus)
		got[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"PENDING": 9, "PAID": 4}, got)
}

func TestBuckets_Sorted(t *testing.T) {
	for name, buckets := range map[string][]float64{
		"db":     telemetry.DBDurationBuckets,
		"charge": telemetry.ChargeDurationBuckets,
		"batch":  telemetry.BatchDurationBuckets,
		"size":   telemetry.BatchSizeBuckets,
		"http":   telemetry.HTTPDurationBuckets,
	} {
		assert.IsIncreasing(t, buckets, name)
	}
}
