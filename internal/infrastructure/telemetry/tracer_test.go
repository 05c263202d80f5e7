package telemetry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/antaeus/billing/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
)

// restoreGlobalTracing puts back the global provider and propagator after a test installs its own.
func restoreGlobalTracing(t *testing.T) {
	t.Helper()
	provider := otel.GetTracerProvider()
	propagator := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(propagator)
	})
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "test-service",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_NilLogger(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
}

func TestNewTracerProvider_ExportsSpans(t *testing.T) {
	restoreGlobalTracing(t)
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:       true,
		SamplingRatio: 1.0,
		ServiceName:   "billing-test",
	}, zaptest.NewLogger(t), telemetry.WithSpanExporter(exporter))
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(ctx) }()

	assert.True(t, tp.IsEnabled())

	_, span := telemetry.StartServiceSpan(ctx, "billing", "charge")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "billing.charge", spans[0].Name)

	serviceName, ok := spans[0].Resource.Set().Value("service.name")
	require.True(t, ok)
	assert.Equal(t, "billing-test", serviceName.AsString())

	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}

func TestNewTracerProvider_SamplingRatios(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  int
	}{
		{"always", 1.0, 5},
		{"above one", 3.0, 5},
		{"never", 0.0, 0},
		{"negative", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreGlobalTracing(t)
			ctx := context.Background()
			exporter := tracetest.NewInMemoryExporter()

			tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
				Enabled:       true,
				SamplingRatio: tt.ratio,
			}, zaptest.NewLogger(t), telemetry.WithSpanExporter(exporter))
			require.NoError(t, err)

			for i := 0; i < 5; i++ {
				_, span := tp.Tracer("test").Start(ctx, "op")
				span.End()
			}
			require.NoError(t, tp.Shutdown(ctx))
			assert.Len(t, exporter.GetSpans(), tt.want)
		})
	}
}

func TestTracerProvider_EnableSpanProfiles(t *testing.T) {
	restoreGlobalTracing(t)
	ctx := context.Background()
	exporter := tracetest.NewInMemoryExporter()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{Enabled: true, SamplingRatio: 1},
		zaptest.NewLogger(t), telemetry.WithSpanExporter(exporter))
	require.NoError(t, err)
	defer func() { _ = tp.Shutdown(ctx) }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tp.EnableSpanProfiles())
			_ = tp.IsSpanProfilesEnabled()
		}()
	}
	wg.Wait()
	assert.True(t, tp.IsSpanProfilesEnabled())

	_, span := otel.Tracer("test").Start(ctx, "profiled")
	span.End()
	require.NoError(t, tp.ForceFlush(ctx))
	require.Len(t, exporter.GetSpans(), 1)
}

func TestNewTracerProvider_OTLPExporter(t *testing.T) {
	// The gRPC exporter dials lazily; building the provider needs no collector.
	if testing.Short() {
		t.Skip("skipping exporter setup in short mode")
	}
	restoreGlobalTracing(t)

	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     0.5,
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = tp.Shutdown(ctx)
}
