package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func fieldsOf(entry observer.LoggedEntry) map[string]any {
	return entry.ContextMap()
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	log, _ := observed()
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))

	ctx = WithContext(context.Background(), nil)
	assert.NotNil(t, FromContext(ctx))
}

func TestWithRequestID(t *testing.T) {
	log, logs := observed()

	ctx, enriched := WithRequestID(context.Background(), log, "req-42")
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))

	FromContext(ctx).Info("Handling charge")
	enriched.Info("Direct")

	require.Equal(t, 2, logs.Len())
	for _, entry := range logs.All() {
		assert.Equal(t, "req-42", fieldsOf(entry)["request_id"])
	}
}

func TestWithTraceContext(t *testing.T) {
	log, logs := observed()

	WithTraceContext(context.Background(), log).Info("No span")
	assert.NotContains(t, fieldsOf(logs.All()[0]), "trace_id")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "charge")
	defer span.End()

	Ctx(WithContext(ctx, log)).Info("With span")

	fields := fieldsOf(logs.All()[1])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}
