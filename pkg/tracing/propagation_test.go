package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeadersCarrySpanContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	tp1 := Traceparent(ctx)
	require.NotEmpty(t, tp1)

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("OrderCreated")}})
	require.Len(t, headers, 2)
	assert.Equal(t, TraceparentHeader, headers[1].Key)
	assert.Equal(t, tp1, string(headers[1].Value))

	got := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), got.SpanID())
}

func TestTraceparentWithoutSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	assert.Empty(t, Traceparent(context.Background()))
}
