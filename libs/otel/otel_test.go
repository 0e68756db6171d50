package otelx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	assert.True(t, CaptureTraceContext(context.Background()).Empty())

	tc := TraceContext{Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	ctx := tc.Restore(context.Background())
	sc := trace.SpanContextFromContext(ctx)
	assert.True(t, sc.IsRemote())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", sc.TraceID().String())

	assert.Equal(t, tc.Traceparent, CaptureTraceContext(ctx).Traceparent)
}

func TestEmptyTraceContextRestore(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, TraceContext{}.Restore(ctx))
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 0.25, sampleRatio("0.25"))
	assert.Equal(t, 0.0, sampleRatio("0"))
	assert.Equal(t, 1.0, sampleRatio(""))
	assert.Equal(t, 1.0, sampleRatio("1.5"))
	assert.Equal(t, 1.0, sampleRatio("all"))
}

func TestSetupDisabled(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	shutdown, err := Setup(context.Background(), Config{Enabled: false, ServiceName: "test"})
	assert.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
}
