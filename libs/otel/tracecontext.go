package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	traceparentKey = "traceparent"
	tracestateKey  = "tracestate"
)

// TraceContext is the W3C trace context in its serialised form, suitable for
// storing next to an outbox row.
type TraceContext struct {
	Traceparent string
	Tracestate  string
}

// CaptureTraceContext serialises the span context of ctx with the global
// propagator. Both fields are empty when ctx carries no span.
func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Traceparent: carrier[traceparentKey], Tracestate: carrier[tracestateKey]}
}

func (tc TraceContext) Empty() bool {
	return tc.Traceparent == "" && tc.Tracestate == ""
}

// Restore returns ctx carrying tc as its remote span context.
func (tc TraceContext) Restore(ctx context.Context) context.Context {
	if tc.Empty() {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		traceparentKey: tc.Traceparent,
		tracestateKey:  tc.Tracestate,
	})
}
