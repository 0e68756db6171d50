package outbox

import (
	"context"
	"testing"

	"github.com/streamlinepay/platform/libs/kafkax"
	otelx "github.com/streamlinepay/platform/libs/otel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestToMessages(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	records := []Record{
		{
			ID:          1,
			EventID:     "8f9c2a4e-7d7f-4a55-9a8c-0d6f6c1d2e3f",
			Topic:       "users",
			AggregateID: "u-1",
			EventType:   "user.created",
			Payload:     []byte(`{"id":"u-1"}`),
			Trace:       otelx.TraceContext{Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
		},
		{ID: 2, Topic: "transactions", AggregateID: "t-1", EventType: "transaction.created", Payload: []byte(`{"id":"t-1"}`)},
	}

	msgs := toMessages(context.Background(), records)
	require.Len(t, msgs, 2)

	assert.Equal(t, "users", msgs[0].Topic)
	assert.Equal(t, []byte("u-1"), msgs[0].Key)
	assert.Equal(t, "8f9c2a4e-7d7f-4a55-9a8c-0d6f6c1d2e3f", kafkax.HeaderValue(msgs[0].Headers, kafkax.HeaderEventID))
	assert.Equal(t, records[0].Trace.Traceparent, kafkax.HeaderValue(msgs[0].Headers, "traceparent"))

	assert.Equal(t, "transactions", msgs[1].Topic)
	assert.Equal(t, "t-1", kafkax.HeaderValue(msgs[1].Headers, kafkax.HeaderEventID))
	assert.Equal(t, "transaction.created", kafkax.HeaderValue(msgs[1].Headers, kafkax.HeaderEventType))
	assert.Empty(t, kafkax.HeaderValue(msgs[1].Headers, "traceparent"))
}

func TestNewPublisherDefaults(t *testing.T) {
	p := NewPublisher(nil, nil, nil, nil, PublisherConfig{})
	assert.Equal(t, 50, p.batchSize)
	assert.Equal(t, "2s", p.pollEvery.String())
}
