package nats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestNewMessage_InjectsTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	defer span.End()

	msg, err := newMessage(ctx, "listing.created", map[string]string{"listing_id": "abc"})
	require.NoError(t, err)

	assert.Equal(t, "listing.created", msg.Subject)
	assert.JSONEq(t, `{"listing_id":"abc"}`, string(msg.Data))

	traceparent := msg.Header.Get("traceparent")
	require.NotEmpty(t, traceparent)
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())

	extracted := propagation.TraceContext{}.Extract(context.Background(), HeaderCarrier(msg.Header))
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(extracted).TraceID())
	assert.Len(t, HeaderCarrier(msg.Header).Keys(), 1)
}

func TestNewMessage_RejectsUnmarshalable(t *testing.T) {
	_, err := newMessage(context.Background(), "listing.created", make(chan int))
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "listing.deleted", nil))
}
