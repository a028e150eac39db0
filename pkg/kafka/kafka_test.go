package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/angelmondragon/orderstock-backend/pkg/config"
)

type recordingWriter struct {
	topic    string
	messages []kafka.Message
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func newRecordingClient(brokers string) (*Client, map[string]*recordingWriter) {
	created := map[string]*recordingWriter{}
	c := NewClient(config.KafkaConfig{Brokers: brokers})
	c.newWriter = func(topic string) Producer {
		w := &recordingWriter{topic: topic}
		created[topic] = w
		return w
	}
	return c, created
}

func TestClientDisabledWithoutBrokers(t *testing.T) {
	c := NewClient(config.KafkaConfig{})
	assert.False(t, c.Enabled())
	err := c.Publish(context.Background(), "orders", "k", []byte("{}"), nil)
	assert.True(t, errors.Is(err, ErrDisabled))
	assert.ErrorIs(t, c.Ping(context.Background()), ErrDisabled)
}

func TestClientReusesWriterPerTopic(t *testing.T) {
	c, created := newRecordingClient("localhost:9092")

	first, err := c.Writer("orderstock.orders")
	require.NoError(t, err)
	second, err := c.Writer("orderstock.orders")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Len(t, created, 1)

	require.NoError(t, c.Close())
	assert.True(t, created["orderstock.orders"].closed)
}

func TestPublishCarriesKeyAndTraceHeaders(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	c, created := newRecordingClient("localhost:9092")
	require.NoError(t, c.Publish(ctx, "orderstock.orders", "order-1", []byte(`{"ok":true}`), map[string]string{"event_type": "order_created"}))

	w := created["orderstock.orders"]
	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "order-1", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "order_created", headers["event_type"])
	assert.NotEmpty(t, headers["traceparent"])
}
