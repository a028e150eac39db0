package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/angelmondragon/orderstock-backend/pkg/config"
)

var ErrDisabled = errors.New("kafka disabled")

// Producer is the subset of *kafka.Writer used for publishing.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Client hands out one writer per topic.
type Client struct {
	brokers   []string
	newWriter func(topic string) Producer

	mu      sync.Mutex
	writers map[string]Producer
}

func NewClient(cfg config.KafkaConfig) *Client {
	c := &Client{
		brokers: cfg.BrokerList(),
		writers: map[string]Producer{},
	}
	c.newWriter = c.defaultWriter
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && len(c.brokers) > 0
}

func (c *Client) defaultWriter(topic string) Producer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// Writer returns the cached producer for topic, creating it on first use.
func (c *Client) Writer(topic string) (Producer, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.writers[topic]; ok {
		return w, nil
	}
	w := c.newWriter(topic)
	c.writers[topic] = w
	return w, nil
}

// Publish writes one keyed message carrying the trace context from ctx.
func (c *Client) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	w, err := c.Writer(topic)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Time:    time.Now().UTC(),
		Headers: TraceHeaders(ctx, headers),
	}
	return w.WriteMessages(ctx, msg)
}

// Ping dials the first reachable broker.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	var lastErr error
	for _, broker := range c.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for topic, w := range c.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
		delete(c.writers, topic)
	}
	return errors.Join(errs...)
}

// TraceHeaders converts attributes plus the propagated trace context into kafka headers.
func TraceHeaders(ctx context.Context, attrs map[string]string) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := make([]kafka.Header, 0, len(attrs)+len(carrier))
	for k, v := range attrs {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}
