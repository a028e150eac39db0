package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/orderstock-backend/pkg/config"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox/registry"
)

// Message is one outbox row ready for delivery.
type Message struct {
	Topic      string
	Key        string
	Data       []byte
	Attributes map[string]string
}

// Sink delivers messages to the configured broker.
type Sink interface {
	Name() string
	Ping(ctx context.Context) error
	Publish(ctx context.Context, msg Message) error
}

type pubSubPublisher interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type pubSubSink struct {
	client  pubSubPublisher
	publish func(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

func newPubSubSink(client pubSubPublisher) *pubSubSink {
	s := &pubSubSink{client: client}
	s.publish = func(ctx context.Context, topic string, msg *gcppubsub.Message) error {
		p := client.Publisher(topic)
		if p == nil {
			return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
		}
		_, err := p.Publish(ctx, msg).Get(ctx)
		return err
	}
	return s
}

func (s *pubSubSink) Name() string { return config.OutboxSinkPubSub }

func (s *pubSubSink) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s *pubSubSink) Publish(ctx context.Context, msg Message) error {
	return s.publish(ctx, msg.Topic, &gcppubsub.Message{
		Data:       msg.Data,
		Attributes: msg.Attributes,
	})
}

type kafkaPublisher interface {
	Ping(context.Context) error
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

type kafkaSink struct {
	client kafkaPublisher
}

func (s *kafkaSink) Name() string { return config.OutboxSinkKafka }

func (s *kafkaSink) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s *kafkaSink) Publish(ctx context.Context, msg Message) error {
	if msg.Topic == "" {
		return registry.NewNonRetryableError(errors.New("kafka topic not configured"))
	}
	return s.client.Publish(ctx, msg.Topic, msg.Key, msg.Data, msg.Attributes)
}

// logSink writes events to the structured log instead of a broker.
type logSink struct {
	logg *logger.Logger
}

func (s *logSink) Name() string { return config.OutboxSinkLog }

func (s *logSink) Ping(context.Context) error { return nil }

func (s *logSink) Publish(ctx context.Context, msg Message) error {
	fields := map[string]any{
		"topic":   msg.Topic,
		"key":     msg.Key,
		"payload": string(msg.Data),
	}
	for k, v := range msg.Attributes {
		fields["attr_"+k] = v
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event delivered to log sink")
	return nil
}

func sinkKind(cfg config.OutboxConfig) string {
	return strings.ToLower(strings.TrimSpace(cfg.Sink))
}
