package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/orderstock-backend/pkg/config"
	"github.com/angelmondragon/orderstock-backend/pkg/db"
	"github.com/angelmondragon/orderstock-backend/pkg/instance"
	"github.com/angelmondragon/orderstock-backend/pkg/kafka"
	"github.com/angelmondragon/orderstock-backend/pkg/logger"
	"github.com/angelmondragon/orderstock-backend/pkg/migrate"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox"
	"github.com/angelmondragon/orderstock-backend/pkg/outbox/registry"
	"github.com/angelmondragon/orderstock-backend/pkg/pubsub"
	"github.com/angelmondragon/orderstock-backend/pkg/tracing"
)

const serviceName = "outbox-publisher"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = serviceName

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.Tracing, serviceName, cfg.App.Env)
	if err != nil {
		logg.Error(context.Background(), "failed to set up tracing", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logg.Error(context.Background(), "error shutting down tracing", err)
		}
	}()

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	sink, topics, closeSink, err := buildSink(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap publish sink", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeSink(); err != nil {
			logg.Error(context.Background(), "error closing publish sink", err)
		}
	}()

	eventRegistry, err := registry.NewEventRegistry(topics)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Sink:          sink,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
		"sink":        sink.Name(),
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func buildSink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Sink, registry.Topics, func() error, error) {
	switch sinkKind(cfg.Outbox) {
	case config.OutboxSinkKafka:
		client := kafka.NewClient(cfg.Kafka)
		if !client.Enabled() {
			return nil, registry.Topics{}, nil, kafka.ErrDisabled
		}
		topics := registry.Topics{Orders: cfg.Kafka.OrdersTopic, Stock: cfg.Kafka.StockTopic}
		return &kafkaSink{client: client}, topics, client.Close, nil
	case config.OutboxSinkLog:
		topics := registry.Topics{Orders: cfg.PubSub.OrdersTopic, Stock: cfg.PubSub.StockTopic}
		return &logSink{logg: logg}, topics, func() error { return nil }, nil
	default:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, registry.Topics{}, nil, err
		}
		topics := registry.Topics{Orders: cfg.PubSub.OrdersTopic, Stock: cfg.PubSub.StockTopic}
		return newPubSubSink(client), topics, client.Close, nil
	}
}
