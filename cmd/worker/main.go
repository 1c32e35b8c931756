// Worker consumes account events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, EVENTS_KAFKA_TOPIC, KAFKA_GROUP_ID and LOKI_URL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"identity-service/backend/internal/config"
	"identity-service/backend/internal/events"
	"identity-service/backend/internal/logging"
	"identity-service/backend/internal/telemetry/loki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Dev: cfg.LogDev})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	sink, err := loki.NewClient(cfg.LokiURL, "", nil)
	if err != nil {
		logger.Fatal("LOKI_URL is required", zap.Error(err))
	}

	consumer, err := events.NewKafkaConsumer(cfg.KafkaBrokersList(), cfg.EventsKafkaTopic, cfg.KafkaGroupID, sink, logger)
	if err != nil {
		logger.Fatal("consumer", zap.Error(err))
	}
	defer func() { _ = consumer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("worker started",
		zap.String("topic", cfg.EventsKafkaTopic),
		zap.String("group", cfg.KafkaGroupID),
		zap.String("loki", cfg.LokiURL),
	)
	if err := consumer.Run(ctx); err != nil {
		logging.LogError(logger, "worker stopped", err)
		return
	}
	logger.Info("worker stopped")
}
