package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/matemarket/matemarket/internal/messaging"
	"github.com/matemarket/matemarket/internal/notify"
	"github.com/matemarket/matemarket/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}
	brokers := strings.Split(kafkaBrokers, ",")

	mailFrom := os.Getenv("MAIL_FROM")
	if mailFrom == "" {
		mailFrom = "shop@matemarket.test"
	}

	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderCreated, "notification-worker")
	defer func() { _ = consumer.Close() }()

	worker := notify.NewWorker(notify.NewLogMailer(logger), mailFrom, logger)

	logger.Info("starting notification worker", "topic", messaging.TopicOrderCreated)

	if err := consumer.Consume(ctx, worker.Handle); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("shutting down")
}
