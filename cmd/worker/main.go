package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/rkarimi/simbazaar/internal/adapters/database"
	"github.com/rkarimi/simbazaar/internal/config"
	pkgdb "github.com/rkarimi/simbazaar/pkg/database"
	"github.com/rkarimi/simbazaar/pkg/events"
)

// The worker runs the outbox relay on its own so event publishing can be
// scaled and restarted independently of the API. Multiple workers are safe:
// the relay claims events with SKIP LOCKED.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Worker exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("Postgres Connected")

	mq, err := amqp091.Dial(cfg.RabbitMQURL)
	if err != nil {
		return err
	}
	defer mq.Close()
	publisher, err := events.NewRabbitMQPublisher(mq)
	if err != nil {
		return err
	}
	defer publisher.Close()
	logger.Info("RabbitMQ Connected")

	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	relay := events.NewOutboxRelay(outboxRepo, publisher, txManager, cfg.OutboxBatchSize, cfg.OutboxInterval, logger)

	logger.Info("Starting Outbox Relay Worker...")
	if err := relay.Run(ctx); err != nil {
		return err
	}

	logger.Info("Worker stopped")
	return nil
}
