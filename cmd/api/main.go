package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rkarimi/simbazaar/internal/adapters/api"
	"github.com/rkarimi/simbazaar/internal/adapters/cache"
	"github.com/rkarimi/simbazaar/internal/adapters/database"
	"github.com/rkarimi/simbazaar/internal/config"
	"github.com/rkarimi/simbazaar/internal/domain/auctions"
	"github.com/rkarimi/simbazaar/internal/domain/commission"
	"github.com/rkarimi/simbazaar/internal/domain/listings"
	"github.com/rkarimi/simbazaar/internal/domain/orders"
	"github.com/rkarimi/simbazaar/internal/domain/wallet"
	pkgdb "github.com/rkarimi/simbazaar/pkg/database"
	"github.com/rkarimi/simbazaar/pkg/events"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("API server exited", "error", err)
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

	// Postgres
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

	// RabbitMQ
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

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	defer rdb.Close()
	logger.Info("Redis Connected")

	// Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	accountRepo := database.NewPostgresAccountRepository(pool)
	listingRepo := database.NewPostgresListingRepository(pool)
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	orderRepo := database.NewPostgresOrderRepository(pool)
	commissionRepo := database.NewPostgresCommissionRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	listingCache := cache.NewListingCache(rdb, cfg.CacheTTL)

	// Services (Domain Layer)
	ledger := wallet.NewLedger(txManager, accountRepo)
	listingService := listings.NewService(listingRepo)
	policy, err := commission.NewStaticPolicy(cfg.CommissionPercent)
	if err != nil {
		return err
	}
	orderService := orders.NewService(txManager, orderRepo, listingRepo, ledger, commissionRepo, policy, outboxRepo, logger)
	auctionService := auctions.NewService(txManager, auctionRepo, bidRepo, listingRepo, ledger, orderService, outboxRepo, logger, nil)

	logger.Info("Services Initialized")

	handler := api.NewRouter(api.Handlers{
		Accounts: api.NewAccountHandler(ledger, logger),
		Listings: api.NewListingHandler(listingService, listingCache, logger),
		Auctions: api.NewAuctionHandler(auctionService, listingCache, logger),
		Orders:   api.NewOrderHandler(orderService, listingCache, logger),
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	relay := events.NewOutboxRelay(outboxRepo, publisher, txManager, cfg.OutboxBatchSize, cfg.OutboxInterval, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return relay.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
