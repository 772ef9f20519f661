/**
 * @description
 * This is the main entry point for the banking API. It is responsible for
 * initializing all components of the service, including configuration, the
 * database connection pool, the message broker producer and consumer, the
 * repository, the core application service, the cron scheduler, and the HTTP
 * server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - go.uber.org/zap: Structured logging.
 * - internal/api, internal/app, internal/config, internal/observability,
 *   internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/api"
	"github.com/mannykwaning/banking-app/internal/app"
	"github.com/mannykwaning/banking-app/internal/config"
	"github.com/mannykwaning/banking-app/internal/observability"
	"github.com/mannykwaning/banking-app/internal/store"
	"github.com/mannykwaning/banking-app/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}
	if strings.TrimSpace(cfg.CardEncryptionSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"card encryption secret must be configured\" env=CARD_ENCRYPTION_SECRET")
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting banking-app", zap.String("port", cfg.ServerPort))

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database url parse failed", zap.Error(err))
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer dbpool.Close()
	logger.Info("database connected")

	// Initialize the RabbitMQ producer to publish transfer events. A broker
	// outage at startup degrades to the no-op fallback rather than blocking
	// the API.
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.TransferEventExchange)
	if err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", zap.Error(err))
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		logger.Info("rabbitmq producer connected")
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	service, err := app.NewService(repository, cfg, producer, logger)
	if err != nil {
		logger.Fatal("service init failed", zap.Error(err))
	}

	// Transfer rate limiting is backed by Redis. Without a reachable Redis
	// the service runs with rate limiting disabled.
	if strings.TrimSpace(cfg.RedisURL) == "" {
		logger.Warn("redis url missing; transfer rate limiting disabled")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			logger.Warn("redis url parse failed; transfer rate limiting disabled", zap.Error(parseErr))
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				logger.Warn("redis ping failed; transfer rate limiting disabled", zap.Error(pingErr))
				redisClient.Close()
			} else {
				defer redisClient.Close()
				service.SetRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix))
				logger.Info("redis connected; transfer rate limiting enabled",
					zap.Int("limit_per_minute", cfg.TransferRateLimitPerMinute))
			}
			pingCancel()
		}
	}

	metrics := observability.NewMetrics()

	// Wire up the settlement consumer when the broker is reachable.
	settlementConsumer := app.NewSettlementConsumer(repository, logger)
	settlementConsumer.SetMetrics(metrics)
	rabbitConsumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("rabbitmq consumer unavailable; settlement events disabled", zap.Error(err))
	} else {
		defer rabbitConsumer.Close()
		settlementBindings := map[string]func([]byte) bool{
			"settlement.external.completed": settlementConsumer.HandleMessage,
			"settlement.external.failed":    settlementConsumer.HandleMessage,
		}
		if err := rabbitConsumer.ConsumeWithBindings(cfg.TransferEventExchange, cfg.SettlementEventQueue, settlementBindings); err != nil {
			logger.Fatal("settlement consumer start failed", zap.Error(err))
		}
		logger.Info("settlement consumer started", zap.String("queue", cfg.SettlementEventQueue))
	}

	// Start the pending transfer expiry scheduler.
	jobs := app.NewJobs(repository, producer, logger, cfg)
	scheduler := app.NewScheduler(jobs, logger, cfg)
	scheduler.Start()

	// Initialize the API handlers and router.
	handlers := api.NewHandlers(service, logger, metrics)
	router := api.Routes(handlers, cfg, logger, metrics)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server stopped unexpectedly", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	<-scheduler.Stop().Done()

	logger.Info("shutdown complete")
}
