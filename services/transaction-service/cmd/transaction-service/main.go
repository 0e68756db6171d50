package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/streamlinepay/platform/libs/config"
	"github.com/streamlinepay/platform/libs/db"
	"github.com/streamlinepay/platform/libs/events"
	"github.com/streamlinepay/platform/libs/httpx"
	"github.com/streamlinepay/platform/libs/kafkax"
	otelx "github.com/streamlinepay/platform/libs/otel"
	"github.com/streamlinepay/platform/libs/outbox"
	"github.com/streamlinepay/platform/libs/producer"
	"github.com/streamlinepay/platform/libs/runtime"
	"github.com/streamlinepay/platform/services/transaction-service/internal/handlers"
	"github.com/streamlinepay/platform/services/transaction-service/internal/storage"
	"github.com/streamlinepay/platform/services/transaction-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "transaction-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	if config.Bool("MIGRATE_ON_START", true) {
		if err := db.Migrate(dbURL, migrations.FS); err != nil {
			logger.Error("db migration failed", "err", err)
			panic(err)
		}
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")
	writer, err := kafkax.NewWriter(kafkax.WriterConfig{
		Brokers:                brokers,
		WriteTimeout:           config.Duration("KAFKA_WRITE_TIMEOUT", 10*time.Second),
		AllowAutoTopicCreation: config.Bool("KAFKA_AUTO_CREATE_TOPICS", true),
	})
	if err != nil {
		logger.Error("kafka writer init failed", "err", err)
		panic(err)
	}
	defer func() { _ = writer.Close() }()

	txnRepo := storage.NewTransactionRepository(pool)
	producerCfg := producer.Config[storage.Transaction]{
		Topic:   events.TopicTransactions,
		KeyOf:   func(t storage.Transaction) string { return t.ID },
		EventOf: func(t storage.Transaction) any { return t.Event() },
	}

	var creator handlers.Creator
	switch mode := strings.ToLower(config.String("PUBLISH_MODE", "direct")); mode {
	case "outbox":
		outboxRepo := outbox.NewRepository(pool)
		relay := outbox.NewPublisher(pool, outboxRepo, writer, logger, outbox.PublisherConfig{
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go relay.Run(ctx)
		creator = outbox.NewProducer[storage.Transaction](pool, txnRepo, outboxRepo, logger, producerCfg)
		logger.Info("publishing through outbox")
	case "direct":
		creator = producer.New[storage.Transaction](txnRepo, writer, logger, producerCfg)
	default:
		logger.Error("unknown PUBLISH_MODE", "mode", mode)
		panic("unknown PUBLISH_MODE " + mode)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	txnHandler := handlers.NewTransactionsHandler(creator, txnRepo, logger)
	mux.HandleFunc("/api/transactions", txnHandler.Transactions)

	rateLimit, closeLimiter := rateLimitFromEnv(logger)
	defer closeLimiter()

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: config.List("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders: config.List("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id"),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		rateLimit,
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
	)
	handler = otelhttp.NewHandler(handler, "transactions")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func rateLimitFromEnv(logger *slog.Logger) (httpx.Middleware, func()) {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		logger.Info("rate limiting enabled (redis)", "per_minute", limit, "redis_addr", addr)
		rl := httpx.NewRedisLimiter(rdb, limit, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:transactions"))
		return httpx.RateLimit(rl, logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), func() { _ = rdb.Close() }
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", limit)
	return httpx.RateLimit(httpx.NewMemoryLimiter(limit, time.Minute), logger, true), func() {}
}
