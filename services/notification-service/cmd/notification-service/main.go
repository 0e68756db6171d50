package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/streamlinepay/platform/libs/config"
	"github.com/streamlinepay/platform/libs/db"
	"github.com/streamlinepay/platform/libs/events"
	"github.com/streamlinepay/platform/libs/httpx"
	"github.com/streamlinepay/platform/libs/kafkax"
	otelx "github.com/streamlinepay/platform/libs/otel"
	"github.com/streamlinepay/platform/libs/runtime"
	"github.com/streamlinepay/platform/services/notification-service/internal/consumer"
	"github.com/streamlinepay/platform/services/notification-service/internal/dedup"
	"github.com/streamlinepay/platform/services/notification-service/internal/dispatch"
	"github.com/streamlinepay/platform/services/notification-service/internal/email"
	"github.com/streamlinepay/platform/services/notification-service/internal/storage"
	"github.com/streamlinepay/platform/services/notification-service/migrations"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8083")
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

	rules, err := rulesFromEnv()
	if err != nil {
		logger.Error("invalid notification rules", "err", err)
		panic(err)
	}

	sender, err := email.New(email.Config{
		Provider: config.String("EMAIL_PROVIDER", "smtp"),
		SMTP: email.SMTPConfig{
			Host:     config.String("SMTP_HOST", "mailpit"),
			Port:     config.String("SMTP_PORT", "1025"),
			From:     config.String("SMTP_FROM", email.DefaultFrom),
			Username: config.String("SMTP_USERNAME", ""),
			Password: config.String("SMTP_PASSWORD", ""),
			Timeout:  config.Duration("SMTP_TIMEOUT", 10*time.Second),
		},
	}, logger)
	if err != nil {
		logger.Error("email sender init failed", "err", err)
		panic(err)
	}

	var opts []consumer.Option
	readyChecks := []runtime.ReadyCheck{
		{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	}

	var pool *db.Pool
	if dbURL := config.String("DATABASE_URL", ""); dbURL != "" {
		if config.Bool("MIGRATE_ON_START", true) {
			if err := db.Migrate(dbURL, migrations.FS); err != nil {
				logger.Error("db migration failed", "err", err)
				panic(err)
			}
		}
		pool, err = db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		opts = append(opts, consumer.WithRecorder(storage.NewRepository(pool)))
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
		logger.Info("delivery log enabled")
	}

	if config.Bool("DEDUP_ENABLED", false) {
		ttl := config.Duration("DEDUP_TTL", 24*time.Hour)
		switch backend := strings.ToLower(config.String("DEDUP_BACKEND", "redis")); backend {
		case "redis":
			addr := strings.TrimSpace(config.String("REDIS_ADDR", ""))
			if addr == "" {
				logger.Warn("dedup disabled: REDIS_ADDR not set")
				break
			}
			rdb := redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: config.String("REDIS_PASSWORD", ""),
				DB:       config.Int("REDIS_DB", 0),
			})
			defer func() { _ = rdb.Close() }()
			opts = append(opts, consumer.WithDedup(dedup.NewRedisStore(rdb, ttl, config.String("DEDUP_PREFIX", "notif"))))
			readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}})
			logger.Info("notification dedup enabled (redis)", "ttl", ttl.String(), "redis_addr", addr)
		case "postgres":
			if pool == nil {
				logger.Warn("dedup disabled: DATABASE_URL not set")
				break
			}
			opts = append(opts, consumer.WithDedup(dedup.NewPostgresStore(pool, ttl)))
			logger.Info("notification dedup enabled (postgres)", "ttl", ttl.String())
		default:
			logger.Error("unknown DEDUP_BACKEND", "backend", backend)
			panic("unknown DEDUP_BACKEND " + backend)
		}
	}

	handler := consumer.NewHandler(rules, sender, logger, opts...)
	eventConsumer := consumer.New(logger, consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-group"),
		Topics:  config.List("KAFKA_TOPICS", events.TopicUsers+","+events.TopicTransactions),
	}, handler)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		logger.Info("consumer starting", "group", config.String("KAFKA_GROUP_ID", "notification-group"))
		_ = eventConsumer.Run(ctx)
		logger.Info("consumer stopped")
	}()

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	srv := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(httpx.Chain(mux,
			httpx.WithRequestID,
			httpx.WithAccessLog(logger),
		), "notification"),
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
	waitForConsumer(shutdownCtx, consumerDone, logger)
	logger.Info("notification service stopped")
}

func rulesFromEnv() (dispatch.Rules, error) {
	rules := dispatch.DefaultRules()
	rules.SecurityAddress = config.String("SECURITY_ALERT_EMAIL", rules.SecurityAddress)
	rules.OperationsAddress = config.String("OPERATIONS_EMAIL", rules.OperationsAddress)
	if v := strings.TrimSpace(config.String("HIGH_VALUE_THRESHOLD", "")); v != "" {
		threshold, err := decimal.NewFromString(v)
		if err != nil {
			return dispatch.Rules{}, err
		}
		rules.HighValueThreshold = threshold
	}
	return rules, nil
}

func waitForConsumer(ctx context.Context, done <-chan struct{}, logger *slog.Logger) {
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("consumer did not stop before shutdown deadline")
	}
}
