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
	"github.com/streamlinepay/platform/libs/httpx"
	otelx "github.com/streamlinepay/platform/libs/otel"
	"github.com/streamlinepay/platform/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
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

	upstreams, err := upstreamsFromEnv()
	if err != nil {
		logger.Error("invalid upstream url", "err", err)
		panic(err)
	}
	mux := runtime.NewBaseMuxWithReady()
	registerRoutes(mux, upstreams, otelhttp.NewTransport(http.DefaultTransport), logger)

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
	handler = otelhttp.NewHandler(handler, "gateway")
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
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		logger.Info("rate limiting enabled (redis)", "per_minute", limit, "redis_addr", addr)
		rl := httpx.NewRedisLimiter(rdb, limit, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl:gateway"))
		return httpx.RateLimit(rl, logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), func() { _ = rdb.Close() }
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", limit)
	return httpx.RateLimit(httpx.NewMemoryLimiter(limit, time.Minute), logger, true), func() {}
}
