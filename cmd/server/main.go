package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quotearchive/quotesearch/internal/config"
	"github.com/quotearchive/quotesearch/internal/database"
	"github.com/quotearchive/quotesearch/internal/middleware"
	"github.com/quotearchive/quotesearch/internal/observability"
	"github.com/quotearchive/quotesearch/internal/server"
	"github.com/quotearchive/quotesearch/internal/tenant"
)

func main() {
	ctx := context.Background()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync() //nolint:errcheck

	// Observability
	telemetry, err := observability.NewTelemetry(ctx, observability.Config{
		Environment:   cfg.Telemetry.Environment,
		OTLPEndpoint:  cfg.Telemetry.OTLPEndpoint,
		SamplingRate:  cfg.Telemetry.SamplingRate,
		EnableTracing: cfg.Telemetry.EnableTracing,
		EnableMetrics: cfg.Telemetry.EnableMetrics,
	})
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down telemetry", zap.Error(err))
		}
	}()

	// Tenant registry
	registry, err := tenant.LoadRegistry(cfg.Tenants.Dir, logger)
	if err != nil {
		logger.Fatal("failed to load tenant registry", zap.Error(err))
	}

	// Tenant connection pools and store
	pools := database.NewPoolManager(database.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnIdleTime: time.Duration(cfg.Database.ConnIdleSec) * time.Second,
		ConnectTimeout:  time.Duration(cfg.Database.ConnectTimeoutSec) * time.Second,
	}, logger)
	defer pools.Close()

	store := database.NewStore(pools, logger, telemetry.Metrics)
	handler := server.NewHandler(store, logger, telemetry.Metrics)

	// Router with tenant resolution and optional rate limiting
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK")) //nolint:errcheck
	})
	if cfg.Telemetry.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close() //nolint:errcheck
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("per-tenant rate limiting enabled",
			zap.String("addr", cfg.Redis.Addr),
			zap.Int("limit_per_minute", cfg.Redis.RateLimit))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTenantResolver(registry).Handler)
		if redisClient != nil {
			r.Use(middleware.NewRateLimiter(redisClient, logger, cfg.Redis.RateLimit).Handler)
		}
		r.Mount("/", handler.Routes())
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting quotesearch server", zap.Int("port", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}
