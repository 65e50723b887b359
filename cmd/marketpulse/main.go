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

	"github.com/hibiken/asynq"

	"github.com/marketpulse/marketpulse/internal/app"
	"github.com/marketpulse/marketpulse/internal/metrics"
	"github.com/marketpulse/marketpulse/internal/observability"
	"github.com/marketpulse/marketpulse/internal/platform/cache"
	"github.com/marketpulse/marketpulse/internal/platform/db"
	"github.com/marketpulse/marketpulse/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dsn, dsnSource := cfg.ResolveDSN()
	logger.Info("resolved postgres dsn", slog.String("source", dsnSource))

	pool, err := db.New(ctx, dsn, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	repo := metrics.NewRepository(pool)
	tracker := metrics.NewRunTracker(redisClient, cfg.RunStatusTTL)
	tracer := metrics.NewTracer(repo, repo, logger)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("queue inspector close", slog.Any("error", err))
		}
	}()

	obs := observability.NewMetrics()
	metricsHandler := metrics.NewHandler(logger, queueClient, tracker, tracer)
	jobsHandler := jobs.NewHandler(inspector, logger)
	router := app.NewRouter(cfg, app.MiddlewareConfig{Logger: logger, Config: cfg, Metrics: obs}, metricsHandler, jobsHandler, obs)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
