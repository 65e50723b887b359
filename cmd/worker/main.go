package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

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
		slog.Default().Info("test mode detected, skipping worker startup")
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
	calc := metrics.NewCalculator(repo, logger)
	svc := metrics.NewService(repo, repo, calc, logger)
	tracker := metrics.NewRunTracker(redisClient, cfg.RunStatusTTL)
	obs := observability.NewMetrics()

	var cron []jobs.CronRegistration
	for _, integrationID := range cfg.CronIntegrations {
		task, err := jobs.NewRecalculateMetricsTask(jobs.RecalculateMetricsPayload{IntegrationID: integrationID})
		if err != nil {
			logger.Error("build cron task", slog.String("integration_id", integrationID), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.CronSpec, Task: task, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeRecalculateMetrics, Handler: jobs.NewRecalculateMetricsHandler(svc, tracker, obs, logger)},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
