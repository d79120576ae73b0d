package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/featurekit/featurekit/internal/app"
	"github.com/featurekit/featurekit/internal/entitlement"
	jobmetrics "github.com/featurekit/featurekit/internal/jobs"
	"github.com/featurekit/featurekit/internal/observability"
	"github.com/featurekit/featurekit/internal/overrides"
	"github.com/featurekit/featurekit/internal/plans"
	"github.com/featurekit/featurekit/internal/platform/cache"
	"github.com/featurekit/featurekit/internal/platform/db"
	"github.com/featurekit/featurekit/internal/roles"
	"github.com/featurekit/featurekit/internal/shared"
	"github.com/featurekit/featurekit/internal/usage"
	"github.com/featurekit/featurekit/jobs"
)

type warmAdapter struct {
	resolver *entitlement.Service
}

func (w warmAdapter) Warm(ctx context.Context, userID, orgID int64, planID *int64) error {
	_, err := w.resolver.Resolve(ctx, userID, orgID, planID)
	return err
}

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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	resolvedStore := entitlement.NewStore(redisClient, cfg.ResolvedTTL)
	fanout := entitlement.NewFanout(resolvedStore, logger, metrics)
	providerCache := cache.NewJSONCache(redisClient, cfg.ProviderCacheTTL, logger)

	plansService := plans.NewService(plans.NewRepository(pool), providerCache, fanout, auditLogger, logger)
	rolesService := roles.NewService(roles.NewRepository(pool), providerCache, fanout, auditLogger, logger)
	overridesService := overrides.NewService(overrides.NewRepository(pool), fanout, auditLogger, logger)
	usageService := usage.NewService(usage.NewRepository(pool), fanout, auditLogger, logger)

	resolver := entitlement.NewService(entitlement.Providers{
		Roles:     rolesService,
		Overrides: overridesService,
		Plans:     plansService,
		Usage:     usageService,
	}, resolvedStore, logger, metrics)
	resolver.WithProviderTimeout(cfg.ProviderTimeout)

	jm := jobmetrics.NewMetrics(nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskUsageReset, Handler: jobs.NewUsageResetHandler(usageService, jm, logger)},
			{Type: jobs.TaskOverrideSweep, Handler: jobs.NewOverrideSweepHandler(overridesService, jm, logger)},
			{Type: jobs.TaskWarmup, Handler: jobs.NewWarmupHandler(warmAdapter{resolver: resolver}, jm, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 0 1 * *", Task: jobs.NewUsageResetTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 * * * *", Task: jobs.NewOverrideSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
