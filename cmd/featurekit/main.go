package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/featurekit/featurekit/internal/app"
	"github.com/featurekit/featurekit/internal/entitlement"
	"github.com/featurekit/featurekit/internal/features"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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
	auditLogger := shared.NewAuditLogger(dbpool)

	resolvedStore := entitlement.NewStore(redisClient, cfg.ResolvedTTL)
	fanout := entitlement.NewFanout(resolvedStore, logger, metrics)

	providerCache := cache.NewJSONCache(redisClient, cfg.ProviderCacheTTL, logger)
	catalogCache := cache.NewJSONCache(redisClient, cfg.CatalogCacheTTL, logger)

	featuresRepo := features.NewRepository(dbpool)
	featuresService := features.NewService(featuresRepo, catalogCache, auditLogger, logger)

	plansRepo := plans.NewRepository(dbpool)
	plansService := plans.NewService(plansRepo, providerCache, fanout, auditLogger, logger)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, providerCache, fanout, auditLogger, logger)

	overridesRepo := overrides.NewRepository(dbpool)
	overridesService := overrides.NewService(overridesRepo, fanout, auditLogger, logger)

	usageRepo := usage.NewRepository(dbpool)
	usageService := usage.NewService(usageRepo, fanout, auditLogger, logger)

	resolver := entitlement.NewService(entitlement.Providers{
		Roles:     rolesService,
		Overrides: overridesService,
		Plans:     plansService,
		Usage:     usageService,
	}, resolvedStore, logger, metrics)
	resolver.WithProviderTimeout(cfg.ProviderTimeout)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		EntitlementHandler: entitlement.NewHandler(logger, resolver),
		FeaturesHandler:    features.NewHandler(logger, featuresService),
		PlansHandler:       plans.NewHandler(logger, plansService),
		RolesHandler:       roles.NewHandler(logger, rolesService),
		OverridesHandler:   overrides.NewHandler(logger, overridesService),
		UsageHandler:       usage.NewHandler(logger, usageService),
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
