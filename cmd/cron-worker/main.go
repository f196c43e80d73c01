package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/neferdidi/boba-backend/internal/cron"
	"github.com/neferdidi/boba-backend/internal/cycles"
	"github.com/neferdidi/boba-backend/internal/discounts"
	"github.com/neferdidi/boba-backend/internal/settings"
	"github.com/neferdidi/boba-backend/pkg/config"
	"github.com/neferdidi/boba-backend/pkg/db"
	"github.com/neferdidi/boba-backend/pkg/logger"
	"github.com/neferdidi/boba-backend/pkg/metrics"
	"github.com/neferdidi/boba-backend/pkg/migrate"
	"github.com/neferdidi/boba-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var lock cron.Lock = cron.NewLocalLock()
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create cron lock", err)
			os.Exit(1)
		}
		lock = redisLock
	} else {
		logg.Warn(context.Background(), "redis not configured; cron lock is process-local")
	}

	settingsRepo := settings.NewRepository(dbClient.DB())
	cycleService, err := cycles.NewService(cycles.ServiceParams{
		Repo:     cycles.NewRepository(dbClient.DB()),
		Rules:    discounts.NewRepository(dbClient.DB()),
		Settings: settingsRepo,
		TxRunner: dbClient,
		Logger:   logg,
		Metrics:  metrics.NewOrderingMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cycle service", err)
		os.Exit(1)
	}

	var jobs []cron.Job
	if cfg.Ordering.WindowEnabled() {
		loc, err := cfg.Ordering.Location()
		if err != nil {
			logg.Error(context.Background(), "failed to resolve ordering timezone", err)
			os.Exit(1)
		}
		windowJob, err := cron.NewOrderingWindowJob(cron.OrderingWindowJobParams{
			Logger:    logg,
			Lifecycle: cycleService,
			Flag:      settingsRepo,
			OpenAt:    cfg.Ordering.OpenAt,
			CloseAt:   cfg.Ordering.CloseAt,
			Location:  loc,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create ordering window job", err)
			os.Exit(1)
		}
		jobs = append(jobs, windowJob)
	}
	reconcileJob, err := cron.NewCycleTotalReconcileJob(logg, cycleService)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}
	jobs = append(jobs, reconcileJob)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(jobs...),
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(jobs),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
