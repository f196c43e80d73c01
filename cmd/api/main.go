package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/neferdidi/boba-backend/api/routes"
	"github.com/neferdidi/boba-backend/internal/cycles"
	"github.com/neferdidi/boba-backend/internal/discounts"
	"github.com/neferdidi/boba-backend/internal/orders"
	"github.com/neferdidi/boba-backend/internal/pricing"
	"github.com/neferdidi/boba-backend/internal/settings"
	"github.com/neferdidi/boba-backend/pkg/config"
	"github.com/neferdidi/boba-backend/pkg/db"
	"github.com/neferdidi/boba-backend/pkg/logger"
	"github.com/neferdidi/boba-backend/pkg/metrics"
	"github.com/neferdidi/boba-backend/pkg/migrate"
	"github.com/neferdidi/boba-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			_ = dbClient.Close()
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; rate limiting, idempotency and rule cache disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderingMetrics := metrics.NewOrderingMetrics(registry)

	cycleRepo := cycles.NewRepository(dbClient.DB())
	settingsRepo := settings.NewRepository(dbClient.DB())
	rules := discounts.NewRepository(dbClient.DB())

	var previewRules discounts.Source = rules
	if redisClient != nil && cfg.FeatureFlags.CacheDiscountRule {
		cached, err := discounts.NewCachedSource(rules, redisClient, cfg.Ordering.DiscountRuleTTL, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create discount rule cache", err)
			os.Exit(1)
		}
		previewRules = cached
	}

	cycleService, err := cycles.NewService(cycles.ServiceParams{
		Repo:             cycleRepo,
		Rules:            rules,
		Settings:         settingsRepo,
		TxRunner:         dbClient,
		Logger:           logg,
		Metrics:          orderingMetrics,
		PreviewRules:     previewRules,
		MaxVisibleCycles: cfg.Ordering.MaxVisibleCycles,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cycle service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(dbClient.DB()),
		Cycles:   cycleRepo,
		Lookup:   cycleService,
		Settings: settingsRepo,
		Pricing:  pricing.NewEngine(dbClient.DB(), logg),
		TxRunner: dbClient,
		Logger:   logg,
		Metrics:  orderingMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, cycleService, orderService),
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	closeErr := server.Shutdown(shutdownCtx)
	if redisClient != nil {
		closeErr = multierr.Append(closeErr, redisClient.Close())
	}
	closeErr = multierr.Append(closeErr, dbClient.Close())
	if closeErr != nil {
		logg.Error(shutdownCtx, "error during shutdown", closeErr)
		exitCode = 1
	}
	logg.Info(shutdownCtx, "api server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
