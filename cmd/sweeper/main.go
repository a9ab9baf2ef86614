package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flashmart/flashmart-backend/internal/counters"
	"github.com/flashmart/flashmart-backend/internal/holds"
	"github.com/flashmart/flashmart-backend/internal/inventory"
	"github.com/flashmart/flashmart-backend/internal/lock"
	"github.com/flashmart/flashmart-backend/internal/products"
	"github.com/flashmart/flashmart-backend/internal/sweeper"
	"github.com/flashmart/flashmart-backend/internal/throttle"
	"github.com/flashmart/flashmart-backend/pkg/config"
	"github.com/flashmart/flashmart-backend/pkg/db"
	"github.com/flashmart/flashmart-backend/pkg/logger"
	"github.com/flashmart/flashmart-backend/pkg/metrics"
	"github.com/flashmart/flashmart-backend/pkg/migrate"
	"github.com/flashmart/flashmart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweeper"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "sweeper",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
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

	lockService, err := lock.NewService(redisClient, cfg.Sale.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create lock service", err)
		os.Exit(1)
	}

	counterService, err := counters.NewService(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create counter service", err)
		os.Exit(1)
	}

	throttleGuard, err := throttle.NewGuard(redisClient, counterService, logg, cfg.Throttle)
	if err != nil {
		logg.Error(context.Background(), "failed to create throttle guard", err)
		os.Exit(1)
	}

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	accounting, err := inventory.NewAccounting(inventoryRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock accounting", err)
		os.Exit(1)
	}

	holdService, err := holds.NewService(
		holds.NewRepository(dbClient.DB()),
		inventoryRepo,
		accounting,
		products.NewRepository(dbClient.DB()),
		lockService,
		throttleGuard,
		counterService,
		dbClient,
		logg,
		cfg.Sale.HoldTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create hold service", err)
		os.Exit(1)
	}

	expiryJob, err := sweeper.NewHoldExpiryJob(sweeper.HoldExpiryJobParams{
		Logger: logg,
		Holds:  holdService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create hold expiry job", err)
		os.Exit(1)
	}

	service, err := sweeper.NewService(sweeper.ServiceParams{
		Logger:   logg,
		Registry: sweeper.NewRegistry(expiryJob),
		Metrics:  metrics.NewSweeperJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Sweeper.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Sweeper.Interval.String(),
	})
	logg.Info(ctx, "starting hold expiry sweeper")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweeper stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweeper shutting down gracefully")
}
