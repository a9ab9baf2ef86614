package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/flashmart/flashmart-backend/api/routes"
	"github.com/flashmart/flashmart-backend/internal/admin"
	"github.com/flashmart/flashmart-backend/internal/counters"
	"github.com/flashmart/flashmart-backend/internal/holds"
	"github.com/flashmart/flashmart-backend/internal/inventory"
	"github.com/flashmart/flashmart-backend/internal/lock"
	"github.com/flashmart/flashmart-backend/internal/products"
	"github.com/flashmart/flashmart-backend/internal/throttle"
	"github.com/flashmart/flashmart-backend/pkg/config"
	"github.com/flashmart/flashmart-backend/pkg/db"
	"github.com/flashmart/flashmart-backend/pkg/logger"
	"github.com/flashmart/flashmart-backend/pkg/migrate"
	"github.com/flashmart/flashmart-backend/pkg/redis"
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

	productRepo := products.NewRepository(dbClient.DB())

	holdService, err := holds.NewService(
		holds.NewRepository(dbClient.DB()),
		inventoryRepo,
		accounting,
		productRepo,
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

	productService, err := products.NewService(productRepo, accounting)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	adminService, err := admin.NewService(admin.NewRepository(dbClient.DB()), productRepo, inventoryRepo, counterService)
	if err != nil {
		logg.Error(context.Background(), "failed to create admin service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, holdService, productService, adminService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
