package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/warehouse-backend/api"
	"github.com/angelmondragon/warehouse-backend/api/routes"
	"github.com/angelmondragon/warehouse-backend/internal/audit"
	"github.com/angelmondragon/warehouse-backend/internal/lots"
	"github.com/angelmondragon/warehouse-backend/internal/movements"
	"github.com/angelmondragon/warehouse-backend/internal/placements"
	product "github.com/angelmondragon/warehouse-backend/internal/products"
	"github.com/angelmondragon/warehouse-backend/internal/shrinkage"
	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/db"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	"github.com/angelmondragon/warehouse-backend/pkg/metrics"
	"github.com/angelmondragon/warehouse-backend/pkg/migrate"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
	"github.com/angelmondragon/warehouse-backend/pkg/redis"
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

	logg = logger.ForApp("api", cfg.App)

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

	registry := prometheus.DefaultRegisterer
	inventoryMetrics := metrics.NewInventoryMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	conn := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)
	lotRepo := lots.NewRepository(conn)
	ledger := lots.NewLedger(logg, inventoryMetrics)

	placementService, err := placements.NewService(conn)
	if err != nil {
		logg.Error(context.Background(), "failed to create placement service", err)
		os.Exit(1)
	}

	lotService, err := lots.NewService(lotRepo, placementService)
	if err != nil {
		logg.Error(context.Background(), "failed to create lot service", err)
		os.Exit(1)
	}

	movementService, err := movements.NewService(movements.ServiceParams{
		DB:         dbClient,
		Repo:       movements.NewRepository(conn),
		Lots:       lotRepo,
		Ledger:     ledger,
		Placements: placementService,
		Outbox:     outboxService,
		Metrics:    inventoryMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create movement service", err)
		os.Exit(1)
	}

	shrinkageService, err := shrinkage.NewService(shrinkage.ServiceParams{
		DB:         dbClient,
		Repo:       shrinkage.NewRepository(conn),
		Lots:       lotRepo,
		Ledger:     ledger,
		Placements: placementService,
		Outbox:     outboxService,
		Metrics:    inventoryMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shrinkage service", err)
		os.Exit(1)
	}

	auditService, err := audit.NewService(audit.NewRepository(conn))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	productService, err := product.NewService(product.NewRepository(conn), lotRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		httpMetrics,
		promhttp.Handler(),
		movementService,
		shrinkageService,
		lotService,
		auditService,
		productService,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.Serve(ctx, api.NewServer(cfg, router), logg); err != nil {
		logg.Error(ctx, "server error", err)
		os.Exit(1)
	}
}
