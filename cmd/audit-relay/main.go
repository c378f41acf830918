package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/warehouse-backend/internal/audit"
	"github.com/angelmondragon/warehouse-backend/pkg/bigquery"
	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/db"
	"github.com/angelmondragon/warehouse-backend/pkg/instance"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	"github.com/angelmondragon/warehouse-backend/pkg/metrics"
	"github.com/angelmondragon/warehouse-backend/pkg/migrate"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/registry"
	"github.com/angelmondragon/warehouse-backend/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "audit-relay"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "audit-relay"

	logg = logger.ForApp("audit-relay", cfg.App)

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

	params := ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewInventoryMetrics(prometheus.DefaultRegisterer),
	}
	sinkDeps := audit.SinkDeps{Topic: cfg.PubSub.AuditTopic, Logger: logg}

	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
		params.PubSub = pubsubClient
		params.Alerts = pubsubClient
		sinkDeps.PubSub = pubsubClient
	}

	if cfg.Audit.Kind() == config.AuditSinkBigQuery {
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap bigquery", err)
			os.Exit(1)
		}
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery client", err)
			}
		}()
		sinkDeps.BigQuery = bqClient
	}

	sink, err := audit.NewSink(cfg.Audit, sinkDeps)
	if err != nil {
		logg.Error(context.Background(), "failed to build audit sink", err)
		os.Exit(1)
	}
	recorder, err := audit.NewRecorder(sink, audit.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build audit recorder", err)
		os.Exit(1)
	}
	params.Recorder = recorder

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	params.Registry = eventRegistry

	service, err := NewService(params)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit relay", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "audit-relay",
		"sink":        recorder.SinkName(),
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting audit relay")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "audit relay stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "audit relay shutting down gracefully")
}
