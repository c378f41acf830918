package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/db"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
	"github.com/angelmondragon/warehouse-backend/pkg/migrate"
)

type options struct {
	cmd      string
	dir      string
	name     string
	version  string
	embedded bool
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory on disk")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.BoolVar(&opts.embedded, "embedded", true, "use the migrations compiled into the binary instead of -dir")
	flag.Parse()

	sourceDir := opts.dir
	if opts.embedded {
		sourceDir = ""
	}
	source, err := migrate.Source(sourceDir)
	if err != nil && opts.cmd != "create" {
		fail("open migrations: %v", err)
	}

	// create and validate work on the source tree and need no config.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.Create(opts.dir, opts.name, time.Now())
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.Validate(source); err != nil {
			fail("migration validation failed:\n%v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.ForApp("migrate", cfg.App)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"cmd":      opts.cmd,
		"embedded": opts.embedded,
	})

	if cfg.DB.Driver == db.DriverSQLite {
		fail("sql migrations target postgres; sqlite databases are migrated from the models with WAREHOUSE_AUTO_MIGRATE")
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	migrator, err := migrate.New(sqlDB, source, logg)
	requireResource(ctx, logg, "migrator", err)

	logg.Info(ctx, "migrate ready")
	if err := run(ctx, migrator, opts); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration complete")
}

func run(ctx context.Context, m *migrate.Migrator, opts options) error {
	switch opts.cmd {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "redo":
		return m.Redo(ctx)
	case "status":
		return m.Status(ctx)
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
		return m.To(ctx, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value: %s", opts.cmd)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
