package migrate

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/db"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

func TestMaybeRunDevMigratesSQLiteFromModels(t *testing.T) {
	dsn := "file:migrate_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	client := db.NewFromConn(conn)
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true, AutoMigrate: true},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	if err := MaybeRunDev(context.Background(), cfg, logg, client); err != nil {
		t.Fatalf("MaybeRunDev: %v", err)
	}
	for _, table := range []string{"lots", "inventory_placements", "shrinkage_reports", "audit_records", "outbox_events"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}
}

func TestMaybeRunDevSkipsOutsideDev(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}
	if err := MaybeRunDev(context.Background(), cfg, nil, nil); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
