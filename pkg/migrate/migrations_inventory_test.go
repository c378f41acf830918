package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/warehouse-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestLotsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_lots")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS lots",
		"CONSTRAINT ck_lots_quantity CHECK (quantity >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_inventory_placements_lot ON inventory_placements (lot_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_minimum_stock_levels_scope",
		"DROP TABLE IF EXISTS lots",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestShrinkageMigrationRestrictsStatus(t *testing.T) {
	content := readMigration(t, "create_shrinkage")

	checks := []string{
		"CHECK (status IN ('pending', 'approved', 'rejected'))",
		"CHECK (quantity_lost > 0 AND quantity_lost <= quantity_before)",
		"FOREIGN KEY (report_id) REFERENCES shrinkage_reports(id) ON DELETE CASCADE",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAuditMigrationKeysTransactionID(t *testing.T) {
	content := readMigration(t, "create_outbox_and_audit")
	for _, sub := range []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_audit_records_transaction ON audit_records (transaction_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_audit_records_event ON audit_records (event_id)",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	source, err := migrate.Source("")
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	if err := migrate.Validate(source); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"20260101000000_first.sql":   "-- +goose Up\n-- +goose Down\n",
		"20260101000000_second.sql":  "-- +goose Up\n-- +goose Down\n",
		"20260102000000_no_down.sql": "-- +goose Up\n",
		"Bad Name.sql":               "-- +goose Up\n-- +goose Down\n",
		"README.md":                  "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	source, err := migrate.Source(dir)
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	err = migrate.Validate(source)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"already used by", "missing \"-- +goose Down\"", "Bad Name.sql"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestCreateSlugifiesName(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 1, 12, 30, 0, 0, time.UTC)
	path, err := migrate.Create(dir, "  Add Lot Notes!! v2", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260401123000_add_lot_notes_v2.sql" {
		t.Fatalf("unexpected file name %s", path)
	}
	if _, err := migrate.Create(dir, "add lot notes v2", now); err == nil {
		t.Fatal("expected an existing migration not to be overwritten")
	}
	if _, err := migrate.Create(dir, "!!!", now); err == nil {
		t.Fatal("expected an error for an empty slug")
	}
	source, _ := migrate.Source(dir)
	if err := migrate.Validate(source); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestSourceRejectsMissingDir(t *testing.T) {
	if _, err := migrate.Source(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for a missing dir")
	}
}
