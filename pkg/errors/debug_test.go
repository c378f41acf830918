package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpExtractsPgxError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_inventory_placements_lot", TableName: "inventory_placements"}
	err := Wrap(CodeDuplicatePlacement, fmt.Errorf("insert placement: %w", pgErr), "lot is already placed")

	d := Dump(err)
	if d.Code != CodeDuplicatePlacement {
		t.Fatalf("expected duplicate placement code, got %s", d.Code)
	}
	if d.PGCode != "23505" || d.PGConstraint != "ux_inventory_placements_lot" {
		t.Fatalf("unexpected pg fields: %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}

	fields := d.Fields()
	if fields["pg_table"] != "inventory_placements" {
		t.Fatalf("expected pg_table field, got %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty values must be omitted: %v", fields)
	}
}

func TestDumpExtractsPqError(t *testing.T) {
	err := fmt.Errorf("goose up: %w", &pq.Error{Code: "42P07", Table: "lots", Message: "relation already exists"})
	d := Dump(err)
	if d.PGCode != "42P07" || d.PGTable != "lots" {
		t.Fatalf("unexpected pq fields: %+v", d)
	}
	if d.Code != "" {
		t.Fatalf("untyped error must not carry a code, got %s", d.Code)
	}
}

func TestDumpPlainError(t *testing.T) {
	d := Dump(stdErrors.New("boom"))
	fields := d.Fields()
	if fields["error"] != "boom" {
		t.Fatalf("unexpected error field %v", fields["error"])
	}
	if _, ok := fields["error_chain"]; ok {
		t.Fatalf("single-link chain should be omitted")
	}
	if got := Dump(nil); got.TopMessage != "" {
		t.Fatalf("expected empty dump for nil")
	}
}
