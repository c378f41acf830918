package lots

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

type savingRepo struct {
	Repository
	saved   []models.Lot
	saveErr error
}

func (r *savingRepo) Save(_ context.Context, lot *models.Lot) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, *lot)
	return nil
}

type clampCounter struct{ count int }

func (c *clampCounter) IncClamp() { c.count++ }

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestReconcileActivityIsIdempotent(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	lot := &models.Lot{ID: uuid.New(), Quantity: decimal.Zero, IsActive: true}

	if !ReconcileActivity(lot, now) {
		t.Fatal("expected first reconcile to deactivate")
	}
	if lot.IsActive || lot.InactivatedAt == nil || !lot.InactivatedAt.Equal(now) {
		t.Fatalf("unexpected lot state %+v", lot)
	}

	later := now.Add(time.Hour)
	if ReconcileActivity(lot, later) {
		t.Fatal("second reconcile should be a no-op")
	}
	if !lot.InactivatedAt.Equal(now) {
		t.Fatalf("inactivation timestamp should not move, got %v", lot.InactivatedAt)
	}

	lot.Quantity = qty(8)
	if !ReconcileActivity(lot, later) {
		t.Fatal("expected reactivation")
	}
	if !lot.IsActive || lot.InactivatedAt != nil {
		t.Fatalf("expected active lot with cleared timestamp, got %+v", lot)
	}
	if ReconcileActivity(lot, later) {
		t.Fatal("reconcile on an active positive lot should be a no-op")
	}
}

func TestAdjustDeductsToZeroAndDeactivates(t *testing.T) {
	repo := &savingRepo{}
	ledger := NewLedger(nil, nil)
	lot := &models.Lot{ID: uuid.New(), Quantity: qty(5), IsActive: true}

	result, err := ledger.Adjust(context.Background(), repo, lot, qty(-5))
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if !lot.Quantity.IsZero() || lot.IsActive || lot.InactivatedAt == nil {
		t.Fatalf("expected empty inactive lot, got %+v", lot)
	}
	if !result.Deactivated || result.Activated || result.Clamped {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected one save, got %d", len(repo.saved))
	}
}

func TestAdjustClampsOverDeductionAndLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	counter := &clampCounter{}
	ledger := NewLedger(logg, counter)
	lot := &models.Lot{ID: uuid.New(), Quantity: qty(3), IsActive: true}

	result, err := ledger.Adjust(context.Background(), &savingRepo{}, lot, qty(-7))
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if !result.Clamped || !lot.Quantity.IsZero() {
		t.Fatalf("expected clamp to zero, got %+v lot=%s", result, lot.Quantity)
	}
	if counter.count != 1 {
		t.Fatalf("expected clamp metric, got %d", counter.count)
	}
	if !bytes.Contains(buf.Bytes(), []byte("lot deduction clamped at zero")) || !bytes.Contains(buf.Bytes(), []byte(lot.ID.String())) {
		t.Fatalf("expected clamp warning with lot id, got %s", buf.String())
	}
}

func TestAdjustRestoresInactiveLot(t *testing.T) {
	inactivated := time.Now().Add(-time.Hour)
	lot := &models.Lot{ID: uuid.New(), Quantity: decimal.Zero, IsActive: false, InactivatedAt: &inactivated}

	result, err := NewLedger(nil, nil).Adjust(context.Background(), &savingRepo{}, lot, qty(8))
	if err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if !lot.Quantity.Equal(qty(8)) || !lot.IsActive || lot.InactivatedAt != nil {
		t.Fatalf("expected restored active lot, got %+v", lot)
	}
	if !result.Activated {
		t.Fatalf("expected activation flag, got %+v", result)
	}
}

func TestAdjustSurfacesSaveFailure(t *testing.T) {
	lot := &models.Lot{ID: uuid.New(), Quantity: qty(2), IsActive: true}
	_, err := NewLedger(nil, nil).Adjust(context.Background(), &savingRepo{saveErr: errors.New("db down")}, lot, qty(-1))
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestEnsureAvailable(t *testing.T) {
	lot := &models.Lot{ID: uuid.New(), Quantity: qty(4)}
	if err := EnsureAvailable(lot, qty(4)); err != nil {
		t.Fatalf("exact quantity should pass: %v", err)
	}
	if err := EnsureAvailable(lot, decimal.RequireFromString("4.001")); !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestSortedUnique(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	got := SortedUnique([]uuid.UUID{a, uuid.Nil, b, a})
	if len(got) != 2 || got[0] != b || got[1] != a {
		t.Fatalf("unexpected order %v", got)
	}
}
