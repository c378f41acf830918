package lots

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

type clampRecorder interface {
	IncClamp()
}

// AdjustResult describes what Adjust did to a lot.
type AdjustResult struct {
	Before      decimal.Decimal
	After       decimal.Decimal
	Clamped     bool
	Activated   bool
	Deactivated bool
}

// Ledger is the only writer of lot quantities.
type Ledger struct {
	logg    *logger.Logger
	metrics clampRecorder
	now     func() time.Time
}

// NewLedger builds a ledger. logg and metrics may be nil.
func NewLedger(logg *logger.Logger, metrics clampRecorder) *Ledger {
	return &Ledger{
		logg:    logg,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Adjust adds delta to the lot's quantity, reconciles the active flag and
// persists the lot through repo. A deduction larger than the on-hand quantity
// is clamped to zero and logged; callers that must not overdraw check
// EnsureAvailable first.
func (l *Ledger) Adjust(ctx context.Context, repo Repository, lot *models.Lot, delta decimal.Decimal) (AdjustResult, error) {
	if lot == nil {
		return AdjustResult{}, errors.New("lot is required")
	}
	if repo == nil {
		return AdjustResult{}, errors.New("lot repository is required")
	}

	result := AdjustResult{Before: lot.Quantity}
	next := lot.Quantity.Add(delta)
	if next.IsNegative() {
		result.Clamped = true
		l.warnClamp(ctx, lot, delta)
		next = decimal.Zero
	}
	lot.Quantity = next
	result.After = next

	wasActive := lot.IsActive
	if ReconcileActivity(lot, l.now()) {
		result.Activated = !wasActive && lot.IsActive
		result.Deactivated = wasActive && !lot.IsActive
	}

	if err := repo.Save(ctx, lot); err != nil {
		return result, inventory.Dependency(err, "save lot")
	}
	return result, nil
}

func (l *Ledger) warnClamp(ctx context.Context, lot *models.Lot, delta decimal.Decimal) {
	if l.metrics != nil {
		l.metrics.IncClamp()
	}
	if l.logg == nil {
		return
	}
	logCtx := l.logg.WithFields(ctx, map[string]any{
		"lot_id":   lot.ID.String(),
		"quantity": lot.Quantity.String(),
		"delta":    delta.String(),
	})
	l.logg.Warn(logCtx, "lot deduction clamped at zero")
}

// ReconcileActivity derives the active flag from the quantity and reports
// whether anything changed. Calling it again without a quantity change is a
// no-op.
func ReconcileActivity(lot *models.Lot, now time.Time) bool {
	positive := lot.Quantity.IsPositive()
	switch {
	case !positive && lot.IsActive:
		lot.IsActive = false
		inactivated := now
		lot.InactivatedAt = &inactivated
		return true
	case positive && !lot.IsActive:
		lot.IsActive = true
		lot.InactivatedAt = nil
		return true
	default:
		return false
	}
}

// EnsureAvailable fails with INSUFFICIENT_STOCK when lot holds less than requested.
func EnsureAvailable(lot *models.Lot, requested decimal.Decimal) error {
	if lot.Quantity.LessThan(requested) {
		return inventory.InsufficientStock(lot.ID, lot.Quantity, requested)
	}
	return nil
}
