package inventory

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

func NotFound(entity string, id uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s not found", entity)).
		WithDetails(map[string]any{"entity": entity, "id": id.String()})
}

func DuplicatePlacement(warehouseID, lotID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeDuplicatePlacement, "lot is already placed").
		WithDetails(map[string]any{"warehouse_id": warehouseID.String(), "lot_id": lotID.String()})
}

func NotPlaced(warehouseID, lotID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotPlaced, "lot is not placed in this warehouse").
		WithDetails(map[string]any{"warehouse_id": warehouseID.String(), "lot_id": lotID.String()})
}

func InsufficientStock(lotID uuid.UUID, available, requested decimal.Decimal) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("lot %s has %s available, %s requested", lotID, available, requested)).
		WithDetails(map[string]any{
			"lot_id":    lotID.String(),
			"available": available.String(),
			"requested": requested.String(),
		})
}

// InvalidStateTransition carries the report's current state so callers can
// tell an already-approved report from a rejected one.
func InvalidStateTransition(current, target enums.ShrinkageStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, fmt.Sprintf("report is %s, cannot move to %s", current, target)).
		WithDetails(map[string]any{"current_state": string(current), "target_state": string(target)})
}

func Mismatch(lotID, lotProductID, productID uuid.UUID) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeMismatch, "product does not match lot").
		WithDetails(map[string]any{
			"lot_id":         lotID.String(),
			"lot_product_id": lotProductID.String(),
			"product_id":     productID.String(),
		})
}

func ExcessQuantity(lotID uuid.UUID, lost, before decimal.Decimal) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeExcessQuantity, fmt.Sprintf("quantity lost %s exceeds quantity before %s", lost, before)).
		WithDetails(map[string]any{
			"lot_id":          lotID.String(),
			"quantity_lost":   lost.String(),
			"quantity_before": before.String(),
		})
}

// Dependency wraps a persistence failure unless err already carries a code.
func Dependency(err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
