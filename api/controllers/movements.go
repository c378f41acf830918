package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/api/responses"
	"github.com/angelmondragon/warehouse-backend/api/validators"
	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/internal/movements"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

type inflowRequest struct {
	WarehouseID *string             `json:"warehouse_id,omitempty"`
	SupplierID  string              `json:"supplier_id" validate:"required,uuid"`
	ReceivedAt  *string             `json:"received_at,omitempty"`
	Reference   *string             `json:"reference,omitempty" validate:"omitempty,max=120"`
	Notes       *string             `json:"notes,omitempty"`
	Lines       []inflowLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type inflowLineRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Code      string  `json:"code" validate:"required,max=64"`
	LotCount  int     `json:"lot_count" validate:"required,min=1"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

func (req inflowRequest) toInput(actor inventory.Actor) (movements.InflowInput, error) {
	warehouseID, err := resolveWarehouse(req.WarehouseID, actor)
	if err != nil {
		return movements.InflowInput{}, err
	}
	supplierID, err := parseUUID(req.SupplierID, "supplier_id")
	if err != nil {
		return movements.InflowInput{}, err
	}
	receivedAt, err := parseOptionalTime(req.ReceivedAt, "received_at")
	if err != nil {
		return movements.InflowInput{}, err
	}

	input := movements.InflowInput{
		WarehouseID: warehouseID,
		SupplierID:  supplierID,
		ReceivedAt:  receivedAt,
		Reference:   sanitizeOptional(req.Reference),
		Notes:       sanitizeOptional(req.Notes),
		Lines:       make([]movements.InflowLine, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		productID, err := parseUUID(line.ProductID, "product_id")
		if err != nil {
			return movements.InflowInput{}, err
		}
		expiresAt, err := parseOptionalTime(line.ExpiresAt, "expires_at")
		if err != nil {
			return movements.InflowInput{}, err
		}
		input.Lines = append(input.Lines, movements.InflowLine{
			ProductID: productID,
			Code:      strings.TrimSpace(line.Code),
			LotCount:  line.LotCount,
			ExpiresAt: expiresAt,
		})
	}
	return input, nil
}

type outflowRequest struct {
	WarehouseID *string              `json:"warehouse_id,omitempty"`
	CustomerID  *string              `json:"customer_id,omitempty"`
	IssuedAt    *string              `json:"issued_at,omitempty"`
	Reference   *string              `json:"reference,omitempty" validate:"omitempty,max=120"`
	Notes       *string              `json:"notes,omitempty"`
	Lines       []outflowLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type outflowLineRequest struct {
	LotID    string          `json:"lot_id" validate:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

func (req outflowRequest) toInput(actor inventory.Actor) (movements.OutflowInput, error) {
	warehouseID, err := resolveWarehouse(req.WarehouseID, actor)
	if err != nil {
		return movements.OutflowInput{}, err
	}
	customerID, err := parseOptionalUUID(req.CustomerID, "customer_id")
	if err != nil {
		return movements.OutflowInput{}, err
	}
	issuedAt, err := parseOptionalTime(req.IssuedAt, "issued_at")
	if err != nil {
		return movements.OutflowInput{}, err
	}

	input := movements.OutflowInput{
		WarehouseID: warehouseID,
		CustomerID:  customerID,
		IssuedAt:    issuedAt,
		Reference:   sanitizeOptional(req.Reference),
		Notes:       sanitizeOptional(req.Notes),
		Lines:       make([]movements.OutflowLine, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		lotID, err := parseUUID(line.LotID, "lot_id")
		if err != nil {
			return movements.OutflowInput{}, err
		}
		input.Lines = append(input.Lines, movements.OutflowLine{LotID: lotID, Quantity: line.Quantity})
	}
	return input, nil
}

// resolveWarehouse falls back to the actor's own warehouse when the body
// omits one.
func resolveWarehouse(raw *string, actor inventory.Actor) (uuid.UUID, error) {
	if raw != nil && strings.TrimSpace(*raw) != "" {
		return parseUUID(*raw, "warehouse_id")
	}
	if actor.WarehouseID != nil {
		return *actor.WarehouseID, nil
	}
	return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse_id is required")
}

// RecordInflow receives new lots into a warehouse.
func RecordInflow(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload inflowRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inflow, err := svc.RecordInflow(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, inflow)
	}
}

// RecordOutflow dispatches stock from placed lots.
func RecordOutflow(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movement service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload outflowRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outflow, err := svc.RecordOutflow(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, outflow)
	}
}

func GetInflow(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "inflow id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inflow, err := svc.GetInflow(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inflow)
	}
}

func GetOutflow(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "outflow id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		outflow, err := svc.GetOutflow(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outflow)
	}
}

// AdminReverseInflow deletes an inflow together with the lots it created.
func AdminReverseInflow(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "inflow id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ReverseInflow(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminReverseOutflow deletes an outflow and restores the stock it took.
func AdminReverseOutflow(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "outflow id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ReverseOutflow(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
