package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/api/responses"
	"github.com/angelmondragon/warehouse-backend/api/validators"
	"github.com/angelmondragon/warehouse-backend/internal/inventory"
	"github.com/angelmondragon/warehouse-backend/internal/shrinkage"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

type shrinkageRequest struct {
	WarehouseID *string                `json:"warehouse_id,omitempty"`
	Notes       *string                `json:"notes,omitempty"`
	Lines       []shrinkageLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type shrinkageLineRequest struct {
	LotID        string          `json:"lot_id" validate:"required,uuid"`
	ProductID    string          `json:"product_id" validate:"required,uuid"`
	Reason       string          `json:"reason,omitempty"`
	QuantityLost decimal.Decimal `json:"quantity_lost" validate:"gt=0"`
	Notes        *string         `json:"notes,omitempty"`
}

func (req shrinkageRequest) toInput(actor inventory.Actor) (shrinkage.SubmitInput, error) {
	warehouseID, err := resolveWarehouse(req.WarehouseID, actor)
	if err != nil {
		return shrinkage.SubmitInput{}, err
	}
	input := shrinkage.SubmitInput{
		WarehouseID: warehouseID,
		Notes:       sanitizeOptional(req.Notes),
		Lines:       make([]shrinkage.SubmitLine, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		lotID, err := parseUUID(line.LotID, "lot_id")
		if err != nil {
			return shrinkage.SubmitInput{}, err
		}
		productID, err := parseUUID(line.ProductID, "product_id")
		if err != nil {
			return shrinkage.SubmitInput{}, err
		}
		reason, err := enums.ParseShrinkageReason(strings.TrimSpace(line.Reason))
		if err != nil {
			return shrinkage.SubmitInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason")
		}
		input.Lines = append(input.Lines, shrinkage.SubmitLine{
			LotID:        lotID,
			ProductID:    productID,
			Reason:       reason,
			QuantityLost: line.QuantityLost,
			Notes:        sanitizeOptional(line.Notes),
		})
	}
	return input, nil
}

type resolutionRequest struct {
	Note *string `json:"note,omitempty"`
}

// SubmitShrinkage files a shrinkage report. Supervisors and admins are
// approved immediately.
func SubmitShrinkage(svc shrinkage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shrinkage service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shrinkageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Submit(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, report)
	}
}

func ListPendingShrinkage(svc shrinkage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListPending(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func GetShrinkage(svc shrinkage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "report id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func ApproveShrinkage(svc shrinkage.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveShrinkage(logg, func(r *http.Request, actor inventory.Actor, note *string) (*shrinkage.ReportDTO, error) {
		id, err := uuidParam(r, "id", "report id")
		if err != nil {
			return nil, err
		}
		return svc.Approve(r.Context(), actor, id, note)
	})
}

func RejectShrinkage(svc shrinkage.Service, logg *logger.Logger) http.HandlerFunc {
	return resolveShrinkage(logg, func(r *http.Request, actor inventory.Actor, note *string) (*shrinkage.ReportDTO, error) {
		id, err := uuidParam(r, "id", "report id")
		if err != nil {
			return nil, err
		}
		return svc.Reject(r.Context(), actor, id, note)
	})
}

type resolveFunc func(r *http.Request, actor inventory.Actor, note *string) (*shrinkage.ReportDTO, error)

// resolveShrinkage accepts an empty body or {"note": "..."}.
func resolveShrinkage(logg *logger.Logger, resolve resolveFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload resolutionRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		report, err := resolve(r, actor, sanitizeOptional(payload.Note))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

// AdminReverseShrinkage deletes a report, restoring stock for approved ones.
func AdminReverseShrinkage(svc shrinkage.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := uuidParam(r, "id", "report id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Reverse(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
