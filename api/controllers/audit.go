package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/warehouse-backend/api/responses"
	"github.com/angelmondragon/warehouse-backend/api/validators"
	"github.com/angelmondragon/warehouse-backend/internal/audit"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

func auditFilter(r *http.Request) (audit.Filter, error) {
	var filter audit.Filter
	var err error
	if filter.ProductID, err = validators.ParseQueryUUID(r, "product_id"); err != nil {
		return filter, err
	}
	if filter.WarehouseID, err = validators.ParseQueryUUID(r, "warehouse_id"); err != nil {
		return filter, err
	}
	if filter.From, err = validators.ParseQueryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = validators.ParseQueryTime(r, "to"); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("movement_type")); raw != "" {
		movementType, parseErr := enums.ParseMovementType(raw)
		if parseErr != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid movement_type")
		}
		filter.MovementType = &movementType
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}
	return filter, nil
}

// AuditMovements pages through the movement audit trail.
func AuditMovements(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := auditFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.History(r.Context(), actor, filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AuditProductMovements pages through one product's audit trail.
func AuditProductMovements(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidParam(r, "productId", "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.HistoryByProduct(r.Context(), actor, productID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
