package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/api/responses"
	"github.com/angelmondragon/warehouse-backend/api/validators"
	productsvc "github.com/angelmondragon/warehouse-backend/internal/products"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/logger"
)

type createProductRequest struct {
	SKU         string          `json:"sku" validate:"required,max=64"`
	Name        string          `json:"name" validate:"required,max=200"`
	Unit        string          `json:"unit" validate:"required"`
	UnitsPerLot int             `json:"units_per_lot" validate:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

func (r createProductRequest) toCreateInput() (productsvc.CreateProductInput, error) {
	unit, err := enums.ParseUnitOfMeasure(strings.TrimSpace(r.Unit))
	if err != nil {
		return productsvc.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return productsvc.CreateProductInput{
		SKU:         r.SKU,
		Name:        r.Name,
		Unit:        unit,
		UnitsPerLot: r.UnitsPerLot,
		UnitPrice:   r.UnitPrice,
		IsActive:    active,
	}, nil
}

type updateProductRequest struct {
	SKU         *string          `json:"sku,omitempty" validate:"omitempty,max=64"`
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Unit        *string          `json:"unit,omitempty"`
	UnitsPerLot *int             `json:"units_per_lot,omitempty" validate:"omitempty,min=1"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

func (r updateProductRequest) toUpdateInput() (productsvc.UpdateProductInput, error) {
	input := productsvc.UpdateProductInput{
		SKU:         r.SKU,
		Name:        r.Name,
		UnitsPerLot: r.UnitsPerLot,
		UnitPrice:   r.UnitPrice,
	}
	if r.Unit != nil {
		unit, err := enums.ParseUnitOfMeasure(strings.TrimSpace(*r.Unit))
		if err != nil {
			return productsvc.UpdateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit")
		}
		input.Unit = &unit
	}
	return input, nil
}

func (r updateProductRequest) hasFieldUpdates() bool {
	return r.SKU != nil || r.Name != nil || r.Unit != nil || r.UnitsPerLot != nil || r.UnitPrice != nil
}

type minimumStockRequest struct {
	WarehouseID string          `json:"warehouse_id" validate:"required,uuid"`
	ProductID   string          `json:"product_id" validate:"required,uuid"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gte=0"`
}

// AdminCreateProduct adds a product to the catalog.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

// AdminUpdateProduct applies a partial update. is_active toggles
// availability after any field changes are saved.
func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidParam(r, "id", "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.hasFieldUpdates() && payload.IsActive == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update"))
			return
		}

		var product *productsvc.ProductDTO
		if payload.hasFieldUpdates() {
			input, err := payload.toUpdateInput()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if product, err = svc.Update(r.Context(), actor, productID, input); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if payload.IsActive != nil {
			if product, err = svc.SetActive(r.Context(), actor, productID, *payload.IsActive); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminDeleteProduct removes a product that no lot references.
func AdminDeleteProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuidParam(r, "id", "product id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actor, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminSetMinimumStock upserts the low-stock threshold of a product in a
// warehouse.
func AdminSetMinimumStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload minimumStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warehouseID, err := parseUUID(payload.WarehouseID, "warehouse_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUID(payload.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		minimum, err := svc.SetMinimumStock(r.Context(), actor, warehouseID, productID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, minimum)
	}
}
