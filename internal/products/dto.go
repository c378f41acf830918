package product

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU         string
	Name        string
	Unit        enums.UnitOfMeasure
	UnitsPerLot int
	UnitPrice   decimal.Decimal
	IsActive    bool
}

func (in CreateProductInput) validate() error {
	if strings.TrimSpace(in.SKU) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !in.Unit.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid unit of measure")
	}
	if err := validateUnitsPerLot(in.UnitsPerLot); err != nil {
		return err
	}
	return validateUnitPrice(in.UnitPrice)
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	SKU         *string
	Name        *string
	Unit        *enums.UnitOfMeasure
	UnitsPerLot *int
	UnitPrice   *decimal.Decimal
}

func (in UpdateProductInput) validate() error {
	if in.SKU != nil && strings.TrimSpace(*in.SKU) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku cannot be blank")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
	}
	if in.Unit != nil && !in.Unit.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid unit of measure")
	}
	if in.UnitsPerLot != nil {
		if err := validateUnitsPerLot(*in.UnitsPerLot); err != nil {
			return err
		}
	}
	if in.UnitPrice != nil {
		return validateUnitPrice(*in.UnitPrice)
	}
	return nil
}

func validateUnitsPerLot(value int) error {
	if value <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "units_per_lot must be positive")
	}
	return nil
}

func validateUnitPrice(value decimal.Decimal) error {
	if value.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit_price cannot be negative")
	}
	return nil
}

func applyUpdateToProduct(product *models.Product, input UpdateProductInput) {
	if input.SKU != nil {
		product.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Unit != nil {
		product.Unit = *input.Unit
	}
	if input.UnitsPerLot != nil {
		product.UnitsPerLot = *input.UnitsPerLot
	}
	if input.UnitPrice != nil {
		product.UnitPrice = *input.UnitPrice
	}
}

// ProductDTO is the API representation of a catalog product.
type ProductDTO struct {
	ID          uuid.UUID           `json:"id"`
	SKU         string              `json:"sku"`
	Name        string              `json:"name"`
	Unit        enums.UnitOfMeasure `json:"unit"`
	UnitsPerLot int                 `json:"units_per_lot"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
	LotValue    decimal.Decimal     `json:"lot_value"`
	IsActive    bool                `json:"is_active"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func NewProductDTO(p *models.Product) *ProductDTO {
	return &ProductDTO{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Unit:        p.Unit,
		UnitsPerLot: p.UnitsPerLot,
		UnitPrice:   p.UnitPrice,
		LotValue:    p.LotValue(decimal.NewFromInt(1)),
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// MinimumStockDTO is the stored alert threshold.
type MinimumStockDTO struct {
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
