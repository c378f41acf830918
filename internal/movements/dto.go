package movements

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

// InflowInput is a validated receipt of new lots from a supplier.
type InflowInput struct {
	WarehouseID uuid.UUID
	SupplierID  uuid.UUID
	ReceivedAt  *time.Time
	Reference   *string
	Notes       *string
	Lines       []InflowLine
}

// InflowLine creates one lot of LotCount × product.units_per_lot units.
type InflowLine struct {
	ProductID uuid.UUID
	Code      string
	LotCount  int
	ExpiresAt *time.Time
}

func (in InflowInput) validate() error {
	if len(in.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "inflow requires at least one line")
	}
	for i, line := range in.Lines {
		if line.LotCount <= 0 {
			return lineError(i, "lot_count must be positive")
		}
		if strings.TrimSpace(line.Code) == "" {
			return lineError(i, "lot code is required")
		}
	}
	return nil
}

// OutflowInput is a validated dispatch of stock from placed lots.
type OutflowInput struct {
	WarehouseID uuid.UUID
	CustomerID  *uuid.UUID
	IssuedAt    *time.Time
	Reference   *string
	Notes       *string
	Lines       []OutflowLine
}

type OutflowLine struct {
	LotID    uuid.UUID
	Quantity decimal.Decimal
}

func (in OutflowInput) validate() error {
	if len(in.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "outflow requires at least one line")
	}
	for i, line := range in.Lines {
		if !line.Quantity.IsPositive() {
			return lineError(i, "quantity must be positive")
		}
		if !models.FitsQuantityScale(line.Quantity) {
			return lineError(i, "quantity allows at most 3 decimal places")
		}
	}
	return nil
}

func lineError(index int, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(map[string]any{"line": index})
}

type InflowDTO struct {
	ID          uuid.UUID         `json:"id"`
	WarehouseID uuid.UUID         `json:"warehouse_id"`
	SupplierID  uuid.UUID         `json:"supplier_id"`
	ReceivedBy  uuid.UUID         `json:"received_by"`
	ReceivedAt  time.Time         `json:"received_at"`
	Reference   *string           `json:"reference,omitempty"`
	Notes       *string           `json:"notes,omitempty"`
	TotalCost   decimal.Decimal   `json:"total_cost"`
	Details     []InflowDetailDTO `json:"details"`
}

type InflowDetailDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	LotID     uuid.UUID       `json:"lot_id"`
	LotCount  int             `json:"lot_count"`
	Quantity  decimal.Decimal `json:"quantity"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

type OutflowDTO struct {
	ID          uuid.UUID          `json:"id"`
	WarehouseID uuid.UUID          `json:"warehouse_id"`
	CustomerID  *uuid.UUID         `json:"customer_id,omitempty"`
	IssuedBy    uuid.UUID          `json:"issued_by"`
	IssuedAt    time.Time          `json:"issued_at"`
	Reference   *string            `json:"reference,omitempty"`
	Notes       *string            `json:"notes,omitempty"`
	Details     []OutflowDetailDTO `json:"details"`
}

type OutflowDetailDTO struct {
	ID        uuid.UUID       `json:"id"`
	LotID     uuid.UUID       `json:"lot_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func inflowDTO(inflow *models.Inflow) *InflowDTO {
	dto := &InflowDTO{
		ID:          inflow.ID,
		WarehouseID: inflow.WarehouseID,
		SupplierID:  inflow.SupplierID,
		ReceivedBy:  inflow.ReceivedBy,
		ReceivedAt:  inflow.ReceivedAt,
		Reference:   inflow.Reference,
		Notes:       inflow.Notes,
		TotalCost:   decimal.Zero,
		Details:     make([]InflowDetailDTO, 0, len(inflow.Details)),
	}
	for _, detail := range inflow.Details {
		dto.TotalCost = dto.TotalCost.Add(detail.TotalCost)
		dto.Details = append(dto.Details, InflowDetailDTO{
			ID:        detail.ID,
			ProductID: detail.ProductID,
			LotID:     detail.LotID,
			LotCount:  detail.LotCount,
			Quantity:  detail.Quantity,
			TotalCost: detail.TotalCost,
		})
	}
	return dto
}

func outflowDTO(outflow *models.Outflow) *OutflowDTO {
	dto := &OutflowDTO{
		ID:          outflow.ID,
		WarehouseID: outflow.WarehouseID,
		CustomerID:  outflow.CustomerID,
		IssuedBy:    outflow.IssuedBy,
		IssuedAt:    outflow.IssuedAt,
		Reference:   outflow.Reference,
		Notes:       outflow.Notes,
		Details:     make([]OutflowDetailDTO, 0, len(outflow.Details)),
	}
	for _, detail := range outflow.Details {
		dto.Details = append(dto.Details, OutflowDetailDTO{
			ID:        detail.ID,
			LotID:     detail.LotID,
			ProductID: detail.ProductID,
			Quantity:  detail.Quantity,
		})
	}
	return dto
}
