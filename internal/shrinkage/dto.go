package shrinkage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

// SubmitInput is a validated shrinkage report request.
type SubmitInput struct {
	WarehouseID uuid.UUID
	Notes       *string
	Lines       []SubmitLine
}

// SubmitLine names the lot, the product the reporter believes it holds and
// the quantity lost.
type SubmitLine struct {
	LotID        uuid.UUID
	ProductID    uuid.UUID
	Reason       enums.ShrinkageReason
	QuantityLost decimal.Decimal
	Notes        *string
}

func (in SubmitInput) validate() error {
	if len(in.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shrinkage report requires at least one line")
	}
	for i, line := range in.Lines {
		if !line.QuantityLost.IsPositive() {
			return lineError(i, "quantity_lost must be positive")
		}
		if !models.FitsQuantityScale(line.QuantityLost) {
			return lineError(i, "quantity_lost allows at most 3 decimal places")
		}
		if !line.Reason.IsValid() {
			return lineError(i, "invalid shrinkage reason")
		}
	}
	return nil
}

func lineError(index int, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message).
		WithDetails(map[string]any{"line": index})
}

type ReportDTO struct {
	ID             uuid.UUID             `json:"id"`
	WarehouseID    uuid.UUID             `json:"warehouse_id"`
	ReportedBy     uuid.UUID             `json:"reported_by"`
	Status         enums.ShrinkageStatus `json:"status"`
	ResolvedBy     *uuid.UUID            `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time            `json:"resolved_at,omitempty"`
	ResolutionNote *string               `json:"resolution_note,omitempty"`
	Notes          *string               `json:"notes,omitempty"`
	TotalValue     decimal.Decimal       `json:"total_value"`
	CreatedAt      time.Time             `json:"created_at"`
	Details        []DetailDTO           `json:"details"`
}

type DetailDTO struct {
	ID             uuid.UUID             `json:"id"`
	LotID          uuid.UUID             `json:"lot_id"`
	ProductID      uuid.UUID             `json:"product_id"`
	Reason         enums.ShrinkageReason `json:"reason"`
	QuantityLost   decimal.Decimal       `json:"quantity_lost"`
	QuantityBefore decimal.Decimal       `json:"quantity_before"`
	Value          decimal.Decimal       `json:"value"`
	Notes          *string               `json:"notes,omitempty"`
}

// PendingList is one page of pending reports.
type PendingList struct {
	Items  []ReportDTO `json:"items"`
	Cursor string      `json:"cursor,omitempty"`
}

func reportDTO(report *models.ShrinkageReport) *ReportDTO {
	dto := &ReportDTO{
		ID:             report.ID,
		WarehouseID:    report.WarehouseID,
		ReportedBy:     report.ReportedBy,
		Status:         report.Status,
		ResolvedBy:     report.ResolvedBy,
		ResolvedAt:     report.ResolvedAt,
		ResolutionNote: report.ResolutionNote,
		Notes:          report.Notes,
		TotalValue:     report.TotalValue,
		CreatedAt:      report.CreatedAt,
		Details:        make([]DetailDTO, 0, len(report.Details)),
	}
	for _, detail := range report.Details {
		dto.Details = append(dto.Details, DetailDTO{
			ID:             detail.ID,
			LotID:          detail.LotID,
			ProductID:      detail.ProductID,
			Reason:         detail.Reason,
			QuantityLost:   detail.QuantityLost,
			QuantityBefore: detail.QuantityBefore,
			Value:          detail.Value,
			Notes:          detail.Notes,
		})
	}
	return dto
}
