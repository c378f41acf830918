package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/pkg/enums"
)

// ShrinkageReport aggregates lost stock pending or past approval.
type ShrinkageReport struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID    uuid.UUID             `gorm:"column:warehouse_id;type:uuid;not null;index"`
	ReportedBy     uuid.UUID             `gorm:"column:reported_by;type:uuid;not null"`
	Status         enums.ShrinkageStatus `gorm:"column:status;type:varchar(16);not null;index"`
	ResolvedBy     *uuid.UUID            `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt     *time.Time            `gorm:"column:resolved_at"`
	ResolutionNote *string               `gorm:"column:resolution_note"`
	Notes          *string               `gorm:"column:notes"`
	TotalValue     decimal.Decimal       `gorm:"column:total_value;type:numeric(14,2);not null"`
	Details        []ShrinkageDetail     `gorm:"foreignKey:ReportID"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *ShrinkageReport) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// ShrinkageDetail is one lost quantity against a lot. ProductID mirrors the
// lot's product and is checked on write.
type ShrinkageDetail struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ReportID       uuid.UUID             `gorm:"column:report_id;type:uuid;not null;index"`
	LotID          uuid.UUID             `gorm:"column:lot_id;type:uuid;not null;index"`
	ProductID      uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	Reason         enums.ShrinkageReason `gorm:"column:reason;type:varchar(24);not null"`
	QuantityLost   decimal.Decimal       `gorm:"column:quantity_lost;type:numeric(14,3);not null"`
	QuantityBefore decimal.Decimal       `gorm:"column:quantity_before;type:numeric(14,3);not null"`
	Value          decimal.Decimal       `gorm:"column:value;type:numeric(14,2);not null"`
	Notes          *string               `gorm:"column:notes"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (d *ShrinkageDetail) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
