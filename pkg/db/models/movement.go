package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Inflow groups the lots received from a supplier in one delivery.
type Inflow struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID      `gorm:"column:warehouse_id;type:uuid;not null;index"`
	SupplierID  uuid.UUID      `gorm:"column:supplier_id;type:uuid;not null"`
	ReceivedBy  uuid.UUID      `gorm:"column:received_by;type:uuid;not null"`
	ReceivedAt  time.Time      `gorm:"column:received_at;not null"`
	Reference   *string        `gorm:"column:reference"`
	Notes       *string        `gorm:"column:notes"`
	Details     []InflowDetail `gorm:"foreignKey:InflowID"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (i *Inflow) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// InflowDetail records the single lot created for one inflow line.
type InflowDetail struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	InflowID  uuid.UUID       `gorm:"column:inflow_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	LotID     uuid.UUID       `gorm:"column:lot_id;type:uuid;not null;index"`
	LotCount  int             `gorm:"column:lot_count;not null"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
	TotalCost decimal.Decimal `gorm:"column:total_cost;type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (d *InflowDetail) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// Outflow groups stock issued from one warehouse in a single dispatch.
type Outflow struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID       `gorm:"column:warehouse_id;type:uuid;not null;index"`
	CustomerID  *uuid.UUID      `gorm:"column:customer_id;type:uuid"`
	IssuedBy    uuid.UUID       `gorm:"column:issued_by;type:uuid;not null"`
	IssuedAt    time.Time       `gorm:"column:issued_at;not null"`
	Reference   *string         `gorm:"column:reference"`
	Notes       *string         `gorm:"column:notes"`
	Details     []OutflowDetail `gorm:"foreignKey:OutflowID"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (o *Outflow) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OutflowDetail stores the exact quantity deducted from a lot so reversal can
// restore it.
type OutflowDetail struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OutflowID uuid.UUID       `gorm:"column:outflow_id;type:uuid;not null;index"`
	LotID     uuid.UUID       `gorm:"column:lot_id;type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (d *OutflowDetail) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
