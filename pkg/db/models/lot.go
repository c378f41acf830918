package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Lot is one received batch of a product. Quantity is counted in product units.
type Lot struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	Code          string          `gorm:"column:code;not null"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
	ExpiresAt     *time.Time      `gorm:"column:expires_at;index"`
	PurchasePrice decimal.Decimal `gorm:"column:purchase_price;type:numeric(14,2);not null"`
	IsActive      bool            `gorm:"column:is_active;not null"`
	InactivatedAt *time.Time      `gorm:"column:inactivated_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Lot) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// InventoryPlacement binds a lot to the one warehouse holding it.
type InventoryPlacement struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID `gorm:"column:warehouse_id;type:uuid;not null;index"`
	LotID       uuid.UUID `gorm:"column:lot_id;type:uuid;not null;uniqueIndex:ux_inventory_placements_lot"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (p *InventoryPlacement) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// MinimumStock is the alert threshold for a product in a warehouse.
type MinimumStock struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	WarehouseID uuid.UUID       `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:ux_minimum_stock_levels_scope"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_minimum_stock_levels_scope"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(14,3);not null"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (MinimumStock) TableName() string { return "minimum_stock_levels" }

func (m *MinimumStock) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
