package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/pkg/enums"
)

const (
	// QuantityScale is the number of decimal places stored for lot quantities.
	QuantityScale = 3
	// MoneyScale is the number of decimal places stored for prices and values.
	MoneyScale = 2
)

// FitsQuantityScale reports whether q can be stored without losing digits.
func FitsQuantityScale(q decimal.Decimal) bool {
	return q.Equal(q.Truncate(QuantityScale))
}

// Product is a catalog entry received in lots of UnitsPerLot units.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SKU         string              `gorm:"column:sku;not null;uniqueIndex:ux_products_sku"`
	Name        string              `gorm:"column:name;not null"`
	Unit        enums.UnitOfMeasure `gorm:"column:unit;type:varchar(16);not null"`
	UnitsPerLot int                 `gorm:"column:units_per_lot;not null"`
	UnitPrice   decimal.Decimal     `gorm:"column:unit_price;type:numeric(14,2);not null"`
	IsActive    bool                `gorm:"column:is_active;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// LotValue returns unit_price × units_per_lot × quantity rounded to cents,
// the precision it is stored at.
func (p Product) LotValue(quantity decimal.Decimal) decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.UnitsPerLot))).Mul(quantity).Round(MoneyScale)
}
