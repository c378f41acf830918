package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/warehouse-backend/pkg/enums"
)

// AuditRecord is the append-only local copy of a movement acknowledged by the
// audit sink.
type AuditRecord struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID string             `gorm:"column:transaction_id;not null;uniqueIndex:ux_audit_records_transaction"`
	EventID       uuid.UUID          `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_audit_records_event"`
	Sink          string             `gorm:"column:sink;type:varchar(16);not null"`
	MovementType  enums.MovementType `gorm:"column:movement_type;type:varchar(24);not null;index"`
	ProductID     uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	LotID         uuid.UUID          `gorm:"column:lot_id;type:uuid;not null"`
	WarehouseID   uuid.UUID          `gorm:"column:warehouse_id;type:uuid;not null"`
	Quantity      decimal.Decimal    `gorm:"column:quantity;type:numeric(14,3);not null"`
	ActorID       uuid.UUID          `gorm:"column:actor_id;type:uuid;not null"`
	Payload       json.RawMessage    `gorm:"column:payload;type:jsonb;not null"`
	OccurredAt    time.Time          `gorm:"column:occurred_at;not null;index"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (r *AuditRecord) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
