package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/pkg/enums"
)

// MovementRecordedEvent describes one committed change to a lot's quantity.
// ReferenceID points at the inflow, outflow, or shrinkage report that caused it.
type MovementRecordedEvent struct {
	MovementType enums.MovementType `json:"movement_type"`
	ProductID    uuid.UUID          `json:"product_id"`
	LotID        uuid.UUID          `json:"lot_id"`
	LotCode      string             `json:"lot_code"`
	WarehouseID  uuid.UUID          `json:"warehouse_id"`
	Quantity     decimal.Decimal    `json:"quantity"`
	ActorID      uuid.UUID          `json:"actor_id"`
	ReferenceID  uuid.UUID          `json:"reference_id"`
	DetailID     uuid.UUID          `json:"detail_id"`
	Value        *decimal.Decimal   `json:"value,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// ShrinkageRejectedEvent is emitted when a supervisor rejects a report.
type ShrinkageRejectedEvent struct {
	ReportID    uuid.UUID `json:"report_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	RejectedBy  uuid.UUID `json:"rejected_by"`
	Reason      string    `json:"reason,omitempty"`
	RejectedAt  time.Time `json:"rejected_at"`
}

// LowStockDetectedEvent flags a product under its configured minimum.
type LowStockDetectedEvent struct {
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	OnHand      decimal.Decimal `json:"on_hand"`
	Minimum     decimal.Decimal `json:"minimum"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// LotExpiringSoonEvent flags an active lot whose expiry falls inside the
// warning window.
type LotExpiringSoonEvent struct {
	LotID       uuid.UUID       `json:"lot_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	ExpiresAt   time.Time       `json:"expires_at"`
}
