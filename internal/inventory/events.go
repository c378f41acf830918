package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/payloads"
)

// Movement describes one detail-level quantity change to be audited.
type Movement struct {
	Type        enums.MovementType
	Lot         *models.Lot
	WarehouseID uuid.UUID
	Quantity    decimal.Decimal
	ReferenceID uuid.UUID
	DetailID    uuid.UUID
	Value       *decimal.Decimal
	Reason      string
	OccurredAt  time.Time
}

// MovementEvent builds the movement_recorded outbox event for m.
func MovementEvent(actor Actor, m Movement) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventMovementRecorded,
		AggregateType: enums.AggregateLot,
		AggregateID:   m.Lot.ID,
		Actor:         actor.Ref(),
		OccurredAt:    m.OccurredAt,
		Data: payloads.MovementRecordedEvent{
			MovementType: m.Type,
			ProductID:    m.Lot.ProductID,
			LotID:        m.Lot.ID,
			LotCode:      m.Lot.Code,
			WarehouseID:  m.WarehouseID,
			Quantity:     m.Quantity,
			ActorID:      actor.UserID,
			ReferenceID:  m.ReferenceID,
			DetailID:     m.DetailID,
			Value:        m.Value,
			Reason:       m.Reason,
			OccurredAt:   m.OccurredAt,
		},
	}
}
