package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/payloads"
)

// Movement is the record handed to a Sink once the originating transaction
// has committed.
type Movement struct {
	EventID      uuid.UUID          `json:"event_id"`
	MovementType enums.MovementType `json:"movement_type"`
	ProductID    uuid.UUID          `json:"product_id"`
	LotID        uuid.UUID          `json:"lot_id"`
	LotCode      string             `json:"lot_code,omitempty"`
	WarehouseID  uuid.UUID          `json:"warehouse_id"`
	Quantity     decimal.Decimal    `json:"quantity"`
	ActorID      uuid.UUID          `json:"actor_id"`
	ReferenceID  uuid.UUID          `json:"reference_id"`
	DetailID     uuid.UUID          `json:"detail_id"`
	Value        *decimal.Decimal   `json:"value,omitempty"`
	Reason       string             `json:"reason,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// MovementFromEvent converts a decoded movement_recorded payload.
func MovementFromEvent(eventID uuid.UUID, event payloads.MovementRecordedEvent) Movement {
	return Movement{
		EventID:      eventID,
		MovementType: event.MovementType,
		ProductID:    event.ProductID,
		LotID:        event.LotID,
		LotCode:      event.LotCode,
		WarehouseID:  event.WarehouseID,
		Quantity:     event.Quantity,
		ActorID:      event.ActorID,
		ReferenceID:  event.ReferenceID,
		DetailID:     event.DetailID,
		Value:        event.Value,
		Reason:       event.Reason,
		OccurredAt:   event.OccurredAt.UTC(),
	}
}

func (m Movement) payload() (json.RawMessage, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
