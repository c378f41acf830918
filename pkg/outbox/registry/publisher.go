package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/warehouse-backend/pkg/config"
	"github.com/angelmondragon/warehouse-backend/pkg/db/models"
	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox/payloads"
)

// Delivery selects how the relay hands an event off.
type Delivery string

const (
	// DeliveryAudit writes the movement to the audit sink and keeps the
	// returned transaction id.
	DeliveryAudit Delivery = "audit"
	// DeliveryPublish forwards the raw envelope to Topic.
	DeliveryPublish Delivery = "publish"
)

// EventDescriptor says where an event type goes and how its data decodes.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	Delivery      Delivery
	decode        func(json.RawMessage) (any, error)
}

// ResolvedEvent is a validated outbox row with its typed payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row the relay must park instead of retrying.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps err so the relay stops retrying.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes movements to the audit topic and every alert to
// the alerts topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing []error
	if cfg.AuditTopic == "" {
		missing = append(missing, errors.New("audit topic is required"))
	}
	if cfg.AlertsTopic == "" {
		missing = append(missing, errors.New("alerts topic is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	reg := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	reg.add(enums.EventMovementRecorded, decodeAs[payloads.MovementRecordedEvent])
	reg.add(enums.EventShrinkageRejected, decodeAs[payloads.ShrinkageRejectedEvent])
	reg.add(enums.EventLowStockDetected, decodeAs[payloads.LowStockDetectedEvent])
	reg.add(enums.EventLotExpiringSoon, decodeAs[payloads.LotExpiringSoonEvent])

	for eventType, desc := range reg.entries {
		desc.Topic, desc.Delivery = cfg.AuditTopic, DeliveryAudit
		if eventType.IsAlert() {
			desc.Topic, desc.Delivery = cfg.AlertsTopic, DeliveryPublish
		}
		reg.entries[eventType] = desc
	}
	return reg, nil
}

func (r *EventRegistry) add(eventType enums.OutboxEventType, decode func(json.RawMessage) (any, error)) {
	r.entries[eventType] = EventDescriptor{
		EventType:     eventType,
		AggregateType: eventType.Aggregate(),
		decode:        decode,
	}
}

func decodeAs[T any](data json.RawMessage) (any, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, nonRetryable("%s: %w", event.EventType, err)
	}
	payload, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
