package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateLot             OutboxAggregateType = "lot"
	AggregateProduct         OutboxAggregateType = "product"
	AggregateShrinkageReport OutboxAggregateType = "shrinkage_report"
)

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	switch a {
	case AggregateLot, AggregateProduct, AggregateShrinkageReport:
		return true
	}
	return false
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventMovementRecorded  OutboxEventType = "movement_recorded"
	EventShrinkageRejected OutboxEventType = "shrinkage_rejected"
	EventLowStockDetected  OutboxEventType = "low_stock_detected"
	EventLotExpiringSoon   OutboxEventType = "lot_expiring_soon"
)

// Aggregate returns the aggregate every event of this type is keyed on, or
// "" for an unknown type.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	switch e {
	case EventMovementRecorded, EventLotExpiringSoon:
		return AggregateLot
	case EventLowStockDetected:
		return AggregateProduct
	case EventShrinkageRejected:
		return AggregateShrinkageReport
	}
	return ""
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return e.Aggregate() != ""
}

// IsAlert reports whether the event is fanned out to subscribers rather than
// written to the audit sink.
func (e OutboxEventType) IsAlert() bool {
	return e.IsValid() && e != EventMovementRecorded
}
