package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists the models managed by this service, in dependency order.
func All() []any {
	return []any{
		&Warehouse{},
		&Supplier{},
		&Customer{},
		&Product{},
		&Lot{},
		&InventoryPlacement{},
		&MinimumStock{},
		&Inflow{},
		&InflowDetail{},
		&Outflow{},
		&OutflowDetail{},
		&ShrinkageReport{},
		&ShrinkageDetail{},
		&AuditRecord{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
