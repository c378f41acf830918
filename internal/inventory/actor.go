package inventory

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
	"github.com/angelmondragon/warehouse-backend/pkg/outbox"
)

// Actor is the authenticated user performing an inventory operation.
// WarehouseID is nil for users not scoped to a single warehouse.
type Actor struct {
	UserID      uuid.UUID
	Role        enums.MemberRole
	WarehouseID *uuid.UUID
}

// Validate rejects anonymous actors and unknown roles.
func (a Actor) Validate() error {
	if a.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor is required")
	}
	if !a.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}
	return nil
}

// CanAccess reports whether the actor's scope covers warehouseID.
func (a Actor) CanAccess(warehouseID uuid.UUID) bool {
	return a.WarehouseID == nil || *a.WarehouseID == warehouseID
}

// RequireWarehouse validates the actor and checks the warehouse scope.
func (a Actor) RequireWarehouse(warehouseID uuid.UUID) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if !a.CanAccess(warehouseID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "warehouse outside of actor scope").
			WithDetails(map[string]any{"warehouse_id": warehouseID.String()})
	}
	return nil
}

// RequireAdmin validates the actor and requires the admin role.
func (a Actor) RequireAdmin() error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Role != enums.MemberRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

// Ref converts the actor into the outbox envelope form.
func (a Actor) Ref() *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID:      a.UserID,
		WarehouseID: a.WarehouseID,
		Role:        string(a.Role),
	}
}
