package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/warehouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/warehouse-backend/pkg/errors"
)

func TestActorScope(t *testing.T) {
	warehouse := uuid.New()
	other := uuid.New()

	unscoped := Actor{UserID: uuid.New(), Role: enums.MemberRoleSupervisor}
	if err := unscoped.RequireWarehouse(warehouse); err != nil {
		t.Fatalf("unscoped actor should reach any warehouse: %v", err)
	}

	scoped := Actor{UserID: uuid.New(), Role: enums.MemberRoleSupervisor, WarehouseID: &warehouse}
	if err := scoped.RequireWarehouse(warehouse); err != nil {
		t.Fatalf("scoped actor should reach its warehouse: %v", err)
	}
	if err := scoped.RequireWarehouse(other); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for other warehouse, got %v", err)
	}

	if err := (Actor{Role: enums.MemberRoleAdmin}).Validate(); !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized without user, got %v", err)
	}
	if err := (Actor{UserID: uuid.New(), Role: "owner"}).Validate(); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for unknown role, got %v", err)
	}
	if err := scoped.RequireAdmin(); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("supervisor is not admin, got %v", err)
	}
}

func TestErrorConstructorsCarryCodesAndDetails(t *testing.T) {
	lot := uuid.New()
	cases := []struct {
		name string
		err  *pkgerrors.Error
		code pkgerrors.Code
	}{
		{"not found", NotFound("lot", lot), pkgerrors.CodeNotFound},
		{"duplicate", DuplicatePlacement(uuid.New(), lot), pkgerrors.CodeDuplicatePlacement},
		{"not placed", NotPlaced(uuid.New(), lot), pkgerrors.CodeNotPlaced},
		{"insufficient", InsufficientStock(lot, decimal.NewFromInt(1), decimal.NewFromInt(2)), pkgerrors.CodeInsufficientStock},
		{"transition", InvalidStateTransition(enums.ShrinkageStatusApproved, enums.ShrinkageStatusRejected), pkgerrors.CodeInvalidStateTransition},
		{"mismatch", Mismatch(lot, uuid.New(), uuid.New()), pkgerrors.CodeMismatch},
		{"excess", ExcessQuantity(lot, decimal.NewFromInt(3), decimal.NewFromInt(2)), pkgerrors.CodeExcessQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code() != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, tc.err.Code())
			}
			if tc.err.Details() == nil {
				t.Fatalf("expected details")
			}
		})
	}

	details := InvalidStateTransition(enums.ShrinkageStatusApproved, enums.ShrinkageStatusApproved).Details().(map[string]any)
	if details["current_state"] != "approved" {
		t.Fatalf("expected current state in details, got %v", details)
	}
}
