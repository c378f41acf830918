package enums

import "testing"

func TestMemberRoleAtLeast(t *testing.T) {
	cases := []struct {
		role MemberRole
		min  MemberRole
		want bool
	}{
		{MemberRoleAdmin, MemberRoleSupervisor, true},
		{MemberRoleSupervisor, MemberRoleSupervisor, true},
		{MemberRoleWorker, MemberRoleSupervisor, false},
		{MemberRoleWorker, MemberRoleWorker, true},
		{MemberRole("owner"), MemberRoleWorker, false},
	}
	for _, tc := range cases {
		if got := tc.role.AtLeast(tc.min); got != tc.want {
			t.Fatalf("%s.AtLeast(%s): expected %v, got %v", tc.role, tc.min, tc.want, got)
		}
	}
	resolvers := map[MemberRole]bool{
		MemberRoleWorker:     false,
		MemberRoleSupervisor: true,
		MemberRoleAdmin:      false,
	}
	for role, want := range resolvers {
		if got := role.CanResolveShrinkage(); got != want {
			t.Fatalf("%s.CanResolveShrinkage(): expected %v, got %v", role, want, got)
		}
	}
}

func TestParseMemberRoleNormalizes(t *testing.T) {
	got, err := ParseMemberRole(" Supervisor ")
	if err != nil || got != MemberRoleSupervisor {
		t.Fatalf("expected supervisor, got %q err=%v", got, err)
	}
	if _, err := ParseMemberRole("guest"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestOutboxEventAggregate(t *testing.T) {
	want := map[OutboxEventType]OutboxAggregateType{
		EventMovementRecorded:  AggregateLot,
		EventLotExpiringSoon:   AggregateLot,
		EventLowStockDetected:  AggregateProduct,
		EventShrinkageRejected: AggregateShrinkageReport,
	}
	for event, aggregate := range want {
		got := event.Aggregate()
		if got != aggregate {
			t.Fatalf("%s: expected %s, got %s", event, aggregate, got)
		}
		if !got.IsValid() {
			t.Fatalf("%s: aggregate %s not valid", event, got)
		}
	}
	if OutboxEventType("stock_counted").IsValid() {
		t.Fatalf("unknown event type reported valid")
	}
	if EventMovementRecorded.IsAlert() || !EventLowStockDetected.IsAlert() {
		t.Fatalf("alert classification wrong")
	}
}
