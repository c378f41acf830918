package enums

import "testing"

func TestShrinkageStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ShrinkageStatus
		allowed  bool
	}{
		{ShrinkageStatusPending, ShrinkageStatusApproved, true},
		{ShrinkageStatusPending, ShrinkageStatusRejected, true},
		{ShrinkageStatusPending, ShrinkageStatusPending, false},
		{ShrinkageStatusApproved, ShrinkageStatusRejected, false},
		{ShrinkageStatusApproved, ShrinkageStatusApproved, false},
		{ShrinkageStatusRejected, ShrinkageStatusApproved, false},
		{ShrinkageStatusRejected, ShrinkageStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
	if ShrinkageStatusPending.IsTerminal() {
		t.Fatalf("pending must not be terminal")
	}
}

func TestParseShrinkageReasonDefaultsToOther(t *testing.T) {
	got, err := ParseShrinkageReason("")
	if err != nil || got != ShrinkageReasonOther {
		t.Fatalf("expected other, got %s (%v)", got, err)
	}
	if _, err := ParseShrinkageReason("flood"); err == nil {
		t.Fatalf("expected error for unknown reason")
	}
}
