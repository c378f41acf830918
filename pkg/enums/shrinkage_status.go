package enums

// ShrinkageStatus is the lifecycle state of a shrinkage report.
type ShrinkageStatus string

const (
	ShrinkageStatusPending  ShrinkageStatus = "pending"
	ShrinkageStatusApproved ShrinkageStatus = "approved"
	ShrinkageStatusRejected ShrinkageStatus = "rejected"
)

var validShrinkageStatuses = []ShrinkageStatus{
	ShrinkageStatusPending,
	ShrinkageStatusApproved,
	ShrinkageStatusRejected,
}

func (s ShrinkageStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is one of the three known states.
func (s ShrinkageStatus) IsValid() bool {
	for _, candidate := range validShrinkageStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ShrinkageStatus) IsTerminal() bool {
	return s == ShrinkageStatusApproved || s == ShrinkageStatusRejected
}

// CanTransitionTo reports whether next is reachable from s. Only pending
// reports move, and only into a terminal state.
func (s ShrinkageStatus) CanTransitionTo(next ShrinkageStatus) bool {
	return s == ShrinkageStatusPending && next.IsTerminal()
}
