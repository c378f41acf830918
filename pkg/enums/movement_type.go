package enums

import "fmt"

// MovementType classifies audited stock movements.
type MovementType string

const (
	MovementInflow            MovementType = "inflow"
	MovementOutflow           MovementType = "outflow"
	MovementShrinkage         MovementType = "merma"
	MovementShrinkageApproval MovementType = "merma_aprobacion"
)

var validMovementTypes = []MovementType{
	MovementInflow,
	MovementOutflow,
	MovementShrinkage,
	MovementShrinkageApproval,
}

func (m MovementType) String() string {
	return string(m)
}

func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
