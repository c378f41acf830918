package enums

import "fmt"

// ShrinkageReason categorizes why stock was lost.
type ShrinkageReason string

const (
	ShrinkageReasonBreakage   ShrinkageReason = "breakage"
	ShrinkageReasonExpired    ShrinkageReason = "expired"
	ShrinkageReasonTheft      ShrinkageReason = "theft"
	ShrinkageReasonCountError ShrinkageReason = "count_error"
	ShrinkageReasonOther      ShrinkageReason = "other"
)

var validShrinkageReasons = []ShrinkageReason{
	ShrinkageReasonBreakage,
	ShrinkageReasonExpired,
	ShrinkageReasonTheft,
	ShrinkageReasonCountError,
	ShrinkageReasonOther,
}

func (r ShrinkageReason) IsValid() bool {
	for _, candidate := range validShrinkageReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseShrinkageReason converts raw input into ShrinkageReason. Empty input
// maps to ShrinkageReasonOther.
func ParseShrinkageReason(value string) (ShrinkageReason, error) {
	if value == "" {
		return ShrinkageReasonOther, nil
	}
	for _, candidate := range validShrinkageReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shrinkage reason %q", value)
}
