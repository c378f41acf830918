package enums

import "fmt"

// UnitOfMeasure is how a product's units are counted.
type UnitOfMeasure string

const (
	UnitEach  UnitOfMeasure = "unit"
	UnitKilo  UnitOfMeasure = "kg"
	UnitLiter UnitOfMeasure = "liter"
	UnitBox   UnitOfMeasure = "box"
)

var validUnitsOfMeasure = []UnitOfMeasure{UnitEach, UnitKilo, UnitLiter, UnitBox}

func (u UnitOfMeasure) IsValid() bool {
	for _, candidate := range validUnitsOfMeasure {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUnitOfMeasure converts raw input into UnitOfMeasure.
func ParseUnitOfMeasure(value string) (UnitOfMeasure, error) {
	for _, candidate := range validUnitsOfMeasure {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid unit of measure %q", value)
}
