package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFitsQuantityScale(t *testing.T) {
	cases := map[string]bool{
		"1":      true,
		"0.125":  true,
		"2.5000": true,
		"0.0001": false,
		"3.1415": false,
	}
	for raw, want := range cases {
		assert.Equal(t, want, FitsQuantityScale(decimal.RequireFromString(raw)), raw)
	}
}

func TestLotValueRoundsToCents(t *testing.T) {
	product := Product{UnitPrice: decimal.RequireFromString("0.33"), UnitsPerLot: 1}

	got := product.LotValue(decimal.RequireFromString("0.333"))

	assert.Equal(t, "0.11", got.StringFixed(MoneyScale))
	assert.Equal(t, int32(-MoneyScale), got.Exponent())
}
