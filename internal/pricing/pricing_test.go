package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateDiscountAndBonus(t *testing.T) {
	// price=100, discount=10%, buy 2 get 1 free, qty 3:
	// one full group, one free unit, two chargeable at 90 each.
	q := Calculate(100, 10, 2, 1, 3)

	assert.Equal(t, 1, q.FreeUnits)
	assert.Equal(t, 2, q.ChargeableQty)
	assert.InDelta(t, 180.0, q.LineTotal, 1e-9)
	assert.InDelta(t, 60.0, q.EffectiveUnitPrice, 1e-9)
}

func TestCalculateNoBonus(t *testing.T) {
	q := Calculate(50, 0, 0, 0, 4)

	assert.Equal(t, 0, q.FreeUnits)
	assert.Equal(t, 4, q.ChargeableQty)
	assert.InDelta(t, 200.0, q.LineTotal, 1e-9)
	assert.InDelta(t, 50.0, q.EffectiveUnitPrice, 1e-9)
}

func TestCalculateDiscountOnly(t *testing.T) {
	q := Calculate(200, 25, 0, 0, 2)

	assert.InDelta(t, 300.0, q.LineTotal, 1e-9)
	assert.InDelta(t, 150.0, q.EffectiveUnitPrice, 1e-9)
}

func TestCalculateBonusBelowGroupSize(t *testing.T) {
	// qty below the group size earns nothing for free
	q := Calculate(100, 0, 3, 1, 3)

	assert.Equal(t, 0, q.FreeUnits)
	assert.Equal(t, 3, q.ChargeableQty)
	assert.InDelta(t, 300.0, q.LineTotal, 1e-9)
}

func TestCalculateMultipleGroups(t *testing.T) {
	// two full groups of buy 2 get 1
	q := Calculate(10, 0, 2, 1, 7)

	assert.Equal(t, 2, q.FreeUnits)
	assert.Equal(t, 5, q.ChargeableQty)
	assert.InDelta(t, 50.0, q.LineTotal, 1e-9)
}

func TestCalculateFullDiscount(t *testing.T) {
	q := Calculate(80, 100, 0, 0, 3)

	assert.InDelta(t, 0.0, q.LineTotal, 1e-9)
	assert.InDelta(t, 0.0, q.EffectiveUnitPrice, 1e-9)
}

func TestCalculateIdempotent(t *testing.T) {
	first := Calculate(99.99, 12.5, 4, 2, 13)
	second := Calculate(99.99, 12.5, 4, 2, 13)

	assert.Equal(t, first, second)
}
