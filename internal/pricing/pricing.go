package pricing

// Quote is the chargeable breakdown for one order line.
type Quote struct {
	LineTotal          float64
	EffectiveUnitPrice float64
	ChargeableQty      int
	FreeUnits          int
}

// Calculate computes a line's chargeable total from the unit price, a
// percentage discount and a "buy N get M free" bonus rule. Free units come in
// fixed-size groups of bonusBuy+bonusFree. EffectiveUnitPrice is what gets
// persisted on the order item, so historic orders stay reproducible when the
// catalog changes.
//
// Inputs are assumed validated upstream: discount in [0,100], bonus
// quantities non-negative and supplied as a pair, qty > 0.
func Calculate(unitPrice, discountPercent float64, bonusBuy, bonusFree, qty int) Quote {
	discountedUnit := unitPrice * (1 - discountPercent/100)

	freeUnits := 0
	if bonusBuy > 0 && bonusFree > 0 {
		group := bonusBuy + bonusFree
		freeUnits = (qty / group) * bonusFree
	}

	chargeable := qty - freeUnits
	if chargeable < 0 {
		chargeable = 0
	}

	lineTotal := discountedUnit * float64(chargeable)

	effective := 0.0
	if qty > 0 {
		effective = lineTotal / float64(qty)
	}

	return Quote{
		LineTotal:          lineTotal,
		EffectiveUnitPrice: effective,
		ChargeableQty:      chargeable,
		FreeUnits:          freeUnits,
	}
}
