package risk

import (
	"math"
)

// PositionSizes splits a risk budget across the plan's entries so that a full
// stop-out of every entry loses accountBalance * riskPercent / 100.
// Returned quantities follow the entry allocations.
func (p Plan) PositionSizes(accountBalance, riskPercent float64) []float64 {
	if accountBalance <= 0 || riskPercent <= 0 || len(p.Entries) == 0 {
		return nil
	}

	// Risk amount in quote currency
	riskAmount := accountBalance * (riskPercent / 100)

	// Loss per unit of total quantity, weighted by allocation
	lossPerUnit := 0.0
	for _, e := range p.Entries {
		lossPerUnit += e.AllocationPercent / 100 * math.Abs(e.EntryPrice-p.StopLoss)
	}
	if lossPerUnit == 0 {
		return nil
	}

	total := riskAmount / lossPerUnit
	sizes := make([]float64, len(p.Entries))
	for i, e := range p.Entries {
		sizes[i] = total * e.AllocationPercent / 100
	}
	return sizes
}

// Notional returns the quote value of the sizes at their entry prices
func (p Plan) Notional(sizes []float64) float64 {
	total := 0.0
	for i, q := range sizes {
		if i < len(p.Entries) {
			total += q * p.Entries[i].EntryPrice
		}
	}
	return total
}
