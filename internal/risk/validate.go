package risk

import (
	"fmt"
	"math"
	"sort"
)

const allocationTolerance = 1.0

// NormalizeEntries sorts entries for the side and rescales allocations that
// drifted from 100. Entries are returned as a new slice.
func NormalizeEntries(side Side, entries []ScaledEntry) []ScaledEntry {
	out := make([]ScaledEntry, len(entries))
	copy(out, entries)

	sort.SliceStable(out, func(i, j int) bool {
		if side == Short {
			return out[i].EntryPrice < out[j].EntryPrice
		}
		return out[i].EntryPrice > out[j].EntryPrice
	})

	total := 0.0
	for _, e := range out {
		total += e.AllocationPercent
	}
	if total > 0 && math.Abs(total-100) > allocationTolerance {
		for i := range out {
			out[i].AllocationPercent = out[i].AllocationPercent / total * 100
		}
	}
	return out
}

// ValidateEntries checks every invariant an emitted signal must hold
func ValidateEntries(side Side, entries []ScaledEntry) error {
	if len(entries) == 0 {
		return ErrNoEntries
	}

	total := 0.0
	for _, e := range entries {
		total += e.AllocationPercent
	}
	if math.Abs(total-100) > allocationTolerance {
		return fmt.Errorf("%w: entries sum to %.2f", ErrAllocation, total)
	}

	stop := entries[0].StopLoss
	ladder := entries[0].TakeProfits
	for i, e := range entries[1:] {
		if e.StopLoss != stop || !sameLadder(e.TakeProfits, ladder) {
			return fmt.Errorf("%w: entry %d", ErrSharedRisk, i+2)
		}
	}

	sign := side.Sign()
	for i := 1; i < len(entries); i++ {
		if (entries[i].EntryPrice-entries[i-1].EntryPrice)*sign > 0 {
			return fmt.Errorf("%w: entry %d at %.8f after %.8f", ErrEntryOrder, i+1, entries[i].EntryPrice, entries[i-1].EntryPrice)
		}
	}

	for i, e := range entries {
		if (e.EntryPrice-stop)*sign <= 0 {
			return fmt.Errorf("%w: stop %.8f vs entry %d at %.8f", ErrStopCrossesEntry, stop, i+1, e.EntryPrice)
		}
	}

	return validateLadder(side, entries[0].EntryPrice, ladder)
}

func validateLadder(side Side, entry float64, tps []TakeProfit) error {
	if len(tps) == 0 {
		return fmt.Errorf("%w: empty ladder", ErrTakeProfitOrder)
	}

	sign := side.Sign()
	prev := entry
	total := 0.0
	for i, tp := range tps {
		if (tp.Price-prev)*sign <= 0 {
			return fmt.Errorf("%w: tp%d at %.8f does not move beyond %.8f", ErrTakeProfitOrder, i+1, tp.Price, prev)
		}
		prev = tp.Price
		total += tp.AllocationPercent
	}
	if math.Abs(total-100) > allocationTolerance {
		return fmt.Errorf("%w: take-profits sum to %.2f", ErrAllocation, total)
	}
	return nil
}

func sameLadder(a, b []TakeProfit) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Price != b[i].Price || a[i].AllocationPercent != b[i].AllocationPercent {
			return false
		}
	}
	return true
}
