package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validLong() []ScaledEntry {
	ladder := func() []TakeProfit {
		return []TakeProfit{
			{Price: 103, AllocationPercent: 40},
			{Price: 105, AllocationPercent: 30},
			{Price: 107, AllocationPercent: 30},
		}
	}
	return []ScaledEntry{
		{EntryPrice: 101, AllocationPercent: 50, OrderKind: Market, StopLoss: 99, TakeProfits: ladder()},
		{EntryPrice: 100.5, AllocationPercent: 25, OrderKind: Limit, StopLoss: 99, TakeProfits: ladder()},
		{EntryPrice: 100, AllocationPercent: 25, OrderKind: Limit, StopLoss: 99, TakeProfits: ladder()},
	}
}

func TestValidateEntries(t *testing.T) {
	assert.NoError(t, ValidateEntries(Long, validLong()))

	tests := []struct {
		name   string
		mutate func([]ScaledEntry)
		want   error
	}{
		{"allocation sum", func(e []ScaledEntry) { e[2].AllocationPercent = 20 }, ErrAllocation},
		{"different stop", func(e []ScaledEntry) { e[1].StopLoss = 98 }, ErrSharedRisk},
		{"different ladder", func(e []ScaledEntry) { e[2].TakeProfits[0].Price = 103.5 }, ErrSharedRisk},
		{"entry order", func(e []ScaledEntry) { e[1].EntryPrice, e[2].EntryPrice = 100, 100.5 }, ErrEntryOrder},
		{"stop between entries", func(e []ScaledEntry) {
			for i := range e {
				e[i].StopLoss = 100.2
			}
		}, ErrStopCrossesEntry},
		{"stop on deepest entry", func(e []ScaledEntry) {
			for i := range e {
				e[i].StopLoss = 100
			}
		}, ErrStopCrossesEntry},
		{"tp not monotonic", func(e []ScaledEntry) {
			for i := range e {
				e[i].TakeProfits[2].Price = 105
			}
		}, ErrTakeProfitOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := validLong()
			tt.mutate(entries)
			assert.ErrorIs(t, ValidateEntries(Long, entries), tt.want)
		})
	}
}

func TestValidateEntriesShort(t *testing.T) {
	ladder := []TakeProfit{{Price: 97, AllocationPercent: 40}, {Price: 95, AllocationPercent: 30}, {Price: 93, AllocationPercent: 30}}
	entries := []ScaledEntry{
		{EntryPrice: 99, AllocationPercent: 50, StopLoss: 101, TakeProfits: ladder},
		{EntryPrice: 99.5, AllocationPercent: 25, StopLoss: 101, TakeProfits: ladder},
		{EntryPrice: 100, AllocationPercent: 25, StopLoss: 101, TakeProfits: ladder},
	}
	assert.NoError(t, ValidateEntries(Short, entries))
	assert.ErrorIs(t, ValidateEntries(Long, entries), ErrEntryOrder)
}

func TestNormalizeEntriesSortsAndRescales(t *testing.T) {
	entries := []ScaledEntry{
		{EntryPrice: 100, AllocationPercent: 30},
		{EntryPrice: 101, AllocationPercent: 60},
		{EntryPrice: 100.5, AllocationPercent: 30},
	}

	out := NormalizeEntries(Long, entries)

	assert.Equal(t, []float64{101, 100.5, 100}, []float64{out[0].EntryPrice, out[1].EntryPrice, out[2].EntryPrice})
	assert.InDelta(t, 50, out[0].AllocationPercent, 1e-9)
	assert.InDelta(t, 25, out[2].AllocationPercent, 1e-9)
	assert.Equal(t, 100.0, entries[0].EntryPrice, "input must not be reordered")
}
