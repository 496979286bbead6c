package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/volatility"
)

func prices(p EntryPlan) []float64 {
	out := make([]float64, len(p.Levels))
	for i, l := range p.Levels {
		out[i] = l.Price
	}
	return out
}

// Overlapping bullish zones that sit too far below price fall back to offsets
func TestPlanEntriesFallsBackWhenZonesTooFar(t *testing.T) {
	fvgs := []analysis.Zone{{Low: 99, High: 101}}
	obs := []analysis.Zone{{Low: 98, High: 100}}

	plan, err := PlanEntries(Long, 105, obs, fvgs, volatility.RegimeNormal, DefaultEntryConfig())
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, plan.Zone.Source)
	require.Len(t, plan.Levels, 3)
	assert.InDelta(t, 105, plan.Levels[0].Price, 1e-9)
	assert.InDelta(t, 104.475, plan.Levels[1].Price, 1e-9)
	assert.InDelta(t, 103.95, plan.Levels[2].Price, 1e-9)
	assert.Equal(t, []OrderKind{Market, Limit, Limit}, []OrderKind{plan.Levels[0].OrderKind, plan.Levels[1].OrderKind, plan.Levels[2].OrderKind})
	assert.Equal(t, []float64{50, 25, 25}, []float64{plan.Levels[0].AllocationPercent, plan.Levels[1].AllocationPercent, plan.Levels[2].AllocationPercent})
}

func TestPlanEntriesZoneSelection(t *testing.T) {
	tests := []struct {
		name   string
		side   Side
		price  float64
		obs    []analysis.Zone
		fvgs   []analysis.Zone
		regime volatility.Regime
		source ZoneSource
		want   []float64
	}{
		{
			name:   "overlapping zones merge",
			side:   Long,
			price:  101.5,
			obs:    []analysis.Zone{{Low: 100, High: 100.8}},
			fvgs:   []analysis.Zone{{Low: 100.5, High: 101.2}},
			regime: volatility.RegimeNormal,
			source: SourceMerged,
			want:   []float64{101.2, 100.6, 100.0},
		},
		{
			name:   "separate zones prefer fvg",
			side:   Long,
			price:  101.5,
			obs:    []analysis.Zone{{Low: 99, High: 99.5}},
			fvgs:   []analysis.Zone{{Low: 100.5, High: 101}},
			regime: volatility.RegimeNormal,
			source: SourceFVG,
			want:   []float64{101, 100.75, 100.5},
		},
		{
			name:   "order block alone",
			side:   Long,
			price:  101.5,
			obs:    []analysis.Zone{{Low: 100, High: 101}},
			regime: volatility.RegimeNormal,
			source: SourceOrderBlock,
			want:   []float64{101, 100.5, 100},
		},
		{
			name:   "high volatility widens",
			side:   Long,
			price:  101.5,
			fvgs:   []analysis.Zone{{Low: 100, High: 101}},
			regime: volatility.RegimeHigh,
			source: SourceFVG,
			want:   []float64{101.05, 100.5, 99.95},
		},
		{
			name:   "low volatility narrows",
			side:   Long,
			price:  101.5,
			fvgs:   []analysis.Zone{{Low: 100, High: 101}},
			regime: volatility.RegimeLow,
			source: SourceFVG,
			want:   []float64{100.95, 100.5, 100.05},
		},
		{
			name:   "short enters from the low edge",
			side:   Short,
			price:  99,
			fvgs:   []analysis.Zone{{Low: 99.5, High: 100.5}},
			regime: volatility.RegimeNormal,
			source: SourceFVG,
			want:   []float64{99.5, 100, 100.5},
		},
		{
			name:   "price inside zone enters at market",
			side:   Long,
			price:  101,
			fvgs:   []analysis.Zone{{Low: 100, High: 102}},
			regime: volatility.RegimeNormal,
			source: SourceFVG,
			want:   []float64{101, 100.5, 100},
		},
		{
			name:   "zone on the wrong side is ignored",
			side:   Long,
			price:  100,
			fvgs:   []analysis.Zone{{Low: 101, High: 102}},
			regime: volatility.RegimeNormal,
			source: SourceFallback,
			want:   []float64{100, 99.5, 99},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanEntries(tt.side, tt.price, tt.obs, tt.fvgs, tt.regime, DefaultEntryConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.source, plan.Zone.Source)
			assert.InDeltaSlice(t, tt.want, prices(plan), 1e-9)
		})
	}
}

func TestAdjustZoneNeverInverts(t *testing.T) {
	z := adjustZone(EntryZone{Low: 100, High: 100}, volatility.RegimeLow, 10)
	assert.Equal(t, 100.0, z.Low)
	assert.Equal(t, 100.0, z.High)

	z = adjustZone(EntryZone{Low: 100, High: 101}, volatility.RegimeLow, 150)
	assert.Equal(t, "narrowing skipped", z.Adjustment)
	assert.Equal(t, 100.0, z.Low)
	assert.Equal(t, 101.0, z.High)
}

func TestPlanEntriesRequiresAllocations(t *testing.T) {
	cfg := DefaultEntryConfig()
	cfg.Allocations = nil
	_, err := PlanEntries(Long, 100, nil, nil, volatility.RegimeNormal, cfg)
	assert.ErrorIs(t, err, ErrNoEntries)
}
