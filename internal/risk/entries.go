package risk

import (
	"fmt"
	"math"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/volatility"
)

// EntryConfig controls scaled entry placement
type EntryConfig struct {
	Allocations            []float64                     `json:"allocations"`
	MaxZoneDistancePercent map[volatility.Regime]float64 `json:"max_zone_distance_percent"`
	ZoneAdjustPercent      float64                       `json:"zone_adjust_percent"`
	FallbackOffsetsPercent []float64                     `json:"fallback_offsets_percent"`
}

// DefaultEntryConfig returns 50/25/25 entries across the zone
func DefaultEntryConfig() EntryConfig {
	return EntryConfig{
		Allocations: []float64{50, 25, 25},
		MaxZoneDistancePercent: map[volatility.Regime]float64{
			volatility.RegimeLow:    1.0,
			volatility.RegimeNormal: 2.0,
			volatility.RegimeHigh:   3.5,
		},
		ZoneAdjustPercent:      10,
		FallbackOffsetsPercent: []float64{0, 0.5, 1.0},
	}
}

// ZoneSource records where the entry zone came from
type ZoneSource string

const (
	SourceMerged     ZoneSource = "merged"
	SourceFVG        ZoneSource = "fair_value_gap"
	SourceOrderBlock ZoneSource = "order_block"
	SourceFallback   ZoneSource = "fallback"
)

// EntryZone is the zone entries were laid across
type EntryZone struct {
	Low        float64    `json:"low"`
	High       float64    `json:"high"`
	Source     ZoneSource `json:"source"`
	Adjustment string     `json:"adjustment,omitempty"`
}

// EntryLevel is a planned entry before stop and targets are attached
type EntryLevel struct {
	Price             float64   `json:"price"`
	AllocationPercent float64   `json:"allocation_percent"`
	OrderKind         OrderKind `json:"order_kind"`
}

// EntryPlan is the output of PlanEntries
type EntryPlan struct {
	Zone   EntryZone    `json:"zone"`
	Levels []EntryLevel `json:"levels"`
}

// Deepest returns the last (best-priced) entry level
func (p EntryPlan) Deepest() EntryLevel {
	return p.Levels[len(p.Levels)-1]
}

// PlanEntries picks the nearest order block and/or FVG in the trade direction
// and lays entries from its near edge to its far edge. Overlapping zones are
// merged, an FVG is preferred over a separate OB, and with no zone inside the
// regime's max distance entries fall back to fixed offsets from price.
func PlanEntries(side Side, price float64, orderBlocks, fvgs []analysis.Zone, regime volatility.Regime, cfg EntryConfig) (EntryPlan, error) {
	n := len(cfg.Allocations)
	if n == 0 {
		return EntryPlan{}, ErrNoEntries
	}
	if price <= 0 {
		return EntryPlan{}, fmt.Errorf("%w: non-positive price %.8f", ErrNoEntries, price)
	}

	maxDist, ok := cfg.MaxZoneDistancePercent[regime]
	if !ok {
		maxDist = cfg.MaxZoneDistancePercent[volatility.RegimeNormal]
	}

	ob, hasOB := nearestZone(side, price, orderBlocks, maxDist)
	fvg, hasFVG := nearestZone(side, price, fvgs, maxDist)

	var zone EntryZone
	switch {
	case hasOB && hasFVG && ob.Overlaps(fvg):
		zone = EntryZone{Low: math.Min(ob.Low, fvg.Low), High: math.Max(ob.High, fvg.High), Source: SourceMerged}
	case hasFVG:
		zone = EntryZone{Low: fvg.Low, High: fvg.High, Source: SourceFVG}
	case hasOB:
		zone = EntryZone{Low: ob.Low, High: ob.High, Source: SourceOrderBlock}
	default:
		return fallbackEntries(side, price, cfg)
	}

	zone = adjustZone(zone, regime, cfg.ZoneAdjustPercent)

	// near edge faces price; a market fill cannot be better than price itself
	near, far := zone.High, zone.Low
	if side == Short {
		near, far = zone.Low, zone.High
	}
	if side == Long && near > price {
		near = price
	}
	if side == Short && near < price {
		near = price
	}
	if (side == Long && far > near) || (side == Short && far < near) {
		far = near
	}

	plan := EntryPlan{Zone: zone}
	for i, alloc := range cfg.Allocations {
		p := near
		if n > 1 {
			p = near + (far-near)*float64(i)/float64(n-1)
		}
		plan.Levels = append(plan.Levels, EntryLevel{Price: p, AllocationPercent: alloc, OrderKind: orderKind(i)})
	}
	return plan, nil
}

func fallbackEntries(side Side, price float64, cfg EntryConfig) (EntryPlan, error) {
	if len(cfg.FallbackOffsetsPercent) != len(cfg.Allocations) {
		return EntryPlan{}, fmt.Errorf("%w: %d fallback offsets for %d allocations", ErrNoEntries, len(cfg.FallbackOffsetsPercent), len(cfg.Allocations))
	}

	plan := EntryPlan{}
	for i, off := range cfg.FallbackOffsetsPercent {
		p := price * (1 - side.Sign()*off/100)
		plan.Levels = append(plan.Levels, EntryLevel{Price: p, AllocationPercent: cfg.Allocations[i], OrderKind: orderKind(i)})
	}
	first, last := plan.Levels[0].Price, plan.Levels[len(plan.Levels)-1].Price
	plan.Zone = EntryZone{Low: math.Min(first, last), High: math.Max(first, last), Source: SourceFallback}
	return plan, nil
}

func orderKind(i int) OrderKind {
	if i == 0 {
		return Market
	}
	return Limit
}

// nearestZone returns the closest zone on the entry side of price within maxDist percent
func nearestZone(side Side, price float64, zones []analysis.Zone, maxDist float64) (analysis.Zone, bool) {
	var best analysis.Zone
	bestDist := math.Inf(1)
	found := false

	for _, z := range zones {
		if z.High < z.Low {
			continue
		}
		var dist float64
		switch side {
		case Long:
			if z.Low > price {
				continue
			}
			if z.High < price {
				dist = (price - z.High) / price * 100
			}
		case Short:
			if z.High < price {
				continue
			}
			if z.Low > price {
				dist = (z.Low - price) / price * 100
			}
		}
		if dist > maxDist {
			continue
		}
		if dist < bestDist {
			best, bestDist, found = z, dist, true
		}
	}
	return best, found
}

// adjustZone widens the zone in high volatility and narrows it in low volatility.
// Narrowing is skipped when it would invert the bounds.
func adjustZone(z EntryZone, regime volatility.Regime, pct float64) EntryZone {
	half := (z.High - z.Low) * pct / 100 / 2
	if half <= 0 {
		return z
	}

	switch regime {
	case volatility.RegimeHigh:
		z.Low -= half
		z.High += half
		z.Adjustment = fmt.Sprintf("widened by %.0f%%", pct)
	case volatility.RegimeLow:
		if z.High-half <= z.Low+half {
			z.Adjustment = "narrowing skipped"
			return z
		}
		z.Low += half
		z.High -= half
		z.Adjustment = fmt.Sprintf("narrowed by %.0f%%", pct)
	}
	return z
}
