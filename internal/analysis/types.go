package analysis

import (
	"math"
)

// Direction is the directional read of a structure, zone or bias
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Opposite returns the opposing direction (Neutral stays Neutral)
func (d Direction) Opposite() Direction {
	switch d {
	case Bullish:
		return Bearish
	case Bearish:
		return Bullish
	default:
		return Neutral
	}
}

// Sign returns +1 for bullish, -1 for bearish and 0 otherwise
func (d Direction) Sign() float64 {
	switch d {
	case Bullish:
		return 1
	case Bearish:
		return -1
	default:
		return 0
	}
}

// StructureLabel is the classification of a timeframe's market structure
type StructureLabel string

const (
	BullishBOS    StructureLabel = "bullish_bos"
	BearishBOS    StructureLabel = "bearish_bos"
	BullishCHoCH  StructureLabel = "bullish_choch"
	BearishCHoCH  StructureLabel = "bearish_choch"
	Consolidation StructureLabel = "consolidation"
)

// Direction returns the directional component of the label
func (l StructureLabel) Direction() Direction {
	switch l {
	case BullishBOS, BullishCHoCH:
		return Bullish
	case BearishBOS, BearishCHoCH:
		return Bearish
	default:
		return Neutral
	}
}

// IsBOS reports whether the label is a break of structure
func (l StructureLabel) IsBOS() bool {
	return l == BullishBOS || l == BearishBOS
}

// IsCHoCH reports whether the label is a change of character
func (l StructureLabel) IsCHoCH() bool {
	return l == BullishCHoCH || l == BearishCHoCH
}

// Zone is a closed price interval [Low, High]
type Zone struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether price lies inside the zone
func (z Zone) Contains(price float64) bool {
	return price >= z.Low && price <= z.High
}

// Overlaps reports whether two zones share any price
func (z Zone) Overlaps(o Zone) bool {
	return z.Low <= o.High && z.High >= o.Low
}

// DistancePercent returns how far price is from the zone as a percent of price.
// Zero when price is inside.
func (z Zone) DistancePercent(price float64) float64 {
	if price <= 0 || z.Contains(price) {
		return 0
	}
	d := math.Min(math.Abs(price-z.Low), math.Abs(price-z.High))
	return d / price * 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
