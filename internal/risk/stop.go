package risk

import (
	"fmt"
	"math"

	"smc-signal-engine/internal/analysis"
)

// StopConfig controls stop-loss placement
type StopConfig struct {
	SwingBufferATR     float64 `json:"swing_buffer_atr"`
	FallbackATR        float64 `json:"fallback_atr"`
	MinDistanceATR     float64 `json:"min_distance_atr"`
	MinDistancePercent float64 `json:"min_distance_percent"`
	MaxDistanceATR     float64 `json:"max_distance_atr"`
	MaxDistancePercent float64 `json:"max_distance_percent"`
}

// DefaultStopConfig returns the standard stop settings
func DefaultStopConfig() StopConfig {
	return StopConfig{
		SwingBufferATR:     0.5,
		FallbackATR:        1.5,
		MinDistanceATR:     1.0,
		MinDistancePercent: 0.3,
		MaxDistanceATR:     4.0,
		MaxDistancePercent: 5.0,
	}
}

// StopMethod records which rule set the stop
type StopMethod string

const (
	StopSwing       StopMethod = "swing"
	StopFallback    StopMethod = "atr_fallback"
	StopMinDistance StopMethod = "min_distance"
	StopMaxDistance StopMethod = "max_distance"
)

// StopResult is the refined stop with the intermediate values behind it
type StopResult struct {
	Price       float64    `json:"price"`
	Method      StopMethod `json:"method"`
	SwingPrice  float64    `json:"swing_price,omitempty"`
	Candidate   float64    `json:"candidate"`
	MinDistance float64    `json:"min_distance"`
	MaxDistance float64    `json:"max_distance"`
	Reason      string     `json:"reason"`
}

// RefineStop places the shared stop relative to the deepest entry.
// The candidate is the most recent 15m swing beyond an ATR buffer (or an ATR
// multiple from the deepest entry when there is no swing). A candidate closer
// than the minimum distance, or on the wrong side of the deepest entry, is
// replaced by deepest -/+ minimum distance; one further than the maximum is capped.
func RefineStop(side Side, deepest float64, swings []analysis.SwingPoint, atr float64, cfg StopConfig) (StopResult, error) {
	if deepest <= 0 {
		return StopResult{}, fmt.Errorf("%w: deepest entry %.8f", ErrNoEntries, deepest)
	}

	res := StopResult{
		MinDistance: math.Max(atr*cfg.MinDistanceATR, deepest*cfg.MinDistancePercent/100),
	}
	res.MaxDistance = atr * cfg.MaxDistanceATR
	if res.MaxDistance <= 0 {
		res.MaxDistance = deepest * cfg.MaxDistancePercent / 100
	}
	if res.MaxDistance < res.MinDistance {
		res.MaxDistance = res.MinDistance
	}

	sign := side.Sign()
	kind := analysis.SwingLow
	if side == Short {
		kind = analysis.SwingHigh
	}

	if swing, ok := analysis.LastSwing(swings, kind); ok {
		res.SwingPrice = swing.Price
		res.Candidate = swing.Price - sign*atr*cfg.SwingBufferATR
		res.Method = StopSwing
	} else {
		res.Candidate = deepest - sign*atr*cfg.FallbackATR
		res.Method = StopFallback
	}

	// distance measured on the losing side; negative means the candidate crosses the entry
	dist := (deepest - res.Candidate) * sign

	switch {
	case dist < res.MinDistance:
		res.Price = deepest - sign*res.MinDistance
		res.Reason = fmt.Sprintf("%s stop %.8f within %.8f of deepest entry %.8f, moved to minimum distance", res.Method, res.Candidate, res.MinDistance, deepest)
		res.Method = StopMinDistance
	case dist > res.MaxDistance:
		res.Price = deepest - sign*res.MaxDistance
		res.Reason = fmt.Sprintf("%s stop %.8f further than %.8f from deepest entry, capped", res.Method, res.Candidate, res.MaxDistance)
		res.Method = StopMaxDistance
	default:
		res.Price = res.Candidate
		res.Reason = fmt.Sprintf("%s stop %.8f protects deepest entry %.8f", res.Method, res.Candidate, deepest)
	}

	if res.Price <= 0 {
		return res, fmt.Errorf("%w: stop %.8f is not a valid price", ErrStopCrossesEntry, res.Price)
	}
	return res, nil
}
