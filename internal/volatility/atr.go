package volatility

import (
	"math"

	"smc-signal-engine/internal/market"
)

// Regime classifies how active the market currently is
type Regime string

const (
	RegimeLow    Regime = "low"
	RegimeNormal Regime = "normal"
	RegimeHigh   Regime = "high"
)

// RegimeThresholds bound the normal regime in ATR percent of price
type RegimeThresholds struct {
	LowBelowPercent  float64 `json:"low_below_percent"`
	HighAbovePercent float64 `json:"high_above_percent"`
}

// DefaultRegimeThresholds returns the thresholds used for 15m ATR
func DefaultRegimeThresholds() RegimeThresholds {
	return RegimeThresholds{
		LowBelowPercent:  0.35,
		HighAbovePercent: 1.2,
	}
}

// TrueRange returns the true range of c relative to the previous close
func TrueRange(c, prev market.Candle) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prev.Close), math.Abs(c.Low-prev.Close)))
}

// ATR returns the simple average true range of the last period candles.
// Returns 0 when fewer than period+1 candles are available.
func ATR(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += TrueRange(candles[i], candles[i-1])
	}
	return sum / float64(period)
}

// ATRPercent returns ATR as a percentage of the latest close
func ATRPercent(candles []market.Candle, period int) float64 {
	atr := ATR(candles, period)
	if atr == 0 {
		return 0
	}
	last := candles[len(candles)-1].Close
	if last <= 0 {
		return 0
	}
	return atr / last * 100
}

// ClassifyRegime maps an ATR percentage onto a Regime
func ClassifyRegime(atrPercent float64, t RegimeThresholds) Regime {
	switch {
	case atrPercent < t.LowBelowPercent:
		return RegimeLow
	case atrPercent >= t.HighAbovePercent:
		return RegimeHigh
	default:
		return RegimeNormal
	}
}
