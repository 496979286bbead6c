package analysis

import (
	"time"

	"smc-signal-engine/internal/market"
)

// SwingKind distinguishes swing highs from swing lows
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a local price extreme
type SwingPoint struct {
	Price    float64   `json:"price"`
	Index    int       `json:"index"`
	Kind     SwingKind `json:"kind"`
	Strength float64   `json:"strength"`
	Time     time.Time `json:"timestamp"`
}

// SwingDetector finds swing highs and lows
type SwingDetector struct {
	lookback int // Candles on each side that must be strictly exceeded
}

// NewSwingDetector creates a new swing detector
func NewSwingDetector(lookback int) *SwingDetector {
	if lookback <= 0 {
		lookback = 5
	}
	return &SwingDetector{lookback: lookback}
}

// Detect returns swing points in index order. A candle is a swing high when its
// high is strictly greater than every high within lookback candles on both sides;
// swing lows mirror this.
func (sd *SwingDetector) Detect(candles []market.Candle) []SwingPoint {
	n := len(candles)
	if n < 2*sd.lookback+1 {
		return nil
	}

	avgVolume := AverageVolume(candles, n)
	avgRange := AverageRange(candles, n)

	var swings []SwingPoint
	for i := sd.lookback; i < n-sd.lookback; i++ {
		isHigh, isLow := true, true
		for j := i - sd.lookback; j <= i+sd.lookback; j++ {
			if j == i {
				continue
			}
			if candles[j].High >= candles[i].High {
				isHigh = false
			}
			if candles[j].Low <= candles[i].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}

		strength := swingStrength(candles[i], avgVolume, avgRange)
		if isHigh {
			swings = append(swings, SwingPoint{
				Price:    candles[i].High,
				Index:    i,
				Kind:     SwingHigh,
				Strength: strength,
				Time:     candles[i].Time(),
			})
		}
		if isLow {
			swings = append(swings, SwingPoint{
				Price:    candles[i].Low,
				Index:    i,
				Kind:     SwingLow,
				Strength: strength,
				Time:     candles[i].Time(),
			})
		}
	}
	return swings
}

// swingStrength blends relative volume and relative range; an average candle scores 0.5
func swingStrength(c market.Candle, avgVolume, avgRange float64) float64 {
	relVolume, relRange := 1.0, 1.0
	if avgVolume > 0 {
		relVolume = c.Volume / avgVolume
	}
	if avgRange > 0 {
		relRange = c.Range() / avgRange
	}
	return clamp01((relVolume + relRange) / 4)
}

// SplitSwings separates highs from lows, preserving order
func SplitSwings(swings []SwingPoint) (highs, lows []SwingPoint) {
	for _, s := range swings {
		if s.Kind == SwingHigh {
			highs = append(highs, s)
		} else {
			lows = append(lows, s)
		}
	}
	return highs, lows
}

// LastSwing returns the most recent swing of the given kind
func LastSwing(swings []SwingPoint, kind SwingKind) (SwingPoint, bool) {
	for i := len(swings) - 1; i >= 0; i-- {
		if swings[i].Kind == kind {
			return swings[i], true
		}
	}
	return SwingPoint{}, false
}
