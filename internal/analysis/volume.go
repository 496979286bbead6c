package analysis

import (
	"smc-signal-engine/internal/market"
)

// AverageVolume returns the mean volume of the last period candles.
// Uses every candle when fewer than period are available.
func AverageVolume(candles []market.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if period <= 0 || len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period)
}

// AverageRange returns the mean high-low range of the last period candles
func AverageRange(candles []market.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if period <= 0 || len(candles) < period {
		period = len(candles)
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Range()
	}
	return sum / float64(period)
}

// PriceRange returns the highest high and lowest low of the last period candles
func PriceRange(candles []market.Candle, period int) (low, high float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	if period <= 0 || len(candles) < period {
		period = len(candles)
	}

	start := len(candles) - period
	low, high = candles[start].Low, candles[start].High
	for _, c := range candles[start+1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return low, high
}
