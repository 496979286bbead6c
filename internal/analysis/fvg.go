package analysis

import (
	"time"

	"smc-signal-engine/internal/market"
)

// FVG is a three-candle price imbalance
type FVG struct {
	Timeframe      market.Timeframe `json:"timeframe"`
	Direction      Direction        `json:"direction"`
	Low            float64          `json:"gap_low"`
	High           float64          `json:"gap_high"`
	Timestamp      time.Time        `json:"timestamp"`
	Index          int              `json:"index"` // middle candle
	Age            int              `json:"age_in_candles"`
	GapPercent     float64          `json:"gap_percent"`
	Filled         bool             `json:"filled"`
	AlignmentScore float64          `json:"alignment_score"`
}

// Zone returns the gap interval
func (f FVG) Zone() Zone {
	return Zone{Low: f.Low, High: f.High}
}

// FVGDetector detects Fair Value Gaps in candlestick data
type FVGDetector struct {
	tf  market.Timeframe
	cfg FVGConfig
}

// NewFVGDetector creates a new FVG detector
func NewFVGDetector(tf market.Timeframe, cfg FVGConfig) *FVGDetector {
	if cfg.MinGapPercent <= 0 {
		cfg.MinGapPercent = 0.05
	}
	return &FVGDetector{tf: tf, cfg: cfg}
}

// DetectFVGs identifies gaps in candles and scores each against the timeframe's
// structure. Gaps older than the configured max age are dropped.
func (fd *FVGDetector) DetectFVGs(candles []market.Candle, structure StructureLabel) []FVG {
	n := len(candles)
	if n < 3 {
		return nil
	}
	maxAge := fd.cfg.MaxAge[fd.tf]

	var fvgs []FVG
	for i := 0; i < n-2; i++ {
		c1 := candles[i]
		c2 := candles[i+1]
		c3 := candles[i+2]

		age := n - 1 - (i + 1)
		if maxAge > 0 && age > maxAge {
			continue
		}

		var fvg *FVG
		switch {
		case c1.High < c3.Low:
			gap := (c3.Low - c1.High) / c1.High * 100
			if gap >= fd.cfg.MinGapPercent {
				fvg = &FVG{Direction: Bullish, Low: c1.High, High: c3.Low, GapPercent: gap}
			}
		case c1.Low > c3.High:
			gap := (c1.Low - c3.High) / c3.High * 100
			if gap >= fd.cfg.MinGapPercent {
				fvg = &FVG{Direction: Bearish, Low: c3.High, High: c1.Low, GapPercent: gap}
			}
		}
		if fvg == nil {
			continue
		}

		fvg.Timeframe = fd.tf
		fvg.Timestamp = c2.Time()
		fvg.Index = i + 1
		fvg.Age = age
		fvg.Filled = isFilled(*fvg, candles[i+3:])
		fvg.AlignmentScore = fd.alignment(fvg.Direction, structure)
		fvgs = append(fvgs, *fvg)
	}

	return fvgs
}

// isFilled reports whether any later candle traded through the whole gap
func isFilled(fvg FVG, later []market.Candle) bool {
	for _, c := range later {
		if fvg.Direction == Bullish && c.Low <= fvg.Low {
			return true
		}
		if fvg.Direction == Bearish && c.High >= fvg.High {
			return true
		}
	}
	return false
}

func (fd *FVGDetector) alignment(dir Direction, structure StructureLabel) float64 {
	sd := structure.Direction()
	switch {
	case sd == Neutral:
		return fd.cfg.NeutralScore
	case sd == dir:
		return fd.cfg.AlignedScore
	default:
		return fd.cfg.CounterScore
	}
}

// GetUnfilledFVGs returns only FVGs that haven't been filled yet
func GetUnfilledFVGs(fvgs []FVG) []FVG {
	var unfilled []FVG
	for _, fvg := range fvgs {
		if !fvg.Filled {
			unfilled = append(unfilled, fvg)
		}
	}
	return unfilled
}
