package analysis

import (
	"fmt"

	"smc-signal-engine/internal/market"
)

// Structure is the classified market structure of one timeframe
type Structure struct {
	Timeframe market.Timeframe `json:"timeframe"`
	Label     StructureLabel   `json:"label"`
	Swings    []SwingPoint     `json:"swings"`
	Reason    string           `json:"reason"`

	// AllSwings holds every swing found, not just the classification window
	AllSwings []SwingPoint `json:"-"`
}

// Direction returns the direction implied by the label
func (s Structure) Direction() Direction {
	return s.Label.Direction()
}

// StructureAnalyzer classifies BOS / CHoCH / consolidation on one timeframe
type StructureAnalyzer struct {
	tf     market.Timeframe
	cfg    StructureConfig
	swings *SwingDetector
}

// NewStructureAnalyzer creates a new structure analyzer
func NewStructureAnalyzer(tf market.Timeframe, cfg StructureConfig) *StructureAnalyzer {
	if cfg.SwingWindow < 4 {
		cfg.SwingWindow = 6
	}
	if cfg.RangeWindow <= 0 {
		cfg.RangeWindow = 20
	}
	if cfg.HistoryWindow <= cfg.RangeWindow {
		cfg.HistoryWindow = cfg.RangeWindow * 5
	}
	return &StructureAnalyzer{
		tf:     tf,
		cfg:    cfg,
		swings: NewSwingDetector(cfg.Lookback),
	}
}

// Analyze classifies the structure of candles.
// Fewer than two swing highs or two swing lows, or a compressed recent range,
// yields Consolidation.
func (sa *StructureAnalyzer) Analyze(candles []market.Candle) Structure {
	all := sa.swings.Detect(candles)
	window := all
	if len(window) > sa.cfg.SwingWindow {
		window = window[len(window)-sa.cfg.SwingWindow:]
	}

	s := Structure{
		Timeframe: sa.tf,
		Label:     Consolidation,
		Swings:    window,
		AllSwings: all,
	}

	highs, lows := SplitSwings(window)
	if len(highs) < 2 || len(lows) < 2 {
		s.Reason = fmt.Sprintf("%s: %d swing highs and %d swing lows, need 2 of each", sa.tf, len(highs), len(lows))
		return s
	}

	if ratio, compressed := sa.compressed(candles); compressed {
		s.Reason = fmt.Sprintf("%s: recent range is %.1f%% of historical range", sa.tf, ratio*100)
		return s
	}

	lastH, prevH := highs[len(highs)-1], highs[len(highs)-2]
	lastL, prevL := lows[len(lows)-1], lows[len(lows)-2]

	higherHigh := lastH.Price > prevH.Price
	lowerHigh := lastH.Price < prevH.Price
	higherLow := lastL.Price > prevL.Price
	lowerLow := lastL.Price < prevL.Price

	switch {
	case higherHigh && higherLow:
		s.Label = BullishBOS
		s.Reason = fmt.Sprintf("%s: higher high %.4f > %.4f and higher low %.4f > %.4f", sa.tf, lastH.Price, prevH.Price, lastL.Price, prevL.Price)
	case lowerHigh && lowerLow:
		s.Label = BearishBOS
		s.Reason = fmt.Sprintf("%s: lower high %.4f < %.4f and lower low %.4f < %.4f", sa.tf, lastH.Price, prevH.Price, lastL.Price, prevL.Price)
	case (higherHigh && lowerLow) || (lowerHigh && higherLow):
		// the newest swing shows which side broke character
		if lastH.Index >= lastL.Index {
			if higherHigh {
				s.Label = BullishCHoCH
			} else {
				s.Label = BearishCHoCH
			}
		} else {
			if higherLow {
				s.Label = BullishCHoCH
			} else {
				s.Label = BearishCHoCH
			}
		}
		s.Reason = fmt.Sprintf("%s: mixed swings (highs %.4f->%.4f, lows %.4f->%.4f)", sa.tf, prevH.Price, lastH.Price, prevL.Price, lastL.Price)
	default:
		s.Reason = fmt.Sprintf("%s: equal swing levels", sa.tf)
	}
	return s
}

// compressed compares the recent range to the historical range
func (sa *StructureAnalyzer) compressed(candles []market.Candle) (float64, bool) {
	if sa.cfg.MinRangeRatio <= 0 || len(candles) <= sa.cfg.RangeWindow {
		return 1, false
	}
	hLow, hHigh := PriceRange(candles, sa.cfg.HistoryWindow)
	rLow, rHigh := PriceRange(candles, sa.cfg.RangeWindow)
	if hHigh <= hLow {
		return 0, true
	}
	ratio := (rHigh - rLow) / (hHigh - hLow)
	return ratio, ratio < sa.cfg.MinRangeRatio
}

// CloseTrend reads the direction of recent closes: the last close must sit on the
// same side of both the period SMA and the close period candles ago.
func CloseTrend(candles []market.Candle, period int) Direction {
	if period <= 0 || len(candles) < period+1 {
		return Neutral
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	sma := sum / float64(period)
	last := candles[len(candles)-1].Close
	ref := candles[len(candles)-1-period].Close

	switch {
	case last > sma && last > ref:
		return Bullish
	case last < sma && last < ref:
		return Bearish
	default:
		return Neutral
	}
}
