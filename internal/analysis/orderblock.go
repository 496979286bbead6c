package analysis

import (
	"time"

	"smc-signal-engine/internal/market"
)

// OrderBlock is the zone of a momentum candle that started a displacement
type OrderBlock struct {
	Timeframe    market.Timeframe `json:"timeframe"`
	Direction    Direction        `json:"direction"`
	Low          float64          `json:"price_low"`
	High         float64          `json:"price_high"`
	OriginTime   time.Time        `json:"origin_timestamp"`
	Index        int              `json:"index"`
	Age          int              `json:"age_in_candles"`
	Continuation int              `json:"continuation"`
	Strength     float64          `json:"strength"`
	VolumeRatio  float64          `json:"volume_ratio"`
	Mitigated    bool             `json:"mitigated"`
}

// Zone returns the block interval
func (ob OrderBlock) Zone() Zone {
	return Zone{Low: ob.Low, High: ob.High}
}

// OrderBlockDetector finds order blocks on one timeframe
type OrderBlockDetector struct {
	tf  market.Timeframe
	cfg OrderBlockConfig
}

// NewOrderBlockDetector creates a new order block detector
func NewOrderBlockDetector(tf market.Timeframe, cfg OrderBlockConfig) *OrderBlockDetector {
	if cfg.MomentumMultiple <= 0 {
		cfg.MomentumMultiple = 2.0
	}
	if cfg.MinContinuation <= 0 {
		cfg.MinContinuation = 2
	}
	if cfg.StrengthReference < cfg.MinContinuation {
		cfg.StrengthReference = cfg.MinContinuation
	}
	if cfg.VolumePeriod <= 0 {
		cfg.VolumePeriod = 20
	}
	return &OrderBlockDetector{tf: tf, cfg: cfg}
}

// Detect returns the most recent order blocks in index order.
// A candidate needs a range above MomentumMultiple times the prior body,
// MinContinuation same-direction candles after it, and volume above
// VolumeMultiple times the preceding average.
func (od *OrderBlockDetector) Detect(candles []market.Candle) []OrderBlock {
	n := len(candles)
	maxAge := od.cfg.MaxAge[od.tf]

	var blocks []OrderBlock
	for i := 1; i < n; i++ {
		c := candles[i]

		var dir Direction
		switch {
		case c.IsBullish():
			dir = Bullish
		case c.IsBearish():
			dir = Bearish
		default:
			continue
		}

		age := n - 1 - i
		if maxAge > 0 && age > maxAge {
			continue
		}

		if c.Range() <= od.cfg.MomentumMultiple*candles[i-1].Body() {
			continue
		}

		// Count continuation candles
		count := 0
		for j := i + 1; j < n && count < od.cfg.StrengthReference; j++ {
			if (dir == Bullish && candles[j].IsBullish()) || (dir == Bearish && candles[j].IsBearish()) {
				count++
				continue
			}
			break
		}
		if count < od.cfg.MinContinuation {
			continue
		}

		start := i - od.cfg.VolumePeriod
		if start < 0 {
			start = 0
		}
		avgVolume := AverageVolume(candles[start:i], od.cfg.VolumePeriod)
		volumeRatio := 1.0
		if avgVolume > 0 {
			volumeRatio = c.Volume / avgVolume
			if volumeRatio < od.cfg.VolumeMultiple {
				continue
			}
		}

		ob := OrderBlock{
			Timeframe:    od.tf,
			Direction:    dir,
			Low:          c.Low,
			High:         c.High,
			OriginTime:   c.Time(),
			Index:        i,
			Age:          age,
			Continuation: count,
			Strength:     clamp01(float64(count) / float64(od.cfg.StrengthReference)),
			VolumeRatio:  volumeRatio,
		}
		ob.Mitigated = isMitigated(ob, candles[i+1:])
		blocks = append(blocks, ob)
	}

	if od.cfg.MaxBlocks > 0 && len(blocks) > od.cfg.MaxBlocks {
		blocks = blocks[len(blocks)-od.cfg.MaxBlocks:]
	}
	return blocks
}

// isMitigated reports whether a later candle closed beyond the far side of the block
func isMitigated(ob OrderBlock, later []market.Candle) bool {
	for _, c := range later {
		if ob.Direction == Bullish && c.Close < ob.Low {
			return true
		}
		if ob.Direction == Bearish && c.Close > ob.High {
			return true
		}
	}
	return false
}

// ActiveOrderBlocks filters out mitigated blocks
func ActiveOrderBlocks(blocks []OrderBlock) []OrderBlock {
	var active []OrderBlock
	for _, ob := range blocks {
		if !ob.Mitigated {
			active = append(active, ob)
		}
	}
	return active
}
