package analysis

import (
	"math"
	"sort"

	"smc-signal-engine/internal/market"
)

// LiquiditySide names the resting orders a pool represents.
// Swing highs form sell-side pools and swing lows form buy-side pools.
type LiquiditySide string

const (
	SellSide LiquiditySide = "sell"
	BuySide  LiquiditySide = "buy"
)

// LiquidityPool is a cluster of stops resting just beyond a swing extreme
type LiquidityPool struct {
	Timeframe  market.Timeframe `json:"timeframe"`
	Side       LiquiditySide    `json:"side"`
	Level      float64          `json:"level"`
	Price      float64          `json:"price"`
	Touches    int              `json:"touches"`
	Strength   float64          `json:"strength"`
	Index      int              `json:"index"`
	Swept      bool             `json:"swept"`
	SweepIndex int              `json:"sweep_index,omitempty"`
	Broken     bool             `json:"broken"`
}

// SweepDirection is the direction a sweep of this pool favours:
// a raid above highs that closes back inside is bearish, a raid below lows is bullish.
func (p LiquidityPool) SweepDirection() Direction {
	if !p.Swept || p.Broken {
		return Neutral
	}
	if p.Side == SellSide {
		return Bearish
	}
	return Bullish
}

// LiquidityMapper builds liquidity pools from swing points
type LiquidityMapper struct {
	tf  market.Timeframe
	cfg LiquidityConfig
}

// NewLiquidityMapper creates a new liquidity mapper
func NewLiquidityMapper(tf market.Timeframe, cfg LiquidityConfig) *LiquidityMapper {
	if cfg.MaxTouches <= 0 {
		cfg.MaxTouches = 3
	}
	return &LiquidityMapper{tf: tf, cfg: cfg}
}

// Map clusters swings into pools and marks which pools were swept or broken
// by the candles that followed them.
func (lm *LiquidityMapper) Map(candles []market.Candle, swings []SwingPoint) []LiquidityPool {
	var pools []LiquidityPool

	for _, s := range swings {
		side := SellSide
		if s.Kind == SwingLow {
			side = BuySide
		}

		merged := false
		for i := range pools {
			p := &pools[i]
			if p.Side != side || math.Abs(p.Level-s.Price)/p.Level*100 > lm.cfg.ClusterPercent {
				continue
			}
			p.Touches++
			if side == SellSide {
				p.Level = math.Max(p.Level, s.Price)
			} else {
				p.Level = math.Min(p.Level, s.Price)
			}
			if s.Index > p.Index {
				p.Index = s.Index
			}
			merged = true
			break
		}
		if !merged {
			pools = append(pools, LiquidityPool{
				Timeframe: lm.tf,
				Side:      side,
				Level:     s.Price,
				Touches:   1,
				Index:     s.Index,
			})
		}
	}

	for i := range pools {
		p := &pools[i]
		if p.Side == SellSide {
			p.Price = p.Level * (1 + lm.cfg.BeyondPercent/100)
		} else {
			p.Price = p.Level * (1 - lm.cfg.BeyondPercent/100)
		}
		p.Strength = clamp01(float64(p.Touches) / float64(lm.cfg.MaxTouches))
		lm.markSweeps(p, candles)
	}

	sort.SliceStable(pools, func(i, j int) bool { return pools[i].Index < pools[j].Index })
	return pools
}

// markSweeps walks the candles after the pool formed. A wick through the level
// that closes back is a sweep; a close through the level breaks the pool.
func (lm *LiquidityMapper) markSweeps(p *LiquidityPool, candles []market.Candle) {
	for k := p.Index + 1; k < len(candles); k++ {
		c := candles[k]
		if p.Side == SellSide && c.High > p.Level {
			if c.Close > p.Level {
				p.Broken = true
				return
			}
			if !p.Swept {
				p.Swept = true
				p.SweepIndex = k
			}
		}
		if p.Side == BuySide && c.Low < p.Level {
			if c.Close < p.Level {
				p.Broken = true
				return
			}
			if !p.Swept {
				p.Swept = true
				p.SweepIndex = k
			}
		}
	}
}

// RecentSweep returns the newest intact sweep that happened within recency
// candles of lastIndex.
func RecentSweep(pools []LiquidityPool, lastIndex, recency int) (LiquidityPool, bool) {
	var best LiquidityPool
	found := false
	for _, p := range pools {
		if !p.Swept || p.Broken || lastIndex-p.SweepIndex > recency {
			continue
		}
		if !found || p.SweepIndex > best.SweepIndex {
			best = p
			found = true
		}
	}
	return best, found
}

// TargetsBeyond returns untouched pool prices in the direction of travel,
// nearest first. Bullish moves target sell-side pools above price and
// bearish moves target buy-side pools below it.
func TargetsBeyond(pools []LiquidityPool, price float64, dir Direction, max int) []float64 {
	var targets []float64
	for _, p := range pools {
		if p.Swept || p.Broken {
			continue
		}
		if dir == Bullish && p.Side == SellSide && p.Price > price {
			targets = append(targets, p.Price)
		}
		if dir == Bearish && p.Side == BuySide && p.Price < price {
			targets = append(targets, p.Price)
		}
	}

	sort.Float64s(targets)
	if dir == Bearish {
		sort.Sort(sort.Reverse(sort.Float64Slice(targets)))
	}
	if max > 0 && len(targets) > max {
		targets = targets[:max]
	}
	return targets
}
