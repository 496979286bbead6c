package analysis

import (
	"fmt"

	"smc-signal-engine/internal/market"
)

// StructureConfig tunes swing detection and structure classification for one timeframe
type StructureConfig struct {
	Lookback      int     `json:"lookback"`
	SwingWindow   int     `json:"swing_window"`
	RangeWindow   int     `json:"range_window"`
	HistoryWindow int     `json:"history_window"`
	MinRangeRatio float64 `json:"min_range_ratio"`
}

// OrderBlockConfig tunes order block detection
type OrderBlockConfig struct {
	MomentumMultiple  float64                  `json:"momentum_multiple"`
	MinContinuation   int                      `json:"min_continuation"`
	StrengthReference int                      `json:"strength_reference"`
	VolumeMultiple    float64                  `json:"volume_multiple"`
	VolumePeriod      int                      `json:"volume_period"`
	MaxAge            map[market.Timeframe]int `json:"max_age"`
	MaxBlocks         int                      `json:"max_blocks"`
}

// FVGConfig tunes fair value gap detection
type FVGConfig struct {
	MinGapPercent float64                  `json:"min_gap_percent"`
	MaxAge        map[market.Timeframe]int `json:"max_age"`
	AlignedScore  float64                  `json:"aligned_score"`
	NeutralScore  float64                  `json:"neutral_score"`
	CounterScore  float64                  `json:"counter_score"`
}

// LiquidityConfig tunes liquidity pool mapping
type LiquidityConfig struct {
	BeyondPercent  float64 `json:"beyond_percent"`
	ClusterPercent float64 `json:"cluster_percent"`
	MaxTouches     int     `json:"max_touches"`
	SweepRecency   int     `json:"sweep_recency"`
}

// Config groups every detector setting
type Config struct {
	Structure   map[market.Timeframe]StructureConfig `json:"structure"`
	OrderBlocks OrderBlockConfig                     `json:"order_blocks"`
	FVG         FVGConfig                            `json:"fvg"`
	Liquidity   LiquidityConfig                      `json:"liquidity"`
}

// DefaultConfig returns detector settings tuned for crypto perpetuals
func DefaultConfig() Config {
	return Config{
		Structure: map[market.Timeframe]StructureConfig{
			market.TF15m: {Lookback: 3, SwingWindow: 6, RangeWindow: 20, HistoryWindow: 100, MinRangeRatio: 0.1},
			market.TF1h:  {Lookback: 4, SwingWindow: 6, RangeWindow: 20, HistoryWindow: 100, MinRangeRatio: 0.1},
			market.TF4h:  {Lookback: 5, SwingWindow: 8, RangeWindow: 20, HistoryWindow: 100, MinRangeRatio: 0.1},
			market.TF1d:  {Lookback: 5, SwingWindow: 10, RangeWindow: 20, HistoryWindow: 100, MinRangeRatio: 0.1},
		},
		OrderBlocks: OrderBlockConfig{
			MomentumMultiple:  2.0,
			MinContinuation:   2,
			StrengthReference: 5,
			VolumeMultiple:    1.2,
			VolumePeriod:      20,
			MaxAge: map[market.Timeframe]int{
				market.TF15m: 200,
				market.TF1h:  250,
				market.TF4h:  150,
				market.TF1d:  100,
			},
			MaxBlocks: 15,
		},
		FVG: FVGConfig{
			MinGapPercent: 0.05,
			MaxAge: map[market.Timeframe]int{
				market.TF15m: 200,
				market.TF1h:  250,
				market.TF4h:  150,
				market.TF1d:  100,
			},
			AlignedScore: 1.0,
			NeutralScore: 0.5,
			CounterScore: 0.2,
		},
		Liquidity: LiquidityConfig{
			BeyondPercent:  0.05,
			ClusterPercent: 0.1,
			MaxTouches:     3,
			SweepRecency:   12,
		},
	}
}

// StructureFor returns the structure settings for a timeframe, falling back to the 4h settings
func (c Config) StructureFor(tf market.Timeframe) StructureConfig {
	if sc, ok := c.Structure[tf]; ok {
		return sc
	}
	return DefaultConfig().Structure[market.TF4h]
}

// Validate checks detector settings
func (c Config) Validate() error {
	for tf, sc := range c.Structure {
		if sc.Lookback <= 0 {
			return fmt.Errorf("structure lookback for %s must be positive", tf)
		}
		if sc.SwingWindow < 4 {
			return fmt.Errorf("structure swing window for %s must be at least 4", tf)
		}
		if sc.MinRangeRatio < 0 || sc.MinRangeRatio >= 1 {
			return fmt.Errorf("structure min range ratio for %s must be in [0,1)", tf)
		}
	}
	if c.OrderBlocks.MomentumMultiple <= 0 {
		return fmt.Errorf("order block momentum multiple must be positive")
	}
	if c.OrderBlocks.MinContinuation <= 0 || c.OrderBlocks.StrengthReference < c.OrderBlocks.MinContinuation {
		return fmt.Errorf("order block strength reference must be >= min continuation > 0")
	}
	if c.FVG.MinGapPercent < 0 {
		return fmt.Errorf("fvg min gap percent must not be negative")
	}
	if c.Liquidity.MaxTouches <= 0 {
		return fmt.Errorf("liquidity max touches must be positive")
	}
	return nil
}
