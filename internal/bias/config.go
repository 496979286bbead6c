package bias

import (
	"fmt"
)

// HTFConfig weights the higher-timeframe evidence
type HTFConfig struct {
	DailyBOSWeight   int `json:"daily_bos_weight"`
	DailyCHoCHWeight int `json:"daily_choch_weight"`
	H4BOSWeight      int `json:"h4_bos_weight"`
	CloseTrendWeight int `json:"close_trend_weight"`
	MaxEvidence      int `json:"max_evidence"`
	MinEvidence      int `json:"min_evidence"`
	CloseTrendPeriod int `json:"close_trend_period"`
	MaxTargets       int `json:"max_targets"`
	MinDailyCandles  int `json:"min_daily_candles"`
	MinH4Candles     int `json:"min_4h_candles"`
}

// IntermediateConfig controls 4h/1h confirmation and POI selection
type IntermediateConfig struct {
	MaxOrderBlocks   int     `json:"max_order_blocks"`
	MaxFVGs          int     `json:"max_fvgs"`
	CounterZoneScore float64 `json:"counter_zone_score"`
	MinH1Candles     int     `json:"min_1h_candles"`
}

// ExecutionConfig controls 15m alignment scoring
type ExecutionConfig struct {
	MinCandles          int     `json:"min_candles"`
	MissingDataScore    float64 `json:"missing_data_score"`
	ConflictScore       float64 `json:"conflict_score"`
	ConsolidationBase   float64 `json:"consolidation_base"`
	MatchBase           float64 `json:"match_base"`
	IntermediateWeight  float64 `json:"intermediate_weight"`
	POIBonus            float64 `json:"poi_bonus"`
	POITolerancePercent float64 `json:"poi_tolerance_percent"`
	MinAlignment        float64 `json:"min_alignment"`
}

// Config groups the three stages
type Config struct {
	HTF          HTFConfig          `json:"htf"`
	Intermediate IntermediateConfig `json:"intermediate"`
	Execution    ExecutionConfig    `json:"execution"`
}

// DefaultConfig returns the standard hierarchy weights
func DefaultConfig() Config {
	return Config{
		HTF: HTFConfig{
			DailyBOSWeight:   2,
			DailyCHoCHWeight: 1,
			H4BOSWeight:      1,
			CloseTrendWeight: 1,
			MaxEvidence:      5,
			MinEvidence:      2,
			CloseTrendPeriod: 20,
			MaxTargets:       3,
			MinDailyCandles:  30,
			MinH4Candles:     60,
		},
		Intermediate: IntermediateConfig{
			MaxOrderBlocks:   5,
			MaxFVGs:          3,
			CounterZoneScore: 0.3,
			MinH1Candles:     60,
		},
		Execution: ExecutionConfig{
			MinCandles:          50,
			MissingDataScore:    0.4,
			ConflictScore:       0.1,
			ConsolidationBase:   0.5,
			MatchBase:           1.0,
			IntermediateWeight:  0.3,
			POIBonus:            0.2,
			POITolerancePercent: 0.5,
			MinAlignment:        0.3,
		},
	}
}

// Validate checks the hierarchy settings
func (c Config) Validate() error {
	if c.HTF.MaxEvidence <= 0 {
		return fmt.Errorf("htf max evidence must be positive")
	}
	if c.HTF.MinEvidence <= 0 || c.HTF.MinEvidence > c.HTF.MaxEvidence {
		return fmt.Errorf("htf min evidence must be in (0, max evidence]")
	}
	if c.Intermediate.MaxOrderBlocks < 0 || c.Intermediate.MaxFVGs < 0 {
		return fmt.Errorf("intermediate POI limits must not be negative")
	}
	if c.Execution.MinAlignment < 0 || c.Execution.MinAlignment > 1 {
		return fmt.Errorf("execution min alignment must be in [0,1]")
	}
	return nil
}
