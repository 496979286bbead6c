package confluence

import (
	"fmt"
	"math"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/bias"
	"smc-signal-engine/internal/market"
)

// StrengthLabel grades a signal on confidence and alignment jointly
type StrengthLabel string

const (
	VeryStrong StrengthLabel = "very_strong"
	Strong     StrengthLabel = "strong"
	Moderate   StrengthLabel = "moderate"
	Weak       StrengthLabel = "weak"
)

// Config holds the scorer weights and bonuses
type Config struct {
	HTFWeight          float64 `json:"htf_weight"`
	IntermediateWeight float64 `json:"intermediate_weight"`
	ZoneWeight         float64 `json:"zone_weight"`
	BaseFloor          float64 `json:"base_floor"`
	BaseSpan           float64 `json:"base_span"`

	AlignmentBonusThreshold float64 `json:"alignment_bonus_threshold"`
	AlignmentBonus          float64 `json:"alignment_bonus"`
	SweepBonus              float64 `json:"sweep_bonus"`
	POIBonus                float64 `json:"poi_bonus"`
	POITolerancePercent     float64 `json:"poi_tolerance_percent"`

	MinConfidence float64 `json:"min_confidence"`
}

// DefaultConfig returns the standard scorer settings
func DefaultConfig() Config {
	return Config{
		HTFWeight:               0.5,
		IntermediateWeight:      0.3,
		ZoneWeight:              0.2,
		BaseFloor:               0.5,
		BaseSpan:                0.3,
		AlignmentBonusThreshold: 0.8,
		AlignmentBonus:          0.2,
		SweepBonus:              0.1,
		POIBonus:                0.1,
		POITolerancePercent:     0.5,
		MinConfidence:           0.6,
	}
}

// Validate checks that the base weights sum to 1.0
func (c Config) Validate() error {
	total := c.HTFWeight + c.IntermediateWeight + c.ZoneWeight
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("confidence weights must sum to 1.0, got %.2f", total)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0,1], got %.2f", c.MinConfidence)
	}
	return nil
}

// Input is everything the scorer reads
type Input struct {
	Direction    analysis.Direction
	HTF          bias.Bias
	Intermediate bias.IntermediateStructure
	Execution    bias.ExecutionAlignment
	EntryPrice   float64
}

// Breakdown records how the final confidence was built
type Breakdown struct {
	Base           float64       `json:"base"`
	HTFScore       float64       `json:"htf_score"`
	Agreement      float64       `json:"agreement"`
	ZoneScore      float64       `json:"zone_score"`
	AlignmentBonus float64       `json:"alignment_bonus"`
	SweepBonus     float64       `json:"sweep_bonus"`
	POIBonus       float64       `json:"poi_bonus"`
	Alignment      float64       `json:"alignment"`
	EntryPrice     float64       `json:"entry_price"`
	Confidence     float64       `json:"confidence"`
	Label          StrengthLabel `json:"strength_label"`
	Accepted       bool          `json:"accepted"`
	Reasoning      []string      `json:"reasoning"`
}

// Scorer calculates signal confidence
type Scorer struct {
	cfg Config
}

// NewScorer creates a new scorer
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes base confluence plus each bonus at most once
func (s *Scorer) Score(in Input) Breakdown {
	bd := Breakdown{
		HTFScore:   in.HTF.Confidence,
		Agreement:  in.Intermediate.Agreement,
		ZoneScore:  in.Intermediate.ZoneScore(in.Direction),
		Alignment:  in.Execution.Score,
		EntryPrice: in.EntryPrice,
	}

	weighted := s.cfg.HTFWeight*bd.HTFScore + s.cfg.IntermediateWeight*bd.Agreement + s.cfg.ZoneWeight*bd.ZoneScore
	bd.Base = s.cfg.BaseFloor + s.cfg.BaseSpan*weighted
	bd.Reasoning = append(bd.Reasoning, fmt.Sprintf("base %.3f (htf %.2f, agreement %.2f, zone %.2f)", bd.Base, bd.HTFScore, bd.Agreement, bd.ZoneScore))

	// 1. Multi-timeframe alignment
	if bd.Alignment >= s.cfg.AlignmentBonusThreshold {
		bd.AlignmentBonus = s.cfg.AlignmentBonus
		bd.Reasoning = append(bd.Reasoning, fmt.Sprintf("execution alignment %.2f", bd.Alignment))
	}

	// 2. Liquidity sweep in trade direction
	if sweep := matchingSweep(in); sweep != nil {
		bd.SweepBonus = s.cfg.SweepBonus
		bd.Reasoning = append(bd.Reasoning, fmt.Sprintf("%s %s-side liquidity swept at %.4f", sweep.Timeframe, sweep.Side, sweep.Level))
	}

	// 3. Entry at an HTF point of interest
	if poi := s.htfPOI(in); poi != nil {
		bd.POIBonus = s.cfg.POIBonus
		bd.Reasoning = append(bd.Reasoning, fmt.Sprintf("entry at %s %s [%.4f, %.4f]", poi.Timeframe, poi.Kind, poi.Low, poi.High))
	}

	bd.Confidence = math.Min(1, bd.Base+bd.AlignmentBonus+bd.SweepBonus+bd.POIBonus)
	bd.Label = Label(bd.Confidence, bd.Alignment)
	bd.Accepted = bd.Confidence >= s.cfg.MinConfidence
	if !bd.Accepted {
		bd.Reasoning = append(bd.Reasoning, fmt.Sprintf("confidence %.3f below minimum %.2f", bd.Confidence, s.cfg.MinConfidence))
	}
	return bd
}

// MinConfidence returns the acceptance threshold
func (s *Scorer) MinConfidence() float64 {
	return s.cfg.MinConfidence
}

func matchingSweep(in Input) *analysis.LiquidityPool {
	for _, sweep := range []*analysis.LiquidityPool{in.Execution.Sweep, in.Intermediate.Sweep} {
		if sweep != nil && sweep.SweepDirection() == in.Direction {
			return sweep
		}
	}
	return nil
}

func (s *Scorer) htfPOI(in Input) *bias.POI {
	for _, p := range in.Intermediate.POIs() {
		if p.Direction != in.Direction || p.Timeframe != market.TF4h {
			continue
		}
		if p.Zone().DistancePercent(in.EntryPrice) <= s.cfg.POITolerancePercent {
			poi := p
			return &poi
		}
	}
	return nil
}

// Label maps confidence and alignment onto a strength label
func Label(confidence, alignment float64) StrengthLabel {
	switch {
	case confidence >= 0.8 && alignment >= 0.7:
		return VeryStrong
	case confidence >= 0.65 && alignment >= 0.5:
		return Strong
	case confidence >= 0.5 && alignment >= 0.3:
		return Moderate
	default:
		return Weak
	}
}
