package bias

import (
	"fmt"
	"math"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/market"
)

// ExecutionAlignment scores how well the 15m structure supports the bias
type ExecutionAlignment struct {
	Score       float64                  `json:"score"`
	Structure   analysis.Structure       `json:"structure"`
	Conflict    bool                     `json:"conflict"`
	MissingData bool                     `json:"missing_data"`
	NearPOI     *POI                     `json:"near_poi,omitempty"`
	Sweep       *analysis.LiquidityPool  `json:"sweep,omitempty"`
	Pools       []analysis.LiquidityPool `json:"-"`
	Reasoning   []string                 `json:"reasoning"`
}

// Passed reports whether the score clears the configured minimum
func (a ExecutionAlignment) Passed(cfg ExecutionConfig) bool {
	return a.Score >= cfg.MinAlignment
}

// AnalyzeExecution scores the 15m structure against the bias.
// Missing data scores MissingDataScore and an opposing structure scores
// ConflictScore; otherwise the base (match or consolidation) is increased by
// intermediate agreement and proximity to a POI, capped at 1.
func AnalyzeExecution(m15 []market.Candle, htf Bias, inter IntermediateStructure, price float64, acfg analysis.Config, cfg ExecutionConfig) ExecutionAlignment {
	if len(m15) < cfg.MinCandles {
		return ExecutionAlignment{
			Score:       cfg.MissingDataScore,
			MissingData: true,
			Reasoning:   []string{fmt.Sprintf("only %d 15m candles, need %d", len(m15), cfg.MinCandles)},
		}
	}

	ea := ExecutionAlignment{
		Structure: analysis.NewStructureAnalyzer(market.TF15m, acfg.StructureFor(market.TF15m)).Analyze(m15),
	}
	ea.Pools = analysis.NewLiquidityMapper(market.TF15m, acfg.Liquidity).Map(m15, ea.Structure.AllSwings)
	if sweep, ok := analysis.RecentSweep(ea.Pools, len(m15)-1, acfg.Liquidity.SweepRecency); ok {
		ea.Sweep = &sweep
	}

	dir := ea.Structure.Direction()
	switch dir {
	case htf.Direction:
		ea.Score = cfg.MatchBase
		ea.Reasoning = append(ea.Reasoning, fmt.Sprintf("15m %s matches %s bias", ea.Structure.Label, htf.Direction))
	case analysis.Neutral:
		ea.Score = cfg.ConsolidationBase
		ea.Reasoning = append(ea.Reasoning, "15m consolidating")
	default:
		ea.Score = cfg.ConflictScore
		ea.Conflict = true
		ea.Reasoning = append(ea.Reasoning, fmt.Sprintf("15m %s conflicts with %s bias", ea.Structure.Label, htf.Direction))
		return ea
	}

	if inter.Agreement > 0 {
		ea.Score += cfg.IntermediateWeight * inter.Agreement
		ea.Reasoning = append(ea.Reasoning, fmt.Sprintf("intermediate agreement %.2f", inter.Agreement))
	}

	for _, p := range inter.POIs() {
		if p.Direction != htf.Direction {
			continue
		}
		if p.Zone().DistancePercent(price) <= cfg.POITolerancePercent {
			poi := p
			ea.NearPOI = &poi
			ea.Score += cfg.POIBonus
			ea.Reasoning = append(ea.Reasoning, fmt.Sprintf("price within %.2f%% of %s %s", cfg.POITolerancePercent, p.Timeframe, p.Kind))
			break
		}
	}

	ea.Score = math.Min(1, ea.Score)
	return ea
}
