package bias

import (
	"fmt"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/market"
)

// Bias is the directional read of the daily and 4h timeframes
type Bias struct {
	Direction        analysis.Direction `json:"direction"`
	Confidence       float64            `json:"confidence"`
	BullishEvidence  int                `json:"bullish_evidence"`
	BearishEvidence  int                `json:"bearish_evidence"`
	LiquidityTargets []float64          `json:"liquidity_targets"`
	DailyStructure   analysis.Structure `json:"daily_structure"`
	H4Structure      analysis.Structure `json:"h4_structure"`
	CloseTrend       analysis.Direction `json:"close_trend"`
	Reasoning        []string           `json:"reasoning"`
}

// AnalyzeHTF weighs daily structure, 4h structure and the daily close trend.
// The direction needs at least MinEvidence points and a strict majority;
// confidence is the winning evidence over MaxEvidence.
func AnalyzeHTF(daily, h4 []market.Candle, price float64, acfg analysis.Config, cfg HTFConfig) (Bias, error) {
	if len(daily) < cfg.MinDailyCandles {
		return Bias{}, fmt.Errorf("%w: %d daily candles, need %d", market.ErrInsufficientData, len(daily), cfg.MinDailyCandles)
	}
	if len(h4) < cfg.MinH4Candles {
		return Bias{}, fmt.Errorf("%w: %d 4h candles, need %d", market.ErrInsufficientData, len(h4), cfg.MinH4Candles)
	}

	b := Bias{
		DailyStructure: analysis.NewStructureAnalyzer(market.TF1d, acfg.StructureFor(market.TF1d)).Analyze(daily),
		H4Structure:    analysis.NewStructureAnalyzer(market.TF4h, acfg.StructureFor(market.TF4h)).Analyze(h4),
		CloseTrend:     analysis.CloseTrend(daily, cfg.CloseTrendPeriod),
	}

	add := func(dir analysis.Direction, weight int, why string) {
		switch dir {
		case analysis.Bullish:
			b.BullishEvidence += weight
		case analysis.Bearish:
			b.BearishEvidence += weight
		default:
			return
		}
		b.Reasoning = append(b.Reasoning, fmt.Sprintf("%s (+%d %s)", why, weight, dir))
	}

	dailyLabel := b.DailyStructure.Label
	switch {
	case dailyLabel.IsBOS():
		add(dailyLabel.Direction(), cfg.DailyBOSWeight, "daily break of structure")
	case dailyLabel.IsCHoCH():
		add(dailyLabel.Direction(), cfg.DailyCHoCHWeight, "daily change of character")
	default:
		b.Reasoning = append(b.Reasoning, "daily structure consolidating")
	}

	// 4h only counts when it confirms the daily direction (or daily is undecided)
	if b.H4Structure.Label.IsBOS() {
		if d := dailyLabel.Direction(); d != analysis.Neutral && d != b.H4Structure.Direction() {
			b.Reasoning = append(b.Reasoning, fmt.Sprintf("4h %s against daily, not counted", b.H4Structure.Label))
		} else {
			add(b.H4Structure.Direction(), cfg.H4BOSWeight, "4h break of structure")
		}
	}

	add(b.CloseTrend, cfg.CloseTrendWeight, "daily closes trending")

	win := b.BullishEvidence
	if b.BearishEvidence > win {
		win = b.BearishEvidence
	}
	b.Confidence = float64(win) / float64(cfg.MaxEvidence)
	if b.Confidence > 1 {
		b.Confidence = 1
	}

	switch {
	case b.BullishEvidence > b.BearishEvidence && b.BullishEvidence >= cfg.MinEvidence:
		b.Direction = analysis.Bullish
	case b.BearishEvidence > b.BullishEvidence && b.BearishEvidence >= cfg.MinEvidence:
		b.Direction = analysis.Bearish
	default:
		b.Direction = analysis.Neutral
		b.Reasoning = append(b.Reasoning, fmt.Sprintf("no directional majority (bullish %d, bearish %d)", b.BullishEvidence, b.BearishEvidence))
		return b, nil
	}

	var pools []analysis.LiquidityPool
	pools = append(pools, analysis.NewLiquidityMapper(market.TF1d, acfg.Liquidity).Map(daily, b.DailyStructure.AllSwings)...)
	pools = append(pools, analysis.NewLiquidityMapper(market.TF4h, acfg.Liquidity).Map(h4, b.H4Structure.AllSwings)...)
	b.LiquidityTargets = analysis.TargetsBeyond(pools, price, b.Direction, cfg.MaxTargets)

	return b, nil
}
