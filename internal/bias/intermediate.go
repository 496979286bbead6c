package bias

import (
	"fmt"
	"sort"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/market"
)

// POIKind names the zone type behind a point of interest
type POIKind string

const (
	POIOrderBlock POIKind = "order_block"
	POIFVG        POIKind = "fair_value_gap"
)

// POI is a ranked zone price is expected to react from
type POI struct {
	Kind      POIKind            `json:"kind"`
	Timeframe market.Timeframe   `json:"timeframe"`
	Direction analysis.Direction `json:"direction"`
	Low       float64            `json:"low"`
	High      float64            `json:"high"`
	Age       int                `json:"age_in_candles"`
	Strength  float64            `json:"strength"`
	Score     float64            `json:"score"`
}

// Zone returns the POI interval
func (p POI) Zone() analysis.Zone {
	return analysis.Zone{Low: p.Low, High: p.High}
}

// Status summarises how the 4h and 1h structures treat the HTF bias
type Status string

const (
	StatusConfirmed   Status = "confirmed"
	StatusPartial     Status = "partial"
	StatusUnconfirmed Status = "unconfirmed"
	StatusWeakened    Status = "weakened"
)

// IntermediateStructure is the 4h/1h read used to confirm the bias and pick zones
type IntermediateStructure struct {
	Direction   analysis.Direction       `json:"direction"`
	Agreement   float64                  `json:"agreement"`
	Status      Status                   `json:"status"`
	H4Structure analysis.Structure       `json:"h4_structure"`
	H1Structure analysis.Structure       `json:"h1_structure"`
	OrderBlocks []POI                    `json:"order_blocks"`
	FVGs        []POI                    `json:"fvgs"`
	Pools       []analysis.LiquidityPool `json:"-"`
	Sweep       *analysis.LiquidityPool  `json:"sweep,omitempty"`
	Reasoning   []string                 `json:"reasoning"`
}

// POIs returns every selected zone, order blocks first
func (s IntermediateStructure) POIs() []POI {
	out := make([]POI, 0, len(s.OrderBlocks)+len(s.FVGs))
	out = append(out, s.OrderBlocks...)
	return append(out, s.FVGs...)
}

// ZoneScore returns the best score among POIs in the given direction
func (s IntermediateStructure) ZoneScore(dir analysis.Direction) float64 {
	best := 0.0
	for _, p := range s.POIs() {
		if p.Direction == dir && p.Score > best {
			best = p.Score
		}
	}
	return best
}

// AnalyzeIntermediate checks 4h and 1h structure against the HTF bias and
// ranks the unmitigated order blocks and unfilled gaps of both timeframes.
func AnalyzeIntermediate(h4, h1 []market.Candle, htf Bias, acfg analysis.Config, cfg IntermediateConfig) (IntermediateStructure, error) {
	if len(h1) < cfg.MinH1Candles {
		return IntermediateStructure{}, fmt.Errorf("%w: %d 1h candles, need %d", market.ErrInsufficientData, len(h1), cfg.MinH1Candles)
	}

	is := IntermediateStructure{
		H4Structure: htf.H4Structure,
		H1Structure: analysis.NewStructureAnalyzer(market.TF1h, acfg.StructureFor(market.TF1h)).Analyze(h1),
	}
	if is.H4Structure.Timeframe == "" {
		is.H4Structure = analysis.NewStructureAnalyzer(market.TF4h, acfg.StructureFor(market.TF4h)).Analyze(h4)
	}

	is.scoreAgreement(htf.Direction)

	var obs, fvgs []POI
	series := []struct {
		tf        market.Timeframe
		candles   []market.Candle
		structure analysis.Structure
	}{
		{market.TF4h, h4, is.H4Structure},
		{market.TF1h, h1, is.H1Structure},
	}
	for _, s := range series {
		maxOBAge := acfg.OrderBlocks.MaxAge[s.tf]
		for _, ob := range analysis.ActiveOrderBlocks(analysis.NewOrderBlockDetector(s.tf, acfg.OrderBlocks).Detect(s.candles)) {
			alignment := zoneAlignment(ob.Direction, htf.Direction, cfg.CounterZoneScore)
			obs = append(obs, POI{
				Kind:      POIOrderBlock,
				Timeframe: s.tf,
				Direction: ob.Direction,
				Low:       ob.Low,
				High:      ob.High,
				Age:       ob.Age,
				Strength:  ob.Strength,
				Score:     alignment * (0.6*recency(ob.Age, maxOBAge, len(s.candles)) + 0.4*ob.Strength),
			})
		}

		maxFVGAge := acfg.FVG.MaxAge[s.tf]
		fd := analysis.NewFVGDetector(s.tf, acfg.FVG)
		for _, g := range analysis.GetUnfilledFVGs(fd.DetectFVGs(s.candles, s.structure.Label)) {
			alignment := zoneAlignment(g.Direction, htf.Direction, cfg.CounterZoneScore)
			fvgs = append(fvgs, POI{
				Kind:      POIFVG,
				Timeframe: s.tf,
				Direction: g.Direction,
				Low:       g.Low,
				High:      g.High,
				Age:       g.Age,
				Strength:  g.AlignmentScore,
				Score:     alignment * (0.5*g.AlignmentScore + 0.5*recency(g.Age, maxFVGAge, len(s.candles))),
			})
		}

		pools := analysis.NewLiquidityMapper(s.tf, acfg.Liquidity).Map(s.candles, s.structure.AllSwings)
		is.Pools = append(is.Pools, pools...)
		if s.tf == market.TF1h {
			if sweep, ok := analysis.RecentSweep(pools, len(s.candles)-1, acfg.Liquidity.SweepRecency); ok {
				is.Sweep = &sweep
			}
		}
	}

	is.OrderBlocks = topPOIs(obs, cfg.MaxOrderBlocks)
	is.FVGs = topPOIs(fvgs, cfg.MaxFVGs)
	is.Reasoning = append(is.Reasoning, fmt.Sprintf("selected %d order blocks and %d fair value gaps", len(is.OrderBlocks), len(is.FVGs)))
	if is.Sweep != nil {
		is.Reasoning = append(is.Reasoning, fmt.Sprintf("1h %s-side liquidity swept at %.4f", is.Sweep.Side, is.Sweep.Level))
	}

	return is, nil
}

// scoreAgreement gives each agreeing timeframe +0.5 and each conflicting one -0.5
func (is *IntermediateStructure) scoreAgreement(dir analysis.Direction) {
	sum := 0.0
	conflicts := 0
	agrees := 0
	for _, s := range []analysis.Structure{is.H4Structure, is.H1Structure} {
		switch s.Direction() {
		case analysis.Neutral:
			is.Reasoning = append(is.Reasoning, fmt.Sprintf("%s structure neutral (%s)", s.Timeframe, s.Label))
		case dir:
			sum += 0.5
			agrees++
			is.Reasoning = append(is.Reasoning, fmt.Sprintf("%s %s confirms %s bias", s.Timeframe, s.Label, dir))
		default:
			sum -= 0.5
			conflicts++
			is.Reasoning = append(is.Reasoning, fmt.Sprintf("%s %s conflicts with %s bias", s.Timeframe, s.Label, dir))
		}
	}

	is.Agreement = sum
	if is.Agreement < 0 {
		is.Agreement = 0
	}

	switch {
	case conflicts > 0:
		is.Status = StatusWeakened
	case agrees == 2:
		is.Status = StatusConfirmed
	case agrees == 1:
		is.Status = StatusPartial
	default:
		is.Status = StatusUnconfirmed
	}

	switch {
	case sum > 0:
		is.Direction = dir
	case sum < 0:
		is.Direction = dir.Opposite()
	default:
		is.Direction = analysis.Neutral
	}
}

func zoneAlignment(zone, bias analysis.Direction, counter float64) float64 {
	if zone == bias {
		return 1.0
	}
	return counter
}

// recency is 1 for the newest candle and falls linearly with age
func recency(age, maxAge, n int) float64 {
	if maxAge <= 0 || maxAge > n {
		maxAge = n
	}
	if maxAge <= 0 {
		return 0
	}
	r := 1 - float64(age)/float64(maxAge+1)
	if r < 0 {
		return 0
	}
	return r
}

// topPOIs sorts by score then age and keeps the first n
func topPOIs(pois []POI, n int) []POI {
	sort.SliceStable(pois, func(i, j int) bool {
		if pois[i].Score != pois[j].Score {
			return pois[i].Score > pois[j].Score
		}
		return pois[i].Age < pois[j].Age
	})
	if len(pois) > n {
		pois = pois[:n]
	}
	return pois
}
