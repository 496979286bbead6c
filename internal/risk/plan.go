package risk

import (
	"fmt"
	"math"
	"strings"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/volatility"
)

// Config groups the entry, stop and take-profit settings
type Config struct {
	Entries    EntryConfig        `json:"entries"`
	Stop       StopConfig         `json:"stop"`
	TakeProfit TakeProfitConfig   `json:"take_profit"`
	TickSizes  map[string]float64 `json:"tick_sizes,omitempty"`
}

// DefaultConfig returns the standard planner settings
func DefaultConfig() Config {
	return Config{
		Entries:    DefaultEntryConfig(),
		Stop:       DefaultStopConfig(),
		TakeProfit: DefaultTakeProfitConfig(),
		TickSizes:  map[string]float64{},
	}
}

// Validate rejects ladders that could never satisfy the signal invariants
func (c Config) Validate() error {
	if len(c.Entries.Allocations) == 0 {
		return fmt.Errorf("at least one entry allocation is required")
	}
	if s := sum(c.Entries.Allocations); math.Abs(s-100) > allocationTolerance {
		return fmt.Errorf("entry allocations must sum to 100, got %.2f", s)
	}
	if len(c.Entries.FallbackOffsetsPercent) != len(c.Entries.Allocations) {
		return fmt.Errorf("need one fallback offset per entry allocation")
	}
	for i := 1; i < len(c.Entries.FallbackOffsetsPercent); i++ {
		if c.Entries.FallbackOffsetsPercent[i] < c.Entries.FallbackOffsetsPercent[i-1] {
			return fmt.Errorf("fallback offsets must be non-decreasing")
		}
	}
	if len(c.TakeProfit.Multiples) == 0 || len(c.TakeProfit.Multiples) != len(c.TakeProfit.Allocations) {
		return fmt.Errorf("need one take-profit allocation per multiple")
	}
	if s := sum(c.TakeProfit.Allocations); math.Abs(s-100) > allocationTolerance {
		return fmt.Errorf("take-profit allocations must sum to 100, got %.2f", s)
	}
	for i, m := range c.TakeProfit.Multiples {
		if m <= 0 || (i > 0 && m <= c.TakeProfit.Multiples[i-1]) {
			return fmt.Errorf("take-profit multiples must be positive and strictly increasing")
		}
	}
	if c.Stop.MinDistanceATR < 0 || c.Stop.MinDistancePercent < 0 || c.Stop.SwingBufferATR < 0 {
		return fmt.Errorf("stop distances must not be negative")
	}
	for symbol, tick := range c.TickSizes {
		if tick <= 0 {
			return fmt.Errorf("tick size for %s must be positive", symbol)
		}
	}
	return nil
}

func sum(vs []float64) float64 {
	total := 0.0
	for _, v := range vs {
		total += v
	}
	return total
}

// Input is what the planner needs from the analysis stages
type Input struct {
	Symbol           string
	Side             Side
	Price            float64
	Regime           volatility.Regime
	ATR              float64
	OrderBlocks      []analysis.Zone
	FVGs             []analysis.Zone
	Swings           []analysis.SwingPoint
	LiquidityTargets []float64
}

// Plan is a complete, validated set of scaled entries sharing one stop and ladder
type Plan struct {
	Side        Side              `json:"side"`
	Regime      volatility.Regime `json:"regime"`
	Zone        EntryZone         `json:"zone"`
	Entries     []ScaledEntry     `json:"entries"`
	StopLoss    float64           `json:"stop_loss"`
	Stop        StopResult        `json:"stop"`
	TakeProfits []TakeProfit      `json:"take_profits"`
	RiskUnit    float64           `json:"risk_unit"`
	RiskReward  float64           `json:"risk_reward"`
}

// ProposedEntry returns the tick-rounded entry 1 that BuildPlan places for in.
// ok is false when no entry ladder can be laid out.
func ProposedEntry(in Input, cfg Config) (price float64, ok bool) {
	ep, err := PlanEntries(in.Side, in.Price, in.OrderBlocks, in.FVGs, in.Regime, cfg.Entries)
	if err != nil {
		return 0, false
	}
	return RoundToTick(ep.Levels[0].Price, cfg.TickSizes[strings.ToUpper(in.Symbol)], RoundNearest), true
}

// BuildPlan computes entries first, derives the stop from the deepest entry,
// then builds the ladder from entry 1 and validates the result.
func BuildPlan(in Input, cfg Config) (Plan, error) {
	ep, err := PlanEntries(in.Side, in.Price, in.OrderBlocks, in.FVGs, in.Regime, cfg.Entries)
	if err != nil {
		return Plan{}, err
	}

	tick := cfg.TickSizes[strings.ToUpper(in.Symbol)]
	for i := range ep.Levels {
		ep.Levels[i].Price = RoundToTick(ep.Levels[i].Price, tick, RoundNearest)
	}

	stop, err := RefineStop(in.Side, ep.Deepest().Price, in.Swings, in.ATR, cfg.Stop)
	if err != nil {
		return Plan{}, err
	}
	stopPrice := RoundToTick(stop.Price, tick, lossward(in.Side))

	entry1 := ep.Levels[0].Price
	r, err := RiskUnit(entry1, stopPrice)
	if err != nil {
		return Plan{}, err
	}

	tps, err := BuildTakeProfits(in.Side, entry1, stopPrice, in.LiquidityTargets, cfg.TakeProfit)
	if err != nil {
		return Plan{}, err
	}
	if tick > 0 {
		for i := range tps {
			tps[i].Price = RoundToTick(tps[i].Price, tick, lossward(in.Side))
		}
		tps = NormalizeTakeProfits(in.Side, entry1, r, tps, cfg.TakeProfit)
		for i := range tps {
			tps[i].Price = RoundToTick(tps[i].Price, tick, lossward(in.Side))
		}
	}

	entries := make([]ScaledEntry, 0, len(ep.Levels))
	for _, lvl := range ep.Levels {
		ladder := make([]TakeProfit, len(tps))
		copy(ladder, tps)
		entries = append(entries, ScaledEntry{
			EntryPrice:        lvl.Price,
			AllocationPercent: lvl.AllocationPercent,
			OrderKind:         lvl.OrderKind,
			StopLoss:          stopPrice,
			TakeProfits:       ladder,
			Status:            StatusPending,
		})
	}
	entries = NormalizeEntries(in.Side, entries)

	if err := ValidateEntries(in.Side, entries); err != nil {
		return Plan{}, err
	}

	stop.Price = stopPrice
	return Plan{
		Side:        in.Side,
		Regime:      in.Regime,
		Zone:        ep.Zone,
		Entries:     entries,
		StopLoss:    stopPrice,
		Stop:        stop,
		TakeProfits: tps,
		RiskUnit:    r,
		RiskReward:  RiskReward(entry1, r, tps),
	}, nil
}
