package risk

import (
	"fmt"
	"math"
	"sort"
)

// TakeProfitConfig controls the exit ladder
type TakeProfitConfig struct {
	Multiples           []float64 `json:"multiples"`
	Allocations         []float64 `json:"allocations"`
	UseLiquidityTargets bool      `json:"use_liquidity_targets"`
	DedupeFraction      float64   `json:"dedupe_fraction"`
}

// DefaultTakeProfitConfig returns the 1R/2R/3R ladder at 40/30/30
func DefaultTakeProfitConfig() TakeProfitConfig {
	return TakeProfitConfig{
		Multiples:           []float64{1, 2, 3},
		Allocations:         []float64{40, 30, 30},
		UseLiquidityTargets: true,
		DedupeFraction:      0.01,
	}
}

// RiskUnit returns |entry - stop| or ErrZeroRisk when it is effectively zero
func RiskUnit(entry, stop float64) (float64, error) {
	r := math.Abs(entry - stop)
	if r == 0 || r <= math.Abs(entry)*1e-9 {
		return 0, fmt.Errorf("%w: entry %.8f stop %.8f", ErrZeroRisk, entry, stop)
	}
	return r, nil
}

// BuildTakeProfits lays the ladder from entry 1 in R multiples. The last rung
// targets the nearest liquidity beyond the previous rung when one exists.
func BuildTakeProfits(side Side, entry, stop float64, targets []float64, cfg TakeProfitConfig) ([]TakeProfit, error) {
	r, err := RiskUnit(entry, stop)
	if err != nil {
		return nil, err
	}
	n := len(cfg.Multiples)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty ladder", ErrTakeProfitOrder)
	}

	sign := side.Sign()
	tps := make([]TakeProfit, 0, n)
	for i, m := range cfg.Multiples {
		tps = append(tps, TakeProfit{Price: entry + sign*m*r, RiskMultiple: m})
		if i == n-1 && n > 1 && cfg.UseLiquidityTargets {
			prev := entry + sign*cfg.Multiples[n-2]*r
			if t, ok := nearestBeyond(side, prev, targets); ok {
				tps[i] = TakeProfit{Price: t, RiskMultiple: math.Abs(t-entry) / r}
			}
		}
	}

	return NormalizeTakeProfits(side, entry, r, tps, cfg), nil
}

func nearestBeyond(side Side, level float64, targets []float64) (float64, bool) {
	best, found := 0.0, false
	for _, t := range targets {
		if (t-level)*side.Sign() <= 0 {
			continue
		}
		if !found || math.Abs(t-level) < math.Abs(best-level) {
			best, found = t, true
		}
	}
	return best, found
}

// NormalizeTakeProfits repairs a ladder: rungs on the wrong side of entry are
// dropped, rungs are sorted away from entry and de-duplicated, missing rungs
// are regenerated one R further out, and allocations are reassigned.
func NormalizeTakeProfits(side Side, entry, r float64, tps []TakeProfit, cfg TakeProfitConfig) []TakeProfit {
	sign := side.Sign()
	n := len(cfg.Multiples)
	tol := r * cfg.DedupeFraction

	var valid []TakeProfit
	for _, tp := range tps {
		if (tp.Price-entry)*sign > 0 {
			valid = append(valid, tp)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return (valid[i].Price-entry)*sign < (valid[j].Price-entry)*sign
	})

	var out []TakeProfit
	for _, tp := range valid {
		if len(out) > 0 && math.Abs(tp.Price-out[len(out)-1].Price) <= tol {
			continue
		}
		out = append(out, tp)
	}

	for len(out) < n {
		next := cfg.Multiples[len(out)]
		if len(out) > 0 {
			last := math.Abs(out[len(out)-1].Price-entry) / r
			if next <= last {
				next = math.Floor(last) + 1
			}
		}
		out = append(out, TakeProfit{Price: entry + sign*next*r})
	}
	if len(out) > n {
		out = out[:n]
	}

	for i := range out {
		out[i].AllocationPercent = cfg.Allocations[i]
		out[i].RiskMultiple = math.Abs(out[i].Price-entry) / r
	}
	return out
}

// RiskReward returns the allocation-weighted reward of the ladder in R
func RiskReward(entry, r float64, tps []TakeProfit) float64 {
	if r <= 0 {
		return 0
	}
	total, weight := 0.0, 0.0
	for _, tp := range tps {
		total += math.Abs(tp.Price-entry) / r * tp.AllocationPercent
		weight += tp.AllocationPercent
	}
	if weight == 0 {
		return 0
	}
	return total / weight
}
