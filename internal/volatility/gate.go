package volatility

import (
	"fmt"
	"strings"

	"smc-signal-engine/internal/market"
)

// Thresholds are the minimum ATR percentages a symbol must show
type Thresholds struct {
	Min15mPercent float64 `json:"min_15m_atr_percent"`
	Min1hPercent  float64 `json:"min_1h_atr_percent"`
}

// GateConfig configures the volatility pre-filter
type GateConfig struct {
	Period  int                   `json:"period"`
	Default Thresholds            `json:"default"`
	Symbols map[string]Thresholds `json:"symbols,omitempty"`
}

// DefaultGateConfig returns the gate settings used when none are supplied
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Period: 14,
		Default: Thresholds{
			Min15mPercent: 0.15,
			Min1hPercent:  0.30,
		},
		Symbols: map[string]Thresholds{},
	}
}

// ThresholdsFor returns the per-symbol override or the default thresholds
func (c GateConfig) ThresholdsFor(symbol string) Thresholds {
	if t, ok := c.Symbols[strings.ToUpper(symbol)]; ok {
		return t
	}
	return c.Default
}

// Validate checks the gate configuration
func (c GateConfig) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("volatility gate period must be positive, got %d", c.Period)
	}
	if c.Default.Min15mPercent < 0 || c.Default.Min1hPercent < 0 {
		return fmt.Errorf("volatility gate thresholds must not be negative")
	}
	for symbol, t := range c.Symbols {
		if t.Min15mPercent < 0 || t.Min1hPercent < 0 {
			return fmt.Errorf("volatility gate thresholds for %s must not be negative", symbol)
		}
	}
	return nil
}

// GateResult records what the gate measured and why it passed or failed
type GateResult struct {
	Passed           bool             `json:"passed"`
	Reason           string           `json:"reason"`
	FailedTimeframe  market.Timeframe `json:"failed_timeframe,omitempty"`
	InsufficientData bool             `json:"insufficient_data,omitempty"`
	ATR15m           float64          `json:"atr_15m"`
	ATR1h            float64          `json:"atr_1h"`
	ATRPercent15m    float64          `json:"atr_percent_15m"`
	ATRPercent1h     float64          `json:"atr_percent_1h"`
	Thresholds       Thresholds       `json:"thresholds"`
}

// CheckGate rejects symbols whose 15m or 1h volatility is too low to trade.
// The 15m series is checked first.
func CheckGate(symbol string, m15, h1 []market.Candle, cfg GateConfig) GateResult {
	t := cfg.ThresholdsFor(symbol)
	res := GateResult{Thresholds: t}

	checks := []struct {
		tf      market.Timeframe
		candles []market.Candle
		min     float64
		atr     *float64
		pct     *float64
	}{
		{market.TF15m, m15, t.Min15mPercent, &res.ATR15m, &res.ATRPercent15m},
		{market.TF1h, h1, t.Min1hPercent, &res.ATR1h, &res.ATRPercent1h},
	}

	for _, c := range checks {
		if len(c.candles) < cfg.Period+1 {
			res.FailedTimeframe = c.tf
			res.InsufficientData = true
			res.Reason = fmt.Sprintf("insufficient %s candles for ATR(%d): have %d", c.tf, cfg.Period, len(c.candles))
			return res
		}
		*c.atr = ATR(c.candles, cfg.Period)
		*c.pct = ATRPercent(c.candles, cfg.Period)
		if *c.pct < c.min {
			res.FailedTimeframe = c.tf
			res.Reason = fmt.Sprintf("%s ATR %.3f%% below minimum %.3f%%", c.tf, *c.pct, c.min)
			return res
		}
	}

	res.Passed = true
	res.Reason = fmt.Sprintf("15m ATR %.3f%%, 1h ATR %.3f%%", res.ATRPercent15m, res.ATRPercent1h)
	return res
}
