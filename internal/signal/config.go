package signal

import (
	"fmt"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/bias"
	"smc-signal-engine/internal/confluence"
	"smc-signal-engine/internal/risk"
	"smc-signal-engine/internal/volatility"
)

// EntryLevels is the number of scaled entries every signal carries
const EntryLevels = 3

// Config is every threshold the engine reads. It is passed by value and
// never mutated during evaluation.
type Config struct {
	Analysis   analysis.Config             `json:"analysis"`
	Gate       volatility.GateConfig       `json:"volatility_gate"`
	Regime     volatility.RegimeThresholds `json:"regime"`
	Bias       bias.Config                 `json:"bias"`
	Confidence confluence.Config           `json:"confidence"`
	Risk       risk.Config                 `json:"risk"`
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		Analysis:   analysis.DefaultConfig(),
		Gate:       volatility.DefaultGateConfig(),
		Regime:     volatility.DefaultRegimeThresholds(),
		Bias:       bias.DefaultConfig(),
		Confidence: confluence.DefaultConfig(),
		Risk:       risk.DefaultConfig(),
	}
}

// Validate checks every section; errors here are fatal at startup
func (c Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("volatility gate: %w", err)
	}
	if c.Regime.LowBelowPercent < 0 || c.Regime.HighAbovePercent <= c.Regime.LowBelowPercent {
		return fmt.Errorf("regime: high threshold %.3f must exceed low threshold %.3f", c.Regime.HighAbovePercent, c.Regime.LowBelowPercent)
	}
	if err := c.Bias.Validate(); err != nil {
		return fmt.Errorf("bias: %w", err)
	}
	if err := c.Confidence.Validate(); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	if c.Confidence.MinConfidence <= 0 {
		return fmt.Errorf("confidence: min confidence must be positive")
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if n := len(c.Risk.Entries.Allocations); n != EntryLevels {
		return fmt.Errorf("risk: need %d entry levels, got %d", EntryLevels, n)
	}
	return nil
}
