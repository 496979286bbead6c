package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"smc-signal-engine/internal/logging"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"entry allocations off", func(c *Config) { c.Risk.Entries.Allocations = []float64{50, 25, 15} }},
		{"two entry levels", func(c *Config) {
			c.Risk.Entries.Allocations = []float64{50, 50}
			c.Risk.Entries.FallbackOffsetsPercent = []float64{0, 1}
		}},
		{"take-profit allocations off", func(c *Config) { c.Risk.TakeProfit.Allocations = []float64{40, 30, 20} }},
		{"confidence weights off", func(c *Config) { c.Confidence.HTFWeight = 0.9 }},
		{"zero min confidence", func(c *Config) { c.Confidence.MinConfidence = 0 }},
		{"inverted regime", func(c *Config) { c.Regime.HighAbovePercent = 0.1 }},
		{"zero gate period", func(c *Config) { c.Gate.Period = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())

			_, err := NewEngine(cfg, logging.Nop())
			assert.Error(t, err)
		})
	}
}
