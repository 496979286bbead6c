package volatility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/market/markettest"
)

// flat builds n candles whose true range is exactly rng around price
func flat(tf market.Timeframe, n int, price, rng float64) []market.Candle {
	b := markettest.NewBuilder(tf, 0, price)
	for i := 0; i < n; i++ {
		b.Add(price, price+rng/2, price-rng/2, price, 100)
	}
	return b.Candles()
}

func TestATR(t *testing.T) {
	candles := flat(market.TF15m, 20, 100, 1)
	assert.InDelta(t, 1.0, ATR(candles, 14), 1e-9)
	assert.InDelta(t, 1.0, ATRPercent(candles, 14), 1e-9)

	assert.Zero(t, ATR(candles[:14], 14), "needs period+1 candles")
}

func TestTrueRangeUsesPreviousClose(t *testing.T) {
	prev := market.Candle{Close: 100}
	gapUp := market.Candle{Open: 103, High: 104, Low: 103, Close: 103.5}
	assert.InDelta(t, 4.0, TrueRange(gapUp, prev), 1e-9)
}

func TestClassifyRegime(t *testing.T) {
	th := DefaultRegimeThresholds()
	assert.Equal(t, RegimeLow, ClassifyRegime(0.2, th))
	assert.Equal(t, RegimeNormal, ClassifyRegime(0.35, th))
	assert.Equal(t, RegimeNormal, ClassifyRegime(0.8, th))
	assert.Equal(t, RegimeHigh, ClassifyRegime(1.2, th))
}

func TestCheckGate(t *testing.T) {
	cfg := DefaultGateConfig()
	cfg.Symbols["BTCUSDT"] = Thresholds{Min15mPercent: 0.15, Min1hPercent: 0.30}

	tests := []struct {
		name     string
		m15      []market.Candle
		h1       []market.Candle
		passed   bool
		failedTF market.Timeframe
	}{
		{
			name:     "15m below minimum",
			m15:      flat(market.TF15m, 30, 100, 0.10),
			h1:       flat(market.TF1h, 30, 100, 1.0),
			failedTF: market.TF15m,
		},
		{
			name:     "1h below minimum",
			m15:      flat(market.TF15m, 30, 100, 0.5),
			h1:       flat(market.TF1h, 30, 100, 0.2),
			failedTF: market.TF1h,
		},
		{
			name:     "insufficient 1h candles",
			m15:      flat(market.TF15m, 30, 100, 0.5),
			h1:       flat(market.TF1h, 10, 100, 1.0),
			failedTF: market.TF1h,
		},
		{
			name:   "both above minimum",
			m15:    flat(market.TF15m, 30, 100, 0.5),
			h1:     flat(market.TF1h, 30, 100, 1.0),
			passed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckGate("BTCUSDT", tt.m15, tt.h1, cfg)
			assert.Equal(t, tt.passed, res.Passed, res.Reason)
			assert.Equal(t, tt.failedTF, res.FailedTimeframe)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestCheckGateReportsMeasuredATR(t *testing.T) {
	res := CheckGate("BTCUSDT", flat(market.TF15m, 30, 100, 0.10), flat(market.TF1h, 30, 100, 1.0), DefaultGateConfig())
	require.False(t, res.Passed)
	assert.InDelta(t, 0.10, res.ATRPercent15m, 1e-9)
	assert.Contains(t, res.Reason, "15m")
}

func TestThresholdsForOverride(t *testing.T) {
	cfg := DefaultGateConfig()
	cfg.Symbols["DOGEUSDT"] = Thresholds{Min15mPercent: 0.4, Min1hPercent: 0.8}

	assert.Equal(t, 0.4, cfg.ThresholdsFor("dogeusdt").Min15mPercent)
	assert.Equal(t, cfg.Default, cfg.ThresholdsFor("BTCUSDT"))
	assert.NoError(t, cfg.Validate())

	cfg.Period = 0
	assert.Error(t, cfg.Validate())
}
