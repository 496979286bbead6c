package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/market"
)

func peak(highs ...float64) []market.Candle {
	candles := make([]market.Candle, len(highs))
	for i, h := range highs {
		candles[i] = market.Candle{
			OpenTime: int64(i) * 60000,
			Open:     h - 0.5,
			High:     h,
			Low:      h - 1,
			Close:    h - 0.5,
			Volume:   100,
		}
	}
	return candles
}

func TestSwingDetectorFindsStrictExtremes(t *testing.T) {
	swings := NewSwingDetector(2).Detect(peak(1, 2, 3, 5, 3, 2, 1))

	require.Len(t, swings, 1)
	assert.Equal(t, SwingHigh, swings[0].Kind)
	assert.Equal(t, 3, swings[0].Index)
	assert.Equal(t, 5.0, swings[0].Price)
	// average candle: relative volume 1 and relative range 1
	assert.InDelta(t, 0.5, swings[0].Strength, 1e-9)
}

func TestSwingDetectorRejectsEqualHighs(t *testing.T) {
	swings := NewSwingDetector(2).Detect(peak(1, 2, 5, 5, 2, 1, 0))
	highs, _ := SplitSwings(swings)
	assert.Empty(t, highs)
}

func TestSwingDetectorNeedsEnoughCandles(t *testing.T) {
	assert.Nil(t, NewSwingDetector(3).Detect(peak(1, 2, 3, 2, 1)))
}

func TestLastSwing(t *testing.T) {
	swings := []SwingPoint{
		{Kind: SwingHigh, Index: 1},
		{Kind: SwingLow, Index: 3},
		{Kind: SwingHigh, Index: 5},
	}
	s, ok := LastSwing(swings, SwingLow)
	require.True(t, ok)
	assert.Equal(t, 3, s.Index)

	_, ok = LastSwing(swings[:1], SwingLow)
	assert.False(t, ok)
}
