package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/market"
)

func orderBlockCandles() []market.Candle {
	return withTimes([]market.Candle{
		{Open: 100, High: 100.5, Low: 99.5, Close: 100.2, Volume: 100},
		{Open: 100.2, High: 100.6, Low: 99.9, Close: 100.1, Volume: 100},
		// Momentum candle: range 2.1 against a prior body of 0.1
		{Open: 100.1, High: 102.1, Low: 100.0, Close: 102, Volume: 200},
		{Open: 102, High: 102.8, Low: 101.9, Close: 102.6, Volume: 100},
		{Open: 102.6, High: 103.3, Low: 102.5, Close: 103.1, Volume: 100},
		{Open: 103.1, High: 103.2, Low: 102.6, Close: 102.7, Volume: 100},
	})
}

func TestOrderBlockDetection(t *testing.T) {
	od := NewOrderBlockDetector(market.TF1h, DefaultConfig().OrderBlocks)
	blocks := od.Detect(orderBlockCandles())

	require.Len(t, blocks, 1)
	ob := blocks[0]
	assert.Equal(t, Bullish, ob.Direction)
	assert.Equal(t, 2, ob.Index)
	assert.Equal(t, 3, ob.Age)
	assert.Equal(t, 100.0, ob.Low)
	assert.Equal(t, 102.1, ob.High)
	assert.Equal(t, 2, ob.Continuation)
	assert.InDelta(t, 0.4, ob.Strength, 1e-9)
	assert.InDelta(t, 2.0, ob.VolumeRatio, 1e-9)
	assert.False(t, ob.Mitigated)
	assert.Len(t, ActiveOrderBlocks(blocks), 1)
}

func TestOrderBlockMitigatedByCloseBeyondZone(t *testing.T) {
	candles := orderBlockCandles()
	candles = append(candles, market.Candle{Open: 102.7, High: 102.8, Low: 99.5, Close: 99.8, Volume: 100})
	candles = withTimes(candles)

	blocks := NewOrderBlockDetector(market.TF1h, DefaultConfig().OrderBlocks).Detect(candles)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].Mitigated)
	assert.Empty(t, ActiveOrderBlocks(blocks))
}

func TestOrderBlockRequiresVolume(t *testing.T) {
	candles := orderBlockCandles()
	candles[2].Volume = 110

	blocks := NewOrderBlockDetector(market.TF1h, DefaultConfig().OrderBlocks).Detect(candles)
	assert.Empty(t, blocks)
}

func TestOrderBlockRequiresContinuation(t *testing.T) {
	candles := orderBlockCandles()
	// second follow-through candle turns bearish
	candles[4] = market.Candle{OpenTime: candles[4].OpenTime, Open: 102.6, High: 102.7, Low: 102.2, Close: 102.3, Volume: 100}

	blocks := NewOrderBlockDetector(market.TF1h, DefaultConfig().OrderBlocks).Detect(candles)
	assert.Empty(t, blocks)
}

func TestOrderBlockMaxAge(t *testing.T) {
	cfg := DefaultConfig().OrderBlocks
	cfg.MaxAge = map[market.Timeframe]int{market.TF1h: 2}

	blocks := NewOrderBlockDetector(market.TF1h, cfg).Detect(orderBlockCandles())
	assert.Empty(t, blocks)
}
