package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/market"
)

func quietCandles(n int) []market.Candle {
	candles := make([]market.Candle, n)
	for i := range candles {
		candles[i] = market.Candle{Open: 105, High: 106, Low: 104, Close: 105, Volume: 100}
	}
	return withTimes(candles)
}

func TestLiquidityMapperClustersAndSweeps(t *testing.T) {
	candles := quietCandles(12)
	// wick above the highs that closes back below
	candles[8] = market.Candle{OpenTime: candles[8].OpenTime, Open: 105, High: 110.3, Low: 104, Close: 109.5, Volume: 100}
	// close below the low breaks it
	candles[10] = market.Candle{OpenTime: candles[10].OpenTime, Open: 105, High: 106, Low: 98.9, Close: 99, Volume: 100}

	swings := []SwingPoint{
		{Price: 110, Index: 2, Kind: SwingHigh},
		{Price: 100, Index: 4, Kind: SwingLow},
		{Price: 110.05, Index: 6, Kind: SwingHigh},
	}

	pools := NewLiquidityMapper(market.TF1h, DefaultConfig().Liquidity).Map(candles, swings)
	require.Len(t, pools, 2)

	buy, sell := pools[0], pools[1]

	assert.Equal(t, BuySide, buy.Side)
	assert.True(t, buy.Broken)
	assert.Equal(t, Neutral, buy.SweepDirection())

	assert.Equal(t, SellSide, sell.Side)
	assert.Equal(t, 2, sell.Touches)
	assert.Equal(t, 6, sell.Index)
	assert.Equal(t, 110.05, sell.Level)
	assert.InDelta(t, 110.05*1.0005, sell.Price, 1e-9)
	assert.InDelta(t, 2.0/3.0, sell.Strength, 1e-9)
	assert.True(t, sell.Swept)
	assert.False(t, sell.Broken)
	assert.Equal(t, 8, sell.SweepIndex)
	assert.Equal(t, Bearish, sell.SweepDirection())

	recent, ok := RecentSweep(pools, 11, 12)
	require.True(t, ok)
	assert.Equal(t, SellSide, recent.Side)

	_, ok = RecentSweep(pools, 30, 12)
	assert.False(t, ok, "sweep is too old")
}

func TestTargetsBeyond(t *testing.T) {
	pools := []LiquidityPool{
		{Side: SellSide, Price: 112},
		{Side: SellSide, Price: 108},
		{Side: SellSide, Price: 115, Swept: true},
		{Side: BuySide, Price: 95},
		{Side: BuySide, Price: 98},
		{Side: BuySide, Price: 90, Broken: true},
	}

	assert.Equal(t, []float64{108, 112}, TargetsBeyond(pools, 105, Bullish, 0))
	assert.Equal(t, []float64{98, 95}, TargetsBeyond(pools, 105, Bearish, 0))
	assert.Equal(t, []float64{108}, TargetsBeyond(pools, 105, Bullish, 1))
	assert.Empty(t, TargetsBeyond(pools, 120, Bullish, 0))
}

func TestZoneHelpers(t *testing.T) {
	z := Zone{Low: 98, High: 100}
	assert.True(t, z.Contains(99))
	assert.True(t, z.Overlaps(Zone{Low: 99, High: 101}))
	assert.False(t, z.Overlaps(Zone{Low: 100.5, High: 101}))
	assert.Zero(t, z.DistancePercent(99.5))
	assert.InDelta(t, 5.0/105*100, z.DistancePercent(105), 1e-9)
}
