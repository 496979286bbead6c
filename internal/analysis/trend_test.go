package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/market/markettest"
)

func analyzer(tf market.Timeframe) *StructureAnalyzer {
	return NewStructureAnalyzer(tf, DefaultConfig().StructureFor(tf))
}

func TestStructureBullishBOS(t *testing.T) {
	candles := markettest.Trending(market.TF1h, 0, 100, 200, 0.5, 1)
	s := analyzer(market.TF1h).Analyze(candles)

	assert.Equal(t, BullishBOS, s.Label, s.Reason)
	assert.Equal(t, Bullish, s.Direction())
	assert.NotEmpty(t, s.Swings)
	assert.GreaterOrEqual(t, len(s.AllSwings), len(s.Swings))
}

func TestStructureBearishBOS(t *testing.T) {
	candles := markettest.Trending(market.TF4h, 0, 200, 200, 0.5, -1)
	s := analyzer(market.TF4h).Analyze(candles)

	assert.Equal(t, BearishBOS, s.Label, s.Reason)
}

func TestStructureBearishCHoCH(t *testing.T) {
	b := markettest.NewBuilder(market.TF1h, 0, 100)
	b.Zigzag(13, 6, 3, 0.5, 1)
	b.Steps(6, 0.5)   // higher high
	b.Steps(12, -0.5) // breaks the last higher low
	b.Steps(5, 0.5)   // bounce confirms the new swing low

	s := analyzer(market.TF1h).Analyze(b.Candles())
	assert.Equal(t, BearishCHoCH, s.Label, s.Reason)
}

func TestStructureConsolidationWithoutSwings(t *testing.T) {
	candles := markettest.NewBuilder(market.TF1h, 0, 100).Chop(60, 0.5).Candles()
	s := analyzer(market.TF1h).Analyze(candles)

	assert.Equal(t, Consolidation, s.Label)
	assert.Equal(t, Neutral, s.Direction())
}

func TestStructureConsolidationWhenRangeCompressed(t *testing.T) {
	b := markettest.NewBuilder(market.TF1h, 0, 100)
	b.Zigzag(12, 6, 3, 0.5, 1)
	b.Chop(25, 0.02)

	s := analyzer(market.TF1h).Analyze(b.Candles())
	assert.Equal(t, Consolidation, s.Label)
	assert.Contains(t, s.Reason, "recent range")
}

func TestCloseTrend(t *testing.T) {
	up := markettest.NewBuilder(market.TF1d, 0, 100).Steps(30, 1).Candles()
	assert.Equal(t, Bullish, CloseTrend(up, 20))

	down := markettest.NewBuilder(market.TF1d, 0, 100).Steps(30, -1).Candles()
	assert.Equal(t, Bearish, CloseTrend(down, 20))

	assert.Equal(t, Neutral, CloseTrend(up[:10], 20))
}

func TestStructureLabelHelpers(t *testing.T) {
	assert.True(t, BullishBOS.IsBOS())
	assert.False(t, BullishBOS.IsCHoCH())
	assert.True(t, BearishCHoCH.IsCHoCH())
	assert.Equal(t, Bearish, BearishCHoCH.Direction())
	assert.Equal(t, Bullish, Bearish.Opposite())
	assert.Equal(t, -1.0, Bearish.Sign())
}
