package signal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/confluence"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/market/markettest"
	"smc-signal-engine/internal/risk"
)

const start = int64(1_700_000_000_000)

func trend(tf market.Timeframe, n int, dir int) []market.Candle {
	price := 100.0
	if dir < 0 {
		price = 200
	}
	return markettest.Trending(tf, start, price, n, 0.5, dir)
}

func chop(tf market.Timeframe, n int, amp float64) []market.Candle {
	return markettest.NewBuilder(tf, start, 100).Chop(n, amp).Candles()
}

func snapshot(symbol string, m15, h1, h4, d1 []market.Candle) *market.Snapshot {
	snap := market.NewSnapshot(symbol)
	snap.Set(market.TF15m, m15)
	snap.Set(market.TF1h, h1)
	snap.Set(market.TF4h, h4)
	snap.Set(market.TF1d, d1)
	return snap
}

func bullishSnapshot() *market.Snapshot {
	return snapshot("BTCUSDT", trend(market.TF15m, 200, 1), trend(market.TF1h, 200, 1), trend(market.TF4h, 200, 1), trend(market.TF1d, 60, 1))
}

func bearishSnapshot() *market.Snapshot {
	return snapshot("ETHUSDT", trend(market.TF15m, 200, -1), trend(market.TF1h, 200, -1), trend(market.TF4h, 200, -1), trend(market.TF1d, 60, -1))
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, logging.Nop())
	require.NoError(t, err)
	return e
}

func assertInvariants(t *testing.T, sig *Signal) {
	t.Helper()
	require.Len(t, sig.ScaledEntries, EntryLevels)

	total := 0.0
	for _, e := range sig.ScaledEntries {
		total += e.AllocationPercent
		assert.Equal(t, sig.StopLoss, e.StopLoss, "shared stop")
		assert.Equal(t, sig.TakeProfits, e.TakeProfits, "shared ladder")
	}
	assert.InDelta(t, 100, total, 1)

	sign := sig.Side.Sign()
	for i := 1; i < len(sig.ScaledEntries); i++ {
		prev, cur := sig.ScaledEntries[i-1].EntryPrice, sig.ScaledEntries[i].EntryPrice
		assert.GreaterOrEqual(t, (prev-cur)*sign, 0.0, "entry %d out of order", i+1)
	}
	for _, e := range sig.ScaledEntries {
		assert.Greater(t, (e.EntryPrice-sig.StopLoss)*sign, 0.0, "stop crosses entry %.4f", e.EntryPrice)
	}

	entry1 := sig.ScaledEntries[0].EntryPrice
	last := entry1
	for _, tp := range sig.TakeProfits {
		assert.Greater(t, (tp.Price-last)*sign, 0.0, "take-profit %.4f not beyond %.4f", tp.Price, last)
		last = tp.Price
	}
	assert.Greater(t, sig.RiskReward, 0.0)
}

func TestGenerateSignalBullish(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	snap := bullishSnapshot()

	res := e.GenerateSignal(snap)
	require.True(t, res.Accepted(), "%+v", res.Rejection)
	require.Nil(t, res.Rejection)

	sig := res.Signal
	assert.Equal(t, "BTCUSDT", sig.Symbol)
	assert.Equal(t, analysis.Bullish, sig.Direction)
	assert.Equal(t, risk.Long, sig.Side)
	assert.Equal(t, market.TF15m, sig.ExecutionTimeframe)
	assert.GreaterOrEqual(t, sig.Confidence, DefaultConfig().Confidence.MinConfidence)
	assert.Equal(t, confluence.VeryStrong, sig.StrengthLabel)
	assert.Equal(t, snap.LastClose(market.TF15m), sig.GeneratedAt)
	assert.Equal(t, snap.Get(market.TF15m)[199].Close, sig.MarketPrice)
	assert.NotEmpty(t, sig.ID)
	assert.NotEmpty(t, sig.Reasoning)
	assertInvariants(t, sig)

	d := res.Diagnostics
	assert.Equal(t, StageComplete, d.StageReached)
	require.NotNil(t, d.Gate)
	assert.True(t, d.Gate.Passed)
	require.NotNil(t, d.Confidence)
	assert.Equal(t, 0.2, d.Confidence.AlignmentBonus)
	require.NotNil(t, d.Plan)
	assert.Equal(t, sig.StopLoss, d.Plan.StopLoss)
	// the POI bonus is judged at the proposed entry, not the market price
	assert.Equal(t, sig.ScaledEntries[0].EntryPrice, d.Confidence.EntryPrice)
}

func TestGenerateSignalBearish(t *testing.T) {
	res := newEngine(t, DefaultConfig()).GenerateSignal(bearishSnapshot())
	require.True(t, res.Accepted(), "%+v", res.Rejection)

	assert.Equal(t, analysis.Bearish, res.Signal.Direction)
	assert.Equal(t, risk.Short, res.Signal.Side)
	assertInvariants(t, res.Signal)
}

func TestGenerateSignalRejections(t *testing.T) {
	lowConfidence := DefaultConfig()
	lowConfidence.Confidence.BaseSpan = 0
	lowConfidence.Confidence.AlignmentBonus = 0
	lowConfidence.Confidence.SweepBonus = 0
	lowConfidence.Confidence.POIBonus = 0

	broken := bullishSnapshot()
	m15 := broken.Get(market.TF15m)
	m15[10].High = m15[10].Low - 1

	tests := []struct {
		name  string
		cfg   Config
		snap  *market.Snapshot
		stage Stage
		code  RejectionCode
	}{
		{
			name:  "15m volatility below minimum",
			snap:  snapshot("BTCUSDT", chop(market.TF15m, 200, 0.05), trend(market.TF1h, 200, 1), trend(market.TF4h, 200, 1), trend(market.TF1d, 60, 1)),
			stage: StageVolatilityGate,
			code:  CodeVolatility15m,
		},
		{
			name:  "1h volatility below minimum",
			snap:  snapshot("BTCUSDT", trend(market.TF15m, 200, 1), chop(market.TF1h, 200, 0.05), trend(market.TF4h, 200, 1), trend(market.TF1d, 60, 1)),
			stage: StageVolatilityGate,
			code:  CodeVolatility1h,
		},
		{
			name:  "missing 15m series",
			snap:  snapshot("BTCUSDT", nil, trend(market.TF1h, 200, 1), trend(market.TF4h, 200, 1), trend(market.TF1d, 60, 1)),
			stage: StageVolatilityGate,
			code:  CodeInsufficientData,
		},
		{
			name:  "neutral higher timeframes",
			snap:  snapshot("BTCUSDT", chop(market.TF15m, 200, 0.5), chop(market.TF1h, 200, 0.5), chop(market.TF4h, 200, 0.5), chop(market.TF1d, 60, 0.5)),
			stage: StageHTFBias,
			code:  CodeNeutralBias,
		},
		{
			name:  "too few daily candles",
			snap:  snapshot("BTCUSDT", trend(market.TF15m, 200, 1), trend(market.TF1h, 200, 1), trend(market.TF4h, 200, 1), trend(market.TF1d, 10, 1)),
			stage: StageHTFBias,
			code:  CodeInsufficientData,
		},
		{
			name:  "too few 1h candles for intermediate",
			snap:  snapshot("BTCUSDT", trend(market.TF15m, 200, 1), trend(market.TF1h, 40, 1), trend(market.TF4h, 200, 1), trend(market.TF1d, 60, 1)),
			stage: StageIntermediate,
			code:  CodeInsufficientData,
		},
		{
			name:  "15m against bias",
			snap:  snapshot("BTCUSDT", trend(market.TF15m, 200, -1), trend(market.TF1h, 200, 1), trend(market.TF4h, 200, 1), trend(market.TF1d, 60, 1)),
			stage: StageExecution,
			code:  CodeAlignmentConflict,
		},
		{
			name:  "confidence below minimum",
			cfg:   lowConfidence,
			snap:  bullishSnapshot(),
			stage: StageConfidence,
			code:  CodeLowConfidence,
		},
		{
			name:  "inconsistent candle",
			snap:  broken,
			stage: StageValidation,
			code:  CodeInvalidData,
		},
		{
			name:  "nil snapshot",
			snap:  nil,
			stage: StageValidation,
			code:  CodeInvalidData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if cfg.Risk.Entries.Allocations == nil {
				cfg = DefaultConfig()
			}
			res := newEngine(t, cfg).GenerateSignal(tt.snap)

			require.False(t, res.Accepted())
			require.NotNil(t, res.Rejection)
			assert.Nil(t, res.Signal)
			assert.Equal(t, tt.stage, res.Rejection.Stage, res.Rejection.Reason)
			assert.Equal(t, tt.code, res.Rejection.Code, res.Rejection.Reason)
			assert.NotEmpty(t, res.Rejection.Reason)
			assert.Equal(t, tt.stage, res.Diagnostics.StageReached)
		})
	}
}

func TestVolatilityGateSkipsDownstream(t *testing.T) {
	snap := snapshot("BTCUSDT", chop(market.TF15m, 200, 0.05), trend(market.TF1h, 200, 1), trend(market.TF4h, 200, 1), trend(market.TF1d, 60, 1))
	res := newEngine(t, DefaultConfig()).GenerateSignal(snap)

	require.NotNil(t, res.Rejection)
	assert.Contains(t, res.Rejection.Reason, "15m")
	require.NotNil(t, res.Diagnostics.Gate)
	assert.Equal(t, market.TF15m, res.Diagnostics.Gate.FailedTimeframe)
	assert.Zero(t, res.Diagnostics.Gate.ATRPercent1h, "1h not measured after 15m failed")
	assert.Nil(t, res.Diagnostics.HTFBias)
	assert.Nil(t, res.Diagnostics.Intermediate)
	assert.Nil(t, res.Diagnostics.Execution)
	assert.Nil(t, res.Diagnostics.Confidence)
	assert.Nil(t, res.Diagnostics.Plan)
}

func TestGenerateSignalIdempotent(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	snap := bullishSnapshot()
	before := snap.Clone()

	first := e.GenerateSignal(snap)
	second := e.GenerateSignal(snap)

	assert.Equal(t, first, second)
	assert.Equal(t, before, snap, "input candles must not be mutated")
}

func TestGenerateSignalConcurrentSymbols(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	want := map[string]Result{
		"BTCUSDT": e.GenerateSignal(bullishSnapshot()),
		"ETHUSDT": e.GenerateSignal(bearishSnapshot()),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	got := map[string][]Result{}
	for i := 0; i < 4; i++ {
		for _, snap := range []*market.Snapshot{bullishSnapshot(), bearishSnapshot()} {
			wg.Add(1)
			go func(s *market.Snapshot) {
				defer wg.Done()
				res := e.GenerateSignal(s)
				mu.Lock()
				got[res.Symbol] = append(got[res.Symbol], res)
				mu.Unlock()
			}(snap)
		}
	}
	wg.Wait()

	for symbol, results := range got {
		for _, res := range results {
			assert.Equal(t, want[symbol], res)
		}
	}
}

func TestSymbolNormalized(t *testing.T) {
	snap := bullishSnapshot()
	snap.Symbol = "btcusdt"

	res := newEngine(t, DefaultConfig()).GenerateSignal(snap)
	require.True(t, res.Accepted())
	assert.Equal(t, "BTCUSDT", res.Symbol)
	assert.Equal(t, "BTCUSDT", res.Signal.Symbol)
	assert.Equal(t, "btcusdt", snap.Symbol)
}
