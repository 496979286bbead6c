package circuit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/market"
)

type flakyProvider struct {
	fail  atomic.Bool
	calls atomic.Int32
}

func (p *flakyProvider) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	p.calls.Add(1)
	if p.fail.Load() {
		return nil, errors.New("upstream down")
	}
	return []market.Candle{{OpenTime: 0, Open: 1, High: 2, Low: 0.5, Close: 1.5}}, nil
}

func TestBreakerTripsAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("test", &Config{Enabled: true, MaxConsecutiveFails: 3, CooldownSeconds: 10})
	now := time.Unix(1000, 0)
	cb.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _ := cb.Allow()
		require.True(t, ok)
		cb.RecordFailure(errors.New("boom"))
	}
	assert.Equal(t, StateClosed, cb.GetState())

	cb.RecordFailure(errors.New("boom"))
	assert.Equal(t, StateOpen, cb.GetState())

	ok, reason := cb.Allow()
	assert.False(t, ok)
	assert.Contains(t, reason, "cooldown remaining")

	now = now.Add(11 * time.Second)
	ok, _ = cb.Allow()
	assert.True(t, ok)
	assert.Equal(t, StateHalfOpen, cb.GetState())

	// only one probe at a time
	ok, _ = cb.Allow()
	assert.False(t, ok)

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 1, cb.GetStats()["total_trips"])
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", &Config{Enabled: true, MaxConsecutiveFails: 1, CooldownSeconds: 5})
	now := time.Unix(1000, 0)
	cb.now = func() time.Time { return now }

	cb.RecordFailure(errors.New("boom"))
	now = now.Add(6 * time.Second)
	ok, _ := cb.Allow()
	require.True(t, ok)

	cb.RecordFailure(errors.New("still down"))
	assert.Equal(t, StateOpen, cb.GetState())
	assert.Contains(t, cb.GetStats()["trip_reason"], "probe failed")
}

func TestBreakerDisabled(t *testing.T) {
	cb := NewCircuitBreaker("test", &Config{Enabled: false, MaxConsecutiveFails: 1})
	for i := 0; i < 5; i++ {
		cb.RecordFailure(errors.New("boom"))
	}
	ok, _ := cb.Allow()
	assert.True(t, ok)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestGuardedProviderShortCircuits(t *testing.T) {
	bus := events.NewEventBus()
	tripped := make(chan events.Event, 1)
	bus.Subscribe(events.EventProviderTripped, func(e events.Event) { tripped <- e })

	inner := &flakyProvider{}
	inner.fail.Store(true)
	g := Guard("binance", inner, &Config{Enabled: true, MaxConsecutiveFails: 2, CooldownSeconds: 60}, bus)

	for i := 0; i < 2; i++ {
		_, err := g.GetCandles(context.Background(), "BTCUSDT", market.TF15m, 10)
		require.Error(t, err)
	}
	_, err := g.GetCandles(context.Background(), "BTCUSDT", market.TF15m, 10)
	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, int32(2), inner.calls.Load())

	select {
	case e := <-tripped:
		assert.Equal(t, "binance", e.Data["provider"])
	case <-time.After(time.Second):
		t.Fatal("expected a provider tripped event")
	}

	g.Breaker().ForceReset()
	inner.fail.Store(false)
	candles, err := g.GetCandles(context.Background(), "BTCUSDT", market.TF15m, 10)
	require.NoError(t, err)
	assert.Len(t, candles, 1)
}
