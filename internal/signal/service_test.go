package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
)

type snapshotProvider struct {
	snaps map[string]*market.Snapshot
	err   error
}

func (p *snapshotProvider) GetCandles(_ context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	if p.err != nil {
		return nil, p.err
	}
	snap, ok := p.snaps[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	candles := snap.Get(tf)
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func newService(t *testing.T, p market.Provider, bus *events.EventBus) *Service {
	t.Helper()
	return NewService(newEngine(t, DefaultConfig()), p, nil, bus, logging.Nop())
}

func waitEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event published")
		return events.Event{}
	}
}

func TestServiceEvaluatePublishesSignal(t *testing.T) {
	bus := events.NewEventBus()
	ch := make(chan events.Event, 1)
	bus.Subscribe(events.EventSignalGenerated, func(e events.Event) { ch <- e })

	p := &snapshotProvider{snaps: map[string]*market.Snapshot{"BTCUSDT": bullishSnapshot()}}
	svc := newService(t, p, bus)

	res, err := svc.Evaluate(context.Background(), " btcusdt ")
	require.NoError(t, err)
	require.True(t, res.Accepted(), "%+v", res.Rejection)

	ev := waitEvent(t, ch)
	assert.Equal(t, "BTCUSDT", ev.Data["symbol"])
	assert.Equal(t, res.Signal.ID, ev.Data["signal_id"])
}

func TestServiceEvaluateSnapshotPublishesRejection(t *testing.T) {
	bus := events.NewEventBus()
	ch := make(chan events.Event, 1)
	bus.Subscribe(events.EventSignalRejected, func(e events.Event) { ch <- e })

	svc := newService(t, nil, bus)
	snap := snapshot("SOLUSDT", chop(market.TF15m, 200, 0.05), trend(market.TF1h, 200, 1), trend(market.TF4h, 200, 1), trend(market.TF1d, 60, 1))

	res := svc.EvaluateSnapshot(snap)
	require.NotNil(t, res.Rejection)

	ev := waitEvent(t, ch)
	assert.Equal(t, string(CodeVolatility15m), ev.Data["code"])
	assert.Equal(t, string(StageVolatilityGate), ev.Data["stage"])
}

func TestServiceEvaluateErrors(t *testing.T) {
	_, err := newService(t, nil, nil).Evaluate(context.Background(), "BTCUSDT")
	assert.Error(t, err)

	p := &snapshotProvider{err: errors.New("exchange down")}
	_, err = newService(t, p, events.NewEventBus()).Evaluate(context.Background(), "BTCUSDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exchange down")

	_, err = newService(t, &snapshotProvider{}, nil).Evaluate(context.Background(), "  ")
	assert.Error(t, err)
}
