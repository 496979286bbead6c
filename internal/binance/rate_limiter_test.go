package binance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryAcquireWeightWindow(t *testing.T) {
	r := NewRateLimiter(10)
	now := time.Unix(0, 0)
	r.now = func() time.Time { return now }
	r.weightResetAt = now.Add(time.Minute)

	for i := 0; i < 5; i++ {
		require.True(t, r.TryAcquire(2).Acquired)
	}
	res := r.TryAcquire(2)
	assert.False(t, res.Acquired)
	assert.Equal(t, "weight_limit_exceeded", res.Reason)
	assert.Equal(t, time.Minute, res.WaitTime)

	now = now.Add(61 * time.Second)
	assert.True(t, r.TryAcquire(2).Acquired)
}

func TestRecordErrorOpensCircuit(t *testing.T) {
	r := NewRateLimiter(100)
	now := time.Unix(0, 0)
	r.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		r.RecordError()
	}
	assert.True(t, r.TryAcquire(1).Acquired)

	for i := 0; i < 5; i++ {
		r.RecordError()
	}
	assert.False(t, r.TryAcquire(1).Acquired)

	now = now.Add(2 * time.Minute)
	assert.True(t, r.TryAcquire(1).Acquired)
}

func TestWaitHonoursContext(t *testing.T) {
	r := NewRateLimiter(100)
	r.Ban(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx, 1), context.DeadlineExceeded)

	assert.Error(t, r.Wait(context.Background(), 500))
}
