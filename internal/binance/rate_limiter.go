package binance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smc-signal-engine/internal/logging"
)

// AcquireResult represents the result of a non-blocking TryAcquire attempt
type AcquireResult struct {
	Acquired     bool          // Whether the slot was successfully acquired
	WaitTime     time.Duration // Suggested wait time if not acquired
	Reason       string        // Explanation for denial (empty if acquired)
	WeightBudget int           // Remaining weight budget after this request
}

// RateLimiter tracks request weight per minute and honours exchange bans
type RateLimiter struct {
	mu sync.Mutex

	// Circuit breaker state
	circuitOpen bool
	banUntil    time.Time

	// Weight tracking (Binance uses weight-based limits)
	currentWeight int
	weightResetAt time.Time
	maxWeight     int

	// Backoff state
	consecutiveErrors int
	lastErrorAt       time.Time

	now func() time.Time
}

// Endpoint weights for the spot market data API
var endpointWeights = map[string]int{
	"/api/v3/klines":       2,
	"/api/v3/exchangeInfo": 20,
	"/api/v3/ticker/price": 2,
}

// NewRateLimiter creates a limiter allowing maxWeight per minute
func NewRateLimiter(maxWeight int) *RateLimiter {
	if maxWeight <= 0 {
		maxWeight = 1200
	}
	return &RateLimiter{
		maxWeight:     maxWeight,
		weightResetAt: time.Now().Add(time.Minute),
		now:           time.Now,
	}
}

func endpointWeight(endpoint string) int {
	if w, ok := endpointWeights[endpoint]; ok {
		return w
	}
	return 1
}

// TryAcquire atomically checks AND records weight without blocking
func (r *RateLimiter) TryAcquire(weight int) AcquireResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	// Reset counters if window expired
	if now.After(r.weightResetAt) {
		r.currentWeight = 0
		r.weightResetAt = now.Add(time.Minute)
	}

	// Check circuit breaker first
	if r.circuitOpen && now.Before(r.banUntil) {
		return AcquireResult{
			WaitTime: r.banUntil.Sub(now),
			Reason:   "circuit_breaker_open",
		}
	}

	// Close circuit if ban expired
	if r.circuitOpen {
		r.circuitOpen = false
		logging.WithComponent("binance").Info("rate limiter circuit closed, ban expired")
	}

	if r.currentWeight+weight > r.maxWeight {
		wait := r.weightResetAt.Sub(now)
		if wait <= 0 {
			wait = 100 * time.Millisecond
		}
		return AcquireResult{
			WaitTime:     wait,
			Reason:       "weight_limit_exceeded",
			WeightBudget: r.maxWeight - r.currentWeight,
		}
	}

	r.currentWeight += weight
	r.consecutiveErrors = 0
	return AcquireResult{
		Acquired:     true,
		WeightBudget: r.maxWeight - r.currentWeight,
	}
}

// Wait blocks until weight can be acquired or ctx is done
func (r *RateLimiter) Wait(ctx context.Context, weight int) error {
	if weight > r.maxWeight {
		return fmt.Errorf("request weight %d exceeds budget %d", weight, r.maxWeight)
	}
	for {
		res := r.TryAcquire(weight)
		if res.Acquired {
			return nil
		}
		timer := time.NewTimer(res.WaitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SyncWeight adopts the server-reported used weight when it is higher
func (r *RateLimiter) SyncWeight(used int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if used > r.currentWeight {
		r.currentWeight = used
	}
}

// RecordError tracks consecutive failures; five in a row opens the circuit
// with exponential backoff capped at one minute
func (r *RateLimiter) RecordError() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.consecutiveErrors++
	r.lastErrorAt = r.now()
	if r.consecutiveErrors >= 5 {
		backoff := time.Duration(1<<uint(r.consecutiveErrors-5)) * time.Second
		if backoff > time.Minute {
			backoff = time.Minute
		}
		r.open(backoff)
	}
}

// Ban opens the circuit for d (a 429/418 Retry-After), at least one second
func (r *RateLimiter) Ban(d time.Duration) {
	if d < time.Second {
		d = time.Second
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open(d)
}

func (r *RateLimiter) open(d time.Duration) {
	until := r.now().Add(d)
	if until.After(r.banUntil) {
		r.banUntil = until
	}
	if !r.circuitOpen {
		logging.WithComponent("binance").Warn("rate limiter circuit opened", "duration", d.String())
	}
	r.circuitOpen = true
}

// Stats returns the current limiter state
func (r *RateLimiter) Stats() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]interface{}{
		"current_weight":     r.currentWeight,
		"max_weight":         r.maxWeight,
		"circuit_open":       r.circuitOpen,
		"ban_until":          r.banUntil,
		"consecutive_errors": r.consecutiveErrors,
		"last_error_at":      r.lastErrorAt,
	}
}
