package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/metrics"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Requests refused
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

// ErrOpen is returned while the breaker refuses requests
var ErrOpen = errors.New("circuit breaker open")

// Config holds circuit breaker configuration
type Config struct {
	Enabled             bool `json:"enabled"`
	MaxConsecutiveFails int  `json:"max_consecutive_failures"` // failures in a row before tripping
	CooldownSeconds     int  `json:"cooldown_seconds"`         // open period after a trip
}

// DefaultConfig returns safe defaults
func DefaultConfig() *Config {
	return &Config{
		Enabled:             true,
		MaxConsecutiveFails: 5,
		CooldownSeconds:     30,
	}
}

// CircuitBreaker stops calling a failing dependency until a cooldown passes
type CircuitBreaker struct {
	name             string
	config           *Config
	state            BreakerState
	consecutiveFails int
	totalFailures    int
	totalTrips       int
	lastTripTime     time.Time
	tripReason       string
	probing          bool
	mu               sync.RWMutex
	onTrip           func(reason string)
	onReset          func()
	now              func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config *Config) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// OnTrip sets callback for when breaker trips
func (cb *CircuitBreaker) OnTrip(handler func(reason string)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onTrip = handler
}

// OnReset sets callback for when breaker resets
func (cb *CircuitBreaker) OnReset(handler func()) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onReset = handler
}

// Allow reports whether a request may go through. In half-open state a
// single probe is admitted at a time.
func (cb *CircuitBreaker) Allow() (bool, string) {
	if !cb.config.Enabled {
		return true, ""
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		elapsed := cb.now().Sub(cb.lastTripTime)
		cooldown := time.Duration(cb.config.CooldownSeconds) * time.Second
		if elapsed < cooldown {
			remaining := cooldown - elapsed
			return false, fmt.Sprintf("circuit breaker open, cooldown remaining: %v (reason: %s)",
				remaining.Round(time.Second), cb.tripReason)
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return true, ""
	case StateHalfOpen:
		if cb.probing {
			return false, "circuit breaker half open, probe in flight"
		}
		cb.probing = true
	}
	return true, ""
}

// RecordSuccess closes the breaker after a successful probe
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	cb.consecutiveFails = 0
	recovered := cb.state == StateHalfOpen
	if recovered {
		cb.state = StateClosed
		cb.probing = false
		cb.tripReason = ""
	}
	onReset := cb.onReset
	cb.mu.Unlock()

	if recovered && onReset != nil {
		go onReset()
	}
}

// RecordFailure counts a failed call and trips the breaker when needed
func (cb *CircuitBreaker) RecordFailure(err error) {
	if !cb.config.Enabled {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.totalFailures++

	switch {
	case cb.state == StateHalfOpen:
		cb.trip(fmt.Sprintf("probe failed: %v", err))
	case cb.consecutiveFails >= cb.config.MaxConsecutiveFails:
		cb.trip(fmt.Sprintf("consecutive failures: %d, last: %v", cb.consecutiveFails, err))
	}
}

// trip opens the circuit breaker
func (cb *CircuitBreaker) trip(reason string) {
	cb.state = StateOpen
	cb.probing = false
	cb.lastTripTime = cb.now()
	cb.tripReason = reason
	cb.totalTrips++

	if cb.onTrip != nil {
		go cb.onTrip(reason)
	}
}

func (cb *CircuitBreaker) releaseProbe() {
	cb.mu.Lock()
	cb.probing = false
	cb.mu.Unlock()
}

// ForceReset manually resets the circuit breaker
func (cb *CircuitBreaker) ForceReset() {
	cb.mu.Lock()
	cb.state = StateClosed
	cb.consecutiveFails = 0
	cb.probing = false
	cb.tripReason = ""
	onReset := cb.onReset
	cb.mu.Unlock()

	if onReset != nil {
		go onReset()
	}
}

// GetState returns current breaker state
func (cb *CircuitBreaker) GetState() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns current statistics
func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return map[string]interface{}{
		"name":              cb.name,
		"state":             string(cb.state),
		"consecutive_fails": cb.consecutiveFails,
		"total_failures":    cb.totalFailures,
		"total_trips":       cb.totalTrips,
		"trip_reason":       cb.tripReason,
		"last_trip_time":    cb.lastTripTime,
	}
}

// GuardedProvider wraps a candle provider with a circuit breaker
type GuardedProvider struct {
	inner   market.Provider
	breaker *CircuitBreaker
}

// Guard wraps p so that repeated failures stop hitting the upstream.
// Trips are logged, counted and published on bus when it is non-nil.
func Guard(name string, p market.Provider, config *Config, bus *events.EventBus) *GuardedProvider {
	cb := NewCircuitBreaker(name, config)
	log := logging.WithComponent("circuit").WithField("provider", name)
	cb.OnTrip(func(reason string) {
		log.Warn("provider circuit tripped", "reason", reason)
		metrics.RecordProviderError(name)
		if bus != nil {
			bus.PublishProviderTripped(name, reason)
		}
	})
	cb.OnReset(func() {
		log.Info("provider circuit closed")
	})
	return &GuardedProvider{inner: p, breaker: cb}
}

// Breaker exposes the underlying breaker
func (g *GuardedProvider) Breaker() *CircuitBreaker {
	return g.breaker
}

// GetCandles implements market.Provider
func (g *GuardedProvider) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	if ok, reason := g.breaker.Allow(); !ok {
		return nil, fmt.Errorf("%w: %s", ErrOpen, reason)
	}
	candles, err := g.inner.GetCandles(ctx, symbol, tf, limit)
	if err != nil {
		// a cancelled caller says nothing about upstream health
		if errors.Is(err, context.Canceled) {
			g.breaker.releaseProbe()
			return nil, err
		}
		g.breaker.RecordFailure(err)
		return nil, err
	}
	g.breaker.RecordSuccess()
	return candles, nil
}
