package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/metrics"
)

// Service fetches candles through a Provider, runs the engine and reports
// the outcome to the event bus and metrics.
type Service struct {
	engine   *Engine
	provider market.Provider
	limits   map[market.Timeframe]int
	bus      *events.EventBus
	logger   *logging.Logger
}

// NewService creates a service. provider and bus may be nil; without a
// provider only EvaluateSnapshot is usable.
func NewService(engine *Engine, provider market.Provider, limits map[market.Timeframe]int, bus *events.EventBus, logger *logging.Logger) *Service {
	if limits == nil {
		limits = market.DefaultLimits()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		engine:   engine,
		provider: provider,
		limits:   limits,
		bus:      bus,
		logger:   logger.WithComponent("signal-service"),
	}
}

// Engine returns the underlying engine
func (s *Service) Engine() *Engine {
	return s.engine
}

// HasProvider reports whether live evaluation is available
func (s *Service) HasProvider() bool {
	return s.provider != nil
}

// Evaluate fetches a fresh snapshot and evaluates it. The error is non-nil
// only when candles could not be fetched; rejections are a normal Result.
func (s *Service) Evaluate(ctx context.Context, symbol string) (Result, error) {
	if s.provider == nil {
		return Result{}, fmt.Errorf("no candle provider configured")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Result{}, fmt.Errorf("symbol is required")
	}

	start := time.Now()
	snap, err := market.FetchSnapshot(ctx, s.provider, symbol, s.limits)
	if err != nil {
		metrics.RecordProviderError("snapshot")
		s.logger.WithError(err).Error("candle fetch failed", "symbol", symbol)
		if s.bus != nil {
			s.bus.PublishError("signal-service", "candle fetch failed for "+symbol, err)
		}
		return Result{}, fmt.Errorf("fetch %s candles: %w", symbol, err)
	}

	res := s.evaluate(snap)
	elapsed := time.Since(start)
	metrics.ObserveEvaluation(elapsed)
	s.logger.WithDuration(elapsed).Debug("live evaluation finished", "symbol", symbol, "accepted", res.Accepted())
	return res, nil
}

// EvaluateSnapshot evaluates caller-supplied candles
func (s *Service) EvaluateSnapshot(snap *market.Snapshot) Result {
	start := time.Now()
	res := s.evaluate(snap)
	metrics.ObserveEvaluation(time.Since(start))
	return res
}

func (s *Service) evaluate(snap *market.Snapshot) Result {
	res := s.engine.GenerateSignal(snap)
	s.report(res)
	return res
}

func (s *Service) report(res Result) {
	if res.Accepted() {
		sig := res.Signal
		metrics.RecordGenerated(sig.Symbol, string(sig.Direction))
		if s.bus != nil {
			s.bus.PublishSignal(sig.ID, sig.Symbol, string(sig.Direction), string(sig.StrengthLabel), sig.Confidence, sig.RiskReward)
		}
		return
	}
	if res.Rejection == nil {
		return
	}
	metrics.RecordRejected(res.Symbol, string(res.Rejection.Stage))
	if s.bus != nil {
		s.bus.PublishRejection(res.Symbol, string(res.Rejection.Stage), string(res.Rejection.Code), res.Rejection.Reason)
	}
}
