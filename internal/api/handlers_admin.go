package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smc-signal-engine/internal/cache"
	"smc-signal-engine/internal/circuit"
	"smc-signal-engine/internal/logging"
)

// BreakerControl is the candle source circuit breaker as the API sees it
type BreakerControl interface {
	GetState() circuit.BreakerState
	GetStats() map[string]interface{}
	ForceReset()
}

// CacheControl is the Redis candle cache as the API sees it
type CacheControl interface {
	GetStats() cache.Stats
	DeletePattern(ctx context.Context, pattern string) error
}

// SetBreaker exposes the provider breaker on /health and the admin routes
func (s *Server) SetBreaker(b BreakerControl) {
	s.breaker = b
}

// SetCache exposes the candle cache on /health and the admin routes
func (s *Server) SetCache(c CacheControl) {
	s.cache = c
}

// handleResetBreaker closes a tripped provider breaker
func (s *Server) handleResetBreaker(c *gin.Context) {
	if s.breaker == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Circuit breaker not configured")
		return
	}
	previous := s.breaker.GetState()
	s.breaker.ForceReset()
	logging.WithComponent("api").Warn("provider circuit breaker reset by admin", "previous_state", string(previous))
	successResponse(c, gin.H{
		"previous_state": previous,
		"breaker":        s.breaker.GetStats(),
	})
}

// handleClearCache drops cached candles (all, or one symbol via ?symbol=)
// and the scanner's per-symbol results
func (s *Server) handleClearCache(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	cleared := []string{}

	if s.cache != nil {
		if err := s.cache.DeletePattern(c.Request.Context(), cache.CandlePattern(symbol)); err != nil {
			errorResponse(c, http.StatusServiceUnavailable, "Failed to clear candle cache: "+err.Error())
			return
		}
		cleared = append(cleared, "candles")
	}
	if s.scanner != nil {
		s.scanner.ClearCache()
		cleared = append(cleared, "scanner")
	}

	successResponse(c, gin.H{
		"cleared": cleared,
		"symbol":  symbol,
	})
}
