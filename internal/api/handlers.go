package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"smc-signal-engine/internal/circuit"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
)

// EvaluateRequest carries caller-supplied candles keyed by timeframe ("15m", "1h", "4h", "1d")
type EvaluateRequest struct {
	Symbol  string                     `json:"symbol" binding:"required"`
	Candles map[string][]market.Candle `json:"candles" binding:"required"`
}

// ScanRequest optionally overrides the configured watchlist
type ScanRequest struct {
	Symbols []string `json:"symbols"`
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := gin.H{}
	healthy := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = "unhealthy"
			healthy = false
			continue
		}
		deps[name] = "healthy"
	}

	status := "healthy"
	code := http.StatusOK
	body := gin.H{
		"dependencies":  deps,
		"live_evaluate": s.service.HasProvider(),
		"time":          time.Now().UTC(),
	}
	if s.breaker != nil {
		body["candle_source"] = s.breaker.GetStats()
		if s.breaker.GetState() != circuit.StateClosed {
			status = "degraded"
		}
	}
	if s.cache != nil {
		body["cache"] = s.cache.GetStats()
	}
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	body["status"] = status
	c.JSON(code, body)
}

// handleEvaluate runs the engine on candles supplied in the request body.
// A rejection is a successful evaluation.
func (s *Server) handleEvaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	snap := market.NewSnapshot(req.Symbol)
	for key, candles := range req.Candles {
		tf, err := market.ParseTimeframe(key)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		snap.Set(tf, candles)
	}

	res := s.service.EvaluateSnapshot(snap)
	logging.FromContext(c.Request.Context()).WithComponent("api").Debug("snapshot evaluated",
		"symbol", res.Symbol, "accepted", res.Accepted())
	successResponse(c, res)
}

// handleGetSignal fetches fresh candles for a symbol and evaluates them
func (s *Server) handleGetSignal(c *gin.Context) {
	if !s.service.HasProvider() {
		errorResponse(c, http.StatusServiceUnavailable, "No candle provider configured")
		return
	}
	symbol := strings.ToUpper(c.Param("symbol"))

	res, err := s.service.Evaluate(c.Request.Context(), symbol)
	if err != nil {
		errorResponse(c, http.StatusBadGateway, fmt.Sprintf("Failed to fetch candles: %v", err))
		return
	}
	successResponse(c, res)
}

// handleScan evaluates the watchlist (or the symbols in the body) now
func (s *Server) handleScan(c *gin.Context) {
	if s.scanner == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Scanner not configured")
		return
	}

	var req ScanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
	}

	successResponse(c, s.scanner.Scan(c.Request.Context(), req.Symbols))
}

// handleLastScan returns the most recent scan, from the loop or an API call
func (s *Server) handleLastScan(c *gin.Context) {
	if s.scanner == nil {
		errorResponse(c, http.StatusServiceUnavailable, "Scanner not configured")
		return
	}
	last := s.scanner.GetLastResult()
	if last == nil {
		errorResponse(c, http.StatusNotFound, "No scan has completed yet")
		return
	}
	successResponse(c, last)
}

// handleEngineConfig returns the effective engine thresholds
func (s *Server) handleEngineConfig(c *gin.Context) {
	successResponse(c, s.service.Engine().Config())
}
