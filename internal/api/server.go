package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/metrics"
	"smc-signal-engine/internal/scanner"
	"smc-signal-engine/internal/signal"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	service     *signal.Service
	scanner     *scanner.Scanner
	config      ServerConfig
	rateLimiter *RateLimiter
	checks      map[string]HealthCheck
	breaker     BreakerControl
	cache       CacheControl
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// LiveRequestsPerMinute bounds endpoints that fetch candles upstream
	LiveRequestsPerMinute int
}

// NewServer creates a new API server. scan may be nil; checks are reported by /health.
func NewServer(config ServerConfig, service *signal.Service, scan *scanner.Scanner, checks map[string]HealthCheck) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.LiveRequestsPerMinute <= 0 {
		config.LiveRequestsPerMinute = 120
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) == 0 || (len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = config.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "X-Trace-ID"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		service:     service,
		scanner:     scan,
		config:      config,
		rateLimiter: NewRateLimiter(config.LiveRequestsPerMinute, time.Minute),
		checks:      checks,
	}

	server.setupRoutes()
	return server
}

// requestLogger attaches a trace ID to every request and logs its outcome
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, _ := logging.WithTraceContext(c.Request.Context())
		traceID := logging.TraceIDFromContext(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Trace-ID", traceID)

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log := logging.APIContext(c.Request.Method, path, c.Writer.Status()).WithTraceID(traceID)
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request failed", "latency_ms", time.Since(start).Milliseconds())
			return
		}
		log.Debug("request served", "latency_ms", time.Since(start).Milliseconds())
	}
}

// rateLimitMiddleware limits endpoints that hit the candle provider
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if !s.rateLimiter.Allow(path) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   true,
				"message": "Too many requests to this endpoint, slow down to protect the candle provider",
				"path":    path,
			})
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.router.Group("/api")
	{
		api.POST("/signals/evaluate", s.handleEvaluate)
		api.GET("/signals/:symbol", s.rateLimitMiddleware(), s.handleGetSignal)
		api.POST("/scan", s.rateLimitMiddleware(), s.handleScan)
		api.GET("/scan/last", s.handleLastScan)
		api.GET("/config/engine", s.handleEngineConfig)

		admin := api.Group("/admin", s.rateLimitMiddleware())
		admin.POST("/circuit/reset", s.handleResetBreaker)
		admin.POST("/cache/clear", s.handleClearCache)
	}
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	logging.WithComponent("api").Info("starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.WithComponent("api").Info("shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
