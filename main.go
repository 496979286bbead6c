package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/api"
	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/cache"
	"smc-signal-engine/internal/circuit"
	"smc-signal-engine/internal/clickhouse"
	"smc-signal-engine/internal/database"
	"smc-signal-engine/internal/events"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/metrics"
	"smc-signal-engine/internal/scanner"
	"smc-signal-engine/internal/signal"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.json"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized", "level", cfg.LoggingConfig.Level)

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize event bus
	eventBus := events.NewEventBus()
	setupEventLogging(eventBus, logger)

	// Candle provider chain: source -> circuit breaker -> optional Redis cache
	deps, err := buildProvider(ctx, cfg, eventBus)
	if err != nil {
		logger.Fatal("Failed to initialize candle provider", "source", cfg.CandleConfig.Source, "error", err)
	}
	defer deps.close()

	limits, _ := cfg.CandleConfig.TimeframeLimits()
	engine, err := signal.NewEngine(cfg.Engine, logger)
	if err != nil {
		logger.Fatal("Invalid engine configuration", "error", err)
	}
	service := signal.NewService(engine, deps.provider, limits, eventBus, logger)

	scan := scanner.NewScanner(service, eventBus, scanner.ScannerConfig{
		Enabled:      cfg.ScannerConfig.Enabled,
		ScanInterval: config.Seconds(cfg.ScannerConfig.ScanIntervalSeconds),
		Symbols:      cfg.ScannerConfig.Symbols,
		WorkerCount:  cfg.ScannerConfig.WorkerCount,
		CacheTTL:     config.Seconds(cfg.ScannerConfig.CacheTTLSeconds),
		Timeout:      config.Seconds(cfg.ScannerConfig.TimeoutSeconds),
	}, logger)

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: os.Getenv("GIN_MODE") == "release",
		AllowedOrigins: strings.Split(cfg.ServerConfig.AllowedOrigins, ","),
		ReadTimeout:    config.Seconds(cfg.ServerConfig.ReadTimeout),
		WriteTimeout:   config.Seconds(cfg.ServerConfig.WriteTimeout),
	}, service, scan, deps.checks)
	server.SetBreaker(deps.breaker)
	if deps.cache != nil {
		server.SetCache(deps.cache)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server stopped", "error", err)
			stop()
		}
	}()

	scan.Start()

	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.ServerConfig.ShutdownTimeout))
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down web server", "error", err)
	}
	scan.Stop()

	logger.Info("Shutdown complete")
}

// providerDeps is the assembled candle provider plus what main must close and health-check
type providerDeps struct {
	provider market.Provider
	breaker  *circuit.CircuitBreaker
	cache    *cache.CacheService
	checks   map[string]api.HealthCheck
	closers  []func()
}

func (d *providerDeps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildProvider(ctx context.Context, cfg *config.Config, bus *events.EventBus) (*providerDeps, error) {
	deps := &providerDeps{checks: map[string]api.HealthCheck{}}
	source := cfg.CandleConfig.Source

	var base market.Provider
	switch source {
	case config.SourceBinance:
		base = binance.NewClient(binance.Config{
			BaseURL:         cfg.BinanceConfig.BaseURL,
			Timeout:         config.Seconds(cfg.BinanceConfig.TimeoutSeconds),
			ClosedOnly:      cfg.BinanceConfig.ClosedOnly,
			MaxWeightPerMin: cfg.BinanceConfig.MaxWeightPerMin,
		})

	case config.SourcePostgres:
		dbc := cfg.DatabaseConfig
		db, err := database.NewDB(ctx, database.Config{
			Host:     dbc.Host,
			Port:     dbc.Port,
			User:     dbc.User,
			Password: dbc.Password,
			Database: dbc.Database,
			SSLMode:  dbc.SSLMode,
			MaxConns: int32(dbc.MaxConns),
		})
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, db.Close)
		if dbc.Migrate {
			if err := db.RunMigrations(ctx); err != nil {
				deps.close()
				return nil, err
			}
		}
		deps.checks["database"] = db.HealthCheck
		base = database.NewCandleStore(db)

	case config.SourceClickHouse:
		chc := cfg.ClickHouseConfig
		store, err := clickhouse.Open(ctx, clickhouse.Config{
			Addr:     chc.Addrs(),
			Database: chc.Database,
			Username: chc.Username,
			Password: chc.Password,
			Table:    chc.Table,
		})
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, func() { _ = store.Close() })
		if err := store.EnsureSchema(ctx); err != nil {
			deps.close()
			return nil, err
		}
		deps.checks["clickhouse"] = store.Ping
		base = store

	default:
		return nil, fmt.Errorf("unknown candle source %q", source)
	}

	cb := cfg.CircuitBreakerConfig
	guarded := circuit.Guard(source, base, &circuit.Config{
		Enabled:             cb.Enabled,
		MaxConsecutiveFails: cb.MaxConsecutiveFails,
		CooldownSeconds:     cb.CooldownSeconds,
	}, bus)
	deps.breaker = guarded.Breaker()
	provider := market.Provider(guarded)

	if cfg.RedisConfig.Enabled {
		cs, err := cache.NewCacheService(cfg.RedisConfig)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.closers = append(deps.closers, func() { _ = cs.Close() })
		deps.checks["redis"] = cs.Ping
		deps.cache = cs
		provider = cache.NewCandleCache(provider, cs, source)
	}

	deps.provider = provider
	return deps, nil
}

// setupEventLogging records engine outcomes published on the bus and counts every event
func setupEventLogging(eventBus *events.EventBus, logger *logging.Logger) {
	l := logger.WithComponent("events")

	eventBus.SubscribeAll(func(event events.Event) {
		metrics.RecordEvent(string(event.Type))
	})

	eventBus.Subscribe(events.EventSignalGenerated, func(event events.Event) {
		l.WithFields(event.Data).Info("Signal generated")
	})
	eventBus.Subscribe(events.EventScanCompleted, func(event events.Event) {
		l.WithFields(event.Data).Info("Scan completed")
	})
	eventBus.Subscribe(events.EventProviderTripped, func(event events.Event) {
		l.WithFields(event.Data).Warn("Candle provider circuit tripped")
	})
	eventBus.Subscribe(events.EventError, func(event events.Event) {
		l.WithFields(event.Data).Error("Error event")
	})
	eventBus.Subscribe(events.EventSignalRejected, func(event events.Event) {
		l.WithFields(event.Data).Debug("Signal rejected")
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
