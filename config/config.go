package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

// Candle sources
const (
	SourceBinance    = "binance"
	SourcePostgres   = "postgres"
	SourceClickHouse = "clickhouse"
)

type Config struct {
	LoggingConfig        LoggingConfig        `json:"logging"`
	ServerConfig         ServerConfig         `json:"server"`
	CandleConfig         CandleConfig         `json:"candles"`
	BinanceConfig        BinanceConfig        `json:"binance"`
	CircuitBreakerConfig CircuitBreakerConfig `json:"circuit_breaker"`
	RedisConfig          RedisConfig          `json:"redis"`
	DatabaseConfig       DatabaseConfig       `json:"database"`
	ClickHouseConfig     ClickHouseConfig     `json:"clickhouse"`
	ScannerConfig        ScannerConfig        `json:"scanner"`
	Engine               signal.Config        `json:"engine"`
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`  // CORS allowed origins, comma separated
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// CandleConfig selects the candle provider and how much history to request
type CandleConfig struct {
	Source string         `json:"source"` // binance, postgres or clickhouse
	Limits map[string]int `json:"limits"` // candles per timeframe, e.g. {"15m": 400}
}

type BinanceConfig struct {
	BaseURL         string `json:"base_url"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	ClosedOnly      bool   `json:"closed_only"`
	MaxWeightPerMin int    `json:"max_weight_per_minute"`
}

// CircuitBreakerConfig guards the candle provider
type CircuitBreakerConfig struct {
	Enabled             bool `json:"enabled"`
	MaxConsecutiveFails int  `json:"max_consecutive_failures"`
	CooldownSeconds     int  `json:"cooldown_seconds"`
}

// RedisConfig holds Redis configuration for the candle cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig holds PostgreSQL settings for the candle store
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
	Migrate  bool   `json:"migrate"`
}

// ClickHouseConfig holds ClickHouse settings for the candle store
type ClickHouseConfig struct {
	Addr     string `json:"addr"` // host:port, comma separated for several
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	Table    string `json:"table"`
}

type ScannerConfig struct {
	Enabled             bool     `json:"enabled"`
	ScanIntervalSeconds int      `json:"scan_interval_seconds"`
	Symbols             []string `json:"symbols"`
	WorkerCount         int      `json:"worker_count"`
	CacheTTLSeconds     int      `json:"cache_ttl_seconds"`
	TimeoutSeconds      int      `json:"timeout_seconds"`
}

// Default returns a configuration that runs against the public Binance API
func Default() *Config {
	return &Config{
		LoggingConfig: LoggingConfig{Level: "INFO", Output: "stdout", JSONFormat: true},
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		CandleConfig: CandleConfig{
			Source: SourceBinance,
			Limits: map[string]int{"15m": 400, "1h": 500, "4h": 300, "1d": 200},
		},
		BinanceConfig: BinanceConfig{
			BaseURL:         "https://api.binance.com",
			TimeoutSeconds:  10,
			ClosedOnly:      true,
			MaxWeightPerMin: 1200,
		},
		CircuitBreakerConfig: CircuitBreakerConfig{Enabled: true, MaxConsecutiveFails: 5, CooldownSeconds: 30},
		RedisConfig:          RedisConfig{Address: "localhost:6379", PoolSize: 10},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "market",
			SSLMode:  "disable",
			MaxConns: 10,
			Migrate:  true,
		},
		ClickHouseConfig: ClickHouseConfig{Addr: "localhost:9000", Database: "market", Username: "default", Table: "candles"},
		ScannerConfig: ScannerConfig{
			ScanIntervalSeconds: 900,
			Symbols:             []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"},
			WorkerCount:         4,
			CacheTTLSeconds:     60,
			TimeoutSeconds:      120,
		},
		Engine: signal.DefaultConfig(),
	}
}

// Load reads path over the defaults when it exists, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	// Environment variables take precedence
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	cfg.LoggingConfig.JSONFormat = getEnvBoolOrDefault("LOG_JSON", cfg.LoggingConfig.JSONFormat)
	cfg.LoggingConfig.IncludeFile = getEnvBoolOrDefault("LOG_INCLUDE_FILE", cfg.LoggingConfig.IncludeFile)

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	// Candle source
	cfg.CandleConfig.Source = strings.ToLower(getEnvOrDefault("CANDLE_SOURCE", cfg.CandleConfig.Source))

	// Binance config
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)
	cfg.BinanceConfig.ClosedOnly = getEnvBoolOrDefault("BINANCE_CLOSED_ONLY", cfg.BinanceConfig.ClosedOnly)

	// Circuit breaker config
	cfg.CircuitBreakerConfig.Enabled = getEnvBoolOrDefault("CIRCUIT_BREAKER_ENABLED", cfg.CircuitBreakerConfig.Enabled)
	cfg.CircuitBreakerConfig.CooldownSeconds = getEnvIntOrDefault("CIRCUIT_COOLDOWN_SECONDS", cfg.CircuitBreakerConfig.CooldownSeconds)

	// Redis config
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// ClickHouse config
	cfg.ClickHouseConfig.Addr = getEnvOrDefault("CLICKHOUSE_ADDR", cfg.ClickHouseConfig.Addr)
	cfg.ClickHouseConfig.Database = getEnvOrDefault("CLICKHOUSE_DATABASE", cfg.ClickHouseConfig.Database)
	cfg.ClickHouseConfig.Username = getEnvOrDefault("CLICKHOUSE_USER", cfg.ClickHouseConfig.Username)
	cfg.ClickHouseConfig.Password = getEnvOrDefault("CLICKHOUSE_PASSWORD", cfg.ClickHouseConfig.Password)
	cfg.ClickHouseConfig.Table = getEnvOrDefault("CLICKHOUSE_TABLE", cfg.ClickHouseConfig.Table)

	// Scanner config
	cfg.ScannerConfig.Enabled = getEnvBoolOrDefault("SCANNER_ENABLED", cfg.ScannerConfig.Enabled)
	cfg.ScannerConfig.ScanIntervalSeconds = getEnvIntOrDefault("SCANNER_INTERVAL_SECONDS", cfg.ScannerConfig.ScanIntervalSeconds)
	cfg.ScannerConfig.WorkerCount = getEnvIntOrDefault("SCANNER_WORKERS", cfg.ScannerConfig.WorkerCount)
	if symbols := os.Getenv("SCANNER_SYMBOLS"); symbols != "" {
		cfg.ScannerConfig.Symbols = splitList(symbols)
	}

	// Engine thresholds
	cfg.Engine.Confidence.MinConfidence = getEnvFloatOrDefault("ENGINE_MIN_CONFIDENCE", cfg.Engine.Confidence.MinConfidence)
}

// Validate checks the settings that would otherwise fail late
func (c *Config) Validate() error {
	if c.ServerConfig.Port <= 0 || c.ServerConfig.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.ServerConfig.Port)
	}
	switch c.CandleConfig.Source {
	case SourceBinance, SourcePostgres, SourceClickHouse:
	default:
		return fmt.Errorf("candles: unknown source %q", c.CandleConfig.Source)
	}
	if _, err := c.CandleConfig.TimeframeLimits(); err != nil {
		return fmt.Errorf("candles: %w", err)
	}
	if c.ScannerConfig.Enabled {
		if c.ScannerConfig.WorkerCount <= 0 {
			return fmt.Errorf("scanner: worker count must be positive")
		}
		if c.ScannerConfig.ScanIntervalSeconds <= 0 {
			return fmt.Errorf("scanner: scan interval must be positive")
		}
		if len(c.ScannerConfig.Symbols) == 0 {
			return fmt.Errorf("scanner: no symbols configured")
		}
	}
	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// TimeframeLimits converts the configured limits to typed timeframes
func (c CandleConfig) TimeframeLimits() (map[market.Timeframe]int, error) {
	if len(c.Limits) == 0 {
		return market.DefaultLimits(), nil
	}
	out := make(map[market.Timeframe]int, len(c.Limits))
	for key, limit := range c.Limits {
		tf, err := market.ParseTimeframe(key)
		if err != nil {
			return nil, err
		}
		if limit <= 0 {
			return nil, fmt.Errorf("limit for %s must be positive, got %d", tf, limit)
		}
		out[tf] = limit
	}
	for _, tf := range market.AllTimeframes {
		if _, ok := out[tf]; !ok {
			return nil, fmt.Errorf("missing limit for %s", tf)
		}
	}
	return out, nil
}

// Addrs splits the configured ClickHouse address list
func (c ClickHouseConfig) Addrs() []string {
	return splitList(c.Addr)
}

// Seconds converts a seconds setting to a duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func loadFromFile(filename string, cfg *Config) error {
	file, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := json.Unmarshal(file, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes the defaults to filename
func GenerateSampleConfig(filename string) error {
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
