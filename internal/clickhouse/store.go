// Package clickhouse reads and writes candle series in a ClickHouse
// ReplacingMergeTree table keyed by (symbol, interval, open_time_ms).
package clickhouse

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"

	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds the connection settings
type Config struct {
	Addr     []string
	Database string
	Username string
	Password string
	Table    string
}

// CandleStore implements market.Provider over ClickHouse
type CandleStore struct {
	conn  clickhouse.Conn
	table string
	log   *logging.Logger
}

// Open connects, pings and returns a store for cfg.Database.cfg.Table
func Open(ctx context.Context, cfg Config) (*CandleStore, error) {
	table, err := qualifiedTable(cfg.Database, cfg.Table)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	log := logging.WithComponent("clickhouse")
	log.Info("connected to ClickHouse", "addr", strings.Join(cfg.Addr, ","), "table", table)
	return &CandleStore{conn: conn, table: table, log: log}, nil
}

// EnsureSchema creates the database and candle table if missing
func (s *CandleStore) EnsureSchema(ctx context.Context) error {
	db := strings.SplitN(s.table, ".", 2)[0]
	if err := s.conn.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+db); err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	if err := s.conn.Exec(ctx, schemaDDL(s.table)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// GetCandles implements market.Provider, returning the latest limit candles oldest first
func (s *CandleStore) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	symbol = strings.ToUpper(symbol)
	start := time.Now()

	rows, err := s.conn.Query(ctx, selectQuery(s.table), symbol, string(tf), uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query candles %s %s: %w", symbol, tf, err)
	}
	defer rows.Close()

	candles := make([]market.Candle, 0, limit)
	for rows.Next() {
		var openMs uint64
		var c market.Candle
		if err := rows.Scan(&openMs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.OpenTime = int64(openMs)
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles: %w", err)
	}

	// newest first from the query
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	s.log.Debug("candles loaded", "symbol", symbol, "timeframe", string(tf),
		"count", len(candles), "latency_ms", time.Since(start).Milliseconds())
	return candles, nil
}

// SaveCandles appends a series; the version column lets the merge keep the newest row
func (s *CandleStore) SaveCandles(ctx context.Context, symbol string, tf market.Timeframe, candles []market.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table+" (symbol, interval, open_time_ms, open, high, low, close, volume, ingested_at, version)")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now().UTC()
	ver := uint64(now.UnixNano())
	for _, c := range candles {
		if err := batch.Append(symbol, string(tf), uint64(c.OpenTime), c.Open, c.High, c.Low, c.Close, c.Volume, now, ver); err != nil {
			return fmt.Errorf("batch append: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("batch send: %w", err)
	}
	return nil
}

// Ping checks connectivity
func (s *CandleStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the connection
func (s *CandleStore) Close() error {
	return s.conn.Close()
}

func qualifiedTable(database, table string) (string, error) {
	if !identifier.MatchString(database) || !identifier.MatchString(table) {
		return "", fmt.Errorf("invalid clickhouse table name %q.%q", database, table)
	}
	return database + "." + table, nil
}

func schemaDDL(table string) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol String,
			interval LowCardinality(String),
			open_time_ms UInt64,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			ingested_at DateTime64(3),
			version UInt64
		)
		ENGINE = ReplacingMergeTree(version)
		ORDER BY (symbol, interval, open_time_ms)
	`, table)
}

func selectQuery(table string) string {
	return fmt.Sprintf(`
		SELECT open_time_ms, open, high, low, close, volume
		FROM %s FINAL
		WHERE symbol = ? AND interval = ?
		ORDER BY open_time_ms DESC
		LIMIT ?
	`, table)
}
