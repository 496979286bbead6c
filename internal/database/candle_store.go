package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
)

const (
	selectCandlesQuery = `
		SELECT open_time, open, high, low, close, volume
		FROM candles
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY open_time DESC
		LIMIT $3
	`
	upsertCandleQuery = `
		INSERT INTO candles (symbol, timeframe, open_time, open, high, low, close, volume, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (symbol, timeframe, open_time) DO UPDATE
		SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
		    close = EXCLUDED.close, volume = EXCLUDED.volume, updated_at = NOW()
	`
)

// CandleStore reads and writes candle series in PostgreSQL
type CandleStore struct {
	db *DB
}

// NewCandleStore creates a candle store
func NewCandleStore(db *DB) *CandleStore {
	return &CandleStore{db: db}
}

// GetCandles implements market.Provider, returning the latest limit candles oldest first
func (s *CandleStore) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	symbol = strings.ToUpper(symbol)
	start := time.Now()

	rows, err := s.db.Pool.Query(ctx, selectCandlesQuery, symbol, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("query candles %s %s: %w", symbol, tf, err)
	}
	candles, err := pgx.CollectRows(rows, scanCandle)
	if err != nil {
		return nil, fmt.Errorf("scan candles %s %s: %w", symbol, tf, err)
	}
	reverse(candles)

	logging.DatabaseContext("select", "candles").Debug("candles loaded",
		"symbol", symbol, "timeframe", string(tf), "count", len(candles),
		"latency_ms", time.Since(start).Milliseconds())
	return candles, nil
}

// SaveCandles upserts a series in one batch
func (s *CandleStore) SaveCandles(ctx context.Context, symbol string, tf market.Timeframe, candles []market.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	symbol = strings.ToUpper(symbol)

	batch := &pgx.Batch{}
	for _, c := range candles {
		batch.Queue(upsertCandleQuery, symbol, string(tf), c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	if err := s.db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert candles %s %s: %w", symbol, tf, err)
	}

	logging.DatabaseContext("upsert", "candles").Debug("candles saved",
		"symbol", symbol, "timeframe", string(tf), "count", len(candles))
	return nil
}

func scanCandle(row pgx.CollectableRow) (market.Candle, error) {
	var c market.Candle
	err := row.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume)
	return c, err
}

func reverse(candles []market.Candle) {
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
}
