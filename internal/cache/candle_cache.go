package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/metrics"
)

// PrefixCandles is the key layout for cached series: source, symbol, timeframe, limit
const PrefixCandles = "candles:%s:%s:%s:%d"

// Candle series TTLs, roughly a third of a bar so a closed bar shows up promptly
var candleTTLs = map[market.Timeframe]time.Duration{
	market.TF15m: 5 * time.Minute,
	market.TF1h:  30 * time.Minute,
	market.TF4h:  2 * time.Hour,
	market.TF1d:  12 * time.Hour,
}

// Store is the subset of CacheService the candle cache needs
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CandleCache is a read-through cache in front of a candle provider.
// Any cache failure falls back to the wrapped provider.
type CandleCache struct {
	inner  market.Provider
	store  Store
	source string
}

// NewCandleCache wraps inner; source namespaces the keys (e.g. "binance")
func NewCandleCache(inner market.Provider, store Store, source string) *CandleCache {
	return &CandleCache{inner: inner, store: store, source: source}
}

// CandleKey generates the cache key for one series request
func CandleKey(source, symbol string, tf market.Timeframe, limit int) string {
	return fmt.Sprintf(PrefixCandles, source, strings.ToUpper(symbol), tf, limit)
}

// CandlePattern matches every cached series of symbol across sources,
// timeframes and limits. An empty symbol matches all candle keys.
func CandlePattern(symbol string) string {
	if symbol == "" {
		return "candles:*"
	}
	return fmt.Sprintf("candles:*:%s:*", strings.ToUpper(symbol))
}

// CandleTTL returns the cache lifetime for a timeframe
func CandleTTL(tf market.Timeframe) time.Duration {
	if ttl, ok := candleTTLs[tf]; ok {
		return ttl
	}
	return 5 * time.Minute
}

// GetCandles implements market.Provider
func (c *CandleCache) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	key := CandleKey(c.source, symbol, tf, limit)
	log := logging.CacheContext("get_candles", key)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var candles []market.Candle
		if jerr := json.Unmarshal([]byte(data), &candles); jerr == nil {
			metrics.RecordCacheResult("hit")
			return candles, nil
		}
		log.Warn("discarding undecodable cache entry")
		metrics.RecordCacheResult("error")
	case errors.Is(err, redis.Nil):
		metrics.RecordCacheResult("miss")
	default:
		log.Debug("cache unavailable, reading through", "error", err)
		metrics.RecordCacheResult("error")
	}

	candles, err := c.inner.GetCandles(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	if len(candles) > 0 {
		if err := c.store.Set(ctx, key, candles, CandleTTL(tf)); err != nil {
			log.Debug("cache write skipped", "error", err)
		}
	}
	return candles, nil
}
