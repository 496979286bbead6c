package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Timeframe represents a chart interval
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// AllTimeframes lists the timeframes consumed by the engine, fastest first
var AllTimeframes = []Timeframe{TF15m, TF1h, TF4h, TF1d}

var (
	// ErrInsufficientData is returned when a series is shorter than a stage requires
	ErrInsufficientData = errors.New("insufficient candle data")
	// ErrInvalidCandles is returned when a series fails basic sanity checks
	ErrInvalidCandles = errors.New("invalid candle data")
)

// Duration returns the length of one candle
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// ParseTimeframe converts an interval string such as "4h" to a Timeframe
func ParseTimeframe(s string) (Timeframe, error) {
	for _, tf := range AllTimeframes {
		if string(tf) == s {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unsupported timeframe %q", s)
}

// Candle is a single OHLCV bar. OpenTime is unix milliseconds.
type Candle struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Time returns the candle open time in UTC
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

// Range returns high minus low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Body returns the absolute open/close distance
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// IsBullish reports whether the candle closed above its open
func (c Candle) IsBullish() bool {
	return c.Close > c.Open
}

// IsBearish reports whether the candle closed below its open
func (c Candle) IsBearish() bool {
	return c.Close < c.Open
}

// ValidateCandles performs the basic sanity checks the engine relies on:
// strictly increasing open times, positive prices and consistent OHLC bounds.
func ValidateCandles(tf Timeframe, candles []Candle) error {
	for i, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("%w: %s candle %d has non-positive price", ErrInvalidCandles, tf, i)
		}
		if c.High < math.Max(c.Open, c.Close) || c.Low > math.Min(c.Open, c.Close) {
			return fmt.Errorf("%w: %s candle %d has inconsistent high/low", ErrInvalidCandles, tf, i)
		}
		if c.Volume < 0 {
			return fmt.Errorf("%w: %s candle %d has negative volume", ErrInvalidCandles, tf, i)
		}
		if i > 0 && c.OpenTime <= candles[i-1].OpenTime {
			return fmt.Errorf("%w: %s candle %d is out of order", ErrInvalidCandles, tf, i)
		}
	}
	return nil
}
