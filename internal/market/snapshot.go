package market

import (
	"fmt"
	"time"
)

// Snapshot holds the candle series of one symbol across timeframes.
// It is supplied fresh for every evaluation.
type Snapshot struct {
	Symbol  string                 `json:"symbol"`
	Candles map[Timeframe][]Candle `json:"candles"`
}

// NewSnapshot creates an empty snapshot for a symbol
func NewSnapshot(symbol string) *Snapshot {
	return &Snapshot{
		Symbol:  symbol,
		Candles: make(map[Timeframe][]Candle),
	}
}

// Get returns the series for a timeframe (nil if absent)
func (s *Snapshot) Get(tf Timeframe) []Candle {
	if s == nil || s.Candles == nil {
		return nil
	}
	return s.Candles[tf]
}

// Set stores the series for a timeframe
func (s *Snapshot) Set(tf Timeframe, candles []Candle) {
	if s.Candles == nil {
		s.Candles = make(map[Timeframe][]Candle)
	}
	s.Candles[tf] = candles
}

// Clone returns a deep copy so callers may keep reusing their own buffers
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := NewSnapshot(s.Symbol)
	for tf, candles := range s.Candles {
		cp := make([]Candle, len(candles))
		copy(cp, candles)
		out.Candles[tf] = cp
	}
	return out
}

// Validate runs ValidateCandles on every series present
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidCandles)
	}
	if s.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrInvalidCandles)
	}
	for _, tf := range AllTimeframes {
		if err := ValidateCandles(tf, s.Candles[tf]); err != nil {
			return err
		}
	}
	return nil
}

// LastPrice returns the latest close, preferring the fastest timeframe available
func (s *Snapshot) LastPrice() float64 {
	for _, tf := range AllTimeframes {
		if candles := s.Get(tf); len(candles) > 0 {
			return candles[len(candles)-1].Close
		}
	}
	return 0
}

// LastClose returns the close time of the latest candle on a timeframe
func (s *Snapshot) LastClose(tf Timeframe) time.Time {
	candles := s.Get(tf)
	if len(candles) == 0 {
		return time.Time{}
	}
	return candles[len(candles)-1].Time().Add(tf.Duration())
}
