// Package markettest builds deterministic candle series for tests.
package markettest

import (
	"math"

	"smc-signal-engine/internal/market"
)

// DefaultVolume is used for candles added without an explicit volume
const DefaultVolume = 100.0

// Builder appends candles with evenly spaced open times
type Builder struct {
	tf      market.Timeframe
	start   int64
	price   float64
	volume  float64
	wick    float64
	candles []market.Candle
}

// NewBuilder starts a series at startMillis with the given opening price
func NewBuilder(tf market.Timeframe, startMillis int64, price float64) *Builder {
	return &Builder{
		tf:     tf,
		start:  startMillis,
		price:  price,
		volume: DefaultVolume,
		wick:   0.2,
	}
}

// WithVolume changes the volume used by subsequent Step calls
func (b *Builder) WithVolume(v float64) *Builder {
	b.volume = v
	return b
}

// Price returns the current close
func (b *Builder) Price() float64 {
	return b.price
}

// Len returns the number of candles appended so far
func (b *Builder) Len() int {
	return len(b.candles)
}

func (b *Builder) nextOpenTime() int64 {
	return b.start + int64(len(b.candles))*b.tf.Duration().Milliseconds()
}

// Add appends a fully specified candle and moves the current price to its close
func (b *Builder) Add(open, high, low, close, volume float64) *Builder {
	b.candles = append(b.candles, market.Candle{
		OpenTime: b.nextOpenTime(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    close,
		Volume:   volume,
	})
	b.price = close
	return b
}

// Step appends a candle that opens at the current price and closes delta away.
// Up candles carry only an upper wick and down candles only a lower wick, so
// turning points produce unique extremes.
func (b *Builder) Step(delta float64) *Builder {
	open := b.price
	close := open + delta
	w := math.Abs(delta) * b.wick
	high, low := open, open
	switch {
	case delta > 0:
		high, low = close+w, open
	case delta < 0:
		high, low = open, close-w
	}
	return b.Add(open, high, low, close, b.volume)
}

// Steps appends n candles of the same delta
func (b *Builder) Steps(n int, delta float64) *Builder {
	for i := 0; i < n; i++ {
		b.Step(delta)
	}
	return b
}

// Zigzag appends cycles of an impulse leg followed by a shorter pullback.
// dir > 0 trends up, dir < 0 trends down.
func (b *Builder) Zigzag(cycles, impulse, pullback int, step float64, dir int) *Builder {
	d := step
	if dir < 0 {
		d = -step
	}
	for i := 0; i < cycles; i++ {
		b.Steps(impulse, d)
		b.Steps(pullback, -d)
	}
	return b
}

// Chop appends n candles alternating around the current price
func (b *Builder) Chop(n int, amplitude float64) *Builder {
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			b.Step(amplitude)
		} else {
			b.Step(-amplitude)
		}
	}
	return b
}

// Candles returns a copy of the series
func (b *Builder) Candles() []market.Candle {
	out := make([]market.Candle, len(b.candles))
	copy(out, b.candles)
	return out
}

// Trending returns an n-candle series trending in dir from price with the given step
func Trending(tf market.Timeframe, startMillis int64, price float64, n int, step float64, dir int) []market.Candle {
	b := NewBuilder(tf, startMillis, price)
	for b.Len() < n {
		b.Zigzag(1, 6, 3, step, dir)
	}
	return b.Candles()[:n]
}
