package risk

import (
	"github.com/shopspring/decimal"
)

// RoundMode selects how a price snaps to the tick grid
type RoundMode int

const (
	RoundNearest RoundMode = iota
	RoundDown
	RoundUp
)

// RoundToTick snaps price to a multiple of tick using decimal arithmetic.
// A non-positive tick leaves the price unchanged.
func RoundToTick(price, tick float64, mode RoundMode) float64 {
	if tick <= 0 {
		return price
	}

	t := decimal.NewFromFloat(tick)
	q := decimal.NewFromFloat(price).Div(t)
	switch mode {
	case RoundDown:
		q = q.Floor()
	case RoundUp:
		q = q.Ceil()
	default:
		q = q.Round(0)
	}
	return q.Mul(t).InexactFloat64()
}

// lossward rounds away from profit: down for longs, up for shorts
func lossward(side Side) RoundMode {
	if side == Short {
		return RoundUp
	}
	return RoundDown
}
