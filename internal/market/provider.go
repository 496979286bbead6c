package market

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Provider supplies ordered, gap-free candle series.
// Implementations own acquisition, storage and backfill.
type Provider interface {
	GetCandles(ctx context.Context, symbol string, tf Timeframe, limit int) ([]Candle, error)
}

// DefaultLimits are the candle counts requested per timeframe
func DefaultLimits() map[Timeframe]int {
	return map[Timeframe]int{
		TF15m: 400,
		TF1h:  500,
		TF4h:  300,
		TF1d:  200,
	}
}

// FetchSnapshot fetches every timeframe in parallel and assembles a Snapshot.
// The first provider error cancels the remaining requests.
func FetchSnapshot(ctx context.Context, p Provider, symbol string, limits map[Timeframe]int) (*Snapshot, error) {
	if limits == nil {
		limits = DefaultLimits()
	}

	snap := NewSnapshot(symbol)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, tf := range AllTimeframes {
		tf := tf
		limit := limits[tf]
		if limit <= 0 {
			continue
		}
		g.Go(func() error {
			candles, err := p.GetCandles(gctx, symbol, tf, limit)
			if err != nil {
				return fmt.Errorf("failed to fetch %s %s: %w", symbol, tf, err)
			}
			mu.Lock()
			snap.Set(tf, candles)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
