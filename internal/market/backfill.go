package market

import (
	"context"
	"fmt"
	"strings"
)

// Sink stores candle series so a store-backed Provider can serve them later
type Sink interface {
	SaveCandles(ctx context.Context, symbol string, tf Timeframe, candles []Candle) error
}

// CopyResult reports one copied series
type CopyResult struct {
	Symbol    string
	Timeframe Timeframe
	Count     int
	Err       error
}

// Copy reads every configured timeframe of each symbol from src and writes it
// to dst. A failed or invalid series is reported and the rest still run;
// only ctx cancellation stops the copy early.
func Copy(ctx context.Context, src Provider, dst Sink, symbols []string, limits map[Timeframe]int) []CopyResult {
	if limits == nil {
		limits = DefaultLimits()
	}

	var results []CopyResult
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		for _, tf := range AllTimeframes {
			limit := limits[tf]
			if limit <= 0 {
				continue
			}
			if err := ctx.Err(); err != nil {
				return append(results, CopyResult{Symbol: symbol, Timeframe: tf, Err: err})
			}
			results = append(results, copySeries(ctx, src, dst, symbol, tf, limit))
		}
	}
	return results
}

func copySeries(ctx context.Context, src Provider, dst Sink, symbol string, tf Timeframe, limit int) CopyResult {
	res := CopyResult{Symbol: symbol, Timeframe: tf}

	candles, err := src.GetCandles(ctx, symbol, tf, limit)
	if err != nil {
		res.Err = fmt.Errorf("fetch: %w", err)
		return res
	}
	if err := ValidateCandles(tf, candles); err != nil {
		res.Err = err
		return res
	}
	if err := dst.SaveCandles(ctx, symbol, tf, candles); err != nil {
		res.Err = fmt.Errorf("save: %w", err)
		return res
	}
	res.Count = len(candles)
	return res
}
