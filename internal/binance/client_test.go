package binance

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"smc-signal-engine/internal/market"
)

const base = int64(1_700_000_000_000)

// fakeExchange serves klines for 15m candles starting at base
type fakeExchange struct {
	mu       sync.Mutex
	total    int
	requests []string
	status   int
}

func (f *fakeExchange) handle(ctx *fasthttp.RequestCtx) {
	f.mu.Lock()
	f.requests = append(f.requests, string(ctx.QueryArgs().QueryString()))
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		ctx.SetStatusCode(status)
		ctx.Response.Header.Set("Retry-After", "2")
		ctx.SetBodyString(`{"code":-1003,"msg":"Too many requests"}`)
		return
	}

	limit, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("limit")))
	step := market.TF15m.Duration().Milliseconds()
	last := f.total - 1
	if end := ctx.QueryArgs().Peek("endTime"); len(end) > 0 {
		e, _ := strconv.ParseInt(string(end), 10, 64)
		last = int((e - base) / step)
	}
	first := last - limit + 1
	if first < 0 {
		first = 0
	}

	var rows []string
	for i := first; i <= last; i++ {
		open := 100 + float64(i)
		rows = append(rows, fmt.Sprintf(`[%d,"%.2f","%.2f","%.2f","%.2f","10.5",%d,"0",1,"0","0","0"]`,
			base+int64(i)*step, open, open+2, open-1, open+1, base+int64(i+1)*step-1))
	}
	ctx.SetContentType("application/json")
	ctx.SetBodyString("[" + strings.Join(rows, ",") + "]")
}

func newTestClient(t *testing.T, f *fakeExchange, cfg Config) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: f.handle}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	cfg.BaseURL = "http://binance.test"
	c := NewClient(cfg)
	c.http.Dial = func(string) (net.Conn, error) { return ln.Dial() }
	return c
}

func TestGetCandlesParsesKlines(t *testing.T) {
	f := &fakeExchange{total: 50}
	c := newTestClient(t, f, Config{Timeout: time.Second})

	candles, err := c.GetCandles(context.Background(), "btcusdt", market.TF15m, 10)
	require.NoError(t, err)
	require.Len(t, candles, 10)

	first := candles[0]
	assert.Equal(t, base+40*market.TF15m.Duration().Milliseconds(), first.OpenTime)
	assert.Equal(t, 140.0, first.Open)
	assert.Equal(t, 142.0, first.High)
	assert.Equal(t, 139.0, first.Low)
	assert.Equal(t, 141.0, first.Close)
	assert.Equal(t, 10.5, first.Volume)
	assert.NoError(t, market.ValidateCandles(market.TF15m, candles))

	require.Len(t, f.requests, 1)
	assert.Contains(t, f.requests[0], "symbol=BTCUSDT")
	assert.Contains(t, f.requests[0], "interval=15m")
}

func TestGetCandlesPaginates(t *testing.T) {
	f := &fakeExchange{total: 2500}
	c := newTestClient(t, f, Config{Timeout: time.Second})

	candles, err := c.GetCandles(context.Background(), "ETHUSDT", market.TF15m, 2200)
	require.NoError(t, err)
	require.Len(t, candles, 2200)
	assert.Len(t, f.requests, 3)
	assert.NoError(t, market.ValidateCandles(market.TF15m, candles))
	assert.Equal(t, base+2499*market.TF15m.Duration().Milliseconds(), candles[len(candles)-1].OpenTime)
}

func TestGetCandlesDropsFormingCandle(t *testing.T) {
	f := &fakeExchange{total: 20}
	c := newTestClient(t, f, Config{Timeout: time.Second, ClosedOnly: true})
	step := market.TF15m.Duration().Milliseconds()
	// the 20th candle opened 5 minutes ago
	c.now = func() time.Time { return time.UnixMilli(base + 19*step + 5*60*1000) }

	candles, err := c.GetCandles(context.Background(), "BTCUSDT", market.TF15m, 5)
	require.NoError(t, err)
	require.Len(t, candles, 5)
	assert.Equal(t, base+18*step, candles[4].OpenTime)
}

func TestGetCandlesAPIError(t *testing.T) {
	f := &fakeExchange{total: 20, status: fasthttp.StatusTooManyRequests}
	c := newTestClient(t, f, Config{Timeout: time.Second})

	_, err := c.GetCandles(context.Background(), "BTCUSDT", market.TF1h, 5)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, int64(-1003), apiErr.Code)
	assert.Equal(t, fasthttp.StatusTooManyRequests, apiErr.Status)

	res := c.limiter.TryAcquire(2)
	assert.False(t, res.Acquired)
	assert.Equal(t, "circuit_breaker_open", res.Reason)
}

func TestGetCandlesTeapotHonoursRetryAfter(t *testing.T) {
	f := &fakeExchange{total: 20, status: fasthttp.StatusTeapot}
	c := newTestClient(t, f, Config{Timeout: time.Second})
	fixed := time.UnixMilli(base)
	c.limiter.now = func() time.Time { return fixed }

	_, err := c.GetCandles(context.Background(), "BTCUSDT", market.TF4h, 5)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, fasthttp.StatusTeapot, apiErr.Status)

	stats := c.limiter.Stats()
	assert.Equal(t, true, stats["circuit_open"])
	assert.Equal(t, fixed.Add(2*time.Second), stats["ban_until"])
	assert.False(t, c.limiter.TryAcquire(2).Acquired)
}

func TestParseKlinesRejectsObject(t *testing.T) {
	_, err := parseKlines([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	assert.Error(t, err)
}
