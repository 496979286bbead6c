package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"

	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
)

const (
	klinesPath = "/api/v3/klines"
	// MaxKlinesPerRequest is the exchange cap on one klines call
	MaxKlinesPerRequest = 1000
)

// Config holds the REST client settings
type Config struct {
	BaseURL         string        `json:"base_url"`
	Timeout         time.Duration `json:"timeout"`
	ClosedOnly      bool          `json:"closed_only"` // drop the still-forming candle
	MaxWeightPerMin int           `json:"max_weight_per_minute"`
}

// DefaultConfig returns the public spot endpoint settings
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://api.binance.com",
		Timeout:         10 * time.Second,
		ClosedOnly:      true,
		MaxWeightPerMin: 1200,
	}
}

// APIError is an error body returned by the exchange
type APIError struct {
	Status  int
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d (code %d): %s", e.Status, e.Code, e.Message)
}

// Client is a klines-only REST client implementing market.Provider
type Client struct {
	baseURL    string
	timeout    time.Duration
	closedOnly bool
	http       *fasthttp.Client
	limiter    *RateLimiter
	now        func() time.Time
}

// NewClient creates a client for the public market data endpoints
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		closedOnly: cfg.ClosedOnly,
		http: &fasthttp.Client{
			Name:         "smc-signal-engine",
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
		limiter: NewRateLimiter(cfg.MaxWeightPerMin),
		now:     time.Now,
	}
}

// GetCandles fetches the latest limit candles, paging backwards when the
// limit exceeds one request. Candles are returned oldest first.
func (c *Client) GetCandles(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	if tf.Duration() == 0 {
		return nil, fmt.Errorf("unsupported timeframe %q", tf)
	}
	if limit <= 0 {
		return nil, nil
	}
	symbol = strings.ToUpper(symbol)

	want := limit
	if c.closedOnly {
		want++ // the forming candle is dropped below
	}

	var out []market.Candle
	var endTime int64
	for len(out) < want {
		batch := want - len(out)
		if batch > MaxKlinesPerRequest {
			batch = MaxKlinesPerRequest
		}
		page, err := c.fetchKlines(ctx, symbol, tf, batch, endTime)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		out = append(page, out...)
		endTime = page[0].OpenTime - 1
		if len(page) < batch {
			break
		}
	}

	if c.closedOnly && len(out) > 0 {
		last := out[len(out)-1]
		if last.Time().Add(tf.Duration()).After(c.now()) {
			out = out[:len(out)-1]
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (c *Client) fetchKlines(ctx context.Context, symbol string, tf market.Timeframe, limit int, endTime int64) ([]market.Candle, error) {
	params := map[string]interface{}{"symbol": symbol, "interval": string(tf), "limit": limit}
	log := logging.BinanceAPIContext(klinesPath, params)

	if err := c.limiter.Wait(ctx, endpointWeight(klinesPath)); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + klinesPath)
	req.Header.SetMethod(fasthttp.MethodGet)
	args := req.URI().QueryArgs()
	args.Set("symbol", symbol)
	args.Set("interval", string(tf))
	args.Set("limit", strconv.Itoa(limit))
	if endTime > 0 {
		args.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("error fetching klines: %w", context.DeadlineExceeded)
	}

	start := time.Now()
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		c.limiter.RecordError()
		log.Warn("klines request failed", "error", err)
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}

	status := resp.StatusCode()
	body := resp.Body()
	if status != fasthttp.StatusOK {
		c.limiter.RecordError()
		if status == fasthttp.StatusTooManyRequests || status == fasthttp.StatusTeapot {
			retry, _ := strconv.Atoi(string(resp.Header.Peek("Retry-After")))
			c.limiter.Ban(time.Duration(retry) * time.Second)
		}
		return nil, &APIError{
			Status:  status,
			Code:    gjson.GetBytes(body, "code").Int(),
			Message: gjson.GetBytes(body, "msg").String(),
		}
	}
	if used := resp.Header.Peek("X-Mbx-Used-Weight-1m"); len(used) > 0 {
		if w, err := strconv.Atoi(string(used)); err == nil {
			c.limiter.SyncWeight(w)
		}
	}

	candles, err := parseKlines(body)
	if err != nil {
		return nil, err
	}
	log.Debug("klines fetched", "count", len(candles), "latency_ms", time.Since(start).Milliseconds())
	return candles, nil
}

// parseKlines reads the [[openTime, "open", "high", "low", "close", "volume", ...], ...] array
func parseKlines(body []byte) ([]market.Candle, error) {
	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, fmt.Errorf("unexpected kline response format")
	}

	rows := result.Array()
	candles := make([]market.Candle, 0, len(rows))
	for i, v := range rows {
		row := v.Array()
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d has %d fields", i, len(row))
		}
		candles = append(candles, market.Candle{
			OpenTime: row[0].Int(),
			Open:     row[1].Float(),
			High:     row[2].Float(),
			Low:      row[3].Float(),
			Close:    row[4].Float(),
			Volume:   row[5].Float(),
		})
	}
	return candles, nil
}
