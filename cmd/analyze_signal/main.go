package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/transform"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/signal"
)

// snapshotFile is the same shape as the evaluate endpoint body
type snapshotFile struct {
	Symbol  string                     `json:"symbol"`
	Candles map[string][]market.Candle `json:"candles"`
}

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "symbol to evaluate live")
	file := flag.String("file", "", "evaluate candles from a JSON file instead of Binance")
	configPath := flag.String("config", "config.json", "configuration file")
	balance := flag.Float64("balance", 0, "account balance for position sizing (0 to skip)")
	riskPct := flag.Float64("risk", 1, "percent of balance risked across all entries")
	asJSON := flag.Bool("json", false, "print the raw result as JSON")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(&logging.Config{Level: "WARN", Output: "stderr", JSONFormat: false, Component: "analyze_signal"})
	logging.SetDefault(logger)

	engine, err := signal.NewEngine(cfg.Engine, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}

	var res signal.Result
	if *file != "" {
		snap, err := readSnapshot(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", *file, err)
			os.Exit(1)
		}
		res = signal.NewService(engine, nil, nil, nil, logger).EvaluateSnapshot(snap)
	} else {
		limits, _ := cfg.CandleConfig.TimeframeLimits()
		client := binance.NewClient(binance.Config{
			BaseURL:         cfg.BinanceConfig.BaseURL,
			Timeout:         config.Seconds(cfg.BinanceConfig.TimeoutSeconds),
			ClosedOnly:      cfg.BinanceConfig.ClosedOnly,
			MaxWeightPerMin: cfg.BinanceConfig.MaxWeightPerMin,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		res, err = signal.NewService(engine, client, limits, nil, logger).Evaluate(ctx, *symbol)
		if err != nil {
			fmt.Fprintf(os.Stderr, "evaluate: %v\n", err)
			os.Exit(1)
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}
	printResult(os.Stdout, message.NewPrinter(language.English), res, *balance, *riskPct)
}

// readSnapshot accepts UTF-8 or BOM-marked UTF-16 JSON exports
func readSnapshot(path string) (*market.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(f, decoder))
	if err != nil {
		return nil, err
	}

	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}
	snap := market.NewSnapshot(sf.Symbol)
	for key, candles := range sf.Candles {
		tf, err := market.ParseTimeframe(key)
		if err != nil {
			return nil, err
		}
		snap.Set(tf, candles)
	}
	return snap, nil
}

func printResult(w io.Writer, p *message.Printer, res signal.Result, balance, riskPct float64) {
	line := strings.Repeat("=", 72)
	p.Fprintln(w, line)
	p.Fprintf(w, "%s  stage reached: %s\n", res.Symbol, res.Diagnostics.StageReached)
	p.Fprintln(w, line)

	if !res.Accepted() {
		if res.Rejection != nil {
			p.Fprintf(w, "REJECTED [%s/%s]: %s\n", res.Rejection.Stage, res.Rejection.Code, res.Rejection.Reason)
		}
		if g := res.Diagnostics.Gate; g != nil {
			p.Fprintf(w, "ATR%% 15m %.3f  1h %.3f\n", g.ATRPercent15m, g.ATRPercent1h)
		}
		return
	}

	sig := res.Signal
	logging.SignalContext(sig.Symbol, string(sig.Side), sig.Confidence).Info("signal generated", "id", sig.ID)

	p.Fprintf(w, "%s %s  confidence %.2f (%s)  R:R %.2f  regime %s\n",
		sig.Side, sig.Symbol, sig.Confidence, sig.StrengthLabel, sig.RiskReward, sig.Regime)
	p.Fprintf(w, "market price %v at %s\n", sig.MarketPrice, sig.GeneratedAt.Format(time.RFC3339))
	p.Fprintln(w)

	var sizes []float64
	if res.Diagnostics.Plan != nil && balance > 0 {
		sizes = res.Diagnostics.Plan.PositionSizes(balance, riskPct)
	}
	for i, e := range sig.ScaledEntries {
		p.Fprintf(w, "entry %d  %v  %4.1f%%  %s", i+1, e.EntryPrice, e.AllocationPercent, e.OrderKind)
		if i < len(sizes) {
			p.Fprintf(w, "  qty %.4f  (~%.2f quote)", sizes[i], sizes[i]*e.EntryPrice)
		}
		p.Fprintln(w)
	}
	p.Fprintf(w, "stop     %v\n", sig.StopLoss)
	for i, tp := range sig.TakeProfits {
		p.Fprintf(w, "tp %d     %v  %4.1f%%  %.2fR\n", i+1, tp.Price, tp.AllocationPercent, tp.RiskMultiple)
	}
	if len(sizes) > 0 {
		p.Fprintf(w, "\nrisk budget %.2f of %.2f balance, notional %.2f\n",
			balance*riskPct/100, balance, res.Diagnostics.Plan.Notional(sizes))
	}

	p.Fprintln(w)
	for _, r := range sig.Reasoning {
		p.Fprintf(w, "- %s\n", r)
	}
}
