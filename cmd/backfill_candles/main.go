package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/clickhouse"
	"smc-signal-engine/internal/database"
	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
)

// Copies closed Binance klines into the PostgreSQL or ClickHouse candle store
// so either can serve as CANDLE_SOURCE.
func main() {
	configPath := flag.String("config", "config.json", "configuration file")
	target := flag.String("target", config.SourcePostgres, "store to fill: postgres or clickhouse")
	symbols := flag.String("symbols", "", "comma-separated symbols (default: scanner watchlist)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(&logging.Config{Level: cfg.LoggingConfig.Level, Output: "stderr", Component: "backfill"})
	logging.SetDefault(logger)

	list := cfg.ScannerConfig.Symbols
	if *symbols != "" {
		list = strings.Split(*symbols, ",")
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "no symbols to backfill")
		os.Exit(1)
	}
	limits, err := cfg.CandleConfig.TimeframeLimits()
	if err != nil {
		fmt.Fprintf(os.Stderr, "candle limits: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := openSink(ctx, cfg, *target)
	if err != nil {
		logger.Fatal("Failed to open candle store", "target", *target, "error", err)
	}
	defer closeSink()

	src := binance.NewClient(binance.Config{
		BaseURL:         cfg.BinanceConfig.BaseURL,
		Timeout:         config.Seconds(cfg.BinanceConfig.TimeoutSeconds),
		ClosedOnly:      true,
		MaxWeightPerMin: cfg.BinanceConfig.MaxWeightPerMin,
	})

	start := time.Now()
	results := market.Copy(ctx, src, sink, list, limits)

	p := message.NewPrinter(language.English)
	failed, total := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			p.Printf("%-10s %-4s FAILED  %v\n", r.Symbol, r.Timeframe, r.Err)
			continue
		}
		total += r.Count
		p.Printf("%-10s %-4s %d candles\n", r.Symbol, r.Timeframe, r.Count)
	}
	p.Printf("\n%d candles into %s in %s, %d series failed\n", total, *target, time.Since(start).Round(time.Millisecond), failed)
	if failed > 0 {
		closeSink()
		os.Exit(1)
	}
}

// openSink connects to the target store and prepares its schema
func openSink(ctx context.Context, cfg *config.Config, target string) (market.Sink, func(), error) {
	switch target {
	case config.SourcePostgres:
		dbc := cfg.DatabaseConfig
		db, err := database.NewDB(ctx, database.Config{
			Host:     dbc.Host,
			Port:     dbc.Port,
			User:     dbc.User,
			Password: dbc.Password,
			Database: dbc.Database,
			SSLMode:  dbc.SSLMode,
			MaxConns: int32(dbc.MaxConns),
		})
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return database.NewCandleStore(db), db.Close, nil

	case config.SourceClickHouse:
		chc := cfg.ClickHouseConfig
		store, err := clickhouse.Open(ctx, clickhouse.Config{
			Addr:     chc.Addrs(),
			Database: chc.Database,
			Username: chc.Username,
			Password: chc.Password,
			Table:    chc.Table,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown backfill target %q", target)
	}
}
