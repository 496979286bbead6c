package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"smc-signal-engine/internal/logging"
	"smc-signal-engine/internal/market"
	"smc-signal-engine/internal/market/markettest"
	"smc-signal-engine/internal/signal"
)

const start = int64(1_700_000_000_000)

func bullishFile() snapshotFile {
	return snapshotFile{
		Symbol: "BTCUSDT",
		Candles: map[string][]market.Candle{
			"15m": markettest.Trending(market.TF15m, start, 100, 200, 0.5, 1),
			"1h":  markettest.Trending(market.TF1h, start, 100, 200, 0.5, 1),
			"4h":  markettest.Trending(market.TF4h, start, 100, 200, 0.5, 1),
			"1d":  markettest.Trending(market.TF1d, start, 100, 60, 0.5, 1),
		},
	}
}

func TestReadSnapshotUTF16(t *testing.T) {
	raw, err := json.Marshal(bullishFile())
	require.NoError(t, err)
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, encoded, 0o600))

	snap, err := readSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Len(t, snap.Get(market.TF1d), 60)
	assert.Len(t, snap.Get(market.TF15m), 200)
}

func TestPrintResultShowsSizingAndNotional(t *testing.T) {
	f := bullishFile()
	snap := market.NewSnapshot(f.Symbol)
	for key, candles := range f.Candles {
		tf, err := market.ParseTimeframe(key)
		require.NoError(t, err)
		snap.Set(tf, candles)
	}

	engine, err := signal.NewEngine(signal.DefaultConfig(), logging.Nop())
	require.NoError(t, err)
	res := engine.GenerateSignal(snap)
	require.True(t, res.Accepted())
	require.NotNil(t, res.Diagnostics.Plan)

	var buf bytes.Buffer
	printResult(&buf, message.NewPrinter(language.English), res, 10000, 1)
	out := buf.String()

	assert.Contains(t, out, "entry 1")
	assert.Contains(t, out, "qty ")
	assert.Contains(t, out, "risk budget 100.00 of 10,000.00 balance, notional ")
}

func TestPrintResultRejection(t *testing.T) {
	engine, err := signal.NewEngine(signal.DefaultConfig(), logging.Nop())
	require.NoError(t, err)
	res := engine.GenerateSignal(market.NewSnapshot("BTCUSDT"))
	require.False(t, res.Accepted())

	var buf bytes.Buffer
	printResult(&buf, message.NewPrinter(language.English), res, 0, 1)
	assert.Contains(t, buf.String(), "REJECTED [")
	assert.NotContains(t, buf.String(), "notional")
}
