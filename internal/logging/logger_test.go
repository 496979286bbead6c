package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestLoggerKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "DEBUG", JSONFormat: true, Component: "engine"})

	l.WithTraceID("abc").WithField("symbol", "BTCUSDT").Info("signal rejected", "stage", "gate", "error", errors.New("boom"))

	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "signal rejected", entry["message"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "abc", entry["trace_id"])
	assert.Equal(t, "BTCUSDT", entry["symbol"])
	assert.Equal(t, "gate", entry["stage"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerPrintfArgs(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "INFO", JSONFormat: true})

	l.Warn("scanned %d symbols", 12)

	entry := decode(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "scanned 12 symbols", entry["message"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "WARN", JSONFormat: true})

	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Error("shown")
	assert.NotZero(t, buf.Len())
}

func TestLoggerCloneDoesNotShareFields(t *testing.T) {
	base := Nop()
	a := base.WithField("a", 1)
	b := a.WithField("b", 2)

	assert.Len(t, a.fields, 1)
	assert.Len(t, b.fields, 2)
	assert.Empty(t, base.fields)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
	assert.Equal(t, "ERROR", ERROR.String())
}

func TestTraceContext(t *testing.T) {
	base := Nop().WithComponent("api")
	ctx := NewContext(context.Background(), base)

	ctx, l := WithTraceContext(ctx)
	id := TraceIDFromContext(ctx)

	assert.NotEmpty(t, id)
	assert.Equal(t, id, l.traceID)
	assert.Equal(t, "api", l.component)
	assert.Same(t, l, FromContext(ctx))
}
