package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"smc-signal-engine/internal/market"
)

func TestReverseOrdersAscending(t *testing.T) {
	// rows come back newest first
	candles := []market.Candle{{OpenTime: 3}, {OpenTime: 2}, {OpenTime: 1}}
	reverse(candles)
	assert.Equal(t, []int64{1, 2, 3}, []int64{candles[0].OpenTime, candles[1].OpenTime, candles[2].OpenTime})

	empty := []market.Candle{}
	reverse(empty)
	assert.Empty(t, empty)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	for _, m := range migrations {
		assert.True(t, strings.Contains(m, "IF NOT EXISTS"), m)
	}
}

func TestUpsertKeyMatchesPrimaryKey(t *testing.T) {
	assert.Contains(t, upsertCandleQuery, "ON CONFLICT (symbol, timeframe, open_time)")
	assert.Contains(t, migrations[0], "PRIMARY KEY (symbol, timeframe, open_time)")
	assert.Contains(t, selectCandlesQuery, "ORDER BY open_time DESC")
}
