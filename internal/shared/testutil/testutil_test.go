package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecorder(t *testing.T) {
	logger, logs := NewTestLogger(t)

	logger.With(slog.String("component", "resolver")).Info("Resolution complete", slog.Int("rows_out", 3))
	logger.Warn("Column has no values to impute from")

	rec := AssertLogged(t, logs, slog.LevelInfo, "Resolution")
	assert.Equal(t, "resolver", rec.Attrs["component"])
	assert.Equal(t, int64(3), rec.Attrs["rows_out"])
	assert.Len(t, logs.Records(), 2)

	_, ok := logs.Find("missing message")
	assert.False(t, ok)
	AssertNoErrors(t, logs)
}

func TestFixture(t *testing.T) {
	table := NewFixture().
		Columns("timestamp", "fuel_consumption_rate").
		Row(Cells{"fuel_consumption_rate": "-2"}).
		Row(nil).
		Table(t)

	require.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"timestamp", "fuel_consumption_rate"}, table.Header)
	assert.Equal(t, []string{"2021-01-01 10:00:00", "-2"}, table.Rows[0])
	assert.Equal(t, "5", table.Rows[1][1])

	full := NewFixture().Row(nil).Table(t)
	assert.Len(t, full.Header, 26)
}
