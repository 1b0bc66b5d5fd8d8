package bottleneck

import (
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
	"supplychain/internal/shared/testutil"
)

func TestLoadFrame(t *testing.T) {
	input := strings.Join([]string{
		"timestamp,fuel_consumption_rate,risk_classification,note",
		"2021-01-01 10:00:00,5.5,High Risk,a",
		"2021-01-01 11:00:00,,NA,b",
	}, "\n")

	frame, err := LoadFrame(strings.NewReader(input), "filtered.csv", dataset.LogisticsSchema())
	require.NoError(t, err)

	assert.Equal(t, 2, frame.Len())
	assert.Equal(t, []string{"timestamp", "fuel_consumption_rate", "risk_classification", "note"}, frame.Header())

	ts, ok := frame.Times(dataset.ColTimestamp)
	require.True(t, ok)
	assert.Equal(t, time.Date(2021, 1, 1, 11, 0, 0, 0, time.UTC), ts[1])

	fuel, ok := frame.Numeric(dataset.ColFuelConsumption)
	require.True(t, ok)
	assert.Equal(t, 5.5, fuel[0])
	assert.True(t, math.IsNaN(fuel[1]))

	risk, ok := frame.Column(dataset.ColRiskClassification)
	require.True(t, ok)
	assert.Equal(t, []string{"High Risk", ""}, risk.Str)

	note, _ := frame.Column("note")
	assert.Equal(t, dataset.Passthrough, note.Kind)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.NewFixture().Rows(3, nil).WriteFile(t, dir, "filtered_supply_chain_data.csv")

	frame, err := LoadFile(path, dataset.LogisticsSchema())
	require.NoError(t, err)
	assert.Equal(t, 3, frame.Len())

	r, err := NewAnalyzer(DefaultOptions(), nil).Analyze(t.Context(), frame)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Records)

	_, err = LoadFile(filepath.Join(dir, "absent.csv"), dataset.LogisticsSchema())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestLoadFrame_Empty(t *testing.T) {
	_, err := LoadFrame(strings.NewReader(""), "empty.csv", dataset.LogisticsSchema())

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}
