package bottleneck

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
)

func stressColumns() map[string][]float64 {
	return map[string][]float64{
		dataset.ColCargoCondition:        {0, 1, 1, 1},
		dataset.ColEquipmentAvailability: {0, 1, 1, 1},
		dataset.ColOrderFulfillment:      {0, 1, 1, 1},
		dataset.ColLoadingTime:           {10, 1, 1, 1},
		dataset.ColCustomsClearance:      {10, 1, 1, 1},
		dataset.ColLeadTime:              {10, 1, 1, 1},
		dataset.ColETAVariation:          {5, -1, 2, -3},
	}
}

func TestStressAnalyzer_Analyze(t *testing.T) {
	r, err := NewStressAnalyzer(nil, LatePositive, nil).Analyze(context.Background(), frameOf(t, stressColumns()))
	require.NoError(t, err)

	assert.Equal(t, []int{6, 0, 0, 0}, r.Index)
	assert.InDelta(t, 1.5, r.AverageIndex, 1e-9)
	assert.InDelta(t, 50.0, r.OverallLatePct, 1e-9)
	assert.InDelta(t, 3/math.Sqrt(27), r.Correlation, 1e-9)
	assert.InDelta(t, 1.0, r.WeightedCorrelation, 1e-9)

	require.Len(t, r.Levels, 7)
	zero := r.Levels[0]
	assert.Equal(t, 3, zero.Shipments)
	assert.Equal(t, 1, zero.Late)
	assert.InDelta(t, 100.0/3, zero.LatePct, 1e-9)
	assert.InDelta(t, 100.0, zero.FulfillmentPct, 1e-9)
	assert.InDelta(t, 75.0, zero.PctOfTotal, 1e-9)

	empty := r.Levels[3]
	assert.Equal(t, 0, empty.Shipments)
	assert.True(t, math.IsNaN(empty.LatePct))

	top := r.Levels[6]
	assert.Equal(t, 1, top.Late)
	assert.InDelta(t, 0.0, top.FulfillmentPct, 1e-9)

	dist := r.Distribution()
	require.Len(t, dist, 2)
	assert.Equal(t, 6, dist[1].Level)

	assert.InDelta(t, 100.0/3, r.ZeroLatePct, 1e-9)
	assert.InDelta(t, 100.0, r.HighLatePct, 1e-9)
	assert.InDelta(t, 100.0, r.ZeroFulfillmentPct, 1e-9)
	assert.InDelta(t, 0.0, r.HighFulfillmentPct, 1e-9)
	assert.InDelta(t, 25.0, r.HighStressPct, 1e-9)

	require.Len(t, r.Impacts, 6)
	for _, imp := range r.Impacts {
		assert.InDelta(t, 100-100.0/3, imp.Impact, 1e-9, imp.Name)
		assert.InDelta(t, 25.0, imp.Frequency, 1e-9, imp.Name)
	}
	assert.Equal(t, "Poor Cargo Condition", r.Impacts[0].Name, "ties keep factor order")

	assert.Equal(t, []float64{2, 0, 0, 0}, r.Score)
}

func TestStressAnalyzer_MedianRule(t *testing.T) {
	cols := stressColumns()
	cols[dataset.ColETAVariation] = []float64{5, 1, 2, 0}

	r, err := NewStressAnalyzer(nil, LateAboveMedian, nil).Analyze(context.Background(), frameOf(t, cols))
	require.NoError(t, err)

	assert.Equal(t, LateAboveMedian, r.Rule)
	assert.InDelta(t, 50.0, r.OverallLatePct, 1e-9)
	assert.Equal(t, 1, r.Levels[0].Late)
}

func TestStressAnalyzer_MissingFactorColumn(t *testing.T) {
	cols := stressColumns()
	delete(cols, dataset.ColCargoCondition)

	_, err := NewStressAnalyzer(nil, "", nil).Analyze(context.Background(), frameOf(t, cols))

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestContinuousScore(t *testing.T) {
	frame := frameOf(t, map[string][]float64{
		dataset.ColTrafficCongestion: {0, 5, 10},
		dataset.ColRouteRisk:         {2, 2, 2},
		dataset.ColWeatherSeverity:   {0, math.NaN(), 1},
	})

	got := ContinuousScore(frame, ContinuousStressFields)

	assert.Equal(t, []float64{0, 0.5, 2}, got)
}
