package bottleneck

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
	"supplychain/internal/shared/testutil"
)

func analysisColumns() map[string][]float64 {
	return map[string][]float64{
		dataset.ColLeadTime:              {1, 2, 3, 4, 5, 6, 7, 8},
		dataset.ColETAVariation:          {-1, 0, 2, 5, 4, -2, 0, 1},
		dataset.ColLoadingTime:           {1, 1, 1, 1, 1, 1, 1, 10},
		dataset.ColCustomsClearance:      {1, 2, 3, 4, 5, 6, 7, 8},
		dataset.ColOrderFulfillment:      {1, 1, 1, 1, 0, 0, 1, 1},
		dataset.ColDelayProbability:      {0.1, 0.2, 0.9, 0.8, 0.75, 0.1, 0.1, 0.1},
		dataset.ColEquipmentAvailability: {1, 1, 1, 1, 0, 0, 1, 1},
		dataset.ColShippingCosts:         {100, 100, 100, 100, 100, 100, 100, 1000},
		dataset.ColFuelConsumption:       {5, 5, 5, 5, 5, 5, 20, 20},
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	frame := frameOf(t, analysisColumns())

	r, err := NewAnalyzer(DefaultOptions(), logger).Analyze(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, 8, r.Records)
	assert.True(t, r.Start.IsZero())

	t.Run("lead time", func(t *testing.T) {
		timing := r.LeadTime
		assert.InDelta(t, 6.25, timing.LongLeadThreshold, 1e-9)
		assert.Equal(t, 2, timing.LongLead)
		assert.Equal(t, 4, timing.Late)
		assert.Equal(t, 2, timing.Early)
		assert.Equal(t, 2, timing.OnTime)
		assert.Equal(t, 2, timing.SeverelyLate)
		assert.Equal(t, 1, timing.SlowLoading)
		assert.Equal(t, 2, timing.SlowCustoms)
		assert.Equal(t, 0, timing.Deviation.Count)
	})

	t.Run("performance", func(t *testing.T) {
		p := r.Performance
		assert.InDelta(t, 75.0, p.FulfillmentRate, 1e-9)
		assert.Equal(t, 6, p.Fulfilled)
		assert.Equal(t, 2, p.NotFulfilled)
		assert.Equal(t, 3, p.HighDelayRisk)
		assert.InDelta(t, 200.0/3, p.HighRiskFulfillment, 1e-9)
		assert.Equal(t, 2, p.NoEquipment)
		assert.InDelta(t, 100.0, p.EquipmentGap, 1e-9)
	})

	t.Run("costs", func(t *testing.T) {
		c := r.Costs
		assert.InDelta(t, 1700.0, c.Total, 1e-9)
		assert.InDelta(t, 370.0, c.HighCostThreshold, 1e-9)
		assert.Equal(t, 1, c.HighCostCount)
		assert.InDelta(t, 1000.0/1700*100, c.HighCostShare, 1e-9)
		assert.Equal(t, 2, c.HighFuel)
		assert.InDelta(t, 210.0, c.FuelCostEstimate, 1e-9)
		assert.InDelta(t, 250.0, c.AvgCostFulfilled, 1e-9)
		assert.InDelta(t, 100.0, c.AvgCostUnfulfilled, 1e-9)

		require.Len(t, c.ByLeadQuartile, 4)
		assert.Equal(t, "Q1 (Fast)", c.ByLeadQuartile[0].Label)
		assert.Equal(t, "Q4 (Slow)", c.ByLeadQuartile[3].Label)
		for _, q := range c.ByLeadQuartile {
			assert.Equal(t, 2, q.Count, q.Label)
		}
		assert.InDelta(t, 550.0, c.ByLeadQuartile[3].Mean, 1e-9)
	})

	t.Run("correlations", func(t *testing.T) {
		require.Len(t, r.FulfillmentCorrelations, 5)
		top := r.FulfillmentCorrelations[0]
		assert.Equal(t, dataset.ColEquipmentAvailability, top.Factor)
		assert.InDelta(t, 1.0, top.R, 1e-9)
		assert.Equal(t, StrengthStrong, top.Strength)
		for i := 1; i < len(r.FulfillmentCorrelations); i++ {
			assert.GreaterOrEqual(t, math.Abs(r.FulfillmentCorrelations[i-1].R), math.Abs(r.FulfillmentCorrelations[i].R))
		}
	})

	t.Run("critical ranking", func(t *testing.T) {
		names := make([]string, len(r.Critical))
		for i, b := range r.Critical {
			names[i] = b.Name
		}
		assert.Equal(t, []string{
			"Late Deliveries", "Order Fulfillment", "Long Lead Times",
			"Equipment Shortage", "Customs Delays", "Slow Loading",
		}, names)
		assert.Equal(t, SeverityHigh, r.Critical[0].Severity)
		assert.Contains(t, r.Skipped, dataset.ColTrafficCongestion)
	})

	t.Run("late shipments", func(t *testing.T) {
		assert.InDelta(t, 50.0, r.OverallLatePct, 1e-9)
		byName := make(map[string]LateImpact)
		for _, l := range r.LateShipments {
			byName[l.Name] = l
		}
		assert.Len(t, byName, 7)
		assert.InDelta(t, 100.0, byName["High Delay Probability"].LatePct, 1e-9)
		assert.InDelta(t, 50.0, byName["Order Not Fulfilled"].LatePct, 1e-9)
		assert.InDelta(t, 12.5, byName["Slow Loading"].AffectedPct, 1e-9)
		assert.NotContains(t, byName, "Poor Cargo")

		testutil.AssertLogged(t, logs, slog.LevelWarn, "Late-shipment factors skipped, columns absent")
	})

	recs := r.Recommendations()
	require.Len(t, recs, 7)
	assert.Contains(t, recs[0].Title, "75.0%")

	testutil.AssertLogged(t, logs, slog.LevelInfo, "Bottleneck analysis complete")
}

func TestAnalyzer_ThresholdOverride(t *testing.T) {
	opts := DefaultOptions()
	opts.Thresholds = map[string]Threshold{dataset.ColLeadTime: Fixed(2)}

	r, err := NewAnalyzer(opts, nil).Analyze(context.Background(), frameOf(t, analysisColumns()))
	require.NoError(t, err)

	assert.Equal(t, 2.0, r.LeadTime.LongLeadThreshold)
	assert.Equal(t, 6, r.LeadTime.LongLead)
}

func TestAnalyzer_MissingColumn(t *testing.T) {
	cols := analysisColumns()
	delete(cols, dataset.ColFuelConsumption)

	_, err := NewAnalyzer(DefaultOptions(), nil).Analyze(context.Background(), frameOf(t, cols))

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}
