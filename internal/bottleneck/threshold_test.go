package bottleneck

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
)

// frameOf builds a numeric frame from columns of equal length. Columns
// are added in name order.
func frameOf(t *testing.T, cols map[string][]float64) *dataset.Frame {
	t.Helper()
	schema := dataset.LogisticsSchema()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([]*dataset.Column, 0, len(cols))
	for _, name := range names {
		kind := schema.KindOf(name)
		if !kind.IsNumeric() {
			kind = dataset.Unbounded
		}
		columns = append(columns, dataset.NewNumericColumn(name, kind, cols[name]))
	}
	f, err := dataset.NewFrame(columns...)
	require.NoError(t, err)
	return f
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		in      string
		want    Threshold
		wantErr bool
	}{
		{in: "p75", want: Pct(0.75)},
		{in: " P10 ", want: Pct(0.10)},
		{in: "7", want: Fixed(7)},
		{in: "0.8", want: Fixed(0.8)},
		{in: "p150", wantErr: true},
		{in: "pxx", wantErr: true},
		{in: "high", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseThreshold(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Percentile, got.Percentile)
			assert.InDelta(t, tt.want.Value, got.Value, 1e-12)
		})
	}

	assert.Equal(t, "p75", Pct(0.75).String())
	assert.Equal(t, "7", Fixed(7).String())
}

func TestParseThresholds(t *testing.T) {
	got, err := ParseThresholds(map[string]string{"lead_time_days": "p90", "route_risk_level": "6"})
	require.NoError(t, err)
	assert.True(t, got["lead_time_days"].Percentile)
	assert.Equal(t, 6.0, got["route_risk_level"].Value)

	_, err = ParseThresholds(map[string]string{"lead_time_days": "soon"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestFactor_Mask(t *testing.T) {
	frame := frameOf(t, map[string][]float64{
		"x": {1, 2, 3, 4, 5, math.NaN()},
		"y": {1, 2, 3, 4, 5, 6},
		"z": {0, 1, 0, 1, 1, 0},
	})

	tests := []struct {
		name   string
		factor Factor
		want   []bool
	}{
		{"above p75", gt("a", "x", Pct(0.75)), []bool{false, false, false, false, true, false}},
		{"below fixed", lt("b", "x", Fixed(3)), []bool{true, true, false, false, false, false}},
		{"equals zero", eq("c", "z", 0), []bool{true, false, true, false, false, true}},
		{
			"outside percentiles",
			Factor{Name: "d", Field: "y", Op: OpOutside, Threshold: Pct(0.10), Upper: Pct(0.90)},
			[]bool{true, false, false, false, false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.factor.Mask(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := gt("missing", "absent", Fixed(1)).Mask(frame)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = Factor{Name: "bad", Field: "y", Op: "between"}.Mask(frame)
	assert.Error(t, err)
}

func TestWithThresholds(t *testing.T) {
	factors := []Factor{
		gt("traffic", dataset.ColTrafficCongestion, Fixed(7)),
		eq("equipment", dataset.ColEquipmentAvailability, 0),
	}
	overrides := map[string]Threshold{
		dataset.ColTrafficCongestion:     Pct(0.5),
		dataset.ColEquipmentAvailability: Fixed(1),
	}

	got := WithThresholds(factors, overrides)

	assert.Equal(t, Pct(0.5), got[0].Threshold)
	assert.Equal(t, Fixed(0), got[1].Threshold, "equality factors keep their value")
	assert.Equal(t, Fixed(7), factors[0].Threshold, "input is not modified")
}

func TestLateRule_Flags(t *testing.T) {
	tests := []struct {
		rule LateRule
		eta  []float64
		want []bool
	}{
		{LatePositive, []float64{-1, 0, 2, math.NaN()}, []bool{false, false, true, false}},
		{LateAboveMedian, []float64{1, 2, 3, 4}, []bool{false, false, true, true}},
	}

	for _, tt := range tests {
		t.Run(string(tt.rule), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Flags(tt.eta))
		})
	}
}

func TestNewProfile(t *testing.T) {
	p := NewProfile([]float64{1, 2, 3, 4, math.NaN()})

	assert.Equal(t, 4, p.Count)
	assert.InDelta(t, 2.5, p.Mean, 1e-12)
	assert.InDelta(t, 2.5, p.Median, 1e-12)
	assert.InDelta(t, 1.75, p.P25, 1e-12)
	assert.InDelta(t, 3.25, p.P75, 1e-12)
	assert.Equal(t, 1.0, p.Min)
	assert.Equal(t, 4.0, p.Max)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, StrengthStrong, CorrelationStrength(-0.31))
	assert.Equal(t, StrengthModerate, CorrelationStrength(0.2))
	assert.Equal(t, StrengthWeak, CorrelationStrength(0.1))

	assert.Equal(t, SeverityCritical, Severity(50.1))
	assert.Equal(t, SeverityHigh, Severity(50))
	assert.Equal(t, SeverityModerate, Severity(30))
}
