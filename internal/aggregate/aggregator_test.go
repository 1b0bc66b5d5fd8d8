package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychain/internal/cleaning"
	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
	"supplychain/internal/shared/testutil"
)

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func smallFrame(t *testing.T, stamps []string, fuel, fulfillment []float64) *dataset.Frame {
	t.Helper()
	ts := make([]time.Time, len(stamps))
	for i, s := range stamps {
		if s != "" {
			ts[i] = at(s)
		}
	}
	f, err := dataset.NewFrame(
		dataset.NewTimeColumn(dataset.ColTimestamp, ts),
		dataset.NewNumericColumn(dataset.ColFuelConsumption, dataset.NonNegative, fuel),
		dataset.NewNumericColumn(dataset.ColOrderFulfillment, dataset.Binary, fulfillment),
	)
	require.NoError(t, err)
	return f
}

func TestGranularity_Truncate(t *testing.T) {
	tests := []struct {
		name string
		g    Granularity
		in   string
		want string
	}{
		{"day drops hour", Day, "2021-01-01 17:00", "2021-01-01 00:00"},
		{"friday to monday", Week, "2021-01-01 17:00", "2020-12-28 00:00"},
		{"sunday stays in week", Week, "2021-01-03 23:00", "2020-12-28 00:00"},
		{"monday is anchor", Week, "2021-01-04 00:00", "2021-01-04 00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.g.Truncate(at(tt.in))
			assert.Equal(t, at(tt.want), got)
			if tt.g == Week {
				assert.Equal(t, time.Monday, got.Weekday())
			}
		})
	}
}

func TestReducer_Apply(t *testing.T) {
	values := []float64{2, math.NaN(), 4, 9}

	tests := []struct {
		r    Reducer
		want float64
	}{
		{Count, 3},
		{Mean, 5},
		{Sum, 15},
		{Min, 2},
		{Max, 9},
		{Std, math.Sqrt(13)},
	}

	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			assert.True(t, tt.r.Valid())
			assert.InDelta(t, tt.want, tt.r.Apply(values), 1e-9)
		})
	}

	assert.True(t, math.IsNaN(Std.Apply([]float64{3})))
	assert.True(t, math.IsNaN(Reducer("median").Apply(values)))
	assert.False(t, Reducer("median").Valid())
}

func TestAggregator_Daily(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	frame := smallFrame(t,
		[]string{"2021-01-02 09:00", "2021-01-01 10:00", "2021-01-01 11:00", "", "2021-01-05 08:00"},
		[]float64{4, 2, 6, 100, 7},
		[]float64{1, 0, 1, 1, 1},
	)

	table, err := NewAggregator("", logger).Aggregate(context.Background(), frame, DailySpec())
	require.NoError(t, err)

	assert.Equal(t, "date", table.KeyColumn)
	assert.Equal(t, []time.Time{at("2021-01-01 00:00"), at("2021-01-02 00:00"), at("2021-01-05 00:00")}, table.Keys())
	assert.Equal(t, 4, table.TotalCount(), "undated rows are not bucketed")

	wantHeader := []string{
		"date",
		"daily_record_count",
		"fuel_consumption_rate_mean", "fuel_consumption_rate_std", "fuel_consumption_rate_max",
		"fulfillment_rate",
	}
	if diff := cmp.Diff(wantHeader, table.Header()); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	mean, ok := table.Column("fuel_consumption_rate_mean")
	require.True(t, ok)
	std, _ := table.Column("fuel_consumption_rate_std")
	rate, _ := table.Column("fulfillment_rate")

	opts := cmpopts.EquateNaNs()
	if diff := cmp.Diff([]float64{4, 4, 7}, mean, opts); diff != "" {
		t.Errorf("mean mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{math.Sqrt(8), math.NaN(), math.NaN()}, std, opts); diff != "" {
		t.Errorf("std mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.5, 1, 1}, rate, opts); diff != "" {
		t.Errorf("rate mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"2021-01-02", "1", "4", "", "4", "1"}, table.Records()[1])

	rec := testutil.AssertLogged(t, logs, slog.LevelWarn, "Metrics absent from input, skipped")
	assert.Equal(t, "daily", rec.Attrs["granularity"])
	testutil.AssertLogged(t, logs, slog.LevelInfo, "Aggregation complete")
}

func TestAggregator_Weekly(t *testing.T) {
	fixture := testutil.NewFixture().Rows(14, func(i int) testutil.Cells {
		ts := at("2021-01-01 06:00").Add(time.Duration(i) * 24 * time.Hour)
		return testutil.Cells{dataset.ColTimestamp: ts.Format(dataset.TimeLayout)}
	})
	frame := framesFromFixture(t, fixture)

	table, err := NewAggregator(dataset.ColTimestamp, nil).Aggregate(context.Background(), frame, WeeklySpec())
	require.NoError(t, err)

	assert.Equal(t, "week_start", table.KeyColumn)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, []int{3, 7, 4}, []int{table.Buckets[0].Count, table.Buckets[1].Count, table.Buckets[2].Count})
	assert.Equal(t, frame.Len(), table.TotalCount())
	for _, b := range table.Buckets {
		assert.Equal(t, time.Monday, b.Key.Weekday())
		assert.Positive(t, b.Count)
	}

	counts, ok := table.Column("weekly_record_count")
	require.True(t, ok)
	assert.Equal(t, []float64{3, 7, 4}, counts)

	for _, name := range []string{
		"fulfillment_rate", "good_cargo_rate", "equipment_availability_rate",
		"port_congestion_level_mean", "customs_clearance_time_mean",
		"shipping_costs_sum", "warehouse_inventory_level_min",
	} {
		assert.GreaterOrEqual(t, table.ColumnIndex(name), 0, name)
	}
	assert.Equal(t, -1, table.ColumnIndex("order_fulfillment_status_mean"))
}

func TestAggregator_RecordCountIgnoresNullFields(t *testing.T) {
	ts := []time.Time{at("2021-01-01 09:00"), at("2021-01-02 09:00"), at("2021-01-02 10:00")}
	frame, err := dataset.NewFrame(
		dataset.NewTimeColumn(dataset.ColTimestamp, ts),
		dataset.NewNumericColumn(dataset.ColLatitude, dataset.Latitude, []float64{1, math.NaN(), math.NaN()}),
		dataset.NewNumericColumn(dataset.ColFuelConsumption, dataset.NonNegative, []float64{math.NaN(), 3, 5}),
	)
	require.NoError(t, err)

	for _, spec := range []Spec{DailySpec(), WeeklySpec()} {
		t.Run(spec.Granularity.String(), func(t *testing.T) {
			table, err := NewAggregator("", nil).Aggregate(context.Background(), frame, spec)
			require.NoError(t, err)

			counts, ok := table.Column(spec.CountColumn)
			require.True(t, ok)
			require.Len(t, counts, table.Len())
			for i, b := range table.Buckets {
				assert.Positive(t, b.Count)
				assert.Equal(t, float64(b.Count), counts[i], b.Key)
			}
			assert.Equal(t, frame.Len(), table.TotalCount())
		})
	}
}

func TestAggregator_Errors(t *testing.T) {
	noTime, err := dataset.NewFrame(dataset.NewNumericColumn(dataset.ColFuelConsumption, dataset.NonNegative, []float64{1}))
	require.NoError(t, err)

	_, err = NewAggregator("", nil).Aggregate(context.Background(), noTime, DailySpec())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	frame := smallFrame(t, []string{"2021-01-01 00:00"}, []float64{1}, []float64{1})
	bad := Spec{Granularity: Day, Metrics: []MetricSpec{{Field: dataset.ColFuelConsumption, Reducers: []Reducer{"p99"}}}}
	_, err = NewAggregator("", nil).Aggregate(context.Background(), frame, bad)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestAggregator_Empty(t *testing.T) {
	frame := smallFrame(t, []string{}, []float64{}, []float64{})

	table, err := NewAggregator("", nil).Aggregate(context.Background(), frame, WeeklySpec())
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Records())
	assert.Equal(t, "week_start", table.Header()[0])
}

func TestSummarize(t *testing.T) {
	fixture := testutil.NewFixture().Rows(4, func(i int) testutil.Cells {
		return testutil.Cells{
			dataset.ColTimestamp:        fmt.Sprintf("2021-01-01 %02d:00", i),
			dataset.ColOrderFulfillment: []string{"1", "0", "1", "1"}[i],
			dataset.ColShippingCosts:    fmt.Sprint(100 * (i + 1)),
		}
	})

	km := Summarize(framesFromFixture(t, fixture))

	assert.Equal(t, 4, km.Records)
	assert.InDelta(t, 75.0, km.FulfillmentRate, 1e-9)
	assert.InDelta(t, 1000.0, km.TotalShippingCosts, 1e-9)
	assert.InDelta(t, 5.0, km.AvgFuelConsumption, 1e-9)

	empty, err := dataset.NewFrame(dataset.NewTimeColumn(dataset.ColTimestamp, nil))
	require.NoError(t, err)
	km = Summarize(empty)
	assert.True(t, math.IsNaN(km.TotalShippingCosts))
	assert.True(t, math.IsNaN(km.FulfillmentRate))
}

func TestWeeklyTrend(t *testing.T) {
	weeks := func(n int, rate func(i int) float64, fuel func(i int) float64) *Table {
		table := &Table{
			Granularity: Week,
			KeyColumn:   "week_start",
			Columns:     []string{"fulfillment_rate", "fuel_consumption_rate_mean"},
		}
		start := at("2021-01-04 00:00")
		for i := 0; i < n; i++ {
			table.Buckets = append(table.Buckets, Bucket{
				Key:    start.AddDate(0, 0, 7*i),
				Count:  1,
				Values: []float64{rate(i), fuel(i)},
			})
		}
		return table
	}

	_, ok := WeeklyTrend(weeks(4, func(int) float64 { return 1 }, func(int) float64 { return 1 }), TrendWindow)
	assert.False(t, ok, "needs more weeks than the window")

	table := weeks(8,
		func(i int) float64 {
			if i < 4 {
				return 0.5
			}
			return 0.6
		},
		func(i int) float64 {
			if i < 4 {
				return 10
			}
			return 12
		})
	trend, ok := WeeklyTrend(table, TrendWindow)
	require.True(t, ok)
	assert.InDelta(t, 10.0, trend.FulfillmentChange, 1e-9)
	assert.InDelta(t, 20.0, trend.FuelChange, 1e-9)

	_, ok = WeeklyTrend(&Table{Buckets: make([]Bucket, 6)}, TrendWindow)
	assert.False(t, ok, "columns are required")
}

func framesFromFixture(t *testing.T, fixture *testutil.Fixture) *dataset.Frame {
	t.Helper()
	frame, _, err := cleaning.NewValidator(dataset.LogisticsSchema(), nil).Validate(context.Background(), fixture.Table(t))
	require.NoError(t, err)
	return frame
}
