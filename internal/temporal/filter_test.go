package temporal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychain/internal/dataset"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func frameOf(t *testing.T, stamps ...string) *dataset.Frame {
	t.Helper()
	ts := make([]time.Time, len(stamps))
	ids := make([]float64, len(stamps))
	for i, s := range stamps {
		if s != "" {
			ts[i] = day(s)
		}
		ids[i] = float64(i)
	}
	f, err := dataset.NewFrame(
		dataset.NewTimeColumn(dataset.ColTimestamp, ts),
		dataset.NewNumericColumn("id", dataset.Unbounded, ids),
	)
	require.NoError(t, err)
	return f
}

func declared(t *testing.T) DateRange {
	t.Helper()
	r, err := ParseDateRange("2021-01-01", "2024-01-31")
	require.NoError(t, err)
	return r
}

func TestFilter_DiscrepancyScenario(t *testing.T) {
	frame := frameOf(t,
		"2020-12-31 23:00",
		"2021-01-01 00:00",
		"2022-06-15 12:00",
		"2024-01-31 23:00",
		"2024-02-01 00:00",
		"2024-03-15 08:00",
	)
	f := NewFilter(declared(t), "", nil)

	d := f.Analyze(context.Background(), frame)

	assert.True(t, d.HasDiscrepancy())
	assert.Equal(t, 6, d.Total)
	assert.Equal(t, 1, d.Before)
	assert.Equal(t, 3, d.Within)
	assert.Equal(t, 2, d.Beyond)
	assert.Equal(t, d.Total, d.Before+d.Within+d.Beyond+d.Undated)
	assert.Equal(t, 1, d.MonthsBeyond)
	assert.Equal(t, 2, d.CalendarMonthsBeyond)
	assert.InDelta(t, 50.0, d.WithinPct, 1e-9)
	assert.Equal(t, day("2024-03-15 08:00"), d.ActualEnd)
	assert.Equal(t, day("2020-12-31 23:00"), d.ActualStart)

	out := f.Apply(context.Background(), frame)
	ids, _ := out.Numeric("id")
	assert.Equal(t, []float64{1, 2, 3}, ids)
}

func TestFilter_Idempotent(t *testing.T) {
	frame := frameOf(t, "2019-05-01 00:00", "2021-03-01 10:00", "2023-12-31 00:00", "2025-01-01 00:00", "")
	f := NewFilter(declared(t), dataset.ColTimestamp, nil)

	once := f.Apply(context.Background(), frame)
	twice := f.Apply(context.Background(), once)

	assert.Equal(t, 2, once.Len())
	assert.Equal(t, once.Records(), twice.Records())

	d := f.Analyze(context.Background(), once)
	assert.False(t, d.HasDiscrepancy())
	assert.Equal(t, 0, d.MonthsBeyond)
	assert.Equal(t, 2, d.Within)
}

func TestFilter_EmptyResult(t *testing.T) {
	f := NewFilter(declared(t), "", nil)

	tests := []struct {
		name  string
		frame *dataset.Frame
	}{
		{"no rows", frameOf(t)},
		{"all outside", frameOf(t, "2030-01-01 00:00", "2010-01-01 00:00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Apply(context.Background(), tt.frame)
			assert.Equal(t, 0, out.Len())

			d := f.Analyze(context.Background(), out)
			assert.Equal(t, 0, d.Total)
			assert.Equal(t, 0, d.Within)
			assert.Equal(t, 0.0, d.WithinPct)
			assert.True(t, d.ActualEnd.IsZero())
		})
	}
}

func TestFilter_MissingColumn(t *testing.T) {
	frame, err := dataset.NewFrame(dataset.NewNumericColumn("id", dataset.Unbounded, []float64{1, 2}))
	require.NoError(t, err)
	f := NewFilter(declared(t), "", nil)

	assert.Equal(t, 0, f.Apply(context.Background(), frame).Len())
	assert.Equal(t, 2, f.Analyze(context.Background(), frame).Undated)
}

func TestDateRange(t *testing.T) {
	r := declared(t)
	assert.True(t, r.Contains(day("2024-01-31 23:00")))
	assert.False(t, r.Contains(day("2024-02-01 00:00")))
	assert.True(t, r.After(day("2024-02-01 00:00")))
	assert.True(t, r.Before(day("2020-12-31 23:59")))
	assert.Equal(t, "2021-01-01..2024-01-31", r.String())

	_, err := ParseDateRange("2024-02-01", "2024-01-31")
	assert.Error(t, err)
	_, err = ParseDateRange("2024/02/01", "2024-01-31")
	assert.Error(t, err)
	_, err = ParseDateRange("2024-01-01", "soon")
	assert.Error(t, err)
}

func TestWholeMonths(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"2024-01-31 00:00", "2024-03-15 08:00", 1},
		{"2024-01-31 00:00", "2024-02-29 12:00", 1},
		{"2024-01-31 00:00", "2024-02-10 00:00", 0},
		{"2024-01-31 00:00", "2024-03-31 05:00", 2},
		{"2023-11-15 00:00", "2024-02-15 00:00", 3},
	}

	for _, tt := range tests {
		t.Run(tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, wholeMonths(day(tt.from), day(tt.to)))
		})
	}
}
