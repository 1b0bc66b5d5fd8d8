package exporter

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"supplychain/internal/aggregate"
	"supplychain/internal/dataset"
	"supplychain/internal/quality"
	"supplychain/internal/shared/testutil"
	"supplychain/internal/temporal"
)

func dailyTable() *aggregate.Table {
	return &aggregate.Table{
		Granularity: aggregate.Day,
		KeyColumn:   "date",
		Columns:     []string{"fuel_consumption_rate_mean", "daily_record_count"},
		Buckets: []aggregate.Bucket{
			{Key: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), Count: 2, Values: []float64{5.25, 2}},
			{Key: time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC), Count: 1, Values: []float64{math.NaN(), 1}},
		},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCSVWriter_WriteCSV(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		options WriteOptions
		want    string
	}{
		{
			name:    "plain",
			options: WriteOptions{Headers: []string{"a", "b"}, Records: [][]string{{"1", "x,y"}}},
			want:    "a,b\n1,\"x,y\"\n",
		},
		{
			name:    "bom",
			options: WriteOptions{Headers: []string{"a"}, Records: [][]string{{"1"}}, BOMPrefix: true},
			want:    "\xEF\xBB\xBFa\n1\n",
		},
		{
			name:    "no header",
			options: WriteOptions{Records: [][]string{{"1"}, {"2"}}},
			want:    "1\n2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name, "out.csv")
			require.NoError(t, w.WriteCSV(ctx, path, tt.options))
			assert.Equal(t, tt.want, readFile(t, path))
		})
	}
}

func TestCSVWriter_AppendToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	w := NewCSVWriter(nil)
	ctx := context.Background()

	require.NoError(t, w.WriteCSV(ctx, path, WriteOptions{Headers: []string{"run"}, Records: [][]string{{"1"}}, BOMPrefix: true}))
	require.NoError(t, w.AppendToCSV(ctx, path, [][]string{{"2"}}))

	assert.Equal(t, "\xEF\xBB\xBFrun\n1\n2\n", readFile(t, path), "appending never writes a second BOM or header")
}

func TestCSVWriter_WriteFrame(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	frame, err := dataset.NewFrame(
		dataset.NewTimeColumn(dataset.ColTimestamp, []time.Time{
			time.Date(2021, 1, 1, 10, 0, 0, 0, time.UTC),
			{},
		}),
		dataset.NewNumericColumn(dataset.ColOrderFulfillment, dataset.Binary, []float64{1, math.NaN()}),
		dataset.NewStringColumn(dataset.ColRiskClassification, dataset.Categorical, []string{"High Risk", ""}),
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cleaned.csv")
	require.NoError(t, NewCSVWriter(logger).WriteFrame(context.Background(), path, frame))

	want := strings.Join([]string{
		"timestamp,order_fulfillment_status,risk_classification",
		"2021-01-01 10:00:00,1,High Risk",
		",,",
		"",
	}, "\n")
	assert.Equal(t, want, readFile(t, path))

	rec := testutil.AssertLogged(t, logs, slog.LevelInfo, "Frame written")
	assert.Equal(t, int64(2), rec.Attrs["rows"])
}

func TestCSVWriter_WriteFrame_Cancelled(t *testing.T) {
	frame, err := dataset.NewFrame(dataset.NewNumericColumn("x", dataset.Unbounded, []float64{1, 2}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewCSVWriter(nil).WriteFrame(ctx, filepath.Join(t.TempDir(), "x.csv"), frame)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCSVWriter_WriteTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.csv")

	require.NoError(t, NewCSVWriter(nil).WriteTable(context.Background(), path, dailyTable()))

	assert.Equal(t,
		"date,fuel_consumption_rate_mean,daily_record_count\n2021-01-01,5.25,2\n2021-01-02,,1\n",
		readFile(t, path))
}

func TestWorkbookWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics", "supply_chain_metrics.xlsx")
	weekly := dailyTable()
	weekly.Granularity = aggregate.Week
	weekly.KeyColumn = "week"

	err := NewWorkbookWriter(nil).Write(context.Background(), path, Workbook{
		Daily:       dailyTable(),
		Weekly:      weekly,
		Quality:     &quality.Report{Completeness: 99.123, Composite: 97.5, TotalCells: 40},
		Discrepancy: &temporal.Discrepancy{Beyond: 3},
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetDaily, SheetWeekly, SheetQuality}, f.GetSheetList())

	rows, err := f.GetRows(SheetDaily)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"date", "fuel_consumption_rate_mean", "daily_record_count"}, rows[0])
	assert.Equal(t, []string{"2021-01-01", "5.25", "2"}, rows[1])
	assert.Equal(t, []string{"2021-01-02", "", "1"}, rows[2])

	weeklyRows, err := f.GetRows(SheetWeekly)
	require.NoError(t, err)
	assert.Equal(t, "week", weeklyRows[0][0])

	quality, err := f.GetRows(SheetQuality)
	require.NoError(t, err)
	values := make(map[string]string)
	for _, row := range quality[1:] {
		if len(row) == 2 {
			values[row[0]] = row[1]
		}
	}
	assert.Equal(t, "99.12", values["Completeness (%)"])
	assert.Equal(t, "40", values["Total Cells"])
	assert.Equal(t, "3", values["Records Beyond Range"])
	assert.NotContains(t, values, "Records Analyzed")
}

func TestWorkbookWriter_DailyOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "only.xlsx")

	require.NoError(t, NewWorkbookWriter(nil).Write(context.Background(), path, Workbook{Daily: dailyTable()}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetDaily}, f.GetSheetList())
}

func TestCellValues(t *testing.T) {
	assert.Nil(t, cellValue(math.NaN()))
	assert.Equal(t, 2.5, cellValue(2.5))
	assert.Nil(t, percentCell(math.Inf(1)))
	assert.Equal(t, 33.33, percentCell(100.0/3))
}
