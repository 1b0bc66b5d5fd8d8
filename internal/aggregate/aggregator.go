package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
)

// KeyLayout formats bucket keys in output tables.
const KeyLayout = "2006-01-02"

// Bucket is one non-empty time bucket.
type Bucket struct {
	Key    time.Time
	Count  int
	Values []float64
}

// Table is the result of an aggregation: one row per bucket in ascending key
// order, with Values aligned to Columns.
type Table struct {
	Granularity Granularity
	KeyColumn   string
	Columns     []string
	Buckets     []Bucket
}

// Len returns the number of buckets.
func (t *Table) Len() int { return len(t.Buckets) }

// Header returns the key column followed by the value columns.
func (t *Table) Header() []string {
	return append([]string{t.KeyColumn}, t.Columns...)
}

// ColumnIndex returns the position of a value column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of one column across buckets.
func (t *Table) Column(name string) ([]float64, bool) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Buckets))
	for i, b := range t.Buckets {
		out[i] = b.Values[j]
	}
	return out, true
}

// Keys returns the bucket keys.
func (t *Table) Keys() []time.Time {
	out := make([]time.Time, len(t.Buckets))
	for i, b := range t.Buckets {
		out[i] = b.Key
	}
	return out
}

// TotalCount sums the record counts of every bucket.
func (t *Table) TotalCount() int {
	n := 0
	for _, b := range t.Buckets {
		n += b.Count
	}
	return n
}

// Records formats the buckets for text output. Missing values are empty.
func (t *Table) Records() [][]string {
	out := make([][]string, len(t.Buckets))
	for i, b := range t.Buckets {
		row := make([]string, 0, len(b.Values)+1)
		row = append(row, b.Key.Format(KeyLayout))
		for _, v := range b.Values {
			row = append(row, FormatValue(v))
		}
		out[i] = row
	}
	return out
}

// FormatValue renders a reduced value, empty for NaN.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Aggregator groups records into time buckets.
type Aggregator struct {
	timestampColumn string
	logger          *slog.Logger
}

// NewAggregator creates an aggregator keyed on the timestamp column.
func NewAggregator(timestampColumn string, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if timestampColumn == "" {
		timestampColumn = dataset.ColTimestamp
	}
	return &Aggregator{timestampColumn: timestampColumn, logger: logger}
}

type column struct {
	name    string
	values  []float64
	reducer Reducer
}

// Aggregate groups frame rows by bucket and applies the spec's reducers to
// each group. Fields absent from the frame are skipped; rows without a
// timestamp are ignored. Only non-empty buckets are emitted, sorted by key.
func (a *Aggregator) Aggregate(ctx context.Context, frame *dataset.Frame, spec Spec) (*Table, error) {
	ts, ok := frame.Times(a.timestampColumn)
	if !ok {
		return nil, apperrors.NewMissingColumnError(a.timestampColumn, "aggregation input")
	}

	var cols []column
	var skipped []string
	for _, metric := range spec.Metrics {
		values, ok := frame.Numeric(metric.Field)
		if !ok {
			skipped = append(skipped, metric.Field)
			continue
		}
		for _, r := range metric.Reducers {
			if !r.Valid() {
				return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown reducer %q for %s", string(r), metric.Field))
			}
			cols = append(cols, column{name: spec.ColumnName(metric.Field, r), values: values, reducer: r})
		}
	}
	if len(skipped) > 0 {
		a.logger.WarnContext(ctx, "Metrics absent from input, skipped",
			slog.String("granularity", spec.Granularity.String()),
			slog.Any("fields", skipped))
	}

	groups := make(map[time.Time][]int)
	for i, t := range ts {
		if t.IsZero() {
			continue
		}
		key := spec.Granularity.Truncate(t)
		groups[key] = append(groups[key], i)
	}

	keys := make([]time.Time, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	offset := 0
	if spec.CountColumn != "" {
		offset = 1
	}
	table := &Table{
		Granularity: spec.Granularity,
		KeyColumn:   spec.Granularity.KeyColumn(),
		Columns:     make([]string, offset+len(cols)),
		Buckets:     make([]Bucket, 0, len(keys)),
	}
	if offset == 1 {
		table.Columns[0] = spec.CountColumn
	}
	for j, c := range cols {
		table.Columns[offset+j] = c.name
	}

	// The count column comes from the bucket itself so it always equals
	// Bucket.Count, whatever fields are null in the grouped rows.
	scratch := make([]float64, 0, 64)
	for _, key := range keys {
		rows := groups[key]
		bucket := Bucket{Key: key, Count: len(rows), Values: make([]float64, offset+len(cols))}
		if offset == 1 {
			bucket.Values[0] = float64(len(rows))
		}
		for j, c := range cols {
			scratch = scratch[:0]
			for _, i := range rows {
				scratch = append(scratch, c.values[i])
			}
			bucket.Values[offset+j] = c.reducer.Apply(scratch)
		}
		table.Buckets = append(table.Buckets, bucket)
	}

	a.logger.InfoContext(ctx, "Aggregation complete",
		slog.String("granularity", spec.Granularity.String()),
		slog.Int("rows", frame.Len()),
		slog.Int("buckets", table.Len()),
		slog.Int("columns", len(table.Columns)))

	return table, nil
}
