package cleaning

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"supplychain/internal/dataset"
	"supplychain/internal/stats"
)

// Reasons a record is dropped by the resolver.
const (
	DropTimestamp     = "timestamp"
	DropGeocoordinate = "geocoordinate"
)

// ResolverOptions controls how incomplete and duplicate records are handled.
type ResolverOptions struct {
	TimestampColumn string
	LatitudeColumn  string
	LongitudeColumn string
	// RequireGeo drops records missing either coordinate.
	RequireGeo bool
	TieBreak   stats.TieBreak
}

// DefaultResolverOptions returns the options used for the logistics dataset.
func DefaultResolverOptions() ResolverOptions {
	return ResolverOptions{
		TimestampColumn: dataset.ColTimestamp,
		LatitudeColumn:  dataset.ColLatitude,
		LongitudeColumn: dataset.ColLongitude,
		RequireGeo:      true,
		TieBreak:        stats.TieBreakLexical,
	}
}

// ResolutionReport counts what the resolver removed and filled in.
type ResolutionReport struct {
	RowsIn            int               `json:"rows_in"`
	RowsOut           int               `json:"rows_out"`
	Dropped           map[string]int    `json:"dropped"`
	Imputed           map[string]int    `json:"imputed"`
	ImputedWith       map[string]string `json:"imputed_with"`
	DuplicatesRemoved int               `json:"duplicates_removed"`
}

// TotalDropped is the number of records dropped for missing critical fields.
func (r *ResolutionReport) TotalDropped() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// TotalImputed is the number of cells filled by imputation.
func (r *ResolutionReport) TotalImputed() int {
	n := 0
	for _, c := range r.Imputed {
		n += c
	}
	return n
}

// Resolver removes unrecoverable records, imputes missing values and drops
// exact duplicates.
type Resolver struct {
	opts   ResolverOptions
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(opts ResolverOptions, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TimestampColumn == "" {
		opts.TimestampColumn = dataset.ColTimestamp
	}
	if opts.TieBreak == "" {
		opts.TieBreak = stats.TieBreakLexical
	}
	return &Resolver{opts: opts, logger: logger}
}

// Resolve returns a new frame with the following applied in order: records
// with an unparsed timestamp dropped, records missing a coordinate dropped,
// numeric gaps filled with the column median, categorical gaps filled with
// the column mode, and exact duplicate rows removed keeping the first. The
// input frame is not modified.
func (r *Resolver) Resolve(ctx context.Context, f *dataset.Frame) (*dataset.Frame, *ResolutionReport) {
	report := &ResolutionReport{
		RowsIn:      f.Len(),
		Dropped:     map[string]int{DropTimestamp: 0, DropGeocoordinate: 0},
		Imputed:     make(map[string]int),
		ImputedWith: make(map[string]string),
	}

	out := r.dropMissingTimestamps(f, report)
	out = r.dropMissingCoordinates(out, report)
	out = r.impute(ctx, out, report)
	out = dedupe(out, report)

	report.RowsOut = out.Len()

	r.logger.InfoContext(ctx, "Resolution complete",
		slog.Int("rows_in", report.RowsIn),
		slog.Int("rows_out", report.RowsOut),
		slog.Int("dropped_timestamp", report.Dropped[DropTimestamp]),
		slog.Int("dropped_geocoordinate", report.Dropped[DropGeocoordinate]),
		slog.Int("values_imputed", report.TotalImputed()),
		slog.Int("duplicates_removed", report.DuplicatesRemoved))

	return out, report
}

func (r *Resolver) dropMissingTimestamps(f *dataset.Frame, report *ResolutionReport) *dataset.Frame {
	ts, ok := f.Times(r.opts.TimestampColumn)
	if !ok {
		return f
	}
	out := f.Where(func(i int) bool { return !ts[i].IsZero() })
	report.Dropped[DropTimestamp] = f.Len() - out.Len()
	return out
}

func (r *Resolver) dropMissingCoordinates(f *dataset.Frame, report *ResolutionReport) *dataset.Frame {
	if !r.opts.RequireGeo {
		return f
	}
	lat, hasLat := f.Numeric(r.opts.LatitudeColumn)
	lon, hasLon := f.Numeric(r.opts.LongitudeColumn)
	if !hasLat && !hasLon {
		return f
	}
	out := f.Where(func(i int) bool {
		if hasLat && math.IsNaN(lat[i]) {
			return false
		}
		if hasLon && math.IsNaN(lon[i]) {
			return false
		}
		return true
	})
	report.Dropped[DropGeocoordinate] = f.Len() - out.Len()
	return out
}

// impute fills numeric gaps with the median and categorical gaps with the
// mode of the current snapshot. Coordinates are never imputed. A column with
// no observed value stays null.
func (r *Resolver) impute(ctx context.Context, f *dataset.Frame, report *ResolutionReport) *dataset.Frame {
	out := f
	for _, col := range f.Columns() {
		missing := col.NullCount()
		if missing == 0 {
			continue
		}

		var filled *dataset.Column
		switch {
		case col.Kind == dataset.Latitude || col.Kind == dataset.Longitude:
			continue
		case col.Kind.IsNumeric():
			median := stats.Median(col.Num)
			if math.IsNaN(median) {
				r.logger.WarnContext(ctx, "Column has no values to impute from", slog.String("field", col.Name))
				continue
			}
			median, _ = ClampValue(median, col.Kind)
			filled = col.Clone()
			for i, v := range filled.Num {
				if math.IsNaN(v) {
					filled.Num[i] = median
				}
			}
			report.ImputedWith[col.Name] = strconv.FormatFloat(median, 'f', -1, 64)
		case col.Kind == dataset.Categorical:
			mode, ok := stats.Mode(col.Str, r.opts.TieBreak)
			if !ok {
				r.logger.WarnContext(ctx, "Column has no values to impute from", slog.String("field", col.Name))
				continue
			}
			filled = col.Clone()
			for i, v := range filled.Str {
				if v == "" {
					filled.Str[i] = mode
				}
			}
			report.ImputedWith[col.Name] = mode
		default:
			continue
		}

		next, err := out.WithColumn(filled)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to replace imputed column",
				slog.String("field", col.Name),
				slog.String("error", err.Error()))
			continue
		}
		out = next
		report.Imputed[col.Name] = missing
	}
	return out
}

func dedupe(f *dataset.Frame, report *ResolutionReport) *dataset.Frame {
	seen := make(map[string]struct{}, f.Len())
	keep := make([]int, 0, f.Len())
	for i := 0; i < f.Len(); i++ {
		key := f.RowKey(i)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	report.DuplicatesRemoved = f.Len() - len(keep)
	if report.DuplicatesRemoved == 0 {
		return f
	}
	return f.Select(keep)
}
