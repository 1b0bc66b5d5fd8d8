package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"supplychain/internal/aggregate"
	"supplychain/internal/cleaning"
	"supplychain/internal/config"
	"supplychain/internal/dataset"
	"supplychain/internal/exporter"
	"supplychain/internal/infrastructure"
	"supplychain/internal/quality"
	"supplychain/internal/report"
	"supplychain/internal/store"
	"supplychain/internal/temporal"
	"supplychain/internal/validation"
)

// Stage names used for spans, metrics and the run log.
const (
	StageLoad      = "load"
	StageValidate  = "validate"
	StageResolve   = "resolve"
	StageScore     = "score"
	StageTemporal  = "temporal"
	StageAggregate = "aggregate"
	StageExport    = "export"
	StageAnalyze   = "analyze"
)

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists run results in s.
func WithStore(s *store.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithClock replaces the wall clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner executes the cleaning, aggregation and analysis stages against the
// configured files.
type Runner struct {
	cfg       *config.Config
	paths     *config.Paths
	schema    *dataset.Schema
	telemetry *infrastructure.Telemetry
	store     *store.Store
	csv       *exporter.CSVWriter
	workbook  *exporter.WorkbookWriter
	files     *validation.FileValidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner creates a runner. A nil telemetry records nothing.
func NewRunner(cfg *config.Config, paths *config.Paths, telemetry *infrastructure.Telemetry, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if telemetry == nil {
		telemetry = infrastructure.NoopTelemetry()
	}
	r := &Runner{
		cfg:       cfg,
		paths:     paths,
		schema:    Schema(cfg),
		telemetry: telemetry,
		csv:       exporter.NewCSVWriter(logger),
		workbook:  exporter.NewWorkbookWriter(logger),
		files:     validation.NewFileValidator(logger),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CleanResult holds the outputs of validation, resolution and scoring.
type CleanResult struct {
	Validated  *dataset.Frame
	Cleaned    *dataset.Frame
	Validation *cleaning.ValidationReport
	Resolution *cleaning.ResolutionReport
	Quality    *quality.Report
}

// AggregateResult holds the outputs of temporal filtering and aggregation.
type AggregateResult struct {
	Range       temporal.DateRange
	Discrepancy temporal.Discrepancy
	Filtered    *dataset.Frame
	Daily       *aggregate.Table
	Weekly      *aggregate.Table
	Metrics     aggregate.KeyMetrics
	// Trend is nil when there are too few weeks to compare.
	Trend *aggregate.Trend
}

// Result is the outcome of a full run.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Clean      *CleanResult
	Aggregate  *AggregateResult
}

// stage runs fn inside a span and records its duration.
func (r *Runner) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	started := time.Now()
	ctx, span := r.telemetry.StartStage(ctx, name)
	err := fn(ctx)
	r.telemetry.EndStage(ctx, span, name, started, err)
	if err != nil {
		r.logger.ErrorContext(ctx, "Stage failed",
			slog.String("stage", name),
			slog.String("error", err.Error()))
	}
	return err
}

// Clean loads the input file, validates and resolves it, scores its quality
// and writes the cleaned CSV.
func (r *Runner) Clean(ctx context.Context) (*CleanResult, error) {
	res := &CleanResult{}
	m := r.telemetry.Metrics

	var raw *dataset.RawTable
	err := r.stage(ctx, StageLoad, func(ctx context.Context) error {
		if err := r.files.ValidateCSVFile(r.paths.InputFile); err != nil {
			return err
		}
		if err := r.files.ValidateArtifactPaths(r.paths.InputFile, r.paths.CleanedCSV, r.paths.FilteredCSV); err != nil {
			return err
		}
		var err error
		raw, err = dataset.LoadCSV(r.paths.InputFile)
		if err != nil {
			return err
		}
		m.RecordsRead.Add(ctx, int64(raw.Len()))
		r.logger.InfoContext(ctx, "Input loaded",
			slog.String("file", r.paths.InputFile),
			slog.Int("rows", raw.Len()),
			slog.Int("columns", len(raw.Header)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, StageValidate, func(ctx context.Context) error {
		var err error
		res.Validated, res.Validation, err = cleaning.NewValidator(r.schema, r.logger).Validate(ctx, raw)
		if err != nil {
			return err
		}
		infrastructure.AddByKey(ctx, m.ValuesCorrected, "field", res.Validation.CorrectionsByField())
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, StageResolve, func(ctx context.Context) error {
		res.Cleaned, res.Resolution = cleaning.NewResolver(ResolverOptions(r.cfg), r.logger).Resolve(ctx, res.Validated)
		infrastructure.AddByKey(ctx, m.RecordsDropped, "reason", res.Resolution.Dropped)
		infrastructure.AddByKey(ctx, m.ValuesImputed, "field", res.Resolution.Imputed)
		m.DuplicatesRemoved.Add(ctx, int64(res.Resolution.DuplicatesRemoved))
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, StageScore, func(ctx context.Context) error {
		res.Quality = quality.NewScorer(QualityPolicy(r.cfg), r.logger).Score(ctx, quality.Inputs{
			Validated:  res.Validated,
			Resolved:   res.Cleaned,
			Validation: res.Validation,
			Resolution: res.Resolution,
		})
		for dim, v := range qualityScores(res.Quality) {
			m.QualityScore.Record(ctx, v, metric.WithAttributes(attribute.String("dimension", dim)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, StageExport, func(ctx context.Context) error {
		return r.csv.WriteFrame(ctx, r.paths.CleanedCSV, res.Cleaned)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// LoadCleaned reads a previously written cleaned CSV back into a typed
// frame.
func (r *Runner) LoadCleaned(ctx context.Context) (*dataset.Frame, error) {
	if err := r.files.ValidateCSVFile(r.paths.CleanedCSV); err != nil {
		return nil, err
	}
	raw, err := dataset.LoadCSV(r.paths.CleanedCSV)
	if err != nil {
		return nil, err
	}
	frame, _, err := cleaning.NewValidator(r.schema, r.logger).Validate(ctx, raw)
	return frame, err
}

// Aggregate restricts cleaned to the declared range and writes the filtered,
// daily and weekly CSVs and the workbook. A nil cleaned frame is read from
// the cleaned CSV.
func (r *Runner) Aggregate(ctx context.Context, cleaned *dataset.Frame, q *quality.Report) (*AggregateResult, error) {
	if cleaned == nil {
		var err error
		if cleaned, err = r.LoadCleaned(ctx); err != nil {
			return nil, err
		}
	}

	dateRange, err := DeclaredRange(r.cfg)
	if err != nil {
		return nil, err
	}
	res := &AggregateResult{Range: dateRange}
	m := r.telemetry.Metrics
	tsColumn := r.schema.TimestampColumn

	err = r.stage(ctx, StageTemporal, func(ctx context.Context) error {
		filter := temporal.NewFilter(dateRange, tsColumn, r.logger)
		res.Discrepancy = filter.Analyze(ctx, cleaned)
		infrastructure.AddByKey(ctx, m.RecordsPartitioned, "partition", map[string]int{
			"before":  res.Discrepancy.Before,
			"within":  res.Discrepancy.Within,
			"beyond":  res.Discrepancy.Beyond,
			"undated": res.Discrepancy.Undated,
		})
		res.Filtered = filter.Apply(ctx, cleaned)
		return r.csv.WriteFrame(ctx, r.paths.FilteredCSV, res.Filtered)
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, StageAggregate, func(ctx context.Context) error {
		agg := aggregate.NewAggregator(tsColumn, r.logger)
		var err error
		if res.Daily, err = agg.Aggregate(ctx, res.Filtered, aggregate.DailySpec()); err != nil {
			return err
		}
		if res.Weekly, err = agg.Aggregate(ctx, res.Filtered, aggregate.WeeklySpec()); err != nil {
			return err
		}
		infrastructure.AddByKey(ctx, m.BucketsEmitted, "granularity", map[string]int{
			res.Daily.Granularity.String():  res.Daily.Len(),
			res.Weekly.Granularity.String(): res.Weekly.Len(),
		})

		res.Metrics = aggregate.Summarize(res.Filtered)
		if trend, ok := aggregate.WeeklyTrend(res.Weekly, aggregate.TrendWindow); ok {
			res.Trend = &trend
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, StageExport, func(ctx context.Context) error {
		if err := r.csv.WriteTable(ctx, r.paths.DailyCSV, res.Daily); err != nil {
			return err
		}
		if err := r.csv.WriteTable(ctx, r.paths.WeeklyCSV, res.Weekly); err != nil {
			return err
		}
		if r.paths.Workbook == "" {
			return nil
		}
		return r.workbook.Write(ctx, r.paths.Workbook, exporter.Workbook{
			Daily:       res.Daily,
			Weekly:      res.Weekly,
			Quality:     q,
			Discrepancy: &res.Discrepancy,
			Metrics:     &res.Metrics,
		})
	})
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "Aggregation outputs written",
		slog.Int("filtered_rows", res.Filtered.Len()),
		slog.Int("daily_rows", res.Daily.Len()),
		slog.Int("weekly_rows", res.Weekly.Len()),
		slog.Bool("trend", res.Trend != nil))
	return res, nil
}

// WriteQualityReport renders whichever of the clean and aggregate results
// are present.
func (r *Runner) WriteQualityReport(ctx context.Context, clean *CleanResult, agg *AggregateResult) error {
	summary := report.QualitySummary{
		Source:      r.paths.InputFile,
		GeneratedAt: r.now(),
	}
	if clean != nil {
		summary.Validation = clean.Validation
		summary.Resolution = clean.Resolution
		summary.Quality = clean.Quality
	}
	if agg != nil {
		summary.Range = &agg.Range
		summary.Discrepancy = &agg.Discrepancy
		summary.DailyRows = agg.Daily.Len()
		summary.WeeklyRows = agg.Weekly.Len()
		summary.Metrics = &agg.Metrics
		summary.Trend = agg.Trend
	}
	if err := report.SaveQuality(r.paths.QualityReport, summary); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "Quality report written", slog.String("file", r.paths.QualityReport))
	return nil
}

// Run cleans and aggregates the input, writes the quality report and the
// run summary, and records the run in the store when one is configured.
func (r *Runner) Run(ctx context.Context) (res *Result, err error) {
	ctx = infrastructure.EnsureRunID(ctx)
	res = &Result{RunID: infrastructure.GetRunID(ctx), StartedAt: r.now()}

	if r.store != nil {
		if err := r.store.StartRun(ctx, store.Run{
			ID:        res.RunID,
			Command:   "run",
			Source:    r.paths.InputFile,
			StartedAt: res.StartedAt,
		}); err != nil {
			return nil, err
		}
		defer func() {
			rowsIn, rowsOut := 0, 0
			if res != nil && res.Clean != nil {
				rowsIn = res.Clean.Validation.RowsRead
			}
			if res != nil && res.Aggregate != nil {
				rowsOut = res.Aggregate.Filtered.Len()
			}
			if ferr := r.store.FinishRun(ctx, infrastructure.GetRunID(ctx), r.now(), rowsIn, rowsOut, err); ferr != nil && err == nil {
				err = ferr
			}
		}()
	}

	r.logger.InfoContext(ctx, "Pipeline run started",
		slog.String("run_id", res.RunID),
		slog.String("input", r.paths.InputFile),
		slog.String("output_dir", r.paths.OutputDir))

	if res.Clean, err = r.Clean(ctx); err != nil {
		return res, err
	}
	if res.Aggregate, err = r.Aggregate(ctx, res.Clean.Cleaned, res.Clean.Quality); err != nil {
		return res, err
	}
	if err = r.WriteQualityReport(ctx, res.Clean, res.Aggregate); err != nil {
		return res, err
	}

	if r.store != nil {
		err = r.stage(ctx, StageExport, func(ctx context.Context) error {
			if err := r.store.SaveTable(ctx, res.RunID, res.Aggregate.Daily); err != nil {
				return err
			}
			if err := r.store.SaveTable(ctx, res.RunID, res.Aggregate.Weekly); err != nil {
				return err
			}
			return r.store.SaveQuality(ctx, res.RunID, res.Clean.Quality)
		})
		if err != nil {
			return res, err
		}
	}

	res.FinishedAt = r.now()
	if r.paths.Summary != "" {
		if err = report.SaveJSON(r.paths.Summary, NewSummary(res, r.paths)); err != nil {
			return res, err
		}
	}

	r.logger.InfoContext(ctx, "Pipeline run complete",
		slog.String("run_id", res.RunID),
		slog.Int("rows_read", res.Clean.Validation.RowsRead),
		slog.Int("rows_cleaned", res.Clean.Cleaned.Len()),
		slog.Int("rows_filtered", res.Aggregate.Filtered.Len()),
		slog.Float64("quality_score", res.Clean.Quality.Composite),
		slog.Duration("duration", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// qualityScores returns the finite dimension scores of q.
func qualityScores(q *quality.Report) map[string]float64 {
	return finite(map[string]float64{
		"completeness": q.Completeness,
		"uniqueness":   q.Uniqueness,
		"validity":     q.Validity,
		"consistency":  q.Consistency,
		"outlier_pct":  q.OutlierPct,
		"composite":    q.Composite,
	})
}
