package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the counters and histograms of a pipeline run.
type PipelineMetrics struct {
	RecordsRead        metric.Int64Counter
	RecordsDropped     metric.Int64Counter
	ValuesCorrected    metric.Int64Counter
	ValuesImputed      metric.Int64Counter
	DuplicatesRemoved  metric.Int64Counter
	RecordsPartitioned metric.Int64Counter
	BucketsEmitted     metric.Int64Counter
	QualityScore       metric.Float64Gauge
	StageDuration      metric.Float64Histogram
	StageRuns          metric.Int64Counter
}

// CreatePipelineMetrics registers the pipeline instruments on meter.
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	recordsRead, err := meter.Int64Counter(
		"pipeline_records_read_total",
		metric.WithDescription("Total number of input records read"),
	)
	if err != nil {
		return nil, err
	}

	recordsDropped, err := meter.Int64Counter(
		"pipeline_records_dropped_total",
		metric.WithDescription("Records dropped by the resolver, by reason"),
	)
	if err != nil {
		return nil, err
	}

	valuesCorrected, err := meter.Int64Counter(
		"pipeline_values_corrected_total",
		metric.WithDescription("Out-of-range values clamped into their domain, by field"),
	)
	if err != nil {
		return nil, err
	}

	valuesImputed, err := meter.Int64Counter(
		"pipeline_values_imputed_total",
		metric.WithDescription("Missing values filled by median or mode imputation, by field"),
	)
	if err != nil {
		return nil, err
	}

	duplicatesRemoved, err := meter.Int64Counter(
		"pipeline_duplicates_removed_total",
		metric.WithDescription("Exact duplicate records removed"),
	)
	if err != nil {
		return nil, err
	}

	recordsPartitioned, err := meter.Int64Counter(
		"pipeline_records_partitioned_total",
		metric.WithDescription("Records classified against the declared date range, by partition"),
	)
	if err != nil {
		return nil, err
	}

	bucketsEmitted, err := meter.Int64Counter(
		"pipeline_buckets_emitted_total",
		metric.WithDescription("Aggregation buckets written, by granularity"),
	)
	if err != nil {
		return nil, err
	}

	qualityScore, err := meter.Float64Gauge(
		"pipeline_quality_score",
		metric.WithDescription("Data quality scores of the last run, by dimension"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"pipeline_stage_duration_seconds",
		metric.WithDescription("Pipeline stage execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stageRuns, err := meter.Int64Counter(
		"pipeline_stage_runs_total",
		metric.WithDescription("Pipeline stage executions, by stage and outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		RecordsRead:        recordsRead,
		RecordsDropped:     recordsDropped,
		ValuesCorrected:    valuesCorrected,
		ValuesImputed:      valuesImputed,
		DuplicatesRemoved:  duplicatesRemoved,
		RecordsPartitioned: recordsPartitioned,
		BucketsEmitted:     bucketsEmitted,
		QualityScore:       qualityScore,
		StageDuration:      stageDuration,
		StageRuns:          stageRuns,
	}, nil
}

// RecordStage records one stage execution.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Bool("success", success),
	)
	m.StageDuration.Record(ctx, duration.Seconds(), attrs)
	m.StageRuns.Add(ctx, 1, attrs)
}

// AddByKey adds each map entry to counter under the given attribute key.
func AddByKey(ctx context.Context, counter metric.Int64Counter, key string, counts map[string]int) {
	for name, n := range counts {
		if n == 0 {
			continue
		}
		counter.Add(ctx, int64(n), metric.WithAttributes(attribute.String(key, name)))
	}
}
