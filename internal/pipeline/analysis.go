package pipeline

import (
	"context"
	"log/slog"

	"supplychain/internal/bottleneck"
	"supplychain/internal/dataset"
	"supplychain/internal/report"
)

// LoadFiltered reads the filtered CSV written by Aggregate.
func (r *Runner) LoadFiltered(ctx context.Context) (*dataset.Frame, error) {
	if err := r.files.ValidateCSVFile(r.paths.FilteredCSV); err != nil {
		return nil, err
	}
	frame, err := bottleneck.LoadFile(r.paths.FilteredCSV, r.schema)
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "Filtered dataset loaded",
		slog.String("file", r.paths.FilteredCSV),
		slog.Int("rows", frame.Len()))
	return frame, nil
}

// analysisFrame returns frame, or the filtered CSV when frame is nil.
func (r *Runner) analysisFrame(ctx context.Context, frame *dataset.Frame) (*dataset.Frame, error) {
	if frame != nil {
		return frame, nil
	}
	return r.LoadFiltered(ctx)
}

// Bottlenecks runs the bottleneck analysis and writes its report.
func (r *Runner) Bottlenecks(ctx context.Context, frame *dataset.Frame) (*bottleneck.Report, error) {
	opts, err := AnalysisOptions(r.cfg)
	if err != nil {
		return nil, err
	}
	if frame, err = r.analysisFrame(ctx, frame); err != nil {
		return nil, err
	}

	var rep *bottleneck.Report
	err = r.stage(ctx, StageAnalyze, func(ctx context.Context) error {
		var err error
		if rep, err = bottleneck.NewAnalyzer(opts, r.logger).Analyze(ctx, frame); err != nil {
			return err
		}
		return report.SaveBottleneck(r.paths.BottleneckReport, rep, r.now())
	})
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "Bottleneck report written",
		slog.String("file", r.paths.BottleneckReport),
		slog.Int("critical", len(rep.Critical)))
	return rep, nil
}

// Stress runs the stress index analysis and writes its report.
func (r *Runner) Stress(ctx context.Context, frame *dataset.Frame) (*bottleneck.StressReport, error) {
	opts, err := AnalysisOptions(r.cfg)
	if err != nil {
		return nil, err
	}
	if frame, err = r.analysisFrame(ctx, frame); err != nil {
		return nil, err
	}

	var rep *bottleneck.StressReport
	err = r.stage(ctx, StageAnalyze, func(ctx context.Context) error {
		factors := bottleneck.WithThresholds(bottleneck.DefaultStressFactors(), opts.Thresholds)
		var err error
		if rep, err = bottleneck.NewStressAnalyzer(factors, opts.LateRule, r.logger).Analyze(ctx, frame); err != nil {
			return err
		}
		return report.SaveStress(r.paths.StressReport, rep)
	})
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "Stress report written",
		slog.String("file", r.paths.StressReport),
		slog.Float64("average_index", rep.AverageIndex))
	return rep, nil
}

// Compound runs the compound effects analysis and writes its report.
func (r *Runner) Compound(ctx context.Context, frame *dataset.Frame) (*bottleneck.CompoundReport, error) {
	opts, err := AnalysisOptions(r.cfg)
	if err != nil {
		return nil, err
	}
	if frame, err = r.analysisFrame(ctx, frame); err != nil {
		return nil, err
	}

	var rep *bottleneck.CompoundReport
	err = r.stage(ctx, StageAnalyze, func(ctx context.Context) error {
		indicators := bottleneck.WithThresholds(bottleneck.DefaultCompoundIndicators(opts.SevereDelayHours), opts.Thresholds)
		var err error
		if rep, err = bottleneck.NewCompoundAnalyzer(indicators, r.logger).Analyze(ctx, frame); err != nil {
			return err
		}
		return report.SaveCompound(r.paths.CompoundReport, rep)
	})
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "Compound effects report written",
		slog.String("file", r.paths.CompoundReport),
		slog.Float64("compound_correlation", rep.CompoundCorrelation))
	return rep, nil
}
