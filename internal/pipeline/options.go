package pipeline

import (
	"supplychain/internal/bottleneck"
	"supplychain/internal/cleaning"
	"supplychain/internal/config"
	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
	"supplychain/internal/quality"
	"supplychain/internal/stats"
	"supplychain/internal/temporal"
)

// Schema is the logistics schema adjusted for the configured timestamp and
// categorical columns.
func Schema(cfg *config.Config) *dataset.Schema {
	return dataset.LogisticsSchema().
		WithTimestamp(cfg.Pipeline.TimestampColumn).
		WithCategorical(cfg.Pipeline.CategoricalFields...)
}

// ResolverOptions maps the pipeline section onto the resolver.
func ResolverOptions(cfg *config.Config) cleaning.ResolverOptions {
	opts := cleaning.DefaultResolverOptions()
	opts.TimestampColumn = cfg.Pipeline.TimestampColumn
	opts.RequireGeo = cfg.Pipeline.RequireGeo
	if cfg.Pipeline.ModeTieBreak != "" {
		opts.TieBreak = stats.TieBreak(cfg.Pipeline.ModeTieBreak)
	}
	return opts
}

// QualityPolicy maps the quality section onto the scorer policy.
func QualityPolicy(cfg *config.Config) quality.Policy {
	q := cfg.Quality
	return quality.Policy{
		Weights: quality.Weights{
			Completeness: q.Weights.Completeness,
			Uniqueness:   q.Weights.Uniqueness,
			Validity:     q.Weights.Validity,
			Consistency:  q.Weights.Consistency,
			Outliers:     q.Weights.Outliers,
		},
		OutlierK:      q.OutlierK,
		OutlierFields: q.OutlierFields,
		Consistency: quality.ConsistencyRule{
			FlagField:  q.Consistency.FlagField,
			FlagValue:  q.Consistency.FlagValue,
			ScoreField: q.Consistency.ScoreField,
			Threshold:  q.Consistency.Threshold,
		},
	}
}

// DeclaredRange parses the declared collection window.
func DeclaredRange(cfg *config.Config) (temporal.DateRange, error) {
	r, err := temporal.ParseDateRange(cfg.Pipeline.DeclaredStart, cfg.Pipeline.DeclaredEnd)
	if err != nil {
		return temporal.DateRange{}, apperrors.NewConfigError("invalid declared range", err)
	}
	return r, nil
}

// AnalysisOptions maps the analysis section onto the bottleneck options.
func AnalysisOptions(cfg *config.Config) (bottleneck.Options, error) {
	a := cfg.Analysis
	thresholds, err := bottleneck.ParseThresholds(a.Thresholds)
	if err != nil {
		return bottleneck.Options{}, err
	}
	opts := bottleneck.DefaultOptions()
	opts.SevereDelayHours = a.SevereDelayHours
	opts.HighDelayRisk = a.HighDelayRisk
	opts.HighCostPercentile = a.HighCostPercentile
	opts.FuelHighRate = a.FuelHighRate
	opts.FuelPricePerLiter = a.FuelPricePerLiter
	if a.LateRule != "" {
		opts.LateRule = bottleneck.LateRule(a.LateRule)
	}
	opts.Thresholds = thresholds
	return opts, nil
}
