package quality

import (
	"context"
	"log/slog"
	"math"

	"supplychain/internal/cleaning"
	"supplychain/internal/dataset"
	"supplychain/internal/stats"
)

// Weights are the composite score weights of the five component scores.
type Weights struct {
	Completeness float64 `json:"completeness"`
	Uniqueness   float64 `json:"uniqueness"`
	Validity     float64 `json:"validity"`
	Consistency  float64 `json:"consistency"`
	Outliers     float64 `json:"outliers"`
}

// ConsistencyRule marks a record as contradictory when FlagField equals
// FlagValue while ScoreField is above Threshold.
type ConsistencyRule struct {
	FlagField  string  `json:"flag_field"`
	FlagValue  float64 `json:"flag_value"`
	ScoreField string  `json:"score_field"`
	Threshold  float64 `json:"threshold"`
}

// Violations counts contradictory records. The second result is false when
// either field is absent from the frame.
func (r ConsistencyRule) Violations(f *dataset.Frame) (int, bool) {
	flags, ok := f.Numeric(r.FlagField)
	if !ok {
		return 0, false
	}
	scores, ok := f.Numeric(r.ScoreField)
	if !ok {
		return 0, false
	}
	n := 0
	for i := range flags {
		if flags[i] == r.FlagValue && scores[i] > r.Threshold {
			n++
		}
	}
	return n, true
}

// Policy is the scoring configuration.
type Policy struct {
	Weights       Weights
	OutlierK      float64
	OutlierFields []string
	Consistency   ConsistencyRule
}

// DefaultPolicy returns the logistics scoring policy: IQR fences at k=3 over
// the five volume metrics and the fulfilled-but-likely-delayed rule.
func DefaultPolicy() Policy {
	return Policy{
		Weights: Weights{
			Completeness: 0.25,
			Uniqueness:   0.20,
			Validity:     0.25,
			Consistency:  0.20,
			Outliers:     0.10,
		},
		OutlierK: 3,
		OutlierFields: []string{
			dataset.ColFuelConsumption,
			dataset.ColShippingCosts,
			dataset.ColWarehouseInventory,
			dataset.ColHistoricalDemand,
			dataset.ColLoadingTime,
		},
		Consistency: ConsistencyRule{
			FlagField:  dataset.ColOrderFulfillment,
			FlagValue:  1,
			ScoreField: dataset.ColDelayProbability,
			Threshold:  0.8,
		},
	}
}

// Report is the read-only quality summary of one run. Every score lies in
// [0,100].
type Report struct {
	Completeness float64 `json:"completeness"`
	Uniqueness   float64 `json:"uniqueness"`
	Validity     float64 `json:"validity"`
	Consistency  float64 `json:"consistency"`
	OutlierPct   float64 `json:"outlier_pct"`
	Composite    float64 `json:"composite"`

	TotalCells        int           `json:"total_cells"`
	NullCells         int           `json:"null_cells"`
	Corrections       int           `json:"corrections"`
	OriginalRows      int           `json:"original_rows"`
	DuplicatesRemoved int           `json:"duplicates_removed"`
	Rows              int           `json:"rows"`
	Contradictions    int           `json:"contradictions"`
	OutliersChecked   int           `json:"outliers_checked"`
	OutliersFlagged   int           `json:"outliers_flagged"`
	Outliers          []OutlierStat `json:"outliers"`
}

// Inputs are the artifacts of the cleaning stages the scorer reads.
// Validated is the frame before resolution; when nil, Resolved is used for
// completeness and validity.
type Inputs struct {
	Validated  *dataset.Frame
	Resolved   *dataset.Frame
	Validation *cleaning.ValidationReport
	Resolution *cleaning.ResolutionReport
}

// Scorer computes quality reports.
type Scorer struct {
	policy Policy
	logger *slog.Logger
}

// NewScorer creates a scorer with the given policy.
func NewScorer(policy Policy, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{policy: policy, logger: logger}
}

// Score computes the report. Completeness and validity are measured on the
// validated frame before imputation, consistency and outliers on the
// resolved frame. It never mutates its inputs.
func (s *Scorer) Score(ctx context.Context, in Inputs) *Report {
	report := &Report{}

	base := in.Validated
	if base == nil {
		base = in.Resolved
	}
	if base != nil {
		report.TotalCells = base.CellCount()
		report.NullCells = base.NullCount()
	}
	if in.Validation != nil {
		report.Corrections = in.Validation.TotalCorrections()
	}
	if in.Resolution != nil {
		report.OriginalRows = in.Resolution.RowsIn
		report.DuplicatesRemoved = in.Resolution.DuplicatesRemoved
	} else if in.Validation != nil {
		report.OriginalRows = in.Validation.RowsRead
	}

	report.Completeness = ratioScore(report.TotalCells-report.NullCells, report.TotalCells)
	report.Validity = ratioScore(report.TotalCells-report.Corrections, report.TotalCells)
	report.Uniqueness = ratioScore(report.OriginalRows-report.DuplicatesRemoved, report.OriginalRows)

	if in.Resolved != nil {
		report.Rows = in.Resolved.Len()
		if n, ok := s.policy.Consistency.Violations(in.Resolved); ok {
			report.Contradictions = n
		} else {
			s.logger.WarnContext(ctx, "Consistency rule fields absent, skipping",
				slog.String("flag_field", s.policy.Consistency.FlagField),
				slog.String("score_field", s.policy.Consistency.ScoreField))
		}

		for _, field := range s.policy.OutlierFields {
			values, ok := in.Resolved.Numeric(field)
			if !ok {
				continue
			}
			stat := DetectOutliers(field, values, s.policy.OutlierK)
			report.Outliers = append(report.Outliers, stat)
			report.OutliersChecked += stat.Checked
			report.OutliersFlagged += stat.Flagged
		}
	}
	report.Consistency = ratioScore(report.Rows-report.Contradictions, report.Rows)
	if report.OutliersChecked > 0 {
		report.OutlierPct = clampScore(float64(report.OutliersFlagged) / float64(report.OutliersChecked) * 100)
	}

	w := s.policy.Weights
	report.Composite = clampScore(w.Completeness*report.Completeness +
		w.Uniqueness*report.Uniqueness +
		w.Validity*report.Validity +
		w.Consistency*report.Consistency +
		w.Outliers*(100-report.OutlierPct))

	s.logger.InfoContext(ctx, "Quality scored",
		slog.Float64("completeness", report.Completeness),
		slog.Float64("uniqueness", report.Uniqueness),
		slog.Float64("validity", report.Validity),
		slog.Float64("consistency", report.Consistency),
		slog.Float64("outlier_pct", report.OutlierPct),
		slog.Float64("composite", report.Composite))

	return report
}

// ratioScore is part/whole as a percentage, 100 when whole is zero.
func ratioScore(part, whole int) float64 {
	return clampScore(stats.Percent(float64(part), float64(whole)))
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 100
	}
	return stats.Clamp(v, 0, 100)
}
