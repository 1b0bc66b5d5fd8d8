package bottleneck

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"supplychain/internal/dataset"
	"supplychain/internal/stats"
)

// HighStressLevel is the index from which a record counts as highly
// stressed.
const HighStressLevel = 3

// DefaultStressFactors are the operational conditions counted by the
// stress index.
func DefaultStressFactors() []Factor {
	return []Factor{
		eq("Poor Cargo Condition", dataset.ColCargoCondition, 0),
		eq("No Equipment Available", dataset.ColEquipmentAvailability, 0),
		eq("Order Not Fulfilled", dataset.ColOrderFulfillment, 0),
		gt("Slow Loading", dataset.ColLoadingTime, Pct(0.75)),
		gt("Slow Customs", dataset.ColCustomsClearance, Pct(0.75)),
		gt("Long Lead Time", dataset.ColLeadTime, Pct(0.75)),
	}
}

// ContinuousStressFields feed the normalized stress score. Higher values
// mean more stress for each of them.
var ContinuousStressFields = []string{
	dataset.ColLoadingTime,
	dataset.ColCustomsClearance,
	dataset.ColTrafficCongestion,
	dataset.ColPortCongestion,
	dataset.ColRouteRisk,
	dataset.ColWeatherSeverity,
}

// StressLevel summarizes the records sharing one stress index value.
type StressLevel struct {
	Level          int     `json:"level"`
	Shipments      int     `json:"shipments"`
	PctOfTotal     float64 `json:"pct_of_total"`
	Late           int     `json:"late"`
	LatePct        float64 `json:"late_pct"`
	FulfillmentPct float64 `json:"fulfillment_pct"`
}

// FactorImpact compares the late rate with and without one factor.
type FactorImpact struct {
	Name        string  `json:"name"`
	Impact      float64 `json:"impact"`
	Frequency   float64 `json:"frequency"`
	LateWith    float64 `json:"late_with"`
	LateWithout float64 `json:"late_without"`
}

// StressReport is the result of a stress index analysis.
type StressReport struct {
	Records int      `json:"records"`
	Factors []string `json:"factors"`
	Rule    LateRule `json:"late_rule"`

	AverageIndex   float64 `json:"average_index"`
	OverallLatePct float64 `json:"overall_late_pct"`
	// Correlation is between the per-record index and the late flag.
	Correlation float64 `json:"correlation"`
	// WeightedCorrelation is between level and late rate across levels,
	// weighted by shipments.
	WeightedCorrelation float64 `json:"weighted_correlation"`

	// Levels runs from 0 to the number of factors; empty levels have zero
	// shipments and NaN rates.
	Levels []StressLevel `json:"levels"`

	ZeroLatePct        float64 `json:"zero_late_pct"`
	HighLatePct        float64 `json:"high_late_pct"`
	ZeroFulfillmentPct float64 `json:"zero_fulfillment_pct"`
	HighFulfillmentPct float64 `json:"high_fulfillment_pct"`
	HighStressPct      float64 `json:"high_stress_pct"`

	Impacts []FactorImpact `json:"impacts"`

	Index []int     `json:"-"`
	Score []float64 `json:"-"`
	// ScoreCorrelation is between the continuous score and the late flag.
	ScoreCorrelation float64 `json:"score_correlation"`
	ScoreMean        float64 `json:"score_mean"`
}

// Distribution returns the populated levels in ascending order.
func (s *StressReport) Distribution() []StressLevel {
	var out []StressLevel
	for _, l := range s.Levels {
		if l.Shipments > 0 {
			out = append(out, l)
		}
	}
	return out
}

// StressAnalyzer computes the operational stress index.
type StressAnalyzer struct {
	factors []Factor
	rule    LateRule
	logger  *slog.Logger
}

// NewStressAnalyzer creates a stress analyzer. A nil factor list uses
// DefaultStressFactors.
func NewStressAnalyzer(factors []Factor, rule LateRule, logger *slog.Logger) *StressAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if factors == nil {
		factors = DefaultStressFactors()
	}
	if rule == "" {
		rule = LatePositive
	}
	return &StressAnalyzer{factors: factors, rule: rule, logger: logger}
}

// Analyze scores every record and summarizes the late rate per level.
func (s *StressAnalyzer) Analyze(ctx context.Context, frame *dataset.Frame) (*StressReport, error) {
	cols, err := requireColumns(frame, "stress analysis", dataset.ColETAVariation, dataset.ColOrderFulfillment)
	if err != nil {
		return nil, err
	}
	n := frame.Len()

	masks := make([][]bool, len(s.factors))
	names := make([]string, len(s.factors))
	for i, f := range s.factors {
		mask, err := f.Mask(frame)
		if err != nil {
			return nil, err
		}
		masks[i] = mask
		names[i] = f.Name
	}

	index := make([]int, n)
	for _, mask := range masks {
		for i, b := range mask {
			if b {
				index[i]++
			}
		}
	}

	late := s.rule.Flags(cols[dataset.ColETAVariation])
	fulfillment := cols[dataset.ColOrderFulfillment]
	indexF := make([]float64, n)
	for i, v := range index {
		indexF[i] = float64(v)
	}
	lateF := boolsToFloats(late)

	r := &StressReport{
		Records:        n,
		Factors:        names,
		Rule:           s.rule,
		Index:          index,
		AverageIndex:   stats.Mean(indexF),
		OverallLatePct: stats.Share(count(late), n),
		Correlation:    stats.Correlation(indexF, lateF),
	}

	r.Levels = make([]StressLevel, len(s.factors)+1)
	var lx, ly, lw []float64
	for level := range r.Levels {
		in := make([]bool, n)
		for i, v := range index {
			in[i] = v == level
		}
		shipments := count(in)
		l := StressLevel{
			Level:          level,
			Shipments:      shipments,
			PctOfTotal:     stats.Share(shipments, n),
			LatePct:        rate(late, in),
			FulfillmentPct: meanWhere(fulfillment, in) * 100,
		}
		for i := range in {
			if in[i] && late[i] {
				l.Late++
			}
		}
		r.Levels[level] = l
		if shipments > 0 {
			lx = append(lx, float64(level))
			ly = append(ly, l.LatePct/100)
			lw = append(lw, float64(shipments))
		}
	}
	r.WeightedCorrelation = stats.WeightedCorrelation(lx, ly, lw)

	zero := make([]bool, n)
	high := make([]bool, n)
	for i, v := range index {
		zero[i] = v == 0
		high[i] = v >= HighStressLevel
	}
	r.ZeroLatePct = rate(late, zero)
	r.HighLatePct = rate(late, high)
	r.ZeroFulfillmentPct = meanWhere(fulfillment, zero) * 100
	r.HighFulfillmentPct = meanWhere(fulfillment, high) * 100
	r.HighStressPct = stats.Share(count(high), n)

	for i, mask := range masks {
		with := rate(late, mask)
		without := rate(late, not(mask))
		r.Impacts = append(r.Impacts, FactorImpact{
			Name:        names[i],
			Impact:      with - without,
			Frequency:   stats.Share(count(mask), n),
			LateWith:    with,
			LateWithout: without,
		})
	}
	sort.SliceStable(r.Impacts, func(i, j int) bool {
		return impactKey(r.Impacts[i].Impact) > impactKey(r.Impacts[j].Impact)
	})

	r.Score = ContinuousScore(frame, ContinuousStressFields)
	r.ScoreMean = stats.Mean(r.Score)
	r.ScoreCorrelation = stats.Correlation(r.Score, lateF)

	s.logger.InfoContext(ctx, "Stress index computed",
		slog.Int("records", n),
		slog.Int("factors", len(s.factors)),
		slog.Float64("average_index", r.AverageIndex),
		slog.Float64("correlation", r.Correlation),
		slog.String("late_rule", string(s.rule)))

	return r, nil
}

// impactKey sorts undefined impacts last.
func impactKey(v float64) float64 {
	if math.IsNaN(v) {
		return math.Inf(-1)
	}
	return v
}

// ContinuousScore sums min-max normalized severities of the given fields
// per record. Absent fields contribute nothing and missing values count as
// no stress.
func ContinuousScore(frame *dataset.Frame, fields []string) []float64 {
	score := make([]float64, frame.Len())
	for _, field := range fields {
		values, ok := frame.Numeric(field)
		if !ok {
			continue
		}
		for i, v := range stats.MinMaxNormalize(values) {
			if !math.IsNaN(v) {
				score[i] += v
			}
		}
	}
	return score
}
