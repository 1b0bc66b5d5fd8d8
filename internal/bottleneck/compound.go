package bottleneck

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"supplychain/internal/dataset"
	"supplychain/internal/stats"
)

// SevereCompoundLevel is the indicator total from which a record counts as
// severely constrained.
const SevereCompoundLevel = 5

// DefaultCompoundIndicators are the bottleneck indicators summed per
// record. severeDelay is the ETA variation above which a delivery is late.
func DefaultCompoundIndicators(severeDelay float64) []Factor {
	return []Factor{
		gt("Late Delivery (>3h)", dataset.ColETAVariation, Fixed(severeDelay)),
		eq("No Equipment Available", dataset.ColEquipmentAvailability, 0),
		gt("High Traffic (>7/10)", dataset.ColTrafficCongestion, Fixed(7)),
		gt("Slow Loading (Top 25%)", dataset.ColLoadingTime, Pct(0.75)),
		gt("Slow Customs (Top 25%)", dataset.ColCustomsClearance, Pct(0.75)),
		gt("Long Lead Time (Top 25%)", dataset.ColLeadTime, Pct(0.75)),
		gt("Port Congestion (>7/10)", dataset.ColPortCongestion, Fixed(7)),
		gt("High Route Risk (>7/10)", dataset.ColRouteRisk, Fixed(7)),
	}
}

// SingleDelayDrivers are correlated individually with delay to contrast
// with the compound total.
var SingleDelayDrivers = []string{
	dataset.ColLoadingTime,
	dataset.ColTrafficCongestion,
	dataset.ColCustomsClearance,
	dataset.ColLeadTime,
}

// CompoundGroup summarizes the records with the same indicator total.
type CompoundGroup struct {
	Total          int     `json:"total"`
	Count          int     `json:"count"`
	Pct            float64 `json:"pct"`
	MeanDelay      float64 `json:"mean_delay"`
	FulfillmentPct float64 `json:"fulfillment_pct"`
	MeanCost       float64 `json:"mean_cost"`
}

// IndicatorImpact compares mean delay with and without one indicator.
type IndicatorImpact struct {
	Name        string  `json:"name"`
	Present     float64 `json:"present"`
	Absent      float64 `json:"absent"`
	Impact      float64 `json:"impact"`
	Correlation float64 `json:"correlation"`
	Frequency   float64 `json:"frequency"`
}

// Cohort describes a subset of records by indicator total.
type Cohort struct {
	Count          int     `json:"count"`
	FulfillmentPct float64 `json:"fulfillment_pct"`
	MeanCost       float64 `json:"mean_cost"`
	MeanDelay      float64 `json:"mean_delay"`
}

// CompoundReport is the result of a compound effects analysis.
type CompoundReport struct {
	Records    int      `json:"records"`
	Indicators []string `json:"indicators"`
	Average    float64  `json:"average"`
	Max        int      `json:"max"`

	// Distribution has one entry per total from 0 to Max.
	Distribution []CompoundGroup   `json:"distribution"`
	Impacts      []IndicatorImpact `json:"impacts"`

	SingleCorrelations  []Correlation `json:"single_correlations"`
	CompoundCorrelation float64       `json:"compound_correlation"`
	// Ratio is |compound r| over the mean |single r|.
	Ratio float64 `json:"ratio"`

	// DelayIncreasePct compares the mean delay at Max with the mean delay
	// of clean records.
	DelayIncreasePct float64 `json:"delay_increase_pct"`

	Clean        Cohort  `json:"clean"`
	Severe       Cohort  `json:"severe"`
	ThreePlus    int     `json:"three_plus"`
	ThreePlusPct float64 `json:"three_plus_pct"`

	Totals []int `json:"-"`
}

// CompoundAnalyzer relates the number of simultaneous bottlenecks to
// delay, fulfillment and cost.
type CompoundAnalyzer struct {
	indicators []Factor
	logger     *slog.Logger
}

// NewCompoundAnalyzer creates a compound analyzer. A nil indicator list
// uses DefaultCompoundIndicators with a 3 hour delay.
func NewCompoundAnalyzer(indicators []Factor, logger *slog.Logger) *CompoundAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if indicators == nil {
		indicators = DefaultCompoundIndicators(3)
	}
	return &CompoundAnalyzer{indicators: indicators, logger: logger}
}

// Analyze sums the indicators per record and compares the groups.
func (c *CompoundAnalyzer) Analyze(ctx context.Context, frame *dataset.Frame) (*CompoundReport, error) {
	cols, err := requireColumns(frame, "compound analysis",
		dataset.ColETAVariation, dataset.ColOrderFulfillment, dataset.ColShippingCosts)
	if err != nil {
		return nil, err
	}
	n := frame.Len()
	delay := cols[dataset.ColETAVariation]
	fulfillment := cols[dataset.ColOrderFulfillment]
	costs := cols[dataset.ColShippingCosts]

	masks := make([][]bool, len(c.indicators))
	r := &CompoundReport{Records: n, Totals: make([]int, n)}
	for k, f := range c.indicators {
		mask, err := f.Mask(frame)
		if err != nil {
			return nil, err
		}
		masks[k] = mask
		r.Indicators = append(r.Indicators, f.Name)
		for i, b := range mask {
			if b {
				r.Totals[i]++
			}
		}
	}

	totals := make([]float64, n)
	for i, t := range r.Totals {
		totals[i] = float64(t)
		if t > r.Max {
			r.Max = t
		}
	}
	r.Average = stats.Mean(totals)

	cohort := func(keep func(total int) bool) Cohort {
		sel := make([]bool, n)
		for i, t := range r.Totals {
			sel[i] = keep(t)
		}
		return Cohort{
			Count:          count(sel),
			FulfillmentPct: meanWhere(fulfillment, sel) * 100,
			MeanCost:       meanWhere(costs, sel),
			MeanDelay:      meanWhere(delay, sel),
		}
	}

	if n > 0 {
		for total := 0; total <= r.Max; total++ {
			group := cohort(func(t int) bool { return t == total })
			r.Distribution = append(r.Distribution, CompoundGroup{
				Total:          total,
				Count:          group.Count,
				Pct:            stats.Share(group.Count, n),
				MeanDelay:      group.MeanDelay,
				FulfillmentPct: group.FulfillmentPct,
				MeanCost:       group.MeanCost,
			})
		}
	}

	for k, mask := range masks {
		present := meanWhere(delay, mask)
		absent := meanWhere(delay, not(mask))
		r.Impacts = append(r.Impacts, IndicatorImpact{
			Name:        r.Indicators[k],
			Present:     present,
			Absent:      absent,
			Impact:      present - absent,
			Correlation: stats.Correlation(boolsToFloats(mask), delay),
			Frequency:   stats.Share(count(mask), n),
		})
	}
	sort.SliceStable(r.Impacts, func(i, j int) bool {
		return impactKey(r.Impacts[i].Impact) > impactKey(r.Impacts[j].Impact)
	})

	var sumAbs float64
	for _, field := range SingleDelayDrivers {
		values, ok := frame.Numeric(field)
		if !ok {
			continue
		}
		corr := stats.Correlation(values, delay)
		sumAbs += math.Abs(corr)
		r.SingleCorrelations = append(r.SingleCorrelations, Correlation{Factor: field, R: corr, Strength: CorrelationStrength(corr)})
	}
	r.CompoundCorrelation = stats.Correlation(totals, delay)
	r.Ratio = math.NaN()
	if len(r.SingleCorrelations) > 0 && sumAbs > 0 {
		r.Ratio = math.Abs(r.CompoundCorrelation) / (sumAbs / float64(len(r.SingleCorrelations)))
	}

	r.Clean = cohort(func(t int) bool { return t == 0 })
	r.Severe = cohort(func(t int) bool { return t >= SevereCompoundLevel })
	top := cohort(func(t int) bool { return t == r.Max })
	r.DelayIncreasePct = math.NaN()
	if r.Clean.MeanDelay != 0 && !math.IsNaN(r.Clean.MeanDelay) {
		r.DelayIncreasePct = (top.MeanDelay/r.Clean.MeanDelay - 1) * 100
	}
	for _, t := range r.Totals {
		if t >= HighStressLevel {
			r.ThreePlus++
		}
	}
	r.ThreePlusPct = stats.Share(r.ThreePlus, n)

	c.logger.InfoContext(ctx, "Compound effects computed",
		slog.Int("records", n),
		slog.Int("indicators", len(c.indicators)),
		slog.Float64("average", r.Average),
		slog.Int("max", r.Max),
		slog.Float64("compound_correlation", r.CompoundCorrelation))

	return r, nil
}
