package quality

import (
	"math"
	"sort"

	"supplychain/internal/stats"
)

// OutlierStat describes the IQR fences of one metric and how many
// observations fell outside them.
type OutlierStat struct {
	Field   string  `json:"field"`
	Q1      float64 `json:"q1"`
	Q3      float64 `json:"q3"`
	IQR     float64 `json:"iqr"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Checked int     `json:"checked"`
	Flagged int     `json:"flagged"`
}

// Pct is the flagged share of checked observations.
func (o OutlierStat) Pct() float64 {
	return stats.Share(o.Flagged, o.Checked)
}

// IsOutlier reports whether v lies outside the fences. Missing values and
// metrics without fences are never outliers.
func (o OutlierStat) IsOutlier(v float64) bool {
	if math.IsNaN(v) || math.IsNaN(o.Lower) {
		return false
	}
	return v < o.Lower || v > o.Upper
}

// DetectOutliers computes [Q1-k*IQR, Q3+k*IQR] over the non-missing values
// and counts the values outside it. Checked counts every row, including
// missing ones, so the rate is relative to rows times metrics.
func DetectOutliers(field string, values []float64, k float64) OutlierStat {
	stat := OutlierStat{
		Field:   field,
		Checked: len(values),
		Q1:      math.NaN(),
		Q3:      math.NaN(),
		IQR:     math.NaN(),
		Lower:   math.NaN(),
		Upper:   math.NaN(),
	}

	sorted := stats.Valid(values)
	if len(sorted) == 0 {
		return stat
	}
	sort.Float64s(sorted)

	stat.Q1 = stats.QuantileSorted(sorted, 0.25)
	stat.Q3 = stats.QuantileSorted(sorted, 0.75)
	stat.IQR = stat.Q3 - stat.Q1
	stat.Lower = stat.Q1 - k*stat.IQR
	stat.Upper = stat.Q3 + k*stat.IQR

	for _, v := range values {
		if stat.IsOutlier(v) {
			stat.Flagged++
		}
	}
	return stat
}
