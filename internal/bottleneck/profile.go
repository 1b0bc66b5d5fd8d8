package bottleneck

import "supplychain/internal/stats"

// Profile describes the distribution of one metric.
type Profile struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
}

// NewProfile summarizes values, ignoring missing ones.
func NewProfile(values []float64) Profile {
	return Profile{
		Count:  stats.Count(values),
		Mean:   stats.Mean(values),
		Median: stats.Median(values),
		Std:    stats.StdDev(values),
		Min:    stats.Min(values),
		Max:    stats.Max(values),
		P25:    stats.Quantile(values, 0.25),
		P75:    stats.Quantile(values, 0.75),
	}
}
