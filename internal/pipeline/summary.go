package pipeline

import (
	"math"
	"time"

	"supplychain/internal/config"
)

// Summary is the machine-readable record of a run written to
// run_summary.json. Undefined metrics are omitted.
type Summary struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	RowsRead          int `json:"rows_read"`
	RowsCleaned       int `json:"rows_cleaned"`
	RowsFiltered      int `json:"rows_filtered"`
	ValuesCorrected   int `json:"values_corrected"`
	ValuesImputed     int `json:"values_imputed"`
	RecordsDropped    int `json:"records_dropped"`
	DuplicatesRemoved int `json:"duplicates_removed"`

	DeclaredRange string         `json:"declared_range"`
	Partitions    map[string]int `json:"partitions"`
	MonthsBeyond  int            `json:"months_beyond"`

	DailyBuckets  int `json:"daily_buckets"`
	WeeklyBuckets int `json:"weekly_buckets"`

	Quality map[string]float64 `json:"quality"`
	Metrics map[string]float64 `json:"key_metrics,omitempty"`
	Trend   map[string]float64 `json:"weekly_trend,omitempty"`

	Artifacts map[string]string `json:"artifacts"`
}

// NewSummary builds the summary of a completed run.
func NewSummary(res *Result, paths *config.Paths) Summary {
	s := Summary{
		RunID:      res.RunID,
		Source:     paths.InputFile,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Artifacts: map[string]string{
			"cleaned":  paths.CleanedCSV,
			"filtered": paths.FilteredCSV,
			"daily":    paths.DailyCSV,
			"weekly":   paths.WeeklyCSV,
			"quality":  paths.QualityReport,
		},
	}
	if paths.Workbook != "" {
		s.Artifacts["workbook"] = paths.Workbook
	}

	if c := res.Clean; c != nil {
		s.RowsRead = c.Validation.RowsRead
		s.RowsCleaned = c.Cleaned.Len()
		s.ValuesCorrected = c.Validation.TotalCorrections()
		s.ValuesImputed = c.Resolution.TotalImputed()
		s.RecordsDropped = c.Resolution.TotalDropped()
		s.DuplicatesRemoved = c.Resolution.DuplicatesRemoved
		s.Quality = qualityScores(c.Quality)
	}

	if a := res.Aggregate; a != nil {
		s.RowsFiltered = a.Filtered.Len()
		s.DeclaredRange = a.Range.String()
		s.Partitions = map[string]int{
			"before":  a.Discrepancy.Before,
			"within":  a.Discrepancy.Within,
			"beyond":  a.Discrepancy.Beyond,
			"undated": a.Discrepancy.Undated,
		}
		s.MonthsBeyond = a.Discrepancy.MonthsBeyond
		s.DailyBuckets = a.Daily.Len()
		s.WeeklyBuckets = a.Weekly.Len()

		km := a.Metrics
		s.Metrics = finite(map[string]float64{
			"records":                      float64(km.Records),
			"fulfillment_rate_pct":         km.FulfillmentRate,
			"avg_fuel_consumption":         km.AvgFuelConsumption,
			"total_shipping_costs":         km.TotalShippingCosts,
			"avg_demand":                   km.AvgDemand,
			"avg_traffic_congestion":       km.AvgTrafficCongestion,
			"avg_route_risk":               km.AvgRouteRisk,
			"avg_delay_probability_pct":    km.AvgDelayProbability,
			"good_cargo_rate_pct":          km.GoodCargoRate,
			"avg_supplier_reliability_pct": km.AvgSupplierReliability,
			"avg_driver_behavior_pct":      km.AvgDriverBehavior,
		})
		if a.Trend != nil {
			s.Trend = finite(map[string]float64{
				"window":                float64(a.Trend.Window),
				"fulfillment_change_pp": a.Trend.FulfillmentChange,
				"fuel_change_pct":       a.Trend.FuelChange,
			})
		}
	}
	return s
}

// finite drops NaN and infinite entries so the map encodes as JSON.
func finite(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[k] = v
	}
	return out
}
