package aggregate

import (
	"math"
	"time"

	"supplychain/internal/dataset"
	"supplychain/internal/stats"
)

// Granularity is the width of an aggregation bucket.
type Granularity int

const (
	// Day buckets start at midnight UTC.
	Day Granularity = iota
	// Week buckets start on Monday at midnight UTC.
	Week
)

func (g Granularity) String() string {
	if g == Week {
		return "weekly"
	}
	return "daily"
}

// Truncate returns the start of the bucket containing t.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if g == Week {
		offset := (int(d.Weekday()) + 6) % 7
		d = d.AddDate(0, 0, -offset)
	}
	return d
}

// KeyColumn names the bucket key column of the output table.
func (g Granularity) KeyColumn() string {
	if g == Week {
		return "week_start"
	}
	return "date"
}

// Reducer collapses the values of one field within a bucket.
type Reducer string

const (
	Count Reducer = "count"
	Mean  Reducer = "mean"
	Sum   Reducer = "sum"
	Min   Reducer = "min"
	Max   Reducer = "max"
	Std   Reducer = "std"
)

// Apply reduces values, skipping missing ones. Std is the sample standard
// deviation and is NaN for fewer than two values. Unknown reducers yield NaN.
func (r Reducer) Apply(values []float64) float64 {
	switch r {
	case Count:
		return float64(stats.Count(values))
	case Mean:
		return stats.Mean(values)
	case Sum:
		return stats.Sum(values)
	case Min:
		return stats.Min(values)
	case Max:
		return stats.Max(values)
	case Std:
		return stats.StdDev(values)
	}
	return math.NaN()
}

// Valid reports whether r is a known reducer.
func (r Reducer) Valid() bool {
	switch r {
	case Count, Mean, Sum, Min, Max, Std:
		return true
	}
	return false
}

// MetricSpec lists the reducers applied to one field.
type MetricSpec struct {
	Field    string
	Reducers []Reducer
}

// Spec configures one aggregation.
type Spec struct {
	Granularity Granularity
	Metrics     []MetricSpec
	// CountColumn, when set, is emitted first and holds the number of
	// records in the bucket.
	CountColumn string
	// Aliases renames <field>_<reducer> output columns.
	Aliases map[string]string
}

// ColumnName returns the output column of a field and reducer.
func (s Spec) ColumnName(field string, r Reducer) string {
	name := field + "_" + string(r)
	if alias, ok := s.Aliases[name]; ok {
		return alias
	}
	return name
}

func m(field string, reducers ...Reducer) MetricSpec {
	return MetricSpec{Field: field, Reducers: reducers}
}

func commonMetrics() []MetricSpec {
	return []MetricSpec{
		m(dataset.ColFuelConsumption, Mean, Std, Max),
		m(dataset.ColShippingCosts, Mean, Sum, Std),
		m(dataset.ColLoadingTime, Mean, Max),
		m(dataset.ColWarehouseInventory, Mean, Min, Max),
		m(dataset.ColHistoricalDemand, Mean, Sum),

		m(dataset.ColOrderFulfillment, Mean),
		m(dataset.ColETAVariation, Mean, Std),
		m(dataset.ColDeliveryTimeDeviation, Mean, Std),

		m(dataset.ColTrafficCongestion, Mean),
		m(dataset.ColRouteRisk, Mean),
		m(dataset.ColDelayProbability, Mean),
		m(dataset.ColDisruptionLikelihood, Mean),

		m(dataset.ColCargoCondition, Mean),
		m(dataset.ColSupplierReliability, Mean),
		m(dataset.ColDriverBehavior, Mean),
		m(dataset.ColFatigueMonitoring, Mean),

		m(dataset.ColIoTTemperature, Mean, Min, Max),
		m(dataset.ColWeatherSeverity, Mean),

		m(dataset.ColEquipmentAvailability, Mean),
	}
}

func rateAliases() map[string]string {
	return map[string]string{
		dataset.ColOrderFulfillment + "_mean":      "fulfillment_rate",
		dataset.ColCargoCondition + "_mean":        "good_cargo_rate",
		dataset.ColEquipmentAvailability + "_mean": "equipment_availability_rate",
	}
}

// DailySpec is the per-day summary of the logistics dataset.
func DailySpec() Spec {
	return Spec{
		Granularity: Day,
		Metrics:     commonMetrics(),
		CountColumn: "daily_record_count",
		Aliases:     rateAliases(),
	}
}

// WeeklySpec is the per-week summary. It adds port congestion and customs
// clearance to the daily metrics.
func WeeklySpec() Spec {
	metrics := append(commonMetrics(),
		m(dataset.ColPortCongestion, Mean),
		m(dataset.ColCustomsClearance, Mean),
	)
	return Spec{
		Granularity: Week,
		Metrics:     metrics,
		CountColumn: "weekly_record_count",
		Aliases:     rateAliases(),
	}
}
