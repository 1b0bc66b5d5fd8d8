package aggregate

import (
	"math"

	"supplychain/internal/dataset"
	"supplychain/internal/stats"
)

// KeyMetrics summarizes the filtered dataset. Rates and probability-like
// scores are expressed in percent; NaN means the column was absent.
type KeyMetrics struct {
	Records int `json:"records"`

	FulfillmentRate    float64 `json:"fulfillment_rate_pct"`
	AvgFuelConsumption float64 `json:"avg_fuel_consumption"`
	TotalShippingCosts float64 `json:"total_shipping_costs"`
	AvgDemand          float64 `json:"avg_demand"`

	AvgTrafficCongestion float64 `json:"avg_traffic_congestion"`
	AvgRouteRisk         float64 `json:"avg_route_risk"`
	AvgDelayProbability  float64 `json:"avg_delay_probability_pct"`

	GoodCargoRate          float64 `json:"good_cargo_rate_pct"`
	AvgSupplierReliability float64 `json:"avg_supplier_reliability_pct"`
	AvgDriverBehavior      float64 `json:"avg_driver_behavior_pct"`
}

// Summarize computes the key metrics of a frame.
func Summarize(frame *dataset.Frame) KeyMetrics {
	mean := func(field string) float64 {
		values, ok := frame.Numeric(field)
		if !ok {
			return math.NaN()
		}
		return stats.Mean(values)
	}
	pct := func(field string) float64 { return mean(field) * 100 }

	total := math.NaN()
	if costs, ok := frame.Numeric(dataset.ColShippingCosts); ok {
		total = stats.Sum(costs)
	}

	return KeyMetrics{
		Records:                frame.Len(),
		FulfillmentRate:        pct(dataset.ColOrderFulfillment),
		AvgFuelConsumption:     mean(dataset.ColFuelConsumption),
		TotalShippingCosts:     total,
		AvgDemand:              mean(dataset.ColHistoricalDemand),
		AvgTrafficCongestion:   mean(dataset.ColTrafficCongestion),
		AvgRouteRisk:           mean(dataset.ColRouteRisk),
		AvgDelayProbability:    pct(dataset.ColDelayProbability),
		GoodCargoRate:          pct(dataset.ColCargoCondition),
		AvgSupplierReliability: pct(dataset.ColSupplierReliability),
		AvgDriverBehavior:      pct(dataset.ColDriverBehavior),
	}
}

// TrendWindow is the number of weeks compared at each end of the series.
const TrendWindow = 4

// Trend compares the first and last weeks of a weekly table.
type Trend struct {
	Window int `json:"window"`
	// FulfillmentChange is in percentage points.
	FulfillmentChange float64 `json:"fulfillment_change_pp"`
	// FuelChange is the relative change of mean fuel consumption in percent.
	FuelChange float64 `json:"fuel_change_pct"`
}

// WeeklyTrend compares the mean of the first window weeks with the last
// window weeks. It reports false unless the table has more than window
// buckets and carries the fulfillment and fuel columns.
func WeeklyTrend(weekly *Table, window int) (Trend, bool) {
	if weekly == nil || window <= 0 || weekly.Len() <= window {
		return Trend{}, false
	}
	fulfillment, ok := weekly.Column("fulfillment_rate")
	if !ok {
		return Trend{}, false
	}
	fuel, ok := weekly.Column(dataset.ColFuelConsumption + "_mean")
	if !ok {
		return Trend{}, false
	}

	n := weekly.Len()
	firstFuel := stats.Mean(fuel[:window])
	fuelChange := math.NaN()
	if firstFuel != 0 {
		fuelChange = (stats.Mean(fuel[n-window:]) - firstFuel) / firstFuel * 100
	}

	return Trend{
		Window:            window,
		FulfillmentChange: (stats.Mean(fulfillment[n-window:]) - stats.Mean(fulfillment[:window])) * 100,
		FuelChange:        fuelChange,
	}, true
}
