package bottleneck

import (
	"fmt"
	"math"

	"supplychain/internal/stats"
)

// FulfillmentTarget is the fulfillment rate, in percent, recommendations
// aim for.
const FulfillmentTarget = 80.0

// Recommendation is one actionable finding with supporting points.
type Recommendation struct {
	Title  string   `json:"title"`
	Points []string `json:"points"`
}

// Recommendations derives actions from an analysis.
func (r *Report) Recommendations() []Recommendation {
	p := r.Performance
	timing := r.LeadTime
	late := 0.0
	for _, b := range r.Critical {
		if b.Name == "Late Deliveries" {
			late = b.Pct
		}
	}

	return []Recommendation{
		{
			Title: fmt.Sprintf("IMPROVE FULFILLMENT RATE (Currently %.1f%%)", p.FulfillmentRate),
			Points: []string{
				fmt.Sprintf("Target: increase to %.0f%%+", FulfillmentTarget),
				fmt.Sprintf("Focus on the %.1f%% unfulfilled orders", 100-p.FulfillmentRate),
				"Investigate root causes: equipment, traffic, customs",
			},
		},
		{
			Title: fmt.Sprintf("REDUCE LATE DELIVERIES (%.1f%% arriving late)", late),
			Points: []string{
				"Plan routes around high traffic periods",
				"Add buffer time for high-risk routes",
				"Review ETA prediction accuracy",
			},
		},
		{
			Title: "ADDRESS EQUIPMENT AVAILABILITY",
			Points: []string{
				fmt.Sprintf("Equipment unavailable in %.1f%% of cases", stats.Share(p.NoEquipment, r.Records)),
				fmt.Sprintf("Fulfillment gap: %.1f%% when equipment unavailable", math.Abs(p.EquipmentGap)),
				"Invest in backup equipment or better scheduling",
			},
		},
		{
			Title: "OPTIMIZE LOADING/UNLOADING TIMES",
			Points: []string{
				fmt.Sprintf("Average: %.2f hours", timing.Loading.Mean),
				fmt.Sprintf("%d loads exceed %.2f hours", timing.SlowLoading, timing.SlowLoadingThreshold),
				"Standardize processes and train staff",
			},
		},
		{
			Title: "STREAMLINE CUSTOMS CLEARANCE",
			Points: []string{
				fmt.Sprintf("Clearance time varies widely (std: %.2f)", timing.Customs.Std),
				"Pre-clear documentation",
				"Work with customs brokers on high-volume routes",
			},
		},
		{
			Title: "MANAGE FUEL COSTS",
			Points: []string{
				fmt.Sprintf("%d instances of high fuel consumption", r.Costs.HighFuel),
				"Optimize routes to reduce fuel usage",
				"Schedule vehicle maintenance and driver training",
			},
		},
		{
			Title: "SUPPLIER LEAD TIME MANAGEMENT",
			Points: []string{
				fmt.Sprintf("Average lead time: %.1f days", timing.LeadTime.Mean),
				"Work with suppliers to reduce variability",
				"Consider alternative suppliers for critical items",
			},
		},
	}
}
