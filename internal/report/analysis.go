package report

import (
	"io"
	"strings"
	"time"

	"supplychain/internal/bottleneck"
)

// WriteBottleneck renders the bottleneck analysis with its recommendations.
func WriteBottleneck(w io.Writer, r *bottleneck.Report, generated time.Time) error {
	p := newPrinter(w)

	p.title("Supply Chain Bottleneck Analysis")
	if !generated.IsZero() {
		p.printf("Generated: %s\n", generated.Format(TimeLayout))
	}
	p.printf("Records Analyzed: %d\n", r.Records)
	if !r.Start.IsZero() {
		p.printf("Date Range: %s to %s\n", day(r.Start), day(r.End))
	}
	p.blank()

	lt := r.LeadTime
	p.section("LEAD TIME AND DELIVERY")
	p.printf("Lead Time: mean %s, median %s, std %s days\n", num(lt.LeadTime.Mean, 2), num(lt.LeadTime.Median, 2), num(lt.LeadTime.Std, 2))
	p.printf("Long Lead Times (> %s days): %d\n", num(lt.LongLeadThreshold, 2), lt.LongLead)
	p.printf("ETA Variation: mean %s, median %s hours\n", num(lt.ETA.Mean, 2), num(lt.ETA.Median, 2))
	p.printf("Late: %d, Early: %d, On Time: %d\n", lt.Late, lt.Early, lt.OnTime)
	p.printf("Severely Late: %d\n", lt.SeverelyLate)
	p.printf("Loading Time: mean %s hours, %d above %s\n", num(lt.Loading.Mean, 2), lt.SlowLoading, num(lt.SlowLoadingThreshold, 2))
	p.printf("Customs Clearance: mean %s hours, %d above %s\n", num(lt.Customs.Mean, 2), lt.SlowCustoms, num(lt.SlowCustomsThreshold, 2))
	if lt.Deviation.Count > 0 {
		p.printf("Delivery Deviation: mean %s, std %s\n", num(lt.Deviation.Mean, 2), num(lt.Deviation.Std, 2))
	}
	p.blank()

	perf := r.Performance
	p.section("PERFORMANCE")
	p.printf("Fulfillment Rate: %s (%d fulfilled, %d not fulfilled)\n", pct(perf.FulfillmentRate), perf.Fulfilled, perf.NotFulfilled)
	p.printf("High Delay Risk Shipments: %d, fulfillment %s\n", perf.HighDelayRisk, pct(perf.HighRiskFulfillment))
	p.printf("Equipment Availability: %s (%d without)\n", pct(perf.EquipmentAvailability), perf.NoEquipment)
	p.printf("Fulfillment With Equipment: %s\n", pct(perf.FulfillmentWithEquipment))
	p.printf("Fulfillment Without Equipment: %s\n", pct(perf.FulfillmentWithoutEquipment))
	p.blank()

	c := r.Costs
	p.section("COSTS")
	p.printf("Total Shipping Costs: $%s\n", num(c.Total, 2))
	p.printf("Mean Shipping Cost: $%s\n", num(c.Shipping.Mean, 2))
	p.printf("High Cost Shipments (> $%s): %d, %s of total\n", num(c.HighCostThreshold, 2), c.HighCostCount, pct(c.HighCostShare))
	p.printf("High Fuel Consumption: %d, estimated fuel cost $%s\n", c.HighFuel, num(c.FuelCostEstimate, 2))
	p.printf("Avg Cost Fulfilled: $%s, Not Fulfilled: $%s\n", num(c.AvgCostFulfilled, 2), num(c.AvgCostUnfulfilled, 2))
	for _, q := range c.ByLeadQuartile {
		p.printf("  %-10s %6d shipments  mean $%s\n", q.Label, q.Count, num(q.Mean, 2))
	}
	p.blank()

	writeCorrelations(p, "FULFILLMENT CORRELATIONS", r.FulfillmentCorrelations)
	writeCorrelations(p, "COST CORRELATIONS", r.CostCorrelations)

	p.section("CRITICAL BOTTLENECKS")
	for i, b := range r.Critical {
		p.printf("%d. %s: %s [%s]\n", i+1, b.Name, pct(b.Pct), b.Severity)
		p.printf("   %s\n", b.Description)
	}
	p.blank()

	p.section("LATE SHIPMENT FACTORS")
	p.printf("Overall Late Rate: %s\n", pct(r.OverallLatePct))
	for _, l := range r.LateShipments {
		p.printf("  %-32s affected %6d (%s)  late %s\n", l.Name, l.Affected, pct(l.AffectedPct), pct(l.LatePct))
	}
	if len(r.Skipped) > 0 {
		p.printf("Columns Absent: %s\n", strings.Join(r.Skipped, ", "))
	}
	p.blank()

	p.section("RECOMMENDATIONS")
	for i, rec := range r.Recommendations() {
		p.printf("%d. %s\n", i+1, rec.Title)
		for _, point := range rec.Points {
			p.printf("   - %s\n", point)
		}
	}
	p.blank()

	return p.flush()
}

func writeCorrelations(p *printer, heading string, cs []bottleneck.Correlation) {
	if len(cs) == 0 {
		return
	}
	p.section(heading)
	for _, c := range cs {
		p.printf("  %-36s %+.3f  %s\n", c.Factor, c.R, c.Strength)
	}
	p.blank()
}

// WriteStress renders the operational stress summary.
func WriteStress(w io.Writer, r *bottleneck.StressReport) error {
	p := newPrinter(w)

	p.title("Operational Stress Index Summary")
	p.printf("Total Shipments: %d\n", r.Records)
	p.printf("Stress Factors: %d\n", len(r.Factors))
	p.printf("Late Rule: %s\n", r.Rule)
	p.printf("Average Stress Index: %s\n", num(r.AverageIndex, 2))
	p.printf("Overall Late Rate: %s\n", pct(r.OverallLatePct))
	p.printf("Correlation (index vs late): %s\n", num(r.Correlation, 3))
	p.printf("Weighted Correlation (level vs late rate): %s\n", num(r.WeightedCorrelation, 3))
	p.printf("Continuous Score: mean %s, correlation %s\n", num(r.ScoreMean, 3), num(r.ScoreCorrelation, 3))
	p.blank()

	p.section("DISTRIBUTION")
	for _, l := range r.Distribution() {
		p.printf("Level %d: %6d shipments (%s)  late %s  fulfillment %s\n",
			l.Level, l.Shipments, pct(l.PctOfTotal), pct(l.LatePct), pct(l.FulfillmentPct))
	}
	p.blank()

	p.section("ZERO VS HIGH STRESS")
	p.printf("High Stress Share (level %d+): %s\n", bottleneck.HighStressLevel, pct(r.HighStressPct))
	p.printf("Late Rate: %s vs %s\n", pct(r.ZeroLatePct), pct(r.HighLatePct))
	p.printf("Fulfillment: %s vs %s\n", pct(r.ZeroFulfillmentPct), pct(r.HighFulfillmentPct))
	p.blank()

	p.section("FACTOR IMPACT")
	for _, imp := range r.Impacts {
		p.printf("  %-32s impact %s  frequency %s\n", imp.Name, signed(imp.Impact, " pp"), pct(imp.Frequency))
	}
	p.blank()

	return p.flush()
}

// WriteCompound renders the compound effects report.
func WriteCompound(w io.Writer, r *bottleneck.CompoundReport) error {
	p := newPrinter(w)

	p.title("Compound Effects Analysis")
	p.printf("Records Analyzed: %d\n", r.Records)
	p.printf("Indicators: %d\n", len(r.Indicators))
	p.printf("Average Compound Score: %s\n", num(r.Average, 2))
	p.printf("Maximum Compound Score: %d\n", r.Max)
	p.printf("Shipments With 3+ Issues: %d (%s)\n", r.ThreePlus, pct(r.ThreePlusPct))
	p.blank()

	p.section("DISTRIBUTION")
	for _, g := range r.Distribution {
		if g.Count == 0 {
			continue
		}
		p.printf("%d issues: %6d (%s)  delay %s h  fulfillment %s  cost $%s\n",
			g.Total, g.Count, pct(g.Pct), num(g.MeanDelay, 2), pct(g.FulfillmentPct), num(g.MeanCost, 2))
	}
	if !isUndefined(r.DelayIncreasePct) {
		p.printf("Delay increase from 0 to %d issues: %s\n", r.Max, pct(r.DelayIncreasePct))
	}
	p.blank()

	p.section("INDICATOR IMPACT")
	for _, imp := range r.Impacts {
		p.printf("  %-32s delay %s vs %s h  impact %s  r %s\n",
			imp.Name, num(imp.Present, 2), num(imp.Absent, 2), signed(imp.Impact, " h"), num(imp.Correlation, 3))
	}
	p.blank()

	p.section("COMPOUND VS SINGLE METRICS")
	for _, c := range r.SingleCorrelations {
		p.printf("  %-36s %+.3f\n", c.Factor, c.R)
	}
	p.printf("Compound Correlation: %s\n", num(r.CompoundCorrelation, 3))
	p.printf("Compound/Single Ratio: %s\n", num(r.Ratio, 2))
	p.blank()

	p.section("CLEAN VS SEVERE")
	p.printf("Clean (0 issues): %d shipments, fulfillment %s, cost $%s, delay %s h\n",
		r.Clean.Count, pct(r.Clean.FulfillmentPct), num(r.Clean.MeanCost, 2), num(r.Clean.MeanDelay, 2))
	p.printf("Severe (%d+ issues): %d shipments, fulfillment %s, cost $%s, delay %s h\n",
		bottleneck.SevereCompoundLevel, r.Severe.Count, pct(r.Severe.FulfillmentPct), num(r.Severe.MeanCost, 2), num(r.Severe.MeanDelay, 2))
	p.blank()

	return p.flush()
}

// SaveBottleneck writes the bottleneck report to path.
func SaveBottleneck(path string, r *bottleneck.Report, generated time.Time) error {
	return Save(path, func(w io.Writer) error { return WriteBottleneck(w, r, generated) })
}

// SaveStress writes the stress summary to path.
func SaveStress(path string, r *bottleneck.StressReport) error {
	return Save(path, func(w io.Writer) error { return WriteStress(w, r) })
}

// SaveCompound writes the compound effects report to path.
func SaveCompound(path string, r *bottleneck.CompoundReport) error {
	return Save(path, func(w io.Writer) error { return WriteCompound(w, r) })
}
