package report

import (
	"io"
	"sort"
	"time"

	"supplychain/internal/aggregate"
	"supplychain/internal/cleaning"
	"supplychain/internal/quality"
	"supplychain/internal/temporal"
)

// QualitySummary collects the outcome of a cleaning and aggregation run.
// Nil sections are left out of the report.
type QualitySummary struct {
	Source      string
	GeneratedAt time.Time

	Validation  *cleaning.ValidationReport
	Resolution  *cleaning.ResolutionReport
	Quality     *quality.Report
	Range       *temporal.DateRange
	Discrepancy *temporal.Discrepancy

	DailyRows  int
	WeeklyRows int
	Metrics    *aggregate.KeyMetrics
	Trend      *aggregate.Trend
}

// WriteQuality renders the data quality report.
func WriteQuality(w io.Writer, s QualitySummary) error {
	p := newPrinter(w)

	p.title("Supply Chain Data Quality Report")
	if !s.GeneratedAt.IsZero() {
		p.printf("Generated: %s\n", s.GeneratedAt.Format(TimeLayout))
	}
	if s.Source != "" {
		p.printf("Source: %s\n", s.Source)
	}
	p.blank()

	if v := s.Validation; v != nil {
		p.section("FIELD VALIDATION")
		p.printf("Rows Read: %d\n", v.RowsRead)
		p.printf("Columns: %d\n", v.Columns)
		p.printf("Values Corrected: %d\n", v.TotalCorrections())
		p.printf("Values Invalidated: %d\n", v.TotalInvalid())
		p.printf("Invalid Timestamps: %d\n", v.InvalidTimestamps)
		if len(v.AbsentColumns) > 0 {
			p.printf("Absent Columns: %d\n", len(v.AbsentColumns))
		}
		for _, f := range v.Fields {
			if f.Corrected == 0 && f.Invalid == 0 {
				continue
			}
			p.printf("  %-36s corrected %6d  invalid %6d\n", f.Field, f.Corrected, f.Invalid)
		}
		p.blank()
	}

	if r := s.Resolution; r != nil {
		p.section("MISSING VALUES AND DUPLICATES")
		p.printf("Rows In: %d\n", r.RowsIn)
		p.printf("Rows Out: %d\n", r.RowsOut)
		for _, reason := range sortedKeys(r.Dropped) {
			p.printf("Dropped (%s): %d\n", reason, r.Dropped[reason])
		}
		p.printf("Duplicates Removed: %d\n", r.DuplicatesRemoved)
		p.printf("Values Imputed: %d\n", r.TotalImputed())
		for _, field := range sortedKeys(r.Imputed) {
			p.printf("  %-36s %6d  with %s\n", field, r.Imputed[field], r.ImputedWith[field])
		}
		p.blank()
	}

	if q := s.Quality; q != nil {
		p.section("QUALITY SCORES")
		p.printf("Completeness: %s\n", pct(q.Completeness))
		p.printf("Uniqueness: %s\n", pct(q.Uniqueness))
		p.printf("Validity: %s\n", pct(q.Validity))
		p.printf("Consistency: %s\n", pct(q.Consistency))
		p.printf("Outliers: %s (%d of %d values)\n", pct(q.OutlierPct), q.OutliersFlagged, q.OutliersChecked)
		p.printf("Composite Score: %s\n", pct(q.Composite))
		for _, o := range q.Outliers {
			p.printf("  %-36s bounds [%s, %s]  flagged %d\n", o.Field, num(o.Lower, 2), num(o.Upper, 2), o.Flagged)
		}
		p.blank()
	}

	if d := s.Discrepancy; d != nil {
		p.section("TEMPORAL COVERAGE")
		if s.Range != nil {
			p.printf("Declared Range: %s\n", s.Range)
		}
		p.printf("Actual Range: %s to %s\n", day(d.ActualStart), day(d.ActualEnd))
		p.printf("Before Range: %d (%s)\n", d.Before, pct(d.BeforePct))
		p.printf("Within Range: %d (%s)\n", d.Within, pct(d.WithinPct))
		p.printf("Beyond Range: %d (%s)\n", d.Beyond, pct(d.BeyondPct))
		if d.Undated > 0 {
			p.printf("Undated: %d\n", d.Undated)
		}
		if d.HasDiscrepancy() {
			p.printf("Data extends %d months past the declared end\n", d.MonthsBeyond)
		}
		p.blank()
	}

	if s.DailyRows > 0 || s.WeeklyRows > 0 {
		p.section("AGGREGATION")
		p.printf("Daily Rows: %d\n", s.DailyRows)
		p.printf("Weekly Rows: %d\n", s.WeeklyRows)
		p.blank()
	}

	if m := s.Metrics; m != nil {
		writeKeyMetrics(p, m)
	}

	if t := s.Trend; t != nil {
		p.section("WEEKLY TREND")
		p.printf("Window: first %d vs last %d weeks\n", t.Window, t.Window)
		p.printf("Fulfillment Rate Change: %s\n", signed(t.FulfillmentChange, " pp"))
		p.printf("Fuel Consumption Change: %s\n", signed(t.FuelChange, "%"))
		p.blank()
	}

	return p.flush()
}

func writeKeyMetrics(p *printer, m *aggregate.KeyMetrics) {
	p.section("KEY METRICS")
	p.printf("Records: %d\n", m.Records)
	p.printf("Order Fulfillment Rate: %s\n", pct(m.FulfillmentRate))
	p.printf("Avg Fuel Consumption: %s L/h\n", num(m.AvgFuelConsumption, 2))
	p.printf("Total Shipping Costs: $%s\n", num(m.TotalShippingCosts, 2))
	p.printf("Avg Historical Demand: %s\n", num(m.AvgDemand, 2))
	p.printf("Avg Traffic Congestion: %s\n", num(m.AvgTrafficCongestion, 2))
	p.printf("Avg Route Risk: %s\n", num(m.AvgRouteRisk, 2))
	p.printf("Avg Delay Probability: %s\n", pct(m.AvgDelayProbability))
	p.printf("Good Cargo Rate: %s\n", pct(m.GoodCargoRate))
	p.printf("Avg Supplier Reliability: %s\n", pct(m.AvgSupplierReliability))
	p.printf("Avg Driver Behavior: %s\n", pct(m.AvgDriverBehavior))
	p.blank()
}

// SaveQuality writes the data quality report to path.
func SaveQuality(path string, s QualitySummary) error {
	return Save(path, func(w io.Writer) error { return WriteQuality(w, s) })
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
