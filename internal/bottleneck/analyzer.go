package bottleneck

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
	"supplychain/internal/stats"
)

// Options tunes the bottleneck analysis.
type Options struct {
	SevereDelayHours   float64
	HighDelayRisk      float64
	HighCostPercentile float64
	FuelHighRate       float64
	FuelPricePerLiter  float64
	LateRule           LateRule
	// Thresholds overrides the cut-off of gt/lt factors by field.
	Thresholds map[string]Threshold
}

// DefaultOptions returns the stock analysis settings.
func DefaultOptions() Options {
	return Options{
		SevereDelayHours:   3,
		HighDelayRisk:      0.7,
		HighCostPercentile: 0.9,
		FuelHighRate:       15,
		FuelPricePerLiter:  3,
		LateRule:           LatePositive,
	}
}

// HighTrafficLevel is the congestion level above which traffic counts as
// a critical bottleneck.
const HighTrafficLevel = 7

// Correlation strength labels.
const (
	StrengthStrong   = "STRONG"
	StrengthModerate = "MODERATE"
	StrengthWeak     = "WEAK"
)

// Severity labels of critical bottlenecks.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityModerate = "MODERATE"
)

// CorrelationStrength labels |r| above 0.3 strong and above 0.1 moderate.
func CorrelationStrength(r float64) string {
	switch a := math.Abs(r); {
	case a > 0.3:
		return StrengthStrong
	case a > 0.1:
		return StrengthModerate
	}
	return StrengthWeak
}

// Severity labels an affected share above 50% critical and above 30% high.
func Severity(pct float64) string {
	switch {
	case pct > 50:
		return SeverityCritical
	case pct > 30:
		return SeverityHigh
	}
	return SeverityModerate
}

// LeadTimeAnalysis covers supplier lead time and delivery timing.
type LeadTimeAnalysis struct {
	LeadTime          Profile `json:"lead_time"`
	LongLeadThreshold float64 `json:"long_lead_threshold"`
	LongLead          int     `json:"long_lead"`

	ETA          Profile `json:"eta"`
	Late         int     `json:"late"`
	Early        int     `json:"early"`
	OnTime       int     `json:"on_time"`
	SeverelyLate int     `json:"severely_late"`

	Loading              Profile `json:"loading"`
	SlowLoadingThreshold float64 `json:"slow_loading_threshold"`
	SlowLoading          int     `json:"slow_loading"`

	Customs              Profile `json:"customs"`
	SlowCustomsThreshold float64 `json:"slow_customs_threshold"`
	SlowCustoms          int     `json:"slow_customs"`

	Deviation Profile `json:"delivery_deviation"`
}

// PerformanceAnalysis covers fulfillment, delay risk and equipment.
type PerformanceAnalysis struct {
	FulfillmentRate float64 `json:"fulfillment_rate"`
	Fulfilled       int     `json:"fulfilled"`
	NotFulfilled    int     `json:"not_fulfilled"`

	DelayProbability    Profile `json:"delay_probability"`
	HighDelayRisk       int     `json:"high_delay_risk"`
	HighRiskFulfillment float64 `json:"high_risk_fulfillment"`

	EquipmentAvailability       float64 `json:"equipment_availability"`
	NoEquipment                 int     `json:"no_equipment"`
	FulfillmentWithEquipment    float64 `json:"fulfillment_with_equipment"`
	FulfillmentWithoutEquipment float64 `json:"fulfillment_without_equipment"`
	EquipmentGap                float64 `json:"equipment_gap"`
}

// QuartileCost is the mean shipping cost within one lead-time quartile.
type QuartileCost struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
}

// CostAnalysis covers shipping and fuel costs.
type CostAnalysis struct {
	Shipping          Profile `json:"shipping"`
	Total             float64 `json:"total"`
	HighCostThreshold float64 `json:"high_cost_threshold"`
	HighCostCount     int     `json:"high_cost_count"`
	HighCostTotal     float64 `json:"high_cost_total"`
	HighCostShare     float64 `json:"high_cost_share"`

	Fuel             Profile `json:"fuel"`
	HighFuel         int     `json:"high_fuel"`
	FuelCostEstimate float64 `json:"fuel_cost_estimate"`

	AvgCostFulfilled   float64        `json:"avg_cost_fulfilled"`
	AvgCostUnfulfilled float64        `json:"avg_cost_unfulfilled"`
	ByLeadQuartile     []QuartileCost `json:"by_lead_quartile"`
}

// Correlation relates one factor to a target column.
type Correlation struct {
	Factor   string  `json:"factor"`
	R        float64 `json:"r"`
	Strength string  `json:"strength"`
}

// Bottleneck is one entry of the critical bottleneck ranking.
type Bottleneck struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Pct         float64 `json:"pct"`
	Severity    string  `json:"severity"`
}

// LateImpact is the late-shipment rate among records affected by a factor.
type LateImpact struct {
	Name        string  `json:"name"`
	Affected    int     `json:"affected"`
	AffectedPct float64 `json:"affected_pct"`
	LatePct     float64 `json:"late_pct"`
}

// Report is the full bottleneck analysis.
type Report struct {
	Records int       `json:"records"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`

	LeadTime    LeadTimeAnalysis    `json:"lead_time"`
	Performance PerformanceAnalysis `json:"performance"`
	Costs       CostAnalysis        `json:"costs"`

	FulfillmentCorrelations []Correlation `json:"fulfillment_correlations"`
	CostCorrelations        []Correlation `json:"cost_correlations"`

	Critical []Bottleneck `json:"critical"`

	OverallLatePct float64      `json:"overall_late_pct"`
	LateShipments  []LateImpact `json:"late_shipments"`

	// Skipped lists optional columns absent from the input.
	Skipped []string `json:"skipped,omitempty"`
}

// CorrelationFactors are ranked against fulfillment and shipping costs.
var CorrelationFactors = []string{
	dataset.ColLeadTime,
	dataset.ColLoadingTime,
	dataset.ColCustomsClearance,
	dataset.ColTrafficCongestion,
	dataset.ColPortCongestion,
	dataset.ColRouteRisk,
	dataset.ColDelayProbability,
	dataset.ColEquipmentAvailability,
	dataset.ColWeatherSeverity,
}

// RequiredColumns must be present for the bottleneck analysis.
var RequiredColumns = []string{
	dataset.ColLeadTime,
	dataset.ColETAVariation,
	dataset.ColLoadingTime,
	dataset.ColCustomsClearance,
	dataset.ColOrderFulfillment,
	dataset.ColDelayProbability,
	dataset.ColEquipmentAvailability,
	dataset.ColShippingCosts,
	dataset.ColFuelConsumption,
}

// DefaultLateFactors are the conditions tabulated against late shipments.
func DefaultLateFactors() []Factor {
	return []Factor{
		gt("Long Lead Time", dataset.ColLeadTime, Pct(0.75)),
		gt("Slow Loading", dataset.ColLoadingTime, Pct(0.75)),
		gt("Slow Customs", dataset.ColCustomsClearance, Pct(0.75)),
		eq("No Equipment", dataset.ColEquipmentAvailability, 0),
		gt("High Traffic", dataset.ColTrafficCongestion, Pct(0.75)),
		gt("High Port Congestion", dataset.ColPortCongestion, Pct(0.75)),
		gt("High Route Risk", dataset.ColRouteRisk, Pct(0.75)),
		gt("Severe Weather", dataset.ColWeatherSeverity, Pct(0.75)),
		gt("High Delay Probability", dataset.ColDelayProbability, Pct(0.75)),
		eq("Poor Cargo", dataset.ColCargoCondition, 0),
		lt("Low Supplier Reliability", dataset.ColSupplierReliability, Pct(0.25)),
		gt("High Fuel Consumption", dataset.ColFuelConsumption, Pct(0.75)),
		{Name: "Extreme Temperature", Field: dataset.ColIoTTemperature, Op: OpOutside, Threshold: Pct(0.10), Upper: Pct(0.90)},
		eq("Order Not Fulfilled", dataset.ColOrderFulfillment, 0),
	}
}

// Analyzer runs the descriptive bottleneck analysis.
type Analyzer struct {
	opts   Options
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LateRule == "" {
		opts.LateRule = LatePositive
	}
	return &Analyzer{opts: opts, logger: logger}
}

// requireColumns returns the named numeric columns or a missing column error.
func requireColumns(frame *dataset.Frame, source string, names ...string) (map[string][]float64, error) {
	cols := make(map[string][]float64, len(names))
	for _, name := range names {
		values, ok := frame.Numeric(name)
		if !ok {
			return nil, apperrors.NewMissingColumnError(name, source)
		}
		cols[name] = values
	}
	return cols, nil
}

// Analyze profiles the frame and ranks its bottlenecks.
func (a *Analyzer) Analyze(ctx context.Context, frame *dataset.Frame) (*Report, error) {
	cols, err := requireColumns(frame, "bottleneck analysis", RequiredColumns...)
	if err != nil {
		return nil, err
	}

	n := frame.Len()
	r := &Report{Records: n}
	if ts, ok := frame.Times(dataset.ColTimestamp); ok {
		r.Start, r.End = timeRange(ts)
	}

	if err := a.leadTime(frame, cols, r); err != nil {
		return nil, err
	}
	a.performance(cols, r)
	a.costs(cols, r)
	r.FulfillmentCorrelations = rankCorrelations(frame, cols[dataset.ColOrderFulfillment])
	r.CostCorrelations = rankCorrelations(frame, cols[dataset.ColShippingCosts])
	r.Critical = a.critical(frame, r)
	a.lateShipments(ctx, frame, cols, r)

	a.logger.InfoContext(ctx, "Bottleneck analysis complete",
		slog.Int("records", n),
		slog.Float64("fulfillment_rate", r.Performance.FulfillmentRate),
		slog.Float64("late_pct", r.OverallLatePct),
		slog.Int("late_factors", len(r.LateShipments)))

	return r, nil
}

func (a *Analyzer) factor(f Factor) Factor {
	return WithThresholds([]Factor{f}, a.opts.Thresholds)[0]
}

func (a *Analyzer) leadTime(frame *dataset.Frame, cols map[string][]float64, r *Report) error {
	timing := &r.LeadTime

	lead := cols[dataset.ColLeadTime]
	eta := cols[dataset.ColETAVariation]
	loading := cols[dataset.ColLoadingTime]
	customs := cols[dataset.ColCustomsClearance]

	timing.LeadTime = NewProfile(lead)
	timing.ETA = NewProfile(eta)
	timing.Loading = NewProfile(loading)
	timing.Customs = NewProfile(customs)
	if dev, ok := frame.Numeric(dataset.ColDeliveryTimeDeviation); ok {
		timing.Deviation = NewProfile(dev)
	} else {
		r.Skipped = append(r.Skipped, dataset.ColDeliveryTimeDeviation)
	}

	slow := []struct {
		factor    Factor
		values    []float64
		threshold *float64
		count     *int
	}{
		{gt("Long Lead Time", dataset.ColLeadTime, Pct(0.75)), lead, &timing.LongLeadThreshold, &timing.LongLead},
		{gt("Slow Loading", dataset.ColLoadingTime, Pct(0.75)), loading, &timing.SlowLoadingThreshold, &timing.SlowLoading},
		{gt("Slow Customs", dataset.ColCustomsClearance, Pct(0.75)), customs, &timing.SlowCustomsThreshold, &timing.SlowCustoms},
	}
	for _, s := range slow {
		f := a.factor(s.factor)
		mask, err := f.Mask(frame)
		if err != nil {
			return err
		}
		*s.threshold = f.Threshold.Resolve(s.values)
		*s.count = count(mask)
	}

	for _, v := range eta {
		switch {
		case math.IsNaN(v):
		case v > 0:
			timing.Late++
		case v < 0:
			timing.Early++
		default:
			timing.OnTime++
		}
		if v > a.opts.SevereDelayHours {
			timing.SeverelyLate++
		}
	}
	return nil
}

func (a *Analyzer) performance(cols map[string][]float64, r *Report) {
	p := &r.Performance
	fulfillment := cols[dataset.ColOrderFulfillment]
	delay := cols[dataset.ColDelayProbability]
	equipment := cols[dataset.ColEquipmentAvailability]

	p.FulfillmentRate = stats.Mean(fulfillment) * 100
	for _, v := range fulfillment {
		switch v {
		case 1:
			p.Fulfilled++
		case 0:
			p.NotFulfilled++
		}
	}

	p.DelayProbability = NewProfile(delay)
	highRisk := make([]bool, len(delay))
	for i, v := range delay {
		highRisk[i] = v > a.opts.HighDelayRisk
	}
	p.HighDelayRisk = count(highRisk)
	p.HighRiskFulfillment = meanWhere(fulfillment, highRisk) * 100

	p.EquipmentAvailability = stats.Mean(equipment) * 100
	without := equals(equipment, 0)
	p.NoEquipment = count(without)
	p.FulfillmentWithEquipment = meanWhere(fulfillment, equals(equipment, 1)) * 100
	p.FulfillmentWithoutEquipment = meanWhere(fulfillment, without) * 100
	p.EquipmentGap = p.FulfillmentWithEquipment - p.FulfillmentWithoutEquipment
}

func (a *Analyzer) costs(cols map[string][]float64, r *Report) {
	c := &r.Costs
	costs := cols[dataset.ColShippingCosts]
	fuel := cols[dataset.ColFuelConsumption]
	fulfillment := cols[dataset.ColOrderFulfillment]

	c.Shipping = NewProfile(costs)
	c.Total = stats.Sum(costs)
	c.HighCostThreshold = stats.Quantile(costs, a.opts.HighCostPercentile)
	for _, v := range costs {
		if v > c.HighCostThreshold {
			c.HighCostCount++
			c.HighCostTotal += v
		}
	}
	if c.Total != 0 {
		c.HighCostShare = c.HighCostTotal / c.Total * 100
	}

	c.Fuel = NewProfile(fuel)
	for _, v := range fuel {
		if v > a.opts.FuelHighRate {
			c.HighFuel++
		}
	}
	c.FuelCostEstimate = stats.Sum(fuel) * a.opts.FuelPricePerLiter

	c.AvgCostFulfilled = meanWhere(costs, equals(fulfillment, 1))
	c.AvgCostUnfulfilled = meanWhere(costs, equals(fulfillment, 0))
	c.ByLeadQuartile = costByQuartile(cols[dataset.ColLeadTime], costs)
}

var quartileLabels = [4]string{"Q1 (Fast)", "Q2", "Q3", "Q4 (Slow)"}

// costByQuartile bins records by lead-time quartile. Bins are closed on
// the right and the first bin includes the minimum.
func costByQuartile(lead, costs []float64) []QuartileCost {
	var edges [5]float64
	for i := range edges {
		edges[i] = stats.Quantile(lead, float64(i)/4)
	}

	groups := make([][]float64, 4)
	for i, v := range lead {
		if math.IsNaN(v) || math.IsNaN(edges[0]) {
			continue
		}
		q := 0
		for q < 3 && v > edges[q+1] {
			q++
		}
		groups[q] = append(groups[q], costs[i])
	}

	out := make([]QuartileCost, 4)
	for q := range out {
		out[q] = QuartileCost{Label: quartileLabels[q], Count: len(groups[q]), Mean: stats.Mean(groups[q])}
	}
	return out
}

// rankCorrelations correlates each present factor with target and sorts by
// absolute strength.
func rankCorrelations(frame *dataset.Frame, target []float64) []Correlation {
	var out []Correlation
	for _, field := range CorrelationFactors {
		values, ok := frame.Numeric(field)
		if !ok {
			continue
		}
		r := stats.Correlation(values, target)
		out = append(out, Correlation{Factor: field, R: r, Strength: CorrelationStrength(r)})
	}
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].R) > math.Abs(out[j].R) })
	return out
}

func (a *Analyzer) critical(frame *dataset.Frame, r *Report) []Bottleneck {
	n := frame.Len()
	timing := r.LeadTime

	list := []Bottleneck{
		{Name: "Order Fulfillment", Description: "orders not fulfilled on time", Pct: 100 - r.Performance.FulfillmentRate},
		{Name: "Late Deliveries", Description: "deliveries arriving late", Pct: stats.Share(timing.Late, n)},
		{Name: "Long Lead Times", Description: "have extended lead times", Pct: stats.Share(timing.LongLead, n)},
		{Name: "Slow Loading", Description: "have slow loading/unloading", Pct: stats.Share(timing.SlowLoading, n)},
		{Name: "Equipment Shortage", Description: "lack handling equipment", Pct: stats.Share(r.Performance.NoEquipment, n)},
	}
	if traffic, ok := frame.Numeric(dataset.ColTrafficCongestion); ok {
		high := 0
		for _, v := range traffic {
			if v > HighTrafficLevel {
				high++
			}
		}
		list = append(list, Bottleneck{Name: "Traffic Congestion", Description: "face high traffic", Pct: stats.Share(high, n)})
	} else {
		r.Skipped = append(r.Skipped, dataset.ColTrafficCongestion)
	}
	list = append(list, Bottleneck{Name: "Customs Delays", Description: "experience customs delays", Pct: stats.Share(timing.SlowCustoms, n)})

	for i := range list {
		if math.IsNaN(list[i].Pct) {
			list[i].Pct = 0
		}
		list[i].Severity = Severity(list[i].Pct)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Pct > list[j].Pct })
	return list
}

func (a *Analyzer) lateShipments(ctx context.Context, frame *dataset.Frame, cols map[string][]float64, r *Report) {
	n := frame.Len()
	late := a.opts.LateRule.Flags(cols[dataset.ColETAVariation])
	r.OverallLatePct = stats.Share(count(late), n)

	var absent []string
	for _, f := range DefaultLateFactors() {
		mask, err := f.Mask(frame)
		if err != nil {
			absent = append(absent, f.Field)
			continue
		}
		affected := count(mask)
		if affected == 0 {
			continue
		}
		r.LateShipments = append(r.LateShipments, LateImpact{
			Name:        f.Name,
			Affected:    affected,
			AffectedPct: stats.Share(affected, n),
			LatePct:     rate(late, mask),
		})
	}
	sort.SliceStable(r.LateShipments, func(i, j int) bool {
		return r.LateShipments[i].AffectedPct > r.LateShipments[j].AffectedPct
	})

	if len(absent) > 0 {
		r.Skipped = append(r.Skipped, absent...)
		a.logger.WarnContext(ctx, "Late-shipment factors skipped, columns absent", slog.Any("fields", absent))
	}
}

func timeRange(ts []time.Time) (start, end time.Time) {
	for _, t := range ts {
		if t.IsZero() {
			continue
		}
		if start.IsZero() || t.Before(start) {
			start = t
		}
		if t.After(end) {
			end = t
		}
	}
	return start, end
}
