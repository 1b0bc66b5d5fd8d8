package dataset

import (
	"math"
	"strings"
)

// Kind declares how a column is typed and which domain its values must lie in.
type Kind int

const (
	// Passthrough columns are carried verbatim as text.
	Passthrough Kind = iota
	Timestamp
	NonNegative
	Unbounded
	UnitInterval
	Decile
	Binary
	Latitude
	Longitude
	Categorical
)

var kindNames = map[Kind]string{
	Passthrough:  "passthrough",
	Timestamp:    "timestamp",
	NonNegative:  "non_negative",
	Unbounded:    "unbounded",
	UnitInterval: "unit_interval",
	Decile:       "decile",
	Binary:       "binary",
	Latitude:     "latitude",
	Longitude:    "longitude",
	Categorical:  "categorical",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsNumeric reports whether values of this kind are stored as float64.
func (k Kind) IsNumeric() bool {
	switch k {
	case NonNegative, Unbounded, UnitInterval, Decile, Binary, Latitude, Longitude:
		return true
	}
	return false
}

// Bounds returns the inclusive domain of a numeric kind. Open sides are
// infinite.
func (k Kind) Bounds() (lo, hi float64) {
	switch k {
	case NonNegative:
		return 0, math.Inf(1)
	case UnitInterval, Binary:
		return 0, 1
	case Decile:
		return 0, 10
	case Latitude:
		return -90, 90
	case Longitude:
		return -180, 180
	}
	return math.Inf(-1), math.Inf(1)
}

// Field is one declared column.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the ordered set of declared columns. Columns found in an input
// file but missing from the schema are treated as Passthrough.
type Schema struct {
	Fields          []Field
	TimestampColumn string
	index           map[string]int
}

// NewSchema builds a schema. The timestamp column is the first Timestamp
// field, or "timestamp" when none is declared.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{
		Fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		s.index[f.Name] = i
		if f.Kind == Timestamp && s.TimestampColumn == "" {
			s.TimestampColumn = f.Name
		}
	}
	if s.TimestampColumn == "" {
		s.TimestampColumn = "timestamp"
	}
	return s
}

// KindOf returns the declared kind of a column, Passthrough when unknown.
func (s *Schema) KindOf(name string) Kind {
	if i, ok := s.index[name]; ok {
		return s.Fields[i].Kind
	}
	return Passthrough
}

// Has reports whether the schema declares the column.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// WithTimestamp returns a copy of the schema whose timestamp column is name.
// The previous timestamp field, if any, becomes passthrough.
func (s *Schema) WithTimestamp(name string) *Schema {
	name = strings.TrimSpace(name)
	if name == "" || name == s.TimestampColumn {
		return s
	}
	fields := make([]Field, 0, len(s.Fields)+1)
	for _, f := range s.Fields {
		if f.Kind == Timestamp || f.Name == name {
			continue
		}
		fields = append(fields, f)
	}
	fields = append([]Field{{Name: name, Kind: Timestamp}}, fields...)
	return NewSchema(fields...)
}

// WithCategorical returns a copy of the schema declaring the given columns
// as categorical.
func (s *Schema) WithCategorical(names ...string) *Schema {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	for _, name := range names {
		if i, ok := s.index[name]; ok {
			fields[i].Kind = Categorical
			continue
		}
		fields = append(fields, Field{Name: name, Kind: Categorical})
	}
	return NewSchema(fields...)
}

// Logistics column names.
const (
	ColTimestamp             = "timestamp"
	ColLatitude              = "vehicle_gps_latitude"
	ColLongitude             = "vehicle_gps_longitude"
	ColFuelConsumption       = "fuel_consumption_rate"
	ColETAVariation          = "eta_variation_hours"
	ColTrafficCongestion     = "traffic_congestion_level"
	ColWarehouseInventory    = "warehouse_inventory_level"
	ColLoadingTime           = "loading_unloading_time"
	ColEquipmentAvailability = "handling_equipment_availability"
	ColOrderFulfillment      = "order_fulfillment_status"
	ColWeatherSeverity       = "weather_condition_severity"
	ColPortCongestion        = "port_congestion_level"
	ColShippingCosts         = "shipping_costs"
	ColSupplierReliability   = "supplier_reliability_score"
	ColLeadTime              = "lead_time_days"
	ColHistoricalDemand      = "historical_demand"
	ColIoTTemperature        = "iot_temperature"
	ColCargoCondition        = "cargo_condition_status"
	ColRouteRisk             = "route_risk_level"
	ColCustomsClearance      = "customs_clearance_time"
	ColDriverBehavior        = "driver_behavior_score"
	ColFatigueMonitoring     = "fatigue_monitoring_score"
	ColDisruptionLikelihood  = "disruption_likelihood_score"
	ColDelayProbability      = "delay_probability"
	ColRiskClassification    = "risk_classification"
	ColDeliveryTimeDeviation = "delivery_time_deviation"
)

// LogisticsSchema returns the schema of the dynamic supply chain logistics
// dataset.
func LogisticsSchema() *Schema {
	return NewSchema(
		Field{ColTimestamp, Timestamp},
		Field{ColLatitude, Latitude},
		Field{ColLongitude, Longitude},
		Field{ColFuelConsumption, NonNegative},
		Field{ColETAVariation, Unbounded},
		Field{ColTrafficCongestion, Decile},
		Field{ColWarehouseInventory, NonNegative},
		Field{ColLoadingTime, NonNegative},
		Field{ColEquipmentAvailability, Binary},
		Field{ColOrderFulfillment, Binary},
		Field{ColWeatherSeverity, UnitInterval},
		Field{ColPortCongestion, Decile},
		Field{ColShippingCosts, NonNegative},
		Field{ColSupplierReliability, UnitInterval},
		Field{ColLeadTime, NonNegative},
		Field{ColHistoricalDemand, NonNegative},
		Field{ColIoTTemperature, Unbounded},
		Field{ColCargoCondition, Binary},
		Field{ColRouteRisk, Decile},
		Field{ColCustomsClearance, NonNegative},
		Field{ColDriverBehavior, UnitInterval},
		Field{ColFatigueMonitoring, UnitInterval},
		Field{ColDisruptionLikelihood, UnitInterval},
		Field{ColDelayProbability, UnitInterval},
		Field{ColRiskClassification, Categorical},
		Field{ColDeliveryTimeDeviation, Unbounded},
	)
}
