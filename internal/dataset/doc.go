// Package dataset defines the logistics record schema and the immutable,
// column-oriented Frame that every pipeline stage consumes and produces.
//
// Numeric cells are float64 with NaN as the null marker, text cells use the
// empty string, and timestamps use the zero time.Time. A RawTable is the
// untyped CSV form a Frame is built from:
//
//	raw, err := dataset.LoadCSV("dynamic_supply_chain_logistics_dataset.csv")
//	frame, report, err := cleaning.NewValidator(dataset.LogisticsSchema(), logger).Validate(ctx, raw)
package dataset
