// Package aggregate rolls cleaned logistics records up into daily and weekly
// summary tables.
//
// A Spec lists, per field, the reducers to apply (count, mean, sum, min, max,
// std). Output columns are named <field>_<reducer> unless the spec aliases
// them; the built-in specs alias the fulfillment, cargo and equipment means
// as rates. Buckets are keyed on the UTC day or on the Monday starting the
// ISO week, and only buckets containing at least one record are emitted.
package aggregate
