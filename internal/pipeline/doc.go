// Package pipeline wires the cleaning, temporal filtering, aggregation and
// analysis packages into runnable stages.
//
// A Runner reads its inputs and writes its artifacts at the locations
// resolved by config.Paths. Each stage runs inside a trace span and records
// its duration and record counts on the pipeline metrics. Stages can run
// together through Run or one at a time, in which case a later stage reads
// the CSV written by the earlier one.
package pipeline
