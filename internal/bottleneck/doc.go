// Package bottleneck runs the descriptive analyses over a filtered
// logistics dataset: metric profiles and critical bottleneck ranking, the
// operational stress index, and compound effects of simultaneous
// bottlenecks.
//
// Conditions are expressed as Factors over one column with either a fixed
// or a percentile Threshold, so every analysis shares one threshold policy.
// Percentiles are resolved against the frame being analyzed.
package bottleneck
