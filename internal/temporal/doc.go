// Package temporal restricts a dataset to its declared date range and
// reports how far the actual data extends beyond it.
package temporal
