package exporter

import (
	"math"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// cellValue converts a reduced value for a spreadsheet cell. Undefined
// values become empty cells.
func cellValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// roundTo rounds v to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// percentCell rounds a percentage to two decimals for display.
func percentCell(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return roundTo(v, 2)
}
