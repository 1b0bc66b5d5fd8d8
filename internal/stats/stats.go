// Package stats holds the NaN-aware descriptive statistics used across the
// pipeline. NaN marks a missing observation and is skipped by every reducer.
package stats

import (
	"math"
	"sort"
)

// Valid returns the non-NaN, finite values of xs in their original order.
func Valid(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// Count returns the number of non-missing values.
func Count(xs []float64) int {
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) {
			n++
		}
	}
	return n
}

// Sum returns the sum of non-missing values, 0 for none.
func Sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		if !math.IsNaN(x) {
			s += x
		}
	}
	return s
}

// Mean returns the arithmetic mean, NaN when no value is present.
func Mean(xs []float64) float64 {
	var s float64
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) {
			s += x
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return s / float64(n)
}

// Min returns the smallest value, NaN when no value is present.
func Min(xs []float64) float64 {
	m := math.NaN()
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if math.IsNaN(m) || x < m {
			m = x
		}
	}
	return m
}

// Max returns the largest value, NaN when no value is present.
func Max(xs []float64) float64 {
	m := math.NaN()
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if math.IsNaN(m) || x > m {
			m = x
		}
	}
	return m
}

// StdDev returns the sample standard deviation (n-1 denominator). It is NaN
// for fewer than two values.
func StdDev(xs []float64) float64 {
	mean := Mean(xs)
	n := 0
	var sumSq float64
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		d := x - mean
		sumSq += d * d
		n++
	}
	if n < 2 {
		return math.NaN()
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Median returns the median of non-missing values, NaN when none.
func Median(xs []float64) float64 {
	return Quantile(xs, 0.5)
}

// Quantile returns the q-th quantile using linear interpolation between the
// closest ranks, index = q*(n-1). NaN when no value is present.
func Quantile(xs []float64, q float64) float64 {
	sorted := Valid(xs)
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	return QuantileSorted(sorted, q)
}

// QuantileSorted is Quantile for an already sorted slice without NaN.
func QuantileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	index := q * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Correlation computes the Pearson correlation coefficient over the pairs
// where both values are present. It returns 0 when fewer than two pairs
// remain or either side has no variance.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) {
		return 0
	}

	var xs, ys []float64
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return 0
	}

	meanX, meanY := Mean(xs), Mean(ys)
	var sumXY, sumXX, sumYY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sumXY += dx * dy
		sumXX += dx * dx
		sumYY += dy * dy
	}
	if sumXX == 0 || sumYY == 0 {
		return 0
	}

	r := sumXY / math.Sqrt(sumXX*sumYY)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// WeightedCorrelation is Pearson correlation with per-observation weights.
func WeightedCorrelation(x, y, w []float64) float64 {
	if len(x) != len(y) || len(x) != len(w) || len(x) < 2 {
		return 0
	}

	var sw, mx, my float64
	for i := range x {
		sw += w[i]
		mx += w[i] * x[i]
		my += w[i] * y[i]
	}
	if sw == 0 {
		return 0
	}
	mx /= sw
	my /= sw

	var cov, vx, vy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += w[i] * dx * dy
		vx += w[i] * dx * dx
		vy += w[i] * dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// MinMaxNormalize rescales xs to [0,1]. A constant column maps to 0 and
// missing values stay NaN.
func MinMaxNormalize(xs []float64) []float64 {
	lo, hi := Min(xs), Max(xs)
	out := make([]float64, len(xs))
	for i, x := range xs {
		switch {
		case math.IsNaN(x):
			out[i] = math.NaN()
		case hi == lo:
			out[i] = 0
		default:
			out[i] = (x - lo) / (hi - lo)
		}
	}
	return out
}

// Percent returns part/whole*100, or 100 when whole is zero.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 100
	}
	return part / whole * 100
}

// Share returns part/whole*100, or 0 when whole is zero.
func Share(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
