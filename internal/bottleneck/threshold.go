package bottleneck

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
	"supplychain/internal/stats"
)

// Threshold is either a fixed cut-off or a quantile of the column it is
// applied to.
type Threshold struct {
	Percentile bool
	// Value is the cut-off, or the quantile in [0,1] when Percentile is set.
	Value float64
}

// Fixed returns a constant threshold.
func Fixed(v float64) Threshold { return Threshold{Value: v} }

// Pct returns a threshold at quantile q of the column.
func Pct(q float64) Threshold { return Threshold{Percentile: true, Value: q} }

// ParseThreshold accepts "p75" for the 75th percentile or a plain number.
func ParseThreshold(s string) (Threshold, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if rest, ok := strings.CutPrefix(s, "p"); ok {
		p, err := strconv.ParseFloat(rest, 64)
		if err != nil || p < 0 || p > 100 {
			return Threshold{}, fmt.Errorf("invalid percentile threshold %q", s)
		}
		return Pct(p / 100), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Threshold{}, fmt.Errorf("invalid threshold %q", s)
	}
	return Fixed(v), nil
}

// ParseThresholds parses a field to threshold map.
func ParseThresholds(raw map[string]string) (map[string]Threshold, error) {
	out := make(map[string]Threshold, len(raw))
	for field, s := range raw {
		t, err := ParseThreshold(s)
		if err != nil {
			return nil, apperrors.NewConfigError("analysis threshold for "+field, err)
		}
		out[field] = t
	}
	return out, nil
}

// Resolve returns the cut-off for a column.
func (t Threshold) Resolve(values []float64) float64 {
	if t.Percentile {
		return stats.Quantile(values, t.Value)
	}
	return t.Value
}

func (t Threshold) String() string {
	if t.Percentile {
		return "p" + strconv.FormatFloat(t.Value*100, 'f', -1, 64)
	}
	return strconv.FormatFloat(t.Value, 'f', -1, 64)
}

// Op compares a value with a threshold.
type Op string

const (
	OpGreater Op = "gt"
	OpLess    Op = "lt"
	OpEqual   Op = "eq"
	// OpOutside flags values below Threshold or above Upper.
	OpOutside Op = "outside"
)

// Factor is a named boolean condition over one column.
type Factor struct {
	Name      string
	Field     string
	Op        Op
	Threshold Threshold
	Upper     Threshold
}

func gt(name, field string, t Threshold) Factor {
	return Factor{Name: name, Field: field, Op: OpGreater, Threshold: t}
}

func lt(name, field string, t Threshold) Factor {
	return Factor{Name: name, Field: field, Op: OpLess, Threshold: t}
}

func eq(name, field string, v float64) Factor {
	return Factor{Name: name, Field: field, Op: OpEqual, Threshold: Fixed(v)}
}

// Mask evaluates the factor on every row. Missing values never match.
func (f Factor) Mask(frame *dataset.Frame) ([]bool, error) {
	values, ok := frame.Numeric(f.Field)
	if !ok {
		return nil, apperrors.NewMissingColumnError(f.Field, "factor "+f.Name)
	}

	lo := f.Threshold.Resolve(values)
	hi := math.NaN()
	if f.Op == OpOutside {
		hi = f.Upper.Resolve(values)
	}

	mask := make([]bool, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		switch f.Op {
		case OpGreater:
			mask[i] = v > lo
		case OpLess:
			mask[i] = v < lo
		case OpEqual:
			mask[i] = v == lo
		case OpOutside:
			mask[i] = v < lo || v > hi
		default:
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("factor %s: unknown operator %q", f.Name, string(f.Op)))
		}
	}
	return mask, nil
}

// WithThresholds replaces the thresholds of gt and lt factors whose field
// has an override.
func WithThresholds(factors []Factor, overrides map[string]Threshold) []Factor {
	out := make([]Factor, len(factors))
	copy(out, factors)
	for i, f := range out {
		t, ok := overrides[f.Field]
		if ok && (f.Op == OpGreater || f.Op == OpLess) {
			out[i].Threshold = t
		}
	}
	return out
}

// LateRule decides which records count as late.
type LateRule string

const (
	// LatePositive marks any positive ETA variation as late.
	LatePositive LateRule = "positive"
	// LateAboveMedian marks ETA variation above the column median as late.
	// It suits pre-aggregated data where the sign carries little meaning.
	LateAboveMedian LateRule = "median"
)

// Flags applies the rule to ETA variations.
func (r LateRule) Flags(eta []float64) []bool {
	cut := 0.0
	if r == LateAboveMedian {
		cut = stats.Median(eta)
	}
	out := make([]bool, len(eta))
	for i, v := range eta {
		out[i] = !math.IsNaN(v) && v > cut
	}
	return out
}

func count(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}

// rate returns the share of true flags among selected rows in percent, NaN
// when no row is selected.
func rate(flags, selected []bool) float64 {
	n, hits := 0, 0
	for i, s := range selected {
		if !s {
			continue
		}
		n++
		if flags[i] {
			hits++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return float64(hits) / float64(n) * 100
}

// meanWhere averages values over selected rows, NaN when none qualify.
func meanWhere(values []float64, selected []bool) float64 {
	sub := make([]float64, 0, len(values))
	for i, s := range selected {
		if s {
			sub = append(sub, values[i])
		}
	}
	return stats.Mean(sub)
}

func not(mask []bool) []bool {
	out := make([]bool, len(mask))
	for i, b := range mask {
		out[i] = !b
	}
	return out
}

func boolsToFloats(mask []bool) []float64 {
	out := make([]float64, len(mask))
	for i, b := range mask {
		if b {
			out[i] = 1
		}
	}
	return out
}

func equals(values []float64, v float64) []bool {
	out := make([]bool, len(values))
	for i, x := range values {
		out[i] = x == v
	}
	return out
}
