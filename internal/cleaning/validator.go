package cleaning

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
)

// Status is the outcome of validating a single cell.
type Status int

const (
	// Valid means the parsed value already lay in its domain.
	Valid Status = iota
	// Corrected means the value was rounded or clamped into its domain.
	Corrected
	// Invalid means the cell held text that is not a finite number.
	Invalid
	// Missing means the cell was empty or a null token.
	Missing
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Corrected:
		return "corrected"
	case Invalid:
		return "invalid"
	case Missing:
		return "missing"
	}
	return "unknown"
}

var nullTokens = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"na":   {},
	"n/a":  {},
	"none": {},
	"nat":  {},
}

// IsNullToken reports whether raw represents a missing value.
func IsNullToken(raw string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// ValidateValue parses raw as a number of the given kind and forces it into
// the kind's domain. Unparsable and non-finite input yields NaN with status
// Invalid; it never fails.
func ValidateValue(raw string, kind dataset.Kind) (float64, Status) {
	if IsNullToken(raw) {
		return math.NaN(), Missing
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN(), Invalid
	}
	clamped, changed := ClampValue(v, kind)
	if changed {
		return clamped, Corrected
	}
	return clamped, Valid
}

// ClampValue rounds binary values to the nearest integer and clamps v into
// the domain of kind. The second result reports whether v changed.
func ClampValue(v float64, kind dataset.Kind) (float64, bool) {
	if math.IsNaN(v) {
		return v, false
	}
	out := v
	if kind == dataset.Binary {
		out = math.Round(out)
	}
	lo, hi := kind.Bounds()
	if out < lo {
		out = lo
	} else if out > hi {
		out = hi
	}
	return out, out != v
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseTimestamp parses raw with the accepted layouts, converts it to UTC and
// floors it to the hour. The second result is false when nothing matched.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if IsNullToken(raw) {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Truncate(time.Hour), true
		}
	}
	return time.Time{}, false
}

// FieldReport holds the validation counters of one column.
type FieldReport struct {
	Field     string `json:"field"`
	Kind      string `json:"kind"`
	Corrected int    `json:"corrected"`
	Invalid   int    `json:"invalid"`
	Missing   int    `json:"missing"`
}

// ValidationReport summarizes what the validator changed.
type ValidationReport struct {
	Source            string        `json:"source"`
	RowsRead          int           `json:"rows_read"`
	Columns           int           `json:"columns"`
	Fields            []FieldReport `json:"fields"`
	InvalidTimestamps int           `json:"invalid_timestamps"`
	AbsentColumns     []string      `json:"absent_columns,omitempty"`
}

// TotalCorrections is the number of values rounded or clamped.
func (r *ValidationReport) TotalCorrections() int {
	n := 0
	for _, f := range r.Fields {
		n += f.Corrected
	}
	return n
}

// TotalInvalid is the number of unparsable values turned into nulls.
func (r *ValidationReport) TotalInvalid() int {
	n := 0
	for _, f := range r.Fields {
		n += f.Invalid
	}
	return n
}

// CorrectionsByField maps column name to corrected value count.
func (r *ValidationReport) CorrectionsByField() map[string]int {
	out := make(map[string]int, len(r.Fields))
	for _, f := range r.Fields {
		out[f.Field] = f.Corrected
	}
	return out
}

// InvalidByField maps column name to invalid value count.
func (r *ValidationReport) InvalidByField() map[string]int {
	out := make(map[string]int, len(r.Fields))
	for _, f := range r.Fields {
		out[f.Field] = f.Invalid
	}
	return out
}

// Validator converts a raw CSV table into a typed frame.
type Validator struct {
	schema *dataset.Schema
	logger *slog.Logger
}

// NewValidator creates a validator for schema.
func NewValidator(schema *dataset.Schema, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{schema: schema, logger: logger}
}

// Validate types every column of raw according to the schema. Cell problems
// are absorbed into the report; the only error is a missing timestamp column.
func (v *Validator) Validate(ctx context.Context, raw *dataset.RawTable) (*dataset.Frame, *ValidationReport, error) {
	tsColumn := v.schema.TimestampColumn
	if raw.ColumnIndex(tsColumn) < 0 {
		return nil, nil, apperrors.NewMissingColumnError(tsColumn, raw.Source)
	}

	report := &ValidationReport{
		Source:   raw.Source,
		RowsRead: raw.Len(),
		Columns:  len(raw.Header),
	}

	columns := make([]*dataset.Column, 0, len(raw.Header))
	for j, name := range raw.Header {
		kind := v.schema.KindOf(name)
		if name == tsColumn {
			kind = dataset.Timestamp
		}
		col, fr := v.validateColumn(raw, j, name, kind)
		if name == tsColumn {
			report.InvalidTimestamps = fr.Invalid + fr.Missing
		}
		report.Fields = append(report.Fields, fr)
		columns = append(columns, col)
	}

	for _, f := range v.schema.Fields {
		if raw.ColumnIndex(f.Name) < 0 {
			report.AbsentColumns = append(report.AbsentColumns, f.Name)
		}
	}
	if len(report.AbsentColumns) > 0 {
		v.logger.WarnContext(ctx, "Declared columns absent from input",
			slog.String("source", raw.Source),
			slog.Any("columns", report.AbsentColumns))
	}

	frame, err := dataset.NewFrame(columns...)
	if err != nil {
		return nil, nil, apperrors.NewAppValidationError(err.Error()).WithContext("source", raw.Source)
	}

	v.logger.InfoContext(ctx, "Validation complete",
		slog.String("source", raw.Source),
		slog.Int("rows", report.RowsRead),
		slog.Int("columns", report.Columns),
		slog.Int("corrected_values", report.TotalCorrections()),
		slog.Int("invalid_values", report.TotalInvalid()),
		slog.Int("invalid_timestamps", report.InvalidTimestamps))

	return frame, report, nil
}

func (v *Validator) validateColumn(raw *dataset.RawTable, j int, name string, kind dataset.Kind) (*dataset.Column, FieldReport) {
	fr := FieldReport{Field: name, Kind: kind.String()}
	n := raw.Len()

	switch {
	case kind == dataset.Timestamp:
		values := make([]time.Time, n)
		for i, row := range raw.Rows {
			if IsNullToken(row[j]) {
				fr.Missing++
				continue
			}
			t, ok := ParseTimestamp(row[j])
			if !ok {
				fr.Invalid++
				continue
			}
			values[i] = t
		}
		return dataset.NewTimeColumn(name, values), fr

	case kind.IsNumeric():
		values := make([]float64, n)
		for i, row := range raw.Rows {
			value, status := ValidateValue(row[j], kind)
			switch status {
			case Corrected:
				fr.Corrected++
			case Invalid:
				fr.Invalid++
			case Missing:
				fr.Missing++
			}
			values[i] = value
		}
		return dataset.NewNumericColumn(name, kind, values), fr

	default:
		values := make([]string, n)
		for i, row := range raw.Rows {
			cell := strings.TrimSpace(row[j])
			if kind == dataset.Categorical && IsNullToken(cell) {
				fr.Missing++
				cell = ""
			}
			values[i] = cell
		}
		return dataset.NewStringColumn(name, kind, values), fr
	}
}
