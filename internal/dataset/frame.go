package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the layout used when timestamps are written back out.
const TimeLayout = "2006-01-02 15:04:05"

// Column is one typed column of a Frame. Exactly one of Num, Str or Time is
// populated depending on Kind. NaN, "" and the zero time mark null cells.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Str  []string
	Time []time.Time
}

// NewNumericColumn wraps values as a numeric column.
func NewNumericColumn(name string, kind Kind, values []float64) *Column {
	return &Column{Name: name, Kind: kind, Num: values}
}

// NewStringColumn wraps values as a text column.
func NewStringColumn(name string, kind Kind, values []string) *Column {
	return &Column{Name: name, Kind: kind, Str: values}
}

// NewTimeColumn wraps values as a timestamp column.
func NewTimeColumn(name string, values []time.Time) *Column {
	return &Column{Name: name, Kind: Timestamp, Time: values}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	switch {
	case c.Kind == Timestamp:
		return len(c.Time)
	case c.Kind.IsNumeric():
		return len(c.Num)
	}
	return len(c.Str)
}

// IsNull reports whether cell i is missing.
func (c *Column) IsNull(i int) bool {
	switch {
	case c.Kind == Timestamp:
		return c.Time[i].IsZero()
	case c.Kind.IsNumeric():
		return math.IsNaN(c.Num[i])
	}
	return c.Str[i] == ""
}

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Cell formats cell i for text output. Null cells are empty.
func (c *Column) Cell(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch {
	case c.Kind == Timestamp:
		return c.Time[i].Format(TimeLayout)
	case c.Kind == Binary:
		return strconv.FormatFloat(c.Num[i], 'f', 0, 64)
	case c.Kind.IsNumeric():
		return strconv.FormatFloat(c.Num[i], 'f', -1, 64)
	}
	return c.Str[i]
}

// Clone returns a deep copy.
func (c *Column) Clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Num != nil {
		out.Num = append([]float64(nil), c.Num...)
	}
	if c.Str != nil {
		out.Str = append([]string(nil), c.Str...)
	}
	if c.Time != nil {
		out.Time = append([]time.Time(nil), c.Time...)
	}
	return out
}

func (c *Column) take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch {
	case c.Kind == Timestamp:
		out.Time = make([]time.Time, len(rows))
		for j, i := range rows {
			out.Time[j] = c.Time[i]
		}
	case c.Kind.IsNumeric():
		out.Num = make([]float64, len(rows))
		for j, i := range rows {
			out.Num[j] = c.Num[i]
		}
	default:
		out.Str = make([]string, len(rows))
		for j, i := range rows {
			out.Str[j] = c.Str[i]
		}
	}
	return out
}

// Frame is an immutable, column-oriented table. Operations that change rows
// or columns return a new Frame.
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// NewFrame assembles columns into a frame. All columns must have the same
// length and distinct names.
func NewFrame(columns ...*Column) (*Frame, error) {
	f := &Frame{
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), f.rows)
		}
		f.index[c.Name] = i
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns the columns in order. Callers must not modify them.
func (f *Frame) Columns() []*Column { return f.columns }

// Column looks a column up by name.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}

// Has reports whether the frame carries the column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Numeric returns the values of a numeric column.
func (f *Frame) Numeric(name string) ([]float64, bool) {
	c, ok := f.Column(name)
	if !ok || c.Num == nil {
		return nil, false
	}
	return c.Num, true
}

// Times returns the values of a timestamp column.
func (f *Frame) Times(name string) ([]time.Time, bool) {
	c, ok := f.Column(name)
	if !ok || c.Kind != Timestamp {
		return nil, false
	}
	return c.Time, true
}

// Header returns the column names in order.
func (f *Frame) Header() []string {
	out := make([]string, len(f.columns))
	for i, c := range f.columns {
		out[i] = c.Name
	}
	return out
}

// Select returns a new frame holding the given rows, in the given order.
func (f *Frame) Select(rows []int) *Frame {
	cols := make([]*Column, len(f.columns))
	for i, c := range f.columns {
		cols[i] = c.take(rows)
	}
	return &Frame{columns: cols, index: f.index, rows: len(rows)}
}

// Where returns the rows for which keep is true.
func (f *Frame) Where(keep func(i int) bool) *Frame {
	rows := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Select(rows)
}

// WithColumn returns a new frame where col replaces the column of the same
// name, or is appended when no such column exists.
func (f *Frame) WithColumn(col *Column) (*Frame, error) {
	cols := make([]*Column, len(f.columns), len(f.columns)+1)
	copy(cols, f.columns)
	if i, ok := f.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return NewFrame(cols...)
}

// CellCount returns rows times columns.
func (f *Frame) CellCount() int { return f.rows * len(f.columns) }

// NullCount returns the number of missing cells across all columns.
func (f *Frame) NullCount() int {
	n := 0
	for _, c := range f.columns {
		n += c.NullCount()
	}
	return n
}

// RowKey renders row i as a single comparable string. Two rows have the same
// key exactly when every cell is identical.
func (f *Frame) RowKey(i int) string {
	var b strings.Builder
	for j, c := range f.columns {
		if j > 0 {
			b.WriteByte(0x1f)
		}
		if c.IsNull(i) {
			b.WriteByte(0x00)
			continue
		}
		b.WriteString(c.Cell(i))
	}
	return b.String()
}

// Row formats row i.
func (f *Frame) Row(i int) []string {
	out := make([]string, len(f.columns))
	for j, c := range f.columns {
		out[j] = c.Cell(i)
	}
	return out
}

// Records formats every row, without the header.
func (f *Frame) Records() [][]string {
	out := make([][]string, f.rows)
	for i := range out {
		out[i] = f.Row(i)
	}
	return out
}
