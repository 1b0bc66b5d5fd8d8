package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"supplychain/internal/dataset"
	"supplychain/internal/stats"
)

const dayLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days in UTC. A timestamp on
// the end day is inside the range at any hour.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range from two days. Times of day are discarded.
func NewDateRange(start, end time.Time) (DateRange, error) {
	s := truncateDay(start)
	e := truncateDay(end)
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("range end %s is before start %s", e.Format(dayLayout), s.Format(dayLayout))
	}
	return DateRange{Start: s, End: e}, nil
}

// ParseDateRange parses two YYYY-MM-DD days.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dayLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid range start %q: %w", start, err)
	}
	e, err := time.Parse(dayLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid range end %q: %w", end, err)
	}
	return NewDateRange(s, e)
}

// Contains reports whether t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.endExclusive())
}

// Before reports whether t precedes the range.
func (r DateRange) Before(t time.Time) bool { return t.Before(r.Start) }

// After reports whether t falls after the end day.
func (r DateRange) After(t time.Time) bool { return !t.Before(r.endExclusive()) }

func (r DateRange) endExclusive() time.Time { return r.End.AddDate(0, 0, 1) }

func (r DateRange) String() string {
	return r.Start.Format(dayLayout) + ".." + r.End.Format(dayLayout)
}

// Discrepancy compares the declared range against the timestamps actually
// present in a dataset.
type Discrepancy struct {
	DeclaredStart time.Time `json:"declared_start"`
	DeclaredEnd   time.Time `json:"declared_end"`
	ActualStart   time.Time `json:"actual_start"`
	ActualEnd     time.Time `json:"actual_end"`

	Total   int `json:"total"`
	Before  int `json:"before"`
	Within  int `json:"within"`
	Beyond  int `json:"beyond"`
	Undated int `json:"undated"`

	BeforePct float64 `json:"before_pct"`
	WithinPct float64 `json:"within_pct"`
	BeyondPct float64 `json:"beyond_pct"`

	// MonthsBeyond is the number of whole months the data runs past the
	// declared end. CalendarMonthsBeyond ignores the day of month.
	MonthsBeyond         int `json:"months_beyond"`
	CalendarMonthsBeyond int `json:"calendar_months_beyond"`
}

// HasDiscrepancy reports whether records extend past the declared end.
func (d Discrepancy) HasDiscrepancy() bool { return d.Beyond > 0 }

// Filter restricts records to a declared date range.
type Filter struct {
	dateRange DateRange
	column    string
	logger    *slog.Logger
}

// NewFilter creates a filter over the timestamp column.
func NewFilter(dateRange DateRange, column string, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	if column == "" {
		column = dataset.ColTimestamp
	}
	return &Filter{dateRange: dateRange, column: column, logger: logger}
}

// Range returns the declared range.
func (f *Filter) Range() DateRange { return f.dateRange }

// Analyze partitions the frame into before, within and beyond the range.
// An empty frame yields zero counts.
func (f *Filter) Analyze(ctx context.Context, frame *dataset.Frame) Discrepancy {
	d := Discrepancy{
		DeclaredStart: f.dateRange.Start,
		DeclaredEnd:   f.dateRange.End,
		Total:         frame.Len(),
	}

	ts, ok := frame.Times(f.column)
	if !ok {
		d.Undated = frame.Len()
		f.logger.WarnContext(ctx, "Timestamp column absent, nothing to partition", slog.String("column", f.column))
		return d
	}

	for _, t := range ts {
		if t.IsZero() {
			d.Undated++
			continue
		}
		if d.ActualStart.IsZero() || t.Before(d.ActualStart) {
			d.ActualStart = t
		}
		if t.After(d.ActualEnd) {
			d.ActualEnd = t
		}
		switch {
		case f.dateRange.Before(t):
			d.Before++
		case f.dateRange.After(t):
			d.Beyond++
		default:
			d.Within++
		}
	}

	d.BeforePct = stats.Share(d.Before, d.Total)
	d.WithinPct = stats.Share(d.Within, d.Total)
	d.BeyondPct = stats.Share(d.Beyond, d.Total)

	if d.Beyond > 0 {
		d.CalendarMonthsBeyond = calendarMonths(f.dateRange.End, d.ActualEnd)
		d.MonthsBeyond = wholeMonths(f.dateRange.End, d.ActualEnd)
		f.logger.WarnContext(ctx, "Temporal discrepancy detected",
			slog.String("declared_end", f.dateRange.End.Format(dayLayout)),
			slog.String("actual_end", d.ActualEnd.Format(dayLayout)),
			slog.Int("months_beyond", d.MonthsBeyond),
			slog.Int("beyond", d.Beyond),
			slog.Float64("beyond_pct", d.BeyondPct))
	}

	f.logger.InfoContext(ctx, "Temporal range analyzed",
		slog.String("declared", f.dateRange.String()),
		slog.Int("total", d.Total),
		slog.Int("before", d.Before),
		slog.Int("within", d.Within),
		slog.Int("beyond", d.Beyond))

	return d
}

// Apply returns the records whose timestamp lies within the range. Applying
// the same filter to its own output is a no-op.
func (f *Filter) Apply(ctx context.Context, frame *dataset.Frame) *dataset.Frame {
	ts, ok := frame.Times(f.column)
	if !ok {
		return frame.Select(nil)
	}
	out := frame.Where(func(i int) bool {
		return !ts[i].IsZero() && f.dateRange.Contains(ts[i])
	})

	f.logger.InfoContext(ctx, "Filtered to declared range",
		slog.String("declared", f.dateRange.String()),
		slog.Int("rows_in", frame.Len()),
		slog.Int("rows_out", out.Len()),
		slog.Int("rows_removed", frame.Len()-out.Len()))

	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func calendarMonths(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// wholeMonths counts complete months from one day to another. The last day
// of a month completes a month that started on a later day number.
func wholeMonths(from, to time.Time) int {
	n := calendarMonths(from, to)
	if to.Day() < from.Day() && !isLastDayOfMonth(to) {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

func isLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}
