package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE RANGE - Inclusive calendar-day window used by reporting filters
// =============================================================================

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateRange is an inclusive [From, To] window at day granularity.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange builds a range from two dates. To is extended to the end of
// its day so records stamped later that day are included.
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: StartOfDay(from), To: EndOfDay(to)}
	if r.To.Before(r.From) {
		return DateRange{}, &ValidationError{Field: "to", Message: "end date before start date"}
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD strings.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(DateLayout, from)
	if err != nil {
		return DateRange{}, &ValidationError{Field: "from", Message: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", from)}
	}
	t, err := time.Parse(DateLayout, to)
	if err != nil {
		return DateRange{}, &ValidationError{Field: "to", Message: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", to)}
	}
	return NewDateRange(f, t)
}

// MonthRange returns the range covering a calendar month.
func MonthRange(year int, month time.Month) (DateRange, error) {
	if month < time.January || month > time.December {
		return DateRange{}, &ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	if year < 1 {
		return DateRange{}, &ValidationError{Field: "year", Message: "year must be positive"}
	}
	return DateRange{From: StartOfMonth(year, month), To: EndOfDay(EndOfMonth(year, month))}, nil
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(r.From) && !t.After(r.To)
}

func (r DateRange) String() string {
	return "[" + r.From.Format(DateLayout) + ", " + r.To.Format(DateLayout) + "]"
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

func StartOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

func EndOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}
