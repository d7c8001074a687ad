package series

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRange is returned when a range is reversed or a bound cannot be parsed.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrInvalidMode is returned for an unrecognized aggregation mode.
	ErrInvalidMode = errors.New("invalid aggregation mode")
	// ErrUnknownDimension marks a filter code with no master record. It is
	// never returned to callers; the query answers with an empty series.
	ErrUnknownDimension = errors.New("unknown dimension")
)

// DateLayout is the ISO calendar date format used on every boundary.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes both bounds to midnight UTC and checks start <= end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: dateOf(start), End: dateOf(end)}
	if r.Start.After(r.End) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidRange, r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return r, nil
}

// ParseDateRange parses ISO dates into a validated range.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q is not a date", ErrInvalidRange, start)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q is not a date", ErrInvalidRange, end)
	}
	return NewDateRange(s, e)
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// PriorYear shifts both bounds back one calendar year. Feb 29 becomes Feb 28
// when the prior year has no leap day.
func (r DateRange) PriorYear() DateRange {
	return DateRange{Start: shiftYear(r.Start, -1), End: shiftYear(r.End, -1)}
}

func shiftYear(t time.Time, years int) time.Time {
	y, m, d := t.Date()
	y += years
	if m == time.February && d == 29 && !isLeap(y) {
		d = 28
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
