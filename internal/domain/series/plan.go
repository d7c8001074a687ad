package series

import (
	"fmt"
	"strings"
	"time"

	"github.com/hospital/dashboard/internal/domain/facts"
)

// Mode is the bucket granularity of a series.
type Mode string

const (
	Daily   Mode = "daily"
	Monthly Mode = "monthly"
)

// ParseMode accepts "daily" or "monthly", case-insensitively. An empty value
// means daily.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Daily:
		return Daily, nil
	case Monthly:
		return Monthly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Combine is how the per-day values of one measure collapse into a bucket.
type Combine int

const (
	// Sum adds flow measures (visits, admissions, counts).
	Sum Combine = iota
	// Average takes the integer-truncated mean over days with data; used for gauges.
	Average
)

func (c Combine) String() string {
	if c == Average {
		return "average"
	}
	return "sum"
}

// Plan is a resolved query: which rows to read and how to bucket them.
// Buckets are always ordered ascending by key.
type Plan struct {
	Kind     facts.Kind
	Range    DateRange
	Mode     Mode
	Measures []facts.Measure
	Combine  map[facts.Measure]Combine
}

// Resolve validates the inputs and builds a plan.
func Resolve(kind facts.Kind, r DateRange, mode Mode) (*Plan, error) {
	if _, err := facts.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if mode != Daily && mode != Monthly {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	if r.Start.After(r.End) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}

	p := &Plan{
		Kind:     kind,
		Range:    r,
		Mode:     mode,
		Measures: kind.Measures(),
		Combine:  make(map[facts.Measure]Combine, len(kind.Measures())),
	}
	for _, m := range p.Measures {
		p.Combine[m] = Sum
		if m.IsGauge() && mode == Monthly {
			p.Combine[m] = Average
		}
	}
	return p, nil
}

// BucketKey returns the grouping key of a date: the date itself for daily
// plans, its year-month for monthly ones.
func (p *Plan) BucketKey(d time.Time) string {
	if p.Mode == Monthly {
		return d.Format("2006-01")
	}
	return d.Format(DateLayout)
}
