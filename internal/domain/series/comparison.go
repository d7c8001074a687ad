package series

import (
	"context"

	"github.com/hospital/dashboard/internal/domain/facts"
)

// Comparer builds prior-year overlay series.
type Comparer struct {
	builder *Builder
}

func NewComparer(b *Builder) *Comparer {
	return &Comparer{builder: b}
}

// CompareLastYear builds the series for the same range one year earlier.
// Bucket keys keep their own year; callers align the two series by position.
func (c *Comparer) CompareLastYear(ctx context.Context, r DateRange, filter *facts.Code, mode Mode, kind facts.Kind) ([]Point, error) {
	plan, err := Resolve(kind, r.PriorYear(), mode)
	if err != nil {
		return nil, err
	}
	return c.builder.Build(ctx, plan, filter)
}
