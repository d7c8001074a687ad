package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/hospital/dashboard/internal/domain/facts"
	"github.com/hospital/dashboard/internal/domain/series"
)

// Service is the query facade used by the HTTP handler and the CLI.
type Service struct {
	builder  *series.Builder
	comparer *series.Comparer
	masters  facts.MasterStore
}

func NewService(builder *series.Builder, masters facts.MasterStore) *Service {
	return &Service{
		builder:  builder,
		comparer: series.NewComparer(builder),
		masters:  masters,
	}
}

// -- Outpatient --

func (s *Service) Outpatient(ctx context.Context, q Query) ([]OutpatientRecord, error) {
	return current(ctx, s, facts.Outpatient, q, outpatientRecords)
}

func (s *Service) OutpatientComparison(ctx context.Context, q Query) ([]OutpatientRecord, error) {
	return priorYear(ctx, s, facts.Outpatient, q, outpatientRecords)
}

func (s *Service) OutpatientOverlay(ctx context.Context, q Query, compare bool) (*ComparisonPair[OutpatientRecord], error) {
	return overlay(ctx, s, facts.Outpatient, q, compare, outpatientRecords)
}

// OutpatientBreakdown returns one series per active department, concatenated
// in seq order, for the stacked chart.
func (s *Service) OutpatientBreakdown(ctx context.Context, r series.DateRange, mode series.Mode) ([]OutpatientRecord, error) {
	return breakdown(ctx, s, facts.Outpatient, r, mode, outpatientRecords)
}

// -- Inpatient --

func (s *Service) Inpatient(ctx context.Context, q Query) ([]InpatientRecord, error) {
	return current(ctx, s, facts.Inpatient, q, inpatientRecords)
}

func (s *Service) InpatientComparison(ctx context.Context, q Query) ([]InpatientRecord, error) {
	return priorYear(ctx, s, facts.Inpatient, q, inpatientRecords)
}

func (s *Service) InpatientOverlay(ctx context.Context, q Query, compare bool) (*ComparisonPair[InpatientRecord], error) {
	return overlay(ctx, s, facts.Inpatient, q, compare, inpatientRecords)
}

func (s *Service) InpatientBreakdown(ctx context.Context, r series.DateRange, mode series.Mode) ([]InpatientRecord, error) {
	return breakdown(ctx, s, facts.Inpatient, r, mode, inpatientRecords)
}

// -- Billing --

func (s *Service) Billing(ctx context.Context, q Query) ([]BillingRecord, error) {
	return current(ctx, s, facts.Billing, q, billingRecords)
}

func (s *Service) BillingComparison(ctx context.Context, q Query) ([]BillingRecord, error) {
	return priorYear(ctx, s, facts.Billing, q, billingRecords)
}

func (s *Service) BillingOverlay(ctx context.Context, q Query, compare bool) (*ComparisonPair[BillingRecord], error) {
	return overlay(ctx, s, facts.Billing, q, compare, billingRecords)
}

// -- Masters --

func (s *Service) Departments(ctx context.Context) ([]facts.MasterRecord, error) {
	return s.activeMasters(ctx, facts.Departments)
}

func (s *Service) Wards(ctx context.Context) ([]facts.MasterRecord, error) {
	return s.activeMasters(ctx, facts.Wards)
}

func (s *Service) BillingCategories(ctx context.Context) ([]facts.MasterRecord, error) {
	return s.activeMasters(ctx, facts.BillingCategories)
}

func (s *Service) activeMasters(ctx context.Context, kind facts.MasterKind) ([]facts.MasterRecord, error) {
	records, err := s.masters.LookupActive(ctx, kind)
	if err != nil {
		return nil, storeError(err)
	}
	if records == nil {
		records = []facts.MasterRecord{}
	}
	return records, nil
}

func storeError(err error) error {
	if errors.Is(err, facts.ErrStoreUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", facts.ErrStoreUnavailable, err)
}

type converter[T any] func(points []series.Point, name *string) []T

func current[T any](ctx context.Context, s *Service, kind facts.Kind, q Query, convert converter[T]) ([]T, error) {
	plan, err := series.Resolve(kind, q.Range, q.Mode)
	if err != nil {
		return nil, err
	}
	points, err := s.builder.Build(ctx, plan, q.Code)
	if err != nil {
		return nil, err
	}
	return named(points, convert), nil
}

func priorYear[T any](ctx context.Context, s *Service, kind facts.Kind, q Query, convert converter[T]) ([]T, error) {
	points, err := s.comparer.CompareLastYear(ctx, q.Range, q.Code, q.Mode, kind)
	if err != nil {
		return nil, err
	}
	return named(points, convert), nil
}

// named converts points, labelling them with the master the builder resolved.
func named[T any](points []series.Point, convert converter[T]) []T {
	if len(points) == 0 {
		return []T{}
	}
	var name *string
	if m := points[0].Master; m != nil {
		n := m.Name
		name = &n
	}
	return convert(points, name)
}

// overlay runs the current series and then, when asked, the prior-year one.
// A prior year without data is reported as unavailable, not as an error.
func overlay[T any](ctx context.Context, s *Service, kind facts.Kind, q Query, compare bool, convert converter[T]) (*ComparisonPair[T], error) {
	cur, err := current(ctx, s, kind, q, convert)
	if err != nil {
		return nil, err
	}
	pair := &ComparisonPair[T]{
		Current: cur,
		Status:  ComparisonNotRequested,
		Period:  periodOf(q.Range),
	}
	if !compare {
		return pair, nil
	}

	prev, err := priorYear(ctx, s, kind, q, convert)
	if err != nil {
		return nil, err
	}
	prior := periodOf(q.Range.PriorYear())
	pair.PriorYear = prev
	pair.PriorYearRange = &prior
	pair.Status = ComparisonAvailable
	if len(prev) == 0 {
		pair.Status = ComparisonUnavailable
	}
	return pair, nil
}

func breakdown[T any](ctx context.Context, s *Service, kind facts.Kind, r series.DateRange, mode series.Mode, convert converter[T]) ([]T, error) {
	plan, err := series.Resolve(kind, r, mode)
	if err != nil {
		return nil, err
	}
	all, err := s.builder.BuildBreakdown(ctx, plan)
	if err != nil {
		return nil, err
	}
	out := []T{}
	for _, ds := range all {
		name := ds.Master.Name
		out = append(out, convert(ds.Points, &name)...)
	}
	return out, nil
}
