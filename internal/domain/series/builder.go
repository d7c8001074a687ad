package series

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/hospital/dashboard/internal/domain/facts"
)

// Derived field names. Derived values are computed per request and never stored.
const (
	DerivedTotalCount    = "total_count"
	DerivedBedCount      = "bed_count"
	DerivedOccupancyRate = "occupancy_rate"
)

// Point is one bucket of a series. Master is the filter's master record and
// is nil for hospital-wide series.
type Point struct {
	Bucket    string                  `json:"bucket"`
	Dimension *facts.Code             `json:"dimension"`
	Master    *facts.MasterRecord     `json:"-"`
	Measures  map[facts.Measure]int64 `json:"measures"`
	Derived   map[string]float64      `json:"derived,omitempty"`
}

// DimensionSeries is the series of a single master record.
type DimensionSeries struct {
	Master facts.MasterRecord `json:"master"`
	Points []Point            `json:"points"`
}

// Recorder receives one observation per built series.
type Recorder interface {
	ObserveBuild(kind, mode string, rows int, elapsed time.Duration, err error)
}

// Builder executes plans against the fact and master stores.
type Builder struct {
	facts    facts.FactStore
	masters  facts.MasterStore
	logger   zerolog.Logger
	recorder Recorder
}

func NewBuilder(fs facts.FactStore, ms facts.MasterStore, logger zerolog.Logger) *Builder {
	return &Builder{facts: fs, masters: ms, logger: logger}
}

// SetRecorder installs r to observe every Build call. A nil r disables it.
func (b *Builder) SetRecorder(r Recorder) {
	b.recorder = r
}

// Build runs a plan. With a filter the series is scoped to that dimension;
// without one every dimension is summed per day. An unknown filter code
// yields an empty series.
func (b *Builder) Build(ctx context.Context, plan *Plan, filter *facts.Code) ([]Point, error) {
	start := time.Now()
	points, rows, err := b.build(ctx, plan, filter)
	if b.recorder != nil {
		b.recorder.ObserveBuild(string(plan.Kind), string(plan.Mode), rows, time.Since(start), err)
	}
	return points, err
}

func (b *Builder) build(ctx context.Context, plan *Plan, filter *facts.Code) ([]Point, int, error) {
	var master *facts.MasterRecord
	if filter != nil {
		rec, err := b.masters.LookupByCode(ctx, plan.Kind.Master(), *filter)
		if err != nil {
			return nil, 0, b.storeError(plan, "master lookup", err)
		}
		if rec == nil {
			b.logger.Debug().
				Err(ErrUnknownDimension).
				Str("kind", string(plan.Kind)).
				Str("code", filter.String()).
				Msg("filter code has no master record, returning empty series")
			return []Point{}, 0, nil
		}
		master = rec
	}

	rows, err := b.facts.Select(ctx, plan.Kind, plan.Range.Start, plan.Range.End, filter)
	if err != nil {
		return nil, 0, b.storeError(plan, "select facts", err)
	}

	points := aggregate(plan, rows)
	for i := range points {
		if filter != nil {
			code := *filter
			points[i].Dimension = &code
			points[i].Master = master
		}
		derive(plan.Kind, &points[i], master)
	}
	return points, len(rows), nil
}

// BuildBreakdown builds one filtered series per active master record, in seq order.
func (b *Builder) BuildBreakdown(ctx context.Context, plan *Plan) ([]DimensionSeries, error) {
	records, err := b.masters.LookupActive(ctx, plan.Kind.Master())
	if err != nil {
		return nil, b.storeError(plan, "list masters", err)
	}

	out := make([]DimensionSeries, 0, len(records))
	for _, rec := range records {
		code := rec.Code
		points, err := b.Build(ctx, plan, &code)
		if err != nil {
			return nil, err
		}
		out = append(out, DimensionSeries{Master: rec, Points: points})
	}
	return out, nil
}

func (b *Builder) storeError(plan *Plan, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	b.logger.Error().Err(err).
		Str("kind", string(plan.Kind)).
		Str("range", plan.Range.String()).
		Msg(op + " failed")
	if errors.Is(err, facts.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", facts.ErrStoreUnavailable, op, err)
}

// bucketAcc accumulates per-day totals for one bucket.
type bucketAcc struct {
	days map[time.Time]map[facts.Measure]int64
}

// aggregate sums rows across dimensions per day, then collapses the days of
// each bucket with the plan's per-measure combination.
func aggregate(plan *Plan, rows []facts.DailyFact) []Point {
	buckets := make(map[string]*bucketAcc)
	for _, row := range rows {
		key := plan.BucketKey(row.Date)
		acc, ok := buckets[key]
		if !ok {
			acc = &bucketAcc{days: make(map[time.Time]map[facts.Measure]int64)}
			buckets[key] = acc
		}
		day, ok := acc.days[row.Date]
		if !ok {
			day = make(map[facts.Measure]int64, len(plan.Measures))
			acc.days[row.Date] = day
		}
		for _, m := range plan.Measures {
			day[m] += row.Measures[m]
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]Point, 0, len(keys))
	for _, k := range keys {
		acc := buckets[k]
		p := Point{
			Bucket:   k,
			Measures: make(map[facts.Measure]int64, len(plan.Measures)),
			Derived:  map[string]float64{},
		}
		for _, m := range plan.Measures {
			var total int64
			for _, day := range acc.days {
				total += day[m]
			}
			if plan.Combine[m] == Average {
				// Integer division truncates, matching CAST(AVG(x) AS INTEGER).
				total /= int64(len(acc.days))
			}
			p.Measures[m] = total
		}
		points = append(points, p)
	}
	return points
}

// derive fills the computed fields of a point.
func derive(kind facts.Kind, p *Point, master *facts.MasterRecord) {
	switch kind {
	case facts.Outpatient:
		p.Derived[DerivedTotalCount] = float64(p.Measures[facts.FirstVisitCount] + p.Measures[facts.RevisitCount])
	case facts.Inpatient:
		// Capacity only applies to a single ward.
		if master == nil || master.Capacity == nil || *master.Capacity <= 0 {
			return
		}
		capacity := float64(*master.Capacity)
		p.Derived[DerivedBedCount] = capacity
		p.Derived[DerivedOccupancyRate] = float64(p.Measures[facts.PatientCount]) * 100 / capacity
	}
}
