package dashboard

import (
	"github.com/hospital/dashboard/internal/domain/facts"
	"github.com/hospital/dashboard/internal/domain/series"
)

// Query selects one series.
type Query struct {
	Range series.DateRange
	Mode  series.Mode
	Code  *facts.Code
}

// OutpatientRecord is one outpatient bucket. KaCode and KaName are null for
// the hospital-wide series.
type OutpatientRecord struct {
	Date            string  `json:"date"`
	KaCode          *int    `json:"kaCode"`
	KaName          *string `json:"kaName"`
	FirstVisitCount int64   `json:"firstVisitCount"`
	RevisitCount    int64   `json:"revisitCount"`
	TotalCount      int64   `json:"totalCount"`
}

// InpatientRecord is one inpatient bucket. BedCount and OccupancyRate are
// only set for a single ward with a known capacity.
type InpatientRecord struct {
	Date              string   `json:"date"`
	WardCode          *int     `json:"wardCode"`
	WardName          *string  `json:"wardName"`
	PatientCount      int64    `json:"patientCount"`
	NewAdmissionCount int64    `json:"newAdmissionCount"`
	DischargeCount    int64    `json:"dischargeCount"`
	TransferInCount   int64    `json:"transferInCount"`
	TransferOutCount  int64    `json:"transferOutCount"`
	BedCount          *int     `json:"bedCount"`
	OccupancyRate     *float64 `json:"occupancyRate"`
}

// BillingRecord is one billing bucket.
type BillingRecord struct {
	Date        string  `json:"date"`
	BillingCode *string `json:"billingCode"`
	BillingName *string `json:"billingName"`
	Count       int64   `json:"count"`
}

// ComparisonStatus tells the client whether a prior-year overlay exists.
type ComparisonStatus string

const (
	ComparisonNotRequested ComparisonStatus = "not_requested"
	ComparisonAvailable    ComparisonStatus = "available"
	ComparisonUnavailable  ComparisonStatus = "unavailable"
)

// Period is a date range in response form.
type Period struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func periodOf(r series.DateRange) Period {
	return Period{StartDate: r.Start.Format(series.DateLayout), EndDate: r.End.Format(series.DateLayout)}
}

// ComparisonPair carries the current series and, when requested, the series
// for the same range one year earlier. PriorYear is null when comparison was
// not requested and empty when the prior year has no data.
type ComparisonPair[T any] struct {
	Current        []T              `json:"current"`
	PriorYear      []T              `json:"priorYear"`
	Status         ComparisonStatus `json:"comparisonStatus"`
	Period         Period           `json:"period"`
	PriorYearRange *Period          `json:"priorYearPeriod,omitempty"`
}

// -- Record conversion --

func outpatientRecords(points []series.Point, name *string) []OutpatientRecord {
	out := make([]OutpatientRecord, 0, len(points))
	for _, p := range points {
		out = append(out, OutpatientRecord{
			Date:            p.Bucket,
			KaCode:          intCode(p.Dimension),
			KaName:          name,
			FirstVisitCount: p.Measures[facts.FirstVisitCount],
			RevisitCount:    p.Measures[facts.RevisitCount],
			TotalCount:      int64(p.Derived[series.DerivedTotalCount]),
		})
	}
	return out
}

func inpatientRecords(points []series.Point, name *string) []InpatientRecord {
	out := make([]InpatientRecord, 0, len(points))
	for _, p := range points {
		rec := InpatientRecord{
			Date:              p.Bucket,
			WardCode:          intCode(p.Dimension),
			WardName:          name,
			PatientCount:      p.Measures[facts.PatientCount],
			NewAdmissionCount: p.Measures[facts.NewAdmissionCount],
			DischargeCount:    p.Measures[facts.DischargeCount],
			TransferInCount:   p.Measures[facts.TransferInCount],
			TransferOutCount:  p.Measures[facts.TransferOutCount],
		}
		if beds, ok := p.Derived[series.DerivedBedCount]; ok {
			n := int(beds)
			rec.BedCount = &n
		}
		if rate, ok := p.Derived[series.DerivedOccupancyRate]; ok {
			r := rate
			rec.OccupancyRate = &r
		}
		out = append(out, rec)
	}
	return out
}

func billingRecords(points []series.Point, name *string) []BillingRecord {
	out := make([]BillingRecord, 0, len(points))
	for _, p := range points {
		rec := BillingRecord{
			Date:        p.Bucket,
			BillingName: name,
			Count:       p.Measures[facts.Count],
		}
		if p.Dimension != nil {
			code := p.Dimension.String()
			rec.BillingCode = &code
		}
		out = append(out, rec)
	}
	return out
}

func intCode(c *facts.Code) *int {
	if c == nil {
		return nil
	}
	n, ok := c.Int()
	if !ok {
		return nil
	}
	return &n
}
