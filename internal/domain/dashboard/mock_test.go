package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/hospital/dashboard/internal/domain/facts"
	"github.com/hospital/dashboard/internal/domain/series"
)

// -- Mock Stores --

type mockFactStore struct {
	rows []facts.DailyFact
	kind map[int]facts.Kind
	err  error
}

func (m *mockFactStore) add(kind facts.Kind, date string, code facts.Code, measures map[facts.Measure]int64) {
	d, err := time.Parse(series.DateLayout, date)
	if err != nil {
		panic(err)
	}
	if m.kind == nil {
		m.kind = make(map[int]facts.Kind)
	}
	m.kind[len(m.rows)] = kind
	m.rows = append(m.rows, facts.DailyFact{Date: d, Dimension: code, Measures: measures})
}

func (m *mockFactStore) Select(_ context.Context, kind facts.Kind, from, to time.Time, filter *facts.Code) ([]facts.DailyFact, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []facts.DailyFact
	for i, r := range m.rows {
		if m.kind[i] != kind || r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		if filter != nil && r.Dimension != *filter {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type mockMasterStore struct {
	records []facts.MasterRecord
	err     error
	lookups int
}

func (m *mockMasterStore) LookupActive(_ context.Context, kind facts.MasterKind) ([]facts.MasterRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []facts.MasterRecord
	for _, r := range m.records {
		if r.Kind == kind && r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (m *mockMasterStore) LookupByCode(_ context.Context, kind facts.MasterKind, code facts.Code) (*facts.MasterRecord, error) {
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.records {
		if m.records[i].Kind == kind && m.records[i].Code == code {
			rec := m.records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func intPtr(n int) *int { return &n }

// newTestService seeds two departments, two wards and one billing category
// with April 2024 data and a single prior-year outpatient day.
func newTestService() (*Service, *mockFactStore, *mockMasterStore) {
	fs := &mockFactStore{}
	ms := &mockMasterStore{records: []facts.MasterRecord{
		{Kind: facts.Departments, Code: facts.IntCode(1), Name: "Internal Medicine", Seq: 1, Active: true},
		{Kind: facts.Departments, Code: facts.IntCode(2), Name: "Surgery", Seq: 2, Active: true},
		{Kind: facts.Wards, Code: facts.IntCode(101), Name: "Ward 1", Seq: 1, Active: true, Capacity: intPtr(50)},
		{Kind: facts.Wards, Code: facts.IntCode(201), Name: "ICU", Seq: 4, Active: true, Capacity: intPtr(10)},
		{Kind: facts.BillingCategories, Code: "B001", Name: "Emergency", Seq: 1, Active: true},
	}}

	fs.add(facts.Outpatient, "2023-04-01", facts.IntCode(1), map[facts.Measure]int64{facts.FirstVisitCount: 10, facts.RevisitCount: 30})
	fs.add(facts.Outpatient, "2024-04-01", facts.IntCode(1), map[facts.Measure]int64{facts.FirstVisitCount: 15, facts.RevisitCount: 45})
	fs.add(facts.Outpatient, "2024-04-01", facts.IntCode(2), map[facts.Measure]int64{facts.FirstVisitCount: 8, facts.RevisitCount: 25})
	fs.add(facts.Outpatient, "2024-04-02", facts.IntCode(1), map[facts.Measure]int64{facts.FirstVisitCount: 12, facts.RevisitCount: 40})

	fs.add(facts.Inpatient, "2024-04-01", facts.IntCode(201), map[facts.Measure]int64{
		facts.PatientCount: 8, facts.NewAdmissionCount: 2, facts.DischargeCount: 1,
	})
	fs.add(facts.Inpatient, "2024-04-01", facts.IntCode(101), map[facts.Measure]int64{
		facts.PatientCount: 40, facts.NewAdmissionCount: 5, facts.DischargeCount: 4,
	})

	fs.add(facts.Billing, "2024-04-01", "B001", map[facts.Measure]int64{facts.Count: 5})

	b := series.NewBuilder(fs, ms, zerolog.Nop())
	return NewService(b, ms), fs, ms
}

func aprilQuery(mode series.Mode, code *facts.Code) Query {
	r, err := series.ParseDateRange("2024-04-01", "2024-04-30")
	if err != nil {
		panic(err)
	}
	return Query{Range: r, Mode: mode, Code: code}
}

func codePtr(c facts.Code) *facts.Code { return &c }
