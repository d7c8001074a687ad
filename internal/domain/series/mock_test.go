package series

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hospital/dashboard/internal/domain/facts"
)

// -- Mock Stores --

type mockFactStore struct {
	rows  map[facts.Kind][]facts.DailyFact
	err   error
	calls int
}

func newMockFactStore() *mockFactStore {
	return &mockFactStore{rows: make(map[facts.Kind][]facts.DailyFact)}
}

func (m *mockFactStore) add(kind facts.Kind, date string, code facts.Code, measures map[facts.Measure]int64) {
	m.rows[kind] = append(m.rows[kind], facts.DailyFact{Date: mustDate(date), Dimension: code, Measures: measures})
}

func (m *mockFactStore) Select(_ context.Context, kind facts.Kind, from, to time.Time, filter *facts.Code) ([]facts.DailyFact, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	var out []facts.DailyFact
	for _, r := range m.rows[kind] {
		if r.Date.Before(from) || r.Date.After(to) {
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

func mustDate(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(fmt.Sprintf("bad test date %q: %v", s, err))
	}
	return t
}

func mustRange(start, end string) DateRange {
	r, err := ParseDateRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

func intPtr(n int) *int { return &n }

func newMasters() *mockMasterStore {
	return &mockMasterStore{records: []facts.MasterRecord{
		{Kind: facts.Departments, Code: facts.IntCode(1), Name: "Internal Medicine", Seq: 1, Active: true},
		{Kind: facts.Departments, Code: facts.IntCode(2), Name: "Surgery", Seq: 2, Active: true},
		{Kind: facts.Departments, Code: facts.IntCode(8), Name: "Obstetrics", Seq: 8, Active: false},
		{Kind: facts.Wards, Code: facts.IntCode(101), Name: "Ward 1", Seq: 1, Active: true, Capacity: intPtr(50)},
		{Kind: facts.Wards, Code: facts.IntCode(201), Name: "ICU", Seq: 4, Active: true, Capacity: intPtr(10)},
		{Kind: facts.Wards, Code: facts.IntCode(301), Name: "Day Ward", Seq: 6, Active: true},
		{Kind: facts.BillingCategories, Code: "B001", Name: "Emergency", Seq: 1, Active: true},
	}}
}

func outpatient(first, revisit int64) map[facts.Measure]int64 {
	return map[facts.Measure]int64{facts.FirstVisitCount: first, facts.RevisitCount: revisit}
}

func inpatient(patients int64) map[facts.Measure]int64 {
	return map[facts.Measure]int64{
		facts.PatientCount:      patients,
		facts.NewAdmissionCount: 1,
		facts.DischargeCount:    1,
		facts.TransferInCount:   0,
		facts.TransferOutCount:  0,
	}
}

func billing(count int64) map[facts.Measure]int64 {
	return map[facts.Measure]int64{facts.Count: count}
}

type observation struct {
	kind, mode string
	rows       int
	err        error
}

type mockRecorder struct {
	observed []observation
}

func (m *mockRecorder) ObserveBuild(kind, mode string, rows int, _ time.Duration, err error) {
	m.observed = append(m.observed, observation{kind: kind, mode: mode, rows: rows, err: err})
}
