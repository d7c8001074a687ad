package facts

import (
	"fmt"
	"strconv"
	"time"
)

// Kind identifies one of the daily fact tables.
type Kind string

const (
	Outpatient Kind = "outpatient"
	Inpatient  Kind = "inpatient"
	Billing    Kind = "billing"
)

// Kinds lists every dataset kind in display order.
var Kinds = []Kind{Outpatient, Inpatient, Billing}

// ParseKind validates a dataset kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown dataset kind %q", s)
}

// Measure is a column of a fact table. The name doubles as the column name.
type Measure string

const (
	FirstVisitCount   Measure = "first_visit_count"
	RevisitCount      Measure = "revisit_count"
	PatientCount      Measure = "patient_count"
	NewAdmissionCount Measure = "new_admission_count"
	DischargeCount    Measure = "discharge_count"
	TransferInCount   Measure = "transfer_in_count"
	TransferOutCount  Measure = "transfer_out_count"
	Count             Measure = "count"
)

// IsGauge reports whether the measure is a snapshot quantity. Gauges are
// averaged over time instead of summed.
func (m Measure) IsGauge() bool {
	return m == PatientCount
}

// MasterKind identifies a master-data table.
type MasterKind string

const (
	Departments       MasterKind = "department"
	Wards             MasterKind = "ward"
	BillingCategories MasterKind = "billing_category"
)

// Code is a dimension code. Departments and wards use integer codes, billing
// categories use strings such as "B001"; both are carried in string form.
type Code string

// IntCode builds a Code from an integer master code.
func IntCode(n int) Code {
	return Code(strconv.Itoa(n))
}

// Int returns the integer value of the code, if it has one.
func (c Code) Int() (int, bool) {
	n, err := strconv.Atoi(string(c))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c Code) String() string { return string(c) }

// DailyFact is one stored row: a single dimension on a single date.
type DailyFact struct {
	Date      time.Time
	Dimension Code
	Measures  map[Measure]int64
}

// MasterRecord is a department, ward or billing category row.
type MasterRecord struct {
	Kind     MasterKind `json:"kind"`
	Code     Code       `json:"code"`
	Name     string     `json:"name"`
	Seq      int        `json:"seq"`
	Active   bool       `json:"active"`
	Capacity *int       `json:"capacity,omitempty"`
}

// tableSpec describes how a dataset kind is laid out in the store.
type tableSpec struct {
	Table     string
	Dimension string
	IntCodes  bool
	Measures  []Measure
	Master    MasterKind
}

var tables = map[Kind]tableSpec{
	Outpatient: {
		Table:     "outpatient_daily",
		Dimension: "ka_code",
		IntCodes:  true,
		Measures:  []Measure{FirstVisitCount, RevisitCount},
		Master:    Departments,
	},
	Inpatient: {
		Table:     "inpatient_daily",
		Dimension: "ward_code",
		IntCodes:  true,
		Measures: []Measure{
			PatientCount, NewAdmissionCount, DischargeCount, TransferInCount, TransferOutCount,
		},
		Master: Wards,
	},
	Billing: {
		Table:     "billing_daily",
		Dimension: "billing_code",
		Measures:  []Measure{Count},
		Master:    BillingCategories,
	},
}

// Measures returns the measures recorded for a dataset kind.
func (k Kind) Measures() []Measure {
	return tables[k].Measures
}

// Master returns the master-data table that describes the kind's dimension.
func (k Kind) Master() MasterKind {
	return tables[k].Master
}

// IntCodes reports whether the kind's dimension codes are integers.
func (k Kind) IntCodes() bool {
	return tables[k].IntCodes
}

type masterSpec struct {
	Table    string
	Code     string
	Name     string
	Capacity string
}

var masters = map[MasterKind]masterSpec{
	Departments:       {Table: "ka_master", Code: "ka_code", Name: "ka_name"},
	Wards:             {Table: "ward_master", Code: "ward_code", Name: "ward_name", Capacity: "bed_count"},
	BillingCategories: {Table: "billing_master", Code: "billing_code", Name: "billing_name"},
}
