package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hospital/dashboard/internal/domain/facts"
)

func newTestHandler() (*Handler, *echo.Echo, *mockFactStore) {
	svc, fs, _ := newTestService()
	return NewHandler(svc), echo.New(), fs
}

func doGet(e *echo.Echo, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func expectStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	if he.Code != want {
		t.Errorf("expected %d, got %d", want, he.Code)
	}
}

func TestHandler_GetOutpatient(t *testing.T) {
	h, e, _ := newTestHandler()
	c, rec := doGet(e, "/?start=2024-04-01&end=2024-04-30&aggregation=daily")

	if err := h.GetOutpatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if string(body["priorYear"]) != "null" {
		t.Errorf("expected priorYear null, got %s", body["priorYear"])
	}
	if string(body["comparisonStatus"]) != `"not_requested"` {
		t.Errorf("expected not_requested, got %s", body["comparisonStatus"])
	}
	var current []map[string]interface{}
	if err := json.Unmarshal(body["current"], &current); err != nil {
		t.Fatalf("invalid current: %v", err)
	}
	if len(current) != 2 {
		t.Fatalf("expected 2 records, got %d", len(current))
	}
	if current[0]["totalCount"] != float64(93) {
		t.Errorf("expected totalCount 93, got %v", current[0]["totalCount"])
	}
	if _, ok := current[0]["kaCode"]; !ok {
		t.Error("expected kaCode key present")
	}
}

func TestHandler_GetOutpatient_Compare(t *testing.T) {
	h, e, _ := newTestHandler()
	c, rec := doGet(e, "/?start=2024-04-01&end=2024-04-30&ka_code=1&compare=true")

	if err := h.GetOutpatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var pair ComparisonPair[OutpatientRecord]
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if pair.Status != ComparisonAvailable {
		t.Errorf("expected available, got %s", pair.Status)
	}
	if len(pair.PriorYear) != 1 || pair.PriorYear[0].Date != "2023-04-01" {
		t.Errorf("unexpected prior year %+v", pair.PriorYear)
	}
}

func TestHandler_GetOutpatient_InvalidRange(t *testing.T) {
	h, e, _ := newTestHandler()
	c, _ := doGet(e, "/?start=2024-05-01&end=2024-04-01")
	expectStatus(t, h.GetOutpatient(c), http.StatusBadRequest)
}

func TestHandler_GetOutpatient_MissingDates(t *testing.T) {
	h, e, _ := newTestHandler()
	c, _ := doGet(e, "/")
	expectStatus(t, h.GetOutpatient(c), http.StatusBadRequest)
}

func TestHandler_GetOutpatient_InvalidMode(t *testing.T) {
	h, e, _ := newTestHandler()
	c, _ := doGet(e, "/?start=2024-04-01&end=2024-04-30&aggregation=weekly")
	expectStatus(t, h.GetOutpatient(c), http.StatusBadRequest)
}

func TestHandler_GetOutpatient_InvalidCode(t *testing.T) {
	h, e, _ := newTestHandler()
	c, _ := doGet(e, "/?start=2024-04-01&end=2024-04-30&ka_code=abc")
	expectStatus(t, h.GetOutpatient(c), http.StatusBadRequest)
}

func TestHandler_GetOutpatient_InvalidCompare(t *testing.T) {
	h, e, _ := newTestHandler()
	c, _ := doGet(e, "/?start=2024-04-01&end=2024-04-30&compare=maybe")
	expectStatus(t, h.GetOutpatient(c), http.StatusBadRequest)
}

func TestHandler_GetInpatient(t *testing.T) {
	h, e, _ := newTestHandler()
	c, rec := doGet(e, "/?start=2024-04-01&end=2024-04-30&ward_code=201")

	if err := h.GetInpatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var pair ComparisonPair[InpatientRecord]
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(pair.Current) != 1 || pair.Current[0].OccupancyRate == nil || *pair.Current[0].OccupancyRate != 80.0 {
		t.Errorf("unexpected current %+v", pair.Current)
	}
}

func TestHandler_GetBilling(t *testing.T) {
	h, e, _ := newTestHandler()
	c, rec := doGet(e, "/?start=2024-04-01&end=2024-04-30&billing_code=B001&aggregation=monthly")

	if err := h.GetBilling(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var pair ComparisonPair[BillingRecord]
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(pair.Current) != 1 || pair.Current[0].Date != "2024-04" || pair.Current[0].Count != 5 {
		t.Errorf("unexpected current %+v", pair.Current)
	}
}

func TestHandler_GetBillingComparison_Empty(t *testing.T) {
	h, e, _ := newTestHandler()
	c, rec := doGet(e, "/?start=2024-04-01&end=2024-04-30&billing_code=B001")

	if err := h.GetBillingComparison(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("expected empty array, got %q", body)
	}
}

func TestHandler_GetOutpatientComparison(t *testing.T) {
	h, e, _ := newTestHandler()
	c, rec := doGet(e, "/?start=2024-04-01&end=2024-04-30")

	if err := h.GetOutpatientComparison(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var records []OutpatientRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 1 || records[0].TotalCount != 40 {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestHandler_GetInpatientBreakdown(t *testing.T) {
	h, e, _ := newTestHandler()
	c, rec := doGet(e, "/?start=2024-04-01&end=2024-04-30&aggregation=monthly")

	if err := h.GetInpatientBreakdown(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var records []InpatientRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 ward records, got %d", len(records))
	}
}

func TestHandler_ListWards(t *testing.T) {
	h, e, _ := newTestHandler()
	c, rec := doGet(e, "/")

	if err := h.ListWards(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var records []facts.MasterRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 2 || records[0].Code != facts.IntCode(101) {
		t.Errorf("unexpected wards %+v", records)
	}
}

func TestHandler_StoreUnavailable(t *testing.T) {
	h, e, fs := newTestHandler()
	fs.err = fmt.Errorf("%w: select: broken pipe", facts.ErrStoreUnavailable)
	c, _ := doGet(e, "/?start=2024-04-01&end=2024-04-30")
	expectStatus(t, h.GetOutpatient(c), http.StatusServiceUnavailable)
}

func TestHandler_Deadline(t *testing.T) {
	h, e, fs := newTestHandler()
	fs.err = fmt.Errorf("%w: select: %w", facts.ErrStoreUnavailable, context.DeadlineExceeded)
	c, _ := doGet(e, "/?start=2024-04-01&end=2024-04-30")
	expectStatus(t, h.GetInpatient(c), http.StatusGatewayTimeout)
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e, _ := newTestHandler()
	h.RegisterRoutes(e.Group("/api/v1/dashboard"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/masters/departments", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/billing?start=bad&end=2024-04-30", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
