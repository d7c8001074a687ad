package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hospital/dashboard/internal/domain/facts"
	"github.com/hospital/dashboard/internal/domain/series"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the dashboard endpoints on g (normally /api/v1/dashboard).
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/outpatient", h.GetOutpatient)
	g.GET("/outpatient/comparison", h.GetOutpatientComparison)
	g.GET("/outpatient/breakdown", h.GetOutpatientBreakdown)

	g.GET("/inpatient", h.GetInpatient)
	g.GET("/inpatient/comparison", h.GetInpatientComparison)
	g.GET("/inpatient/breakdown", h.GetInpatientBreakdown)

	g.GET("/billing", h.GetBilling)
	g.GET("/billing/comparison", h.GetBillingComparison)

	g.GET("/masters/departments", h.ListDepartments)
	g.GET("/masters/wards", h.ListWards)
	g.GET("/masters/billing", h.ListBillingCategories)
}

// -- Outpatient Handlers --

func (h *Handler) GetOutpatient(c echo.Context) error {
	q, compare, err := parseQuery(c, facts.Outpatient)
	if err != nil {
		return err
	}
	pair, err := h.svc.OutpatientOverlay(c.Request().Context(), q, compare)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handler) GetOutpatientComparison(c echo.Context) error {
	q, _, err := parseQuery(c, facts.Outpatient)
	if err != nil {
		return err
	}
	records, err := h.svc.OutpatientComparison(c.Request().Context(), q)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) GetOutpatientBreakdown(c echo.Context) error {
	q, _, err := parseQuery(c, facts.Outpatient)
	if err != nil {
		return err
	}
	records, err := h.svc.OutpatientBreakdown(c.Request().Context(), q.Range, q.Mode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

// -- Inpatient Handlers --

func (h *Handler) GetInpatient(c echo.Context) error {
	q, compare, err := parseQuery(c, facts.Inpatient)
	if err != nil {
		return err
	}
	pair, err := h.svc.InpatientOverlay(c.Request().Context(), q, compare)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handler) GetInpatientComparison(c echo.Context) error {
	q, _, err := parseQuery(c, facts.Inpatient)
	if err != nil {
		return err
	}
	records, err := h.svc.InpatientComparison(c.Request().Context(), q)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) GetInpatientBreakdown(c echo.Context) error {
	q, _, err := parseQuery(c, facts.Inpatient)
	if err != nil {
		return err
	}
	records, err := h.svc.InpatientBreakdown(c.Request().Context(), q.Range, q.Mode)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

// -- Billing Handlers --

func (h *Handler) GetBilling(c echo.Context) error {
	q, compare, err := parseQuery(c, facts.Billing)
	if err != nil {
		return err
	}
	pair, err := h.svc.BillingOverlay(c.Request().Context(), q, compare)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *Handler) GetBillingComparison(c echo.Context) error {
	q, _, err := parseQuery(c, facts.Billing)
	if err != nil {
		return err
	}
	records, err := h.svc.BillingComparison(c.Request().Context(), q)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

// -- Master Handlers --

func (h *Handler) ListDepartments(c echo.Context) error {
	records, err := h.svc.Departments(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) ListWards(c echo.Context) error {
	records, err := h.svc.Wards(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) ListBillingCategories(c echo.Context) error {
	records, err := h.svc.BillingCategories(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

// -- Helpers --

// codeParams names the filter query parameter of each dataset kind.
var codeParams = map[facts.Kind]string{
	facts.Outpatient: "ka_code",
	facts.Inpatient:  "ward_code",
	facts.Billing:    "billing_code",
}

// parseQuery reads start, end, aggregation, the kind's code filter and compare.
func parseQuery(c echo.Context, kind facts.Kind) (Query, bool, error) {
	r, err := series.ParseDateRange(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return Query{}, false, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	mode, err := series.ParseMode(c.QueryParam("aggregation"))
	if err != nil {
		return Query{}, false, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	q := Query{Range: r, Mode: mode}
	param := codeParams[kind]
	if raw := strings.TrimSpace(c.QueryParam(param)); raw != "" {
		code := facts.Code(raw)
		if kind.IntCodes() {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Query{}, false, echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
			}
			code = facts.IntCode(n)
		}
		q.Code = &code
	}

	var compare bool
	if raw := c.QueryParam("compare"); raw != "" {
		compare, err = strconv.ParseBool(raw)
		if err != nil {
			return Query{}, false, echo.NewHTTPError(http.StatusBadRequest, "invalid compare")
		}
	}
	return q, compare, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, series.ErrInvalidRange), errors.Is(err, series.ErrInvalidMode):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, facts.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "data store unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
