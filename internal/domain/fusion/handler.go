package fusion

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/oncotrace/oncotrace/internal/platform/auth"
	"github.com/oncotrace/oncotrace/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – viewer, operator
	readGroup := api.Group("", auth.RequireRole(auth.RoleViewer, auth.RoleOperator))
	readGroup.GET("/patients/:id/timeline", h.GetTimeline)
	readGroup.GET("/patients/:id/summary", h.GetSummary)
	readGroup.GET("/summaries", h.ListSummaries)
	readGroup.GET("/runs", h.ListRuns)
	readGroup.GET("/runs/:id/audit", h.ListRunAudit)

	// Run trigger – operator only
	opGroup := api.Group("", auth.RequireRole(auth.RoleOperator))
	opGroup.POST("/runs", h.TriggerRun)
}

func (h *Handler) GetTimeline(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	events, err := h.svc.Timeline(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"patient_id": patientID,
		"count":      len(events),
		"events":     events,
	})
}

func (h *Handler) GetSummary(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	sum, err := h.svc.Summary(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "summary not found")
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) ListSummaries(c echo.Context) error {
	pg := pagination.FromContext(c)
	sums, total, err := h.svc.Summaries(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(sums, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListRuns(c echo.Context) error {
	pg := pagination.FromContext(c)
	runs, total, err := h.svc.Runs(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(runs, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListRunAudit(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.Audit(c.Request().Context(), runID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

// TriggerRun executes a fusion batch synchronously and returns the
// completed run row. Large cohorts are better served by the fuse
// subcommand; this endpoint exists for operator tooling.
func (h *Handler) TriggerRun(c echo.Context) error {
	run, err := h.svc.RunFusion(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, run)
}
