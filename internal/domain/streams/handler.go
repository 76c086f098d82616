package streams

import (
	"net/http"

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
	readGroup.GET("/streams/diagnoses", h.ListDiagnoses)
	readGroup.GET("/streams/procedures", h.ListProcedures)
	readGroup.GET("/streams/chemo-episodes", h.ListChemoEpisodes)
	readGroup.GET("/streams/radiation-episodes", h.ListRadiationEpisodes)
	readGroup.GET("/streams/imaging", h.ListImagingStudies)
	readGroup.GET("/streams/visits", h.ListVisits)

	// Ingest endpoints – operator only
	writeGroup := api.Group("", auth.RequireRole(auth.RoleOperator))
	writeGroup.POST("/streams/diagnoses", h.CreateDiagnosis)
	writeGroup.POST("/streams/procedures", h.CreateProcedure)
	writeGroup.POST("/streams/chemo-episodes", h.CreateChemoEpisode)
	writeGroup.POST("/streams/radiation-episodes", h.CreateRadiationEpisode)
	writeGroup.POST("/streams/imaging", h.CreateImagingStudy)
	writeGroup.POST("/streams/visits", h.CreateVisit)
}

// -- Ingest Handlers --

func (h *Handler) CreateDiagnosis(c echo.Context) error {
	var d DiagnosisRecord
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDiagnosis(c.Request().Context(), &d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) CreateProcedure(c echo.Context) error {
	var p SurgicalProcedure
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateProcedure(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) CreateChemoEpisode(c echo.Context) error {
	var e ChemoEpisode
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateChemoEpisode(c.Request().Context(), &e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) CreateRadiationEpisode(c echo.Context) error {
	var e RadiationEpisode
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRadiationEpisode(c.Request().Context(), &e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) CreateImagingStudy(c echo.Context) error {
	var s ImagingStudy
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateImagingStudy(c.Request().Context(), &s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) CreateVisit(c echo.Context) error {
	var v VisitRecord
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateVisit(c.Request().Context(), &v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, v)
}

// -- List Handlers --

func (h *Handler) ListDiagnoses(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListDiagnoses(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListProcedures(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListProcedures(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListChemoEpisodes(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListChemoEpisodes(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListRadiationEpisodes(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListRadiationEpisodes(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListImagingStudies(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListImagingStudies(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListVisits(c echo.Context) error {
	pg := pagination.FromContext(c)
	list, total, err := h.svc.ListVisits(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(list, total, pg.Limit, pg.Offset))
}
