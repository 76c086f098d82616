package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/oncotrace/oncotrace/internal/platform/auth"
)

// MeasureDefinition defines a reporting measure with its SQL query.
type MeasureDefinition struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SQL         string   `json:"sql"`
	Parameters  []string `json:"parameters"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
	Parameters  map[string]string        `json:"parameters,omitempty"`
}

// PredefinedMeasures is the list of available reporting measures. All of
// them read the fused tables, so results reflect the latest completed run.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "patient-summary-count",
		Name:        "Patient Summary Count",
		Description: "Total number of fused patient summaries and how many have progressed",
		SQL:         `SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN progressed THEN 1 ELSE 0 END), 0) AS progressed_count FROM patient_response_summary`,
		Parameters:  []string{},
	},
	{
		ID:          "response-classification-distribution",
		Name:        "Response Classification Distribution",
		Description: "Number of patients per overall response classification",
		SQL:         `SELECT overall_response_classification, COUNT(*) AS total FROM patient_response_summary GROUP BY overall_response_classification ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "event-volume-by-type",
		Name:        "Event Volume by Type",
		Description: "Number of fused clinical events grouped by event type",
		SQL:         `SELECT event_type, COUNT(*) AS total FROM clinical_event GROUP BY event_type ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "treatment-phase-distribution",
		Name:        "Treatment Phase Distribution",
		Description: "Number of fused clinical events grouped by treatment phase",
		SQL:         `SELECT treatment_phase, COUNT(*) AS total FROM clinical_event GROUP BY treatment_phase ORDER BY total DESC`,
		Parameters:  []string{},
	},
	{
		ID:          "exclusion-volume-by-stream",
		Name:        "Exclusions by Stream",
		Description: "Number of source rows excluded from fusion, grouped by stream",
		SQL:         `SELECT COALESCE(stream, 'unknown') AS stream, COUNT(*) AS total FROM fusion_audit WHERE kind = 'row_excluded' GROUP BY stream ORDER BY total DESC`,
		Parameters:  []string{},
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole(auth.RoleViewer, auth.RoleOperator))
	reportGroup.GET("/measures", h.ListMeasures)
	reportGroup.GET("/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL and returns the results.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measureID := c.Param("id")

	measure := FindMeasure(measureID)
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	// Collect parameters from query string
	params := map[string]string{}
	for _, p := range measure.Parameters {
		if v := c.QueryParam(p); v != "" {
			params[p] = v
		}
	}

	results, err := h.executeSQL(c.Request().Context(), measure.SQL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	report := MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		GeneratedAt: time.Now(),
		Results:     results,
		Parameters:  params,
	}

	return c.JSON(http.StatusOK, report)
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, nil
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
