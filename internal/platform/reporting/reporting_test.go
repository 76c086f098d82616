package reporting

import (
	"strings"
	"testing"
)

func TestPredefinedMeasures(t *testing.T) {
	if len(PredefinedMeasures) != 5 {
		t.Fatalf("expected 5 predefined measures, got %d", len(PredefinedMeasures))
	}

	expectedIDs := []string{
		"patient-summary-count",
		"response-classification-distribution",
		"event-volume-by-type",
		"treatment-phase-distribution",
		"exclusion-volume-by-stream",
	}

	for i, expectedID := range expectedIDs {
		if PredefinedMeasures[i].ID != expectedID {
			t.Errorf("expected measure[%d].ID = %s, got %s", i, expectedID, PredefinedMeasures[i].ID)
		}
	}
}

func TestPredefinedMeasures_HaveSQL(t *testing.T) {
	for _, m := range PredefinedMeasures {
		if m.SQL == "" {
			t.Errorf("measure %s has empty SQL", m.ID)
		}
		if m.Name == "" {
			t.Errorf("measure %s has empty name", m.ID)
		}
		if m.Description == "" {
			t.Errorf("measure %s has empty description", m.ID)
		}
	}
}

func TestPredefinedMeasures_ReadFusedTablesOnly(t *testing.T) {
	// Reporting never touches the source stream tables.
	for _, m := range PredefinedMeasures {
		sql := strings.ToLower(m.SQL)
		for _, table := range []string{"diagnosis_record", "surgical_procedure", "chemo_episode", "radiation_episode", "imaging_study", "visit_record"} {
			if strings.Contains(sql, table) {
				t.Errorf("measure %s reads source table %s", m.ID, table)
			}
		}
	}
}

func TestFindMeasure_Exists(t *testing.T) {
	m := FindMeasure("patient-summary-count")
	if m == nil {
		t.Fatal("expected to find patient-summary-count measure")
	}
	if m.Name != "Patient Summary Count" {
		t.Errorf("expected 'Patient Summary Count', got %s", m.Name)
	}
}

func TestFindMeasure_NotFound(t *testing.T) {
	m := FindMeasure("nonexistent")
	if m != nil {
		t.Error("expected nil for nonexistent measure")
	}
}

func TestFindMeasure_AllPredefined(t *testing.T) {
	for _, def := range PredefinedMeasures {
		found := FindMeasure(def.ID)
		if found == nil {
			t.Errorf("expected to find measure %s", def.ID)
		}
		if found != nil && found.ID != def.ID {
			t.Errorf("ID mismatch: expected %s, got %s", def.ID, found.ID)
		}
	}
}

func TestMeasureReport_Structure(t *testing.T) {
	report := MeasureReport{
		MeasureID:   "patient-summary-count",
		MeasureName: "Patient Summary Count",
		Results: []map[string]interface{}{
			{"total": 120, "progressed_count": 34},
		},
	}

	if report.MeasureID != "patient-summary-count" {
		t.Errorf("unexpected MeasureID: %s", report.MeasureID)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	if report.Results[0]["progressed_count"] != 34 {
		t.Errorf("unexpected progressed_count: %v", report.Results[0]["progressed_count"])
	}
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(nil)
	if h == nil {
		t.Fatal("expected non-nil handler")
	}
}

func TestClassificationDistributionMeasure(t *testing.T) {
	m := FindMeasure("response-classification-distribution")
	if m == nil {
		t.Fatal("expected response-classification-distribution measure")
	}
	if m.Name != "Response Classification Distribution" {
		t.Errorf("unexpected name: %s", m.Name)
	}
	if len(m.Parameters) != 0 {
		t.Errorf("expected 0 parameters, got %d", len(m.Parameters))
	}
}

func TestExclusionMeasure_FiltersAuditKind(t *testing.T) {
	m := FindMeasure("exclusion-volume-by-stream")
	if m == nil {
		t.Fatal("expected exclusion-volume-by-stream measure")
	}
	if !strings.Contains(m.SQL, "row_excluded") {
		t.Error("expected the exclusion measure to filter on row_excluded")
	}
}
