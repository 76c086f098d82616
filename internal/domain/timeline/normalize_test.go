package timeline

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oncotrace/oncotrace/internal/domain/classify"
	"github.com/oncotrace/oncotrace/internal/domain/streams"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(classify.NewDefault(), zerolog.Nop())
}

func findEvent(events []*ClinicalEvent, eventType string, sourceID uuid.UUID) *ClinicalEvent {
	for _, ev := range events {
		if ev.EventType == eventType && ev.SourceID == sourceID {
			return ev
		}
	}
	return nil
}

func TestNormalize_DiagnosisMapping(t *testing.T) {
	diagID := uuid.New()
	bundle := &streams.PatientStreams{
		PatientID: testPatient,
		Diagnoses: []*streams.DiagnosisRecord{{
			ID:            diagID,
			PatientID:     testPatient,
			DiagnosisDate: datePtr(2024, 1, 8),
			Name:          "Glioblastoma, IDH-wildtype",
			Category:      strPtr("molecular pathology"),
			Component:     strPtr("MGMT methylation"),
			Result:        strPtr("methylated"),
		}},
	}

	out := newTestNormalizer().Normalize(bundle)
	if len(out.Events) != 1 || len(out.Excluded) != 0 {
		t.Fatalf("expected 1 event and 0 exclusions, got %d/%d", len(out.Events), len(out.Excluded))
	}
	ev := out.Events[0]
	if ev.EventType != EventDiagnosis {
		t.Errorf("expected diagnosis event, got %s", ev.EventType)
	}
	if ev.Description != "Glioblastoma, IDH-wildtype" {
		t.Errorf("unexpected description %q", ev.Description)
	}
	if ev.EventSubtype == nil || *ev.EventSubtype != "MGMT methylation" {
		t.Errorf("expected subtype from component, got %v", ev.EventSubtype)
	}
	if ev.FreeText == nil || *ev.FreeText != "methylated" {
		t.Errorf("expected free text from result, got %v", ev.FreeText)
	}
	if ev.Category == nil || *ev.Category != "molecular pathology" {
		t.Errorf("expected category passthrough, got %v", ev.Category)
	}
	if ev.SourceStream != streams.StreamDiagnosis {
		t.Errorf("unexpected source stream %s", ev.SourceStream)
	}
}

func TestNormalize_SurgeryDerivesResectionExtent(t *testing.T) {
	procID := uuid.New()
	bundle := &streams.PatientStreams{
		PatientID: testPatient,
		Procedures: []*streams.SurgicalProcedure{{
			ID:                procID,
			PatientID:         testPatient,
			ProcedureDatetime: dtPtr(2024, 2, 1, 8, 30),
			CodeText:          "Craniotomy with excision of tumor",
			SurgeryType:       strPtr("resection"),
			TumorDirected:     true,
			Outcome:           strPtr("Gross total resection achieved, no residual enhancement"),
		}},
	}

	out := newTestNormalizer().Normalize(bundle)
	ev := findEvent(out.Events, EventSurgery, procID)
	if ev == nil {
		t.Fatal("expected a surgery event")
	}
	if ev.Category == nil || *ev.Category != classify.ExtentGTR {
		t.Errorf("expected GTR category, got %v", ev.Category)
	}
	if ev.EventDatetime == nil {
		t.Error("expected surgery event to keep its datetime")
	}
	if !ev.EventDate.Equal(date(2024, 2, 1)) {
		t.Errorf("expected event date 2024-02-01, got %s", ev.EventDate)
	}
}

func TestNormalize_ClosedEpisodeEmitsStartAndEnd(t *testing.T) {
	epID := uuid.New()
	bundle := &streams.PatientStreams{
		PatientID: testPatient,
		Chemo: []*streams.ChemoEpisode{{
			ID:           epID,
			PatientID:    testPatient,
			StartDate:    datePtr(2024, 3, 1),
			EndDate:      datePtr(2024, 4, 12),
			DrugCategory: strPtr("temozolomide"),
			Dose:         strPtr("75 mg/m2"),
		}},
	}

	out := newTestNormalizer().Normalize(bundle)
	if len(out.Events) != 2 {
		t.Fatalf("expected start and end events, got %d", len(out.Events))
	}
	start := findEvent(out.Events, EventChemoStart, epID)
	end := findEvent(out.Events, EventChemoEnd, epID)
	if start == nil || end == nil {
		t.Fatal("expected both chemo_start and chemo_end")
	}
	if start.EpisodeID == nil || *start.EpisodeID != epID {
		t.Error("expected start event to reference its episode")
	}
	if start.Description != "temozolomide 75 mg/m2" {
		t.Errorf("unexpected episode summary %q", start.Description)
	}

	if len(out.Episodes) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(out.Episodes))
	}
	ep := out.Episodes[0]
	if ep.DurationDays == nil || *ep.DurationDays != 42 {
		t.Errorf("expected 42 day duration, got %v", ep.DurationDays)
	}
}

func TestNormalize_OpenEpisodeEmitsStartOnly(t *testing.T) {
	epID := uuid.New()
	bundle := &streams.PatientStreams{
		PatientID: testPatient,
		Radiation: []*streams.RadiationEpisode{{
			ID:        epID,
			PatientID: testPatient,
			StartDate: datePtr(2024, 3, 10),
		}},
	}

	out := newTestNormalizer().Normalize(bundle)
	if len(out.Events) != 1 {
		t.Fatalf("expected only a start event, got %d", len(out.Events))
	}
	if out.Events[0].EventType != EventRadiationStart {
		t.Errorf("expected radiation_start, got %s", out.Events[0].EventType)
	}
	if out.Episodes[0].EndDate != nil || out.Episodes[0].DurationDays != nil {
		t.Error("open episode must not carry an end date or duration")
	}
}

func TestNormalize_ImagingFlagBecomesCategory(t *testing.T) {
	imgID := uuid.New()
	bundle := &streams.PatientStreams{
		PatientID: testPatient,
		Imaging: []*streams.ImagingStudy{{
			ID:         imgID,
			PatientID:  testPatient,
			StudyDate:  datePtr(2024, 6, 20),
			Modality:   "MR",
			Conclusion: strPtr("Increased enhancement along the resection cavity margin"),
		}},
	}

	out := newTestNormalizer().Normalize(bundle)
	ev := findEvent(out.Events, EventImaging, imgID)
	if ev == nil {
		t.Fatal("expected an imaging event")
	}
	if ev.Category == nil || *ev.Category != classify.ProgressionSuspected {
		t.Errorf("expected progression_suspected category, got %v", ev.Category)
	}
	if ev.Description != "MR imaging" {
		t.Errorf("unexpected description %q", ev.Description)
	}
	if ev.EventSubtype == nil || *ev.EventSubtype != "MR" {
		t.Errorf("expected modality subtype, got %v", ev.EventSubtype)
	}
}

func TestNormalize_VisitDescriptionFallback(t *testing.T) {
	bundle := &streams.PatientStreams{
		PatientID: testPatient,
		Visits: []*streams.VisitRecord{
			{ID: uuid.New(), PatientID: testPatient, VisitDate: datePtr(2024, 5, 1), Description: strPtr("neuro-oncology follow-up")},
			{ID: uuid.New(), PatientID: testPatient, VisitDate: datePtr(2024, 5, 8), VisitType: strPtr("telehealth")},
			{ID: uuid.New(), PatientID: testPatient, VisitDate: datePtr(2024, 5, 15)},
		},
	}

	out := newTestNormalizer().Normalize(bundle)
	if len(out.Events) != 3 {
		t.Fatalf("expected 3 visit events, got %d", len(out.Events))
	}
	want := []string{"neuro-oncology follow-up", "telehealth", "visit"}
	for i, ev := range out.Events {
		if ev.Description != want[i] {
			t.Errorf("visit %d: expected description %q, got %q", i, want[i], ev.Description)
		}
	}
}

func TestNormalize_ExcludesRowsWithoutDates(t *testing.T) {
	diagID := uuid.New()
	chemoID := uuid.New()
	bundle := &streams.PatientStreams{
		PatientID: testPatient,
		Diagnoses: []*streams.DiagnosisRecord{
			{ID: diagID, PatientID: testPatient, Name: "Astrocytoma"},
			{ID: uuid.New(), PatientID: testPatient, DiagnosisDate: datePtr(2024, 1, 3), Name: "Astrocytoma"},
		},
		Chemo: []*streams.ChemoEpisode{
			{ID: chemoID, PatientID: testPatient, EndDate: datePtr(2024, 4, 1)},
		},
	}

	out := newTestNormalizer().Normalize(bundle)
	if len(out.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(out.Events))
	}
	if len(out.Excluded) != 2 {
		t.Fatalf("expected 2 exclusions, got %d", len(out.Excluded))
	}
	for _, ex := range out.Excluded {
		switch ex.SourceID {
		case diagID:
			if ex.Stream != streams.StreamDiagnosis || ex.Reason != "missing diagnosis date" {
				t.Errorf("unexpected exclusion record %+v", ex)
			}
		case chemoID:
			if ex.Stream != streams.StreamChemo || ex.Reason != "missing start date" {
				t.Errorf("unexpected exclusion record %+v", ex)
			}
		default:
			t.Errorf("unexpected excluded source %s", ex.SourceID)
		}
	}
}
