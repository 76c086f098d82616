package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oncotrace/oncotrace/internal/domain/classify"
	"github.com/oncotrace/oncotrace/internal/domain/streams"
)

// ---------------------------------------------------------------------------
// Mock stream writer
// ---------------------------------------------------------------------------

type mockWriter struct {
	diagnoses  []*streams.DiagnosisRecord
	procedures []*streams.SurgicalProcedure
	chemo      []*streams.ChemoEpisode
	radiation  []*streams.RadiationEpisode
	imaging    []*streams.ImagingStudy
	visits     []*streams.VisitRecord
	failOn     string // record type name that returns an error
}

func (m *mockWriter) CreateDiagnosis(_ context.Context, d *streams.DiagnosisRecord) error {
	if m.failOn == "diagnosis" {
		return errors.New("boom")
	}
	m.diagnoses = append(m.diagnoses, d)
	return nil
}

func (m *mockWriter) CreateProcedure(_ context.Context, p *streams.SurgicalProcedure) error {
	if m.failOn == "procedure" {
		return errors.New("boom")
	}
	m.procedures = append(m.procedures, p)
	return nil
}

func (m *mockWriter) CreateChemoEpisode(_ context.Context, e *streams.ChemoEpisode) error {
	if m.failOn == "chemo" {
		return errors.New("boom")
	}
	m.chemo = append(m.chemo, e)
	return nil
}

func (m *mockWriter) CreateRadiationEpisode(_ context.Context, e *streams.RadiationEpisode) error {
	if m.failOn == "radiation" {
		return errors.New("boom")
	}
	m.radiation = append(m.radiation, e)
	return nil
}

func (m *mockWriter) CreateImagingStudy(_ context.Context, s *streams.ImagingStudy) error {
	if m.failOn == "imaging" {
		return errors.New("boom")
	}
	m.imaging = append(m.imaging, s)
	return nil
}

func (m *mockWriter) CreateVisit(_ context.Context, v *streams.VisitRecord) error {
	if m.failOn == "visit" {
		return errors.New("boom")
	}
	m.visits = append(m.visits, v)
	return nil
}

// ---------------------------------------------------------------------------
// CohortGenerator tests
// ---------------------------------------------------------------------------

func TestDefaultSeedConfig(t *testing.T) {
	cfg := DefaultSeedConfig()
	if cfg.PatientCount != 25 {
		t.Errorf("expected 25 patients, got %d", cfg.PatientCount)
	}
	if cfg.ImagingPerPatient != 4 {
		t.Errorf("expected 4 imaging studies per patient, got %d", cfg.ImagingPerPatient)
	}
	if cfg.EdgeCaseEvery != 10 {
		t.Errorf("expected edge case every 10 patients, got %d", cfg.EdgeCaseEvery)
	}
}

func TestCohortGenerator_Deterministic(t *testing.T) {
	cfg := DefaultSeedConfig()
	a := NewCohortGenerator(42).GenerateJourney(cfg)
	b := NewCohortGenerator(42).GenerateJourney(cfg)

	// Row IDs are fresh UUIDs, but the clinical content must reproduce.
	if a.RowCount() != b.RowCount() {
		t.Fatalf("row counts differ: %d vs %d", a.RowCount(), b.RowCount())
	}
	if a.Diagnoses[0].Name != b.Diagnoses[0].Name {
		t.Errorf("diagnosis names differ: %q vs %q", a.Diagnoses[0].Name, b.Diagnoses[0].Name)
	}
	if !a.Procedures[0].ProcedureDatetime.Equal(*b.Procedures[0].ProcedureDatetime) {
		t.Errorf("surgery datetimes differ: %v vs %v",
			a.Procedures[0].ProcedureDatetime, b.Procedures[0].ProcedureDatetime)
	}
	if *a.Imaging[0].Conclusion != *b.Imaging[0].Conclusion {
		t.Errorf("baseline conclusions differ: %q vs %q",
			*a.Imaging[0].Conclusion, *b.Imaging[0].Conclusion)
	}
}

func TestCohortGenerator_JourneyShape(t *testing.T) {
	cfg := SeedConfig{ImagingPerPatient: 4, VisitsPerPatient: 3}
	j := NewCohortGenerator(7).GenerateJourney(cfg)

	if len(j.Diagnoses) < 1 {
		t.Fatal("expected at least one diagnosis row")
	}
	if len(j.Procedures) != 1 {
		t.Fatalf("expected exactly one procedure, got %d", len(j.Procedures))
	}
	if !j.Procedures[0].TumorDirected {
		t.Error("expected a tumor-directed resection")
	}
	if len(j.Radiation) != 1 {
		t.Fatalf("expected one radiation episode, got %d", len(j.Radiation))
	}
	if len(j.Chemo) != 2 {
		t.Fatalf("expected concurrent and adjuvant chemo episodes, got %d", len(j.Chemo))
	}
	// Baseline scan + post-op scan + surveillance scans.
	if len(j.Imaging) != 2+cfg.ImagingPerPatient {
		t.Errorf("expected %d imaging studies, got %d", 2+cfg.ImagingPerPatient, len(j.Imaging))
	}
	if len(j.Visits) != cfg.VisitsPerPatient {
		t.Errorf("expected %d visits, got %d", cfg.VisitsPerPatient, len(j.Visits))
	}

	for _, pid := range []struct {
		name string
		got  bool
	}{
		{"diagnosis", j.Diagnoses[0].PatientID == j.PatientID},
		{"procedure", j.Procedures[0].PatientID == j.PatientID},
		{"chemo", j.Chemo[0].PatientID == j.PatientID},
		{"radiation", j.Radiation[0].PatientID == j.PatientID},
		{"imaging", j.Imaging[0].PatientID == j.PatientID},
		{"visit", j.Visits[0].PatientID == j.PatientID},
	} {
		if !pid.got {
			t.Errorf("%s row carries a foreign patient id", pid.name)
		}
	}
}

func TestCohortGenerator_JourneyChronology(t *testing.T) {
	cfg := SeedConfig{ImagingPerPatient: 3, VisitsPerPatient: 2}
	j := NewCohortGenerator(99).GenerateJourney(cfg)

	dx := *j.Diagnoses[0].DiagnosisDate
	surgery := *j.Procedures[0].ProcedureDatetime
	if !surgery.After(dx) {
		t.Errorf("surgery %v not after diagnosis %v", surgery, dx)
	}

	rad := j.Radiation[0]
	if !rad.StartDate.After(surgery) {
		t.Errorf("radiation start %v not after surgery %v", rad.StartDate, surgery)
	}
	if !rad.EndDate.After(*rad.StartDate) {
		t.Errorf("radiation end %v not after start %v", rad.EndDate, rad.StartDate)
	}

	concurrent, adjuvant := j.Chemo[0], j.Chemo[1]
	if !concurrent.StartDate.Equal(*rad.StartDate) {
		t.Errorf("concurrent chemo start %v should match radiation start %v",
			concurrent.StartDate, rad.StartDate)
	}
	if !adjuvant.StartDate.After(*concurrent.EndDate) {
		t.Errorf("adjuvant chemo start %v not after concurrent end %v",
			adjuvant.StartDate, concurrent.EndDate)
	}

	// Surveillance scans advance monotonically.
	surveillance := j.Imaging[2:]
	for i := 1; i < len(surveillance); i++ {
		if !surveillance[i].StudyDate.After(*surveillance[i-1].StudyDate) {
			t.Errorf("scan %d date %v not after scan %d date %v",
				i, surveillance[i].StudyDate, i-1, surveillance[i-1].StudyDate)
		}
	}
}

func TestCohortGenerator_EdgeCaseJourney(t *testing.T) {
	j := NewCohortGenerator(5).GenerateEdgeCaseJourney()

	for _, p := range j.Procedures {
		if p.TumorDirected {
			t.Error("edge case journey must not carry a tumor-directed surgery")
		}
	}

	var dateless int
	for _, d := range j.Diagnoses {
		if d.DiagnosisDate == nil {
			dateless++
		}
	}
	if dateless != 1 {
		t.Errorf("expected exactly one dateless diagnosis row, got %d", dateless)
	}

	if len(j.Imaging) == 0 {
		t.Error("expected at least one imaging study")
	}
}

// Pool phrasing must keep firing the default trigger vocabulary, otherwise a
// seeded cohort degrades into all-insufficient-data summaries.
func TestCohortGenerator_PoolsMatchVocabulary(t *testing.T) {
	c := classify.NewDefault()

	for _, text := range stableConclusions {
		flags := c.ClassifyImaging(text)
		if flags.ProgressionFlag != nil {
			t.Errorf("stable phrase %q reads as progression %q", text, *flags.ProgressionFlag)
		}
		if flags.ResponseFlag == nil || *flags.ResponseFlag != classify.StableDisease {
			t.Errorf("stable phrase %q did not classify as stable", text)
		}
	}
	for _, text := range responseConclusions {
		flags := c.ClassifyImaging(text)
		if flags.ProgressionFlag != nil || flags.ResponseFlag == nil {
			t.Errorf("response phrase %q did not classify as response", text)
		}
	}
	for _, text := range progressionConclusions {
		flags := c.ClassifyImaging(text)
		if flags.ProgressionFlag == nil {
			t.Errorf("progression phrase %q did not classify as progression", text)
		}
	}
	for _, text := range baselineConclusions {
		flags := c.ClassifyImaging(text)
		if flags.ProgressionFlag != nil || flags.ResponseFlag != nil {
			t.Errorf("baseline phrase %q should not classify, got %+v", text, flags)
		}
	}
	for _, text := range resectionOutcomes {
		extent := c.ClassifyResection(text)
		if extent == nil || *extent == classify.ExtentUnspecified {
			t.Errorf("outcome phrase %q did not yield a resection extent", text)
		}
	}
}

// ---------------------------------------------------------------------------
// Seeder tests
// ---------------------------------------------------------------------------

func TestSeeder_PersistsCohort(t *testing.T) {
	w := &mockWriter{}
	cfg := SeedConfig{
		PatientCount:      8,
		ImagingPerPatient: 2,
		VisitsPerPatient:  1,
		EdgeCaseEvery:     4,
		Seed:              42,
	}
	seeder := NewSeeder(w, cfg, zerolog.Nop())

	result, err := seeder.Seed(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Patients != 8 {
		t.Errorf("expected 8 patients, got %d", result.Patients)
	}
	if result.Diagnoses != len(w.diagnoses) {
		t.Errorf("diagnosis count mismatch: result %d, written %d", result.Diagnoses, len(w.diagnoses))
	}
	if result.ImagingStudies != len(w.imaging) {
		t.Errorf("imaging count mismatch: result %d, written %d", result.ImagingStudies, len(w.imaging))
	}
	wantTotal := result.Diagnoses + result.Procedures + result.ChemoEpisodes +
		result.RadiationEpisodes + result.ImagingStudies + result.Visits
	if result.TotalRows != wantTotal {
		t.Errorf("total rows %d does not equal sum of parts %d", result.TotalRows, wantTotal)
	}
}

func TestSeeder_EdgeCaseCadence(t *testing.T) {
	w := &mockWriter{}
	cfg := SeedConfig{
		PatientCount:      6,
		ImagingPerPatient: 1,
		VisitsPerPatient:  1,
		EdgeCaseEvery:     3,
		Seed:              42,
	}
	seeder := NewSeeder(w, cfg, zerolog.Nop())

	if _, err := seeder.Seed(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var biopsyOnly int
	for _, p := range w.procedures {
		if !p.TumorDirected {
			biopsyOnly++
		}
	}
	if biopsyOnly != 2 {
		t.Errorf("expected 2 biopsy-only patients out of 6, got %d", biopsyOnly)
	}
}

func TestSeeder_ZeroEdgeCases(t *testing.T) {
	w := &mockWriter{}
	cfg := SeedConfig{
		PatientCount:      5,
		ImagingPerPatient: 1,
		VisitsPerPatient:  1,
		EdgeCaseEvery:     0,
		Seed:              42,
	}
	seeder := NewSeeder(w, cfg, zerolog.Nop())

	if _, err := seeder.Seed(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, p := range w.procedures {
		if !p.TumorDirected {
			t.Fatal("expected no biopsy-only patients with edge cases disabled")
		}
	}
}

func TestSeeder_WriterErrorAborts(t *testing.T) {
	w := &mockWriter{failOn: "procedure"}
	cfg := SeedConfig{PatientCount: 3, ImagingPerPatient: 1, VisitsPerPatient: 1, Seed: 42}
	seeder := NewSeeder(w, cfg, zerolog.Nop())

	_, err := seeder.Seed(context.Background())
	if err == nil {
		t.Fatal("expected error when the writer fails")
	}
	if !strings.Contains(err.Error(), "procedure") {
		t.Errorf("expected error to name the failing stream, got %v", err)
	}
}

func TestSeeder_RowsPassIngestValidation(t *testing.T) {
	// Run generated rows through the real service so the generator cannot
	// drift into producing rows the ingest API would reject.
	repo := &seedRepo{}
	svc := streams.NewService(repo)
	cfg := SeedConfig{
		PatientCount:      4,
		ImagingPerPatient: 2,
		VisitsPerPatient:  1,
		EdgeCaseEvery:     2,
		Seed:              7,
	}
	seeder := NewSeeder(svc, cfg, zerolog.Nop())

	result, err := seeder.Seed(context.Background())
	if err != nil {
		t.Fatalf("generated rows failed ingest validation: %v", err)
	}
	if repo.rows != result.TotalRows {
		t.Errorf("repository saw %d rows, result claims %d", repo.rows, result.TotalRows)
	}
}

// seedRepo counts writes. The embedded interface leaves the read methods
// unimplemented; the seeder never calls them.
type seedRepo struct {
	streams.Repository
	rows int
}

func (r *seedRepo) CreateDiagnosis(_ context.Context, d *streams.DiagnosisRecord) error {
	d.ID = uuid.New()
	r.rows++
	return nil
}

func (r *seedRepo) CreateProcedure(_ context.Context, p *streams.SurgicalProcedure) error {
	p.ID = uuid.New()
	r.rows++
	return nil
}

func (r *seedRepo) CreateChemoEpisode(_ context.Context, e *streams.ChemoEpisode) error {
	e.ID = uuid.New()
	r.rows++
	return nil
}

func (r *seedRepo) CreateRadiationEpisode(_ context.Context, e *streams.RadiationEpisode) error {
	e.ID = uuid.New()
	r.rows++
	return nil
}

func (r *seedRepo) CreateImagingStudy(_ context.Context, s *streams.ImagingStudy) error {
	s.ID = uuid.New()
	r.rows++
	return nil
}

func (r *seedRepo) CreateVisit(_ context.Context, v *streams.VisitRecord) error {
	v.ID = uuid.New()
	r.rows++
	return nil
}
