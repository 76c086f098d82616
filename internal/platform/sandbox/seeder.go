// Package sandbox provides synthetic cohort generation for demo and
// development environments. It produces reproducible, clinically plausible
// patient journeys across all six source streams, suitable for integration
// testing, developer on-boarding, and UI demos.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oncotrace/oncotrace/internal/domain/streams"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume and shape of the generated cohort.
type SeedConfig struct {
	PatientCount      int   `json:"patientCount"`
	ImagingPerPatient int   `json:"imagingPerPatient"`
	VisitsPerPatient  int   `json:"visitsPerPatient"`
	// EdgeCaseEvery makes every Nth patient a degenerate journey: a biopsy
	// with no tumor-directed surgery plus a dateless source row, so the audit
	// trail has something to show. 0 disables edge cases.
	EdgeCaseEvery int   `json:"edgeCaseEvery"`
	Seed          int64 `json:"seed"`
}

// DefaultSeedConfig returns a SeedConfig with sensible demo defaults.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		PatientCount:      25,
		ImagingPerPatient: 4,
		VisitsPerPatient:  3,
		EdgeCaseEvery:     10,
	}
}

// ---------------------------------------------------------------------------
// SeedResult
// ---------------------------------------------------------------------------

// SeedResult summarizes the output of a seed operation.
type SeedResult struct {
	Patients          int           `json:"patients"`
	Diagnoses         int           `json:"diagnoses"`
	Procedures        int           `json:"procedures"`
	ChemoEpisodes     int           `json:"chemoEpisodes"`
	RadiationEpisodes int           `json:"radiationEpisodes"`
	ImagingStudies    int           `json:"imagingStudies"`
	Visits            int           `json:"visits"`
	TotalRows         int           `json:"totalRows"`
	Duration          time.Duration `json:"duration"`
}

func (r *SeedResult) add(j *streams.PatientStreams) {
	r.Patients++
	r.Diagnoses += len(j.Diagnoses)
	r.Procedures += len(j.Procedures)
	r.ChemoEpisodes += len(j.Chemo)
	r.RadiationEpisodes += len(j.Radiation)
	r.ImagingStudies += len(j.Imaging)
	r.Visits += len(j.Visits)
	r.TotalRows += j.RowCount()
}

// ---------------------------------------------------------------------------
// Text pools — clinical phrasing
// ---------------------------------------------------------------------------

// Trigger-bearing phrases below are drawn from the default classification
// vocabulary so a seeded cohort produces non-trivial response summaries.

var tumorDiagnoses = []string{
	"Glioblastoma, IDH-wildtype",
	"Astrocytoma, IDH-mutant, grade 3",
	"Astrocytoma, IDH-mutant, grade 2",
	"Oligodendroglioma, IDH-mutant, 1p/19q-codeleted",
	"Glioblastoma, NOS",
}

type markerDef struct {
	Component string
	Results   []string
}

var molecularMarkers = []markerDef{
	{Component: "MGMT promoter methylation", Results: []string{"Methylated", "Unmethylated"}},
	{Component: "IDH1 R132H", Results: []string{"Mutant", "Wildtype"}},
	{Component: "1p/19q codeletion", Results: []string{"Codeleted", "Intact"}},
}

var resectionProcedures = []string{
	"craniotomy for tumor resection",
	"awake craniotomy with cortical mapping",
	"stereotactic craniotomy for tumor debulking",
	"redo craniotomy for resection of tumor",
}

var resectionOutcomes = []string{
	"Gross total resection achieved.",
	"Complete resection with no residual enhancement.",
	"Near total resection of the enhancing mass.",
	"Subtotal resection; residual tumor along the medial margin.",
	"Partial resection of the enhancing component.",
}

var adjuvantDrugs = []string{"temozolomide", "lomustine"}

var adjuvantDoses = []string{"150 mg/m2 days 1-5", "200 mg/m2 days 1-5"}

var baselineConclusions = []string{
	"Large heterogeneously enhancing mass in the right temporal lobe.",
	"Infiltrative T2/FLAIR hyperintense lesion in the left frontal lobe.",
	"Rim-enhancing mass with surrounding vasogenic edema.",
}

var postOpConclusions = []string{
	"Expected postsurgical changes in the resection cavity.",
	"Thin linear enhancement along the cavity margin, likely postsurgical.",
	"Blood products within the resection cavity.",
}

var stableConclusions = []string{
	"Stable postsurgical cavity without interval enhancement.",
	"No significant change in the residual enhancement.",
	"No interval change compared with the prior study.",
	"Unchanged T2/FLAIR signal surrounding the cavity.",
}

var responseConclusions = []string{
	"Decreased size of the enhancing component.",
	"Interval regression of the enhancing nodule.",
	"Smaller residual enhancement along the cavity margin.",
	"No evidence of tumor.",
}

var progressionConclusions = []string{
	"Increased nodular enhancement along the posterior margin.",
	"New focus of enhancement in the corpus callosum.",
	"Interval growth of the residual mass.",
	"New enhancement concerning for recurrent tumor.",
}

var visitTypes = []string{
	"follow_up",
	"neuro_oncology",
	"radiation_oncology",
	"neurosurgery",
}

var visitDescriptions = []string{
	"Routine neuro-oncology follow-up.",
	"Post-treatment surveillance visit.",
	"Symptom review and neurological exam.",
}

// ---------------------------------------------------------------------------
// CohortGenerator
// ---------------------------------------------------------------------------

// CohortGenerator produces deterministic synthetic patient journeys.
type CohortGenerator struct {
	rng *rand.Rand
}

// NewCohortGenerator returns a generator seeded for reproducibility. If seed
// is 0 a time-based seed is chosen.
func NewCohortGenerator(seed int64) *CohortGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &CohortGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (g *CohortGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// between returns a random int in [min, max].
func (g *CohortGenerator) between(min, max int) int {
	return min + g.rng.Intn(max-min+1)
}

func (g *CohortGenerator) chance(percent int) bool {
	return g.rng.Intn(100) < percent
}

func (g *CohortGenerator) diagnosisDate() time.Time {
	y := 2021 + g.rng.Intn(3)
	m := time.Month(1 + g.rng.Intn(12))
	d := 1 + g.rng.Intn(28) // safe for all months
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }

// GenerateJourney produces one full treatment journey: diagnosis, resection,
// chemoradiation, adjuvant chemotherapy, then surveillance imaging and
// follow-up visits.
func (g *CohortGenerator) GenerateJourney(cfg SeedConfig) *streams.PatientStreams {
	patientID := uuid.New()
	j := &streams.PatientStreams{PatientID: patientID}

	dxDate := g.diagnosisDate()
	priority := 1
	j.Diagnoses = append(j.Diagnoses, &streams.DiagnosisRecord{
		PatientID:     patientID,
		DiagnosisDate: datePtr(dxDate),
		Name:          g.pick(tumorDiagnoses),
		Category:      strPtr("histopathology"),
		Priority:      &priority,
	})

	// Molecular pathology rows ride on the same report date.
	for _, marker := range molecularMarkers {
		if !g.chance(60) {
			continue
		}
		j.Diagnoses = append(j.Diagnoses, &streams.DiagnosisRecord{
			PatientID:     patientID,
			DiagnosisDate: datePtr(dxDate),
			Name:          marker.Component,
			Category:      strPtr("molecular_pathology"),
			Component:     strPtr(marker.Component),
			Result:        strPtr(marker.Results[g.rng.Intn(len(marker.Results))]),
		})
	}

	// Pre-operative baseline scan, then resection a few days after diagnosis.
	preOp := dxDate.AddDate(0, 0, g.between(0, 2))
	j.Imaging = append(j.Imaging, &streams.ImagingStudy{
		PatientID:  patientID,
		StudyDate:  datePtr(preOp),
		Modality:   "MR",
		Conclusion: strPtr(g.pick(baselineConclusions)),
	})

	surgeryDay := dxDate.AddDate(0, 0, g.between(3, 14))
	surgeryAt := time.Date(surgeryDay.Year(), surgeryDay.Month(), surgeryDay.Day(),
		g.between(7, 12), 15*g.rng.Intn(4), 0, 0, time.UTC)
	j.Procedures = append(j.Procedures, &streams.SurgicalProcedure{
		PatientID:         patientID,
		ProcedureDatetime: datePtr(surgeryAt),
		CodeText:          g.pick(resectionProcedures),
		SurgeryType:       strPtr("resection"),
		TumorDirected:     true,
		Outcome:           strPtr(g.pick(resectionOutcomes)),
	})

	j.Imaging = append(j.Imaging, &streams.ImagingStudy{
		PatientID:  patientID,
		StudyDate:  datePtr(surgeryDay.AddDate(0, 0, 1)),
		Modality:   "MR",
		Conclusion: strPtr(g.pick(postOpConclusions)),
	})

	// Concurrent chemoradiation starting a few weeks after surgery.
	radStart := surgeryDay.AddDate(0, 0, g.between(25, 35))
	radEnd := radStart.AddDate(0, 0, g.between(40, 44))
	doseGy := 60.0
	fields := 30
	if g.chance(30) {
		doseGy = 59.4
		fields = 33
	}
	j.Radiation = append(j.Radiation, &streams.RadiationEpisode{
		PatientID:  patientID,
		StartDate:  datePtr(radStart),
		EndDate:    datePtr(radEnd),
		DoseGy:     &doseGy,
		FieldCount: &fields,
	})
	j.Chemo = append(j.Chemo, &streams.ChemoEpisode{
		PatientID:    patientID,
		StartDate:    datePtr(radStart),
		EndDate:      datePtr(radEnd),
		DrugCategory: strPtr("temozolomide"),
		Dose:         strPtr("75 mg/m2 daily"),
	})

	// Adjuvant chemotherapy after a recovery gap.
	adjStart := radEnd.AddDate(0, 0, 28)
	adjEnd := adjStart.AddDate(0, 0, g.between(140, 170))
	drug := "temozolomide"
	if g.chance(15) {
		drug = g.pick(adjuvantDrugs)
	}
	j.Chemo = append(j.Chemo, &streams.ChemoEpisode{
		PatientID:    patientID,
		StartDate:    datePtr(adjStart),
		EndDate:      datePtr(adjEnd),
		DrugCategory: strPtr(drug),
		Dose:         strPtr(g.pick(adjuvantDoses)),
	})

	// Surveillance imaging. Later scans carry a growing progression chance so
	// a seeded cohort shows a mix of outcomes.
	scanDate := radEnd.AddDate(0, 0, 30)
	for i := 0; i < cfg.ImagingPerPatient; i++ {
		modality := "MR"
		if g.chance(10) {
			modality = "CT"
		}
		conclusion := g.pick(stableConclusions)
		switch {
		case i == cfg.ImagingPerPatient-1 && g.chance(30):
			conclusion = g.pick(progressionConclusions)
		case g.chance(20):
			conclusion = g.pick(responseConclusions)
		}
		j.Imaging = append(j.Imaging, &streams.ImagingStudy{
			PatientID:  patientID,
			StudyDate:  datePtr(scanDate),
			Modality:   modality,
			Conclusion: strPtr(conclusion),
		})
		scanDate = scanDate.AddDate(0, 0, g.between(60, 90))
	}

	// Follow-up visits spaced through treatment and surveillance.
	visitDate := surgeryDay.AddDate(0, 0, 14)
	for i := 0; i < cfg.VisitsPerPatient; i++ {
		j.Visits = append(j.Visits, &streams.VisitRecord{
			PatientID:   patientID,
			VisitDate:   datePtr(visitDate),
			VisitType:   strPtr(g.pick(visitTypes)),
			Status:      strPtr("completed"),
			Description: strPtr(g.pick(visitDescriptions)),
		})
		visitDate = visitDate.AddDate(0, 0, g.between(80, 100))
	}

	return j
}

// GenerateEdgeCaseJourney produces a degenerate journey: a biopsy-only
// patient with no tumor-directed surgery and one dateless diagnosis row.
// Fusing it yields a missing-anchor audit entry and an excluded-row entry.
func (g *CohortGenerator) GenerateEdgeCaseJourney() *streams.PatientStreams {
	patientID := uuid.New()
	j := &streams.PatientStreams{PatientID: patientID}

	dxDate := g.diagnosisDate()
	j.Diagnoses = append(j.Diagnoses, &streams.DiagnosisRecord{
		PatientID:     patientID,
		DiagnosisDate: datePtr(dxDate),
		Name:          g.pick(tumorDiagnoses),
		Category:      strPtr("histopathology"),
	})
	// Molecular row whose report date never made it into the extract.
	j.Diagnoses = append(j.Diagnoses, &streams.DiagnosisRecord{
		PatientID: patientID,
		Name:      "MGMT promoter methylation",
		Category:  strPtr("molecular_pathology"),
		Component: strPtr("MGMT promoter methylation"),
		Result:    strPtr("Unmethylated"),
	})

	biopsyDay := dxDate.AddDate(0, 0, g.between(1, 5))
	biopsyAt := time.Date(biopsyDay.Year(), biopsyDay.Month(), biopsyDay.Day(), 9, 0, 0, 0, time.UTC)
	j.Procedures = append(j.Procedures, &streams.SurgicalProcedure{
		PatientID:         patientID,
		ProcedureDatetime: datePtr(biopsyAt),
		CodeText:          "stereotactic needle biopsy",
		SurgeryType:       strPtr("biopsy"),
		TumorDirected:     false,
		Outcome:           strPtr("Diagnostic tissue obtained by biopsy."),
	})

	j.Imaging = append(j.Imaging, &streams.ImagingStudy{
		PatientID:  patientID,
		StudyDate:  datePtr(dxDate),
		Modality:   "MR",
		Conclusion: strPtr(g.pick(baselineConclusions)),
	})

	return j
}

// ---------------------------------------------------------------------------
// Seeder — persists a generated cohort through the streams service
// ---------------------------------------------------------------------------

// StreamWriter is the subset of the streams service the seeder writes
// through. Rows pass the same ingest validation as API writes.
type StreamWriter interface {
	CreateDiagnosis(ctx context.Context, d *streams.DiagnosisRecord) error
	CreateProcedure(ctx context.Context, p *streams.SurgicalProcedure) error
	CreateChemoEpisode(ctx context.Context, e *streams.ChemoEpisode) error
	CreateRadiationEpisode(ctx context.Context, e *streams.RadiationEpisode) error
	CreateImagingStudy(ctx context.Context, s *streams.ImagingStudy) error
	CreateVisit(ctx context.Context, v *streams.VisitRecord) error
}

// Seeder generates a cohort and writes it through the streams service.
type Seeder struct {
	writer    StreamWriter
	generator *CohortGenerator
	config    SeedConfig
	logger    zerolog.Logger
}

// NewSeeder creates a Seeder with the given config.
func NewSeeder(writer StreamWriter, config SeedConfig, logger zerolog.Logger) *Seeder {
	return &Seeder{
		writer:    writer,
		generator: NewCohortGenerator(config.Seed),
		config:    config,
		logger:    logger,
	}
}

// Seed generates and persists the full cohort.
func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{}

	for i := 0; i < s.config.PatientCount; i++ {
		var journey *streams.PatientStreams
		if s.config.EdgeCaseEvery > 0 && (i+1)%s.config.EdgeCaseEvery == 0 {
			journey = s.generator.GenerateEdgeCaseJourney()
		} else {
			journey = s.generator.GenerateJourney(s.config)
		}

		if err := s.persist(ctx, journey); err != nil {
			return nil, fmt.Errorf("seed patient %d/%d: %w", i+1, s.config.PatientCount, err)
		}
		result.add(journey)

		s.logger.Debug().
			Str("patient_id", journey.PatientID.String()).
			Int("rows", journey.RowCount()).
			Msg("seeded patient")
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (s *Seeder) persist(ctx context.Context, j *streams.PatientStreams) error {
	for _, d := range j.Diagnoses {
		if err := s.writer.CreateDiagnosis(ctx, d); err != nil {
			return fmt.Errorf("diagnosis: %w", err)
		}
	}
	for _, p := range j.Procedures {
		if err := s.writer.CreateProcedure(ctx, p); err != nil {
			return fmt.Errorf("procedure: %w", err)
		}
	}
	for _, e := range j.Chemo {
		if err := s.writer.CreateChemoEpisode(ctx, e); err != nil {
			return fmt.Errorf("chemo episode: %w", err)
		}
	}
	for _, e := range j.Radiation {
		if err := s.writer.CreateRadiationEpisode(ctx, e); err != nil {
			return fmt.Errorf("radiation episode: %w", err)
		}
	}
	for _, study := range j.Imaging {
		if err := s.writer.CreateImagingStudy(ctx, study); err != nil {
			return fmt.Errorf("imaging study: %w", err)
		}
	}
	for _, v := range j.Visits {
		if err := s.writer.CreateVisit(ctx, v); err != nil {
			return fmt.Errorf("visit: %w", err)
		}
	}
	return nil
}
