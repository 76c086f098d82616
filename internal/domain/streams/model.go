package streams

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stream names shared with the fusion layer for provenance and audit rows.
const (
	StreamDiagnosis = "diagnosis"
	StreamSurgery   = "surgery"
	StreamChemo     = "chemo"
	StreamRadiation = "radiation"
	StreamImaging   = "imaging"
	StreamVisit     = "visit"
)

// DiagnosisRecord maps to the diagnosis_record table. One row per reported
// diagnosis component; molecular pathology rows carry component/result pairs.
type DiagnosisRecord struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	DiagnosisDate *time.Time `db:"diagnosis_date" json:"diagnosis_date,omitempty"`
	Name          string     `db:"name" json:"name"`
	Category      *string    `db:"category" json:"category,omitempty"`
	Component     *string    `db:"component" json:"component,omitempty"`
	Result        *string    `db:"result" json:"result,omitempty"`
	Priority      *int       `db:"priority" json:"priority,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// SurgicalProcedure maps to the surgical_procedure table.
type SurgicalProcedure struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProcedureDatetime *time.Time `db:"procedure_datetime" json:"procedure_datetime,omitempty"`
	CodeText          string     `db:"code_text" json:"code_text"`
	SurgeryType       *string    `db:"surgery_type" json:"surgery_type,omitempty"`
	TumorDirected     bool       `db:"tumor_directed" json:"tumor_directed"`
	Outcome           *string    `db:"outcome" json:"outcome,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// ProcedureDate returns the calendar date of the procedure at UTC midnight,
// or nil when the source row carries no timestamp.
func (p *SurgicalProcedure) ProcedureDate() *time.Time {
	if p.ProcedureDatetime == nil {
		return nil
	}
	y, m, d := p.ProcedureDatetime.UTC().Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &date
}

// ChemoEpisode maps to the chemo_episode table. An episode is a contiguous
// drug course with a start and, usually, an end.
type ChemoEpisode struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	StartDate    *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	DrugCategory *string    `db:"drug_category" json:"drug_category,omitempty"`
	Dose         *string    `db:"dose" json:"dose,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Summary renders a short human-readable description of the course.
func (c *ChemoEpisode) Summary() string {
	parts := []string{}
	if c.DrugCategory != nil && *c.DrugCategory != "" {
		parts = append(parts, *c.DrugCategory)
	}
	if c.Dose != nil && *c.Dose != "" {
		parts = append(parts, *c.Dose)
	}
	if len(parts) == 0 {
		return "chemotherapy course"
	}
	return strings.Join(parts, " ")
}

// RadiationEpisode maps to the radiation_episode table.
type RadiationEpisode struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	StartDate  *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate    *time.Time `db:"end_date" json:"end_date,omitempty"`
	DoseGy     *float64   `db:"dose_gy" json:"dose_gy,omitempty"`
	FieldCount *int       `db:"field_count" json:"field_count,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Summary renders a short human-readable description of the course.
func (r *RadiationEpisode) Summary() string {
	parts := []string{}
	if r.DoseGy != nil {
		parts = append(parts, fmt.Sprintf("%g Gy", *r.DoseGy))
	}
	if r.FieldCount != nil {
		parts = append(parts, fmt.Sprintf("%d fields", *r.FieldCount))
	}
	if len(parts) == 0 {
		return "radiation course"
	}
	return strings.Join(parts, ", ")
}

// ImagingStudy maps to the imaging_study table.
type ImagingStudy struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	StudyDate  *time.Time `db:"study_date" json:"study_date,omitempty"`
	Modality   string     `db:"modality" json:"modality"`
	Conclusion *string    `db:"conclusion" json:"conclusion,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// VisitRecord maps to the visit_record table.
type VisitRecord struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	VisitDate   *time.Time `db:"visit_date" json:"visit_date,omitempty"`
	VisitType   *string    `db:"visit_type" json:"visit_type,omitempty"`
	Status      *string    `db:"status" json:"status,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// PatientStreams bundles every source row for one patient. The fusion
// pipeline consumes one bundle at a time; bundles for different patients are
// independent.
type PatientStreams struct {
	PatientID  uuid.UUID            `json:"patient_id"`
	Diagnoses  []*DiagnosisRecord   `json:"diagnoses"`
	Procedures []*SurgicalProcedure `json:"procedures"`
	Chemo      []*ChemoEpisode      `json:"chemo_episodes"`
	Radiation  []*RadiationEpisode  `json:"radiation_episodes"`
	Imaging    []*ImagingStudy      `json:"imaging_studies"`
	Visits     []*VisitRecord       `json:"visits"`
}

// RowCount returns the total number of source rows in the bundle.
func (ps *PatientStreams) RowCount() int {
	return len(ps.Diagnoses) + len(ps.Procedures) + len(ps.Chemo) +
		len(ps.Radiation) + len(ps.Imaging) + len(ps.Visits)
}
