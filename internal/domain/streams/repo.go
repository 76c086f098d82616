package streams

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Diagnosis records
	CreateDiagnosis(ctx context.Context, d *DiagnosisRecord) error
	ListDiagnoses(ctx context.Context, limit, offset int) ([]*DiagnosisRecord, int, error)
	ListDiagnosesByPatient(ctx context.Context, patientID uuid.UUID) ([]*DiagnosisRecord, error)

	// Surgical procedures
	CreateProcedure(ctx context.Context, p *SurgicalProcedure) error
	ListProcedures(ctx context.Context, limit, offset int) ([]*SurgicalProcedure, int, error)
	ListProceduresByPatient(ctx context.Context, patientID uuid.UUID) ([]*SurgicalProcedure, error)

	// Chemo episodes
	CreateChemoEpisode(ctx context.Context, e *ChemoEpisode) error
	ListChemoEpisodes(ctx context.Context, limit, offset int) ([]*ChemoEpisode, int, error)
	ListChemoEpisodesByPatient(ctx context.Context, patientID uuid.UUID) ([]*ChemoEpisode, error)

	// Radiation episodes
	CreateRadiationEpisode(ctx context.Context, e *RadiationEpisode) error
	ListRadiationEpisodes(ctx context.Context, limit, offset int) ([]*RadiationEpisode, int, error)
	ListRadiationEpisodesByPatient(ctx context.Context, patientID uuid.UUID) ([]*RadiationEpisode, error)

	// Imaging studies
	CreateImagingStudy(ctx context.Context, s *ImagingStudy) error
	ListImagingStudies(ctx context.Context, limit, offset int) ([]*ImagingStudy, int, error)
	ListImagingStudiesByPatient(ctx context.Context, patientID uuid.UUID) ([]*ImagingStudy, error)

	// Visits
	CreateVisit(ctx context.Context, v *VisitRecord) error
	ListVisits(ctx context.Context, limit, offset int) ([]*VisitRecord, int, error)
	ListVisitsByPatient(ctx context.Context, patientID uuid.UUID) ([]*VisitRecord, error)

	// Cohort
	ListPatientIDs(ctx context.Context) ([]uuid.UUID, error)
}
