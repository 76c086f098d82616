package streams

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Known imaging modalities. Source extracts occasionally carry vendor
// spellings; anything outside this set is rejected at ingest.
var validModalities = map[string]bool{
	"MR":  true,
	"CT":  true,
	"PET": true,
	"US":  true,
	"XR":  true,
}

func (s *Service) CreateDiagnosis(ctx context.Context, d *DiagnosisRecord) error {
	if d.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if d.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.CreateDiagnosis(ctx, d)
}

func (s *Service) CreateProcedure(ctx context.Context, p *SurgicalProcedure) error {
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.CodeText == "" {
		return fmt.Errorf("code_text is required")
	}
	return s.repo.CreateProcedure(ctx, p)
}

func (s *Service) CreateChemoEpisode(ctx context.Context, e *ChemoEpisode) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if e.StartDate != nil && e.EndDate != nil && e.EndDate.Before(*e.StartDate) {
		return fmt.Errorf("end_date precedes start_date")
	}
	return s.repo.CreateChemoEpisode(ctx, e)
}

func (s *Service) CreateRadiationEpisode(ctx context.Context, e *RadiationEpisode) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if e.StartDate != nil && e.EndDate != nil && e.EndDate.Before(*e.StartDate) {
		return fmt.Errorf("end_date precedes start_date")
	}
	return s.repo.CreateRadiationEpisode(ctx, e)
}

func (s *Service) CreateImagingStudy(ctx context.Context, study *ImagingStudy) error {
	if study.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if study.Modality == "" {
		return fmt.Errorf("modality is required")
	}
	if !validModalities[study.Modality] {
		return fmt.Errorf("invalid modality: %s", study.Modality)
	}
	return s.repo.CreateImagingStudy(ctx, study)
}

func (s *Service) CreateVisit(ctx context.Context, v *VisitRecord) error {
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	return s.repo.CreateVisit(ctx, v)
}

func (s *Service) ListDiagnoses(ctx context.Context, limit, offset int) ([]*DiagnosisRecord, int, error) {
	return s.repo.ListDiagnoses(ctx, limit, offset)
}

func (s *Service) ListProcedures(ctx context.Context, limit, offset int) ([]*SurgicalProcedure, int, error) {
	return s.repo.ListProcedures(ctx, limit, offset)
}

func (s *Service) ListChemoEpisodes(ctx context.Context, limit, offset int) ([]*ChemoEpisode, int, error) {
	return s.repo.ListChemoEpisodes(ctx, limit, offset)
}

func (s *Service) ListRadiationEpisodes(ctx context.Context, limit, offset int) ([]*RadiationEpisode, int, error) {
	return s.repo.ListRadiationEpisodes(ctx, limit, offset)
}

func (s *Service) ListImagingStudies(ctx context.Context, limit, offset int) ([]*ImagingStudy, int, error) {
	return s.repo.ListImagingStudies(ctx, limit, offset)
}

func (s *Service) ListVisits(ctx context.Context, limit, offset int) ([]*VisitRecord, int, error) {
	return s.repo.ListVisits(ctx, limit, offset)
}

// ListPatientIDs returns the union of patient IDs across all six streams.
func (s *Service) ListPatientIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ListPatientIDs(ctx)
}

// LoadPatient gathers every source row for one patient into a bundle for
// the fusion pipeline.
func (s *Service) LoadPatient(ctx context.Context, patientID uuid.UUID) (*PatientStreams, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}

	diagnoses, err := s.repo.ListDiagnosesByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load diagnoses: %w", err)
	}
	procedures, err := s.repo.ListProceduresByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load procedures: %w", err)
	}
	chemo, err := s.repo.ListChemoEpisodesByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load chemo episodes: %w", err)
	}
	radiation, err := s.repo.ListRadiationEpisodesByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load radiation episodes: %w", err)
	}
	imaging, err := s.repo.ListImagingStudiesByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load imaging studies: %w", err)
	}
	visits, err := s.repo.ListVisitsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load visits: %w", err)
	}

	return &PatientStreams{
		PatientID:  patientID,
		Diagnoses:  diagnoses,
		Procedures: procedures,
		Chemo:      chemo,
		Radiation:  radiation,
		Imaging:    imaging,
		Visits:     visits,
	}, nil
}
