package streams

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncotrace/oncotrace/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// -- Diagnosis records --

const diagCols = `id, patient_id, diagnosis_date, name, category, component, result, priority, created_at`

func (r *repoPG) CreateDiagnosis(ctx context.Context, d *DiagnosisRecord) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO diagnosis_record (id, patient_id, diagnosis_date, name, category, component, result, priority)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.PatientID, d.DiagnosisDate, d.Name, d.Category, d.Component, d.Result, d.Priority,
	)
	return err
}

func (r *repoPG) ListDiagnoses(ctx context.Context, limit, offset int) ([]*DiagnosisRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM diagnosis_record`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+diagCols+` FROM diagnosis_record ORDER BY diagnosis_date NULLS LAST, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := collectDiagnoses(rows)
	return list, total, err
}

func (r *repoPG) ListDiagnosesByPatient(ctx context.Context, patientID uuid.UUID) ([]*DiagnosisRecord, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+diagCols+` FROM diagnosis_record WHERE patient_id = $1 ORDER BY diagnosis_date NULLS LAST, id`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDiagnoses(rows)
}

func collectDiagnoses(rows pgx.Rows) ([]*DiagnosisRecord, error) {
	var list []*DiagnosisRecord
	for rows.Next() {
		var d DiagnosisRecord
		if err := rows.Scan(&d.ID, &d.PatientID, &d.DiagnosisDate, &d.Name, &d.Category,
			&d.Component, &d.Result, &d.Priority, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}

// -- Surgical procedures --

const procCols = `id, patient_id, procedure_datetime, code_text, surgery_type, tumor_directed, outcome, created_at`

func (r *repoPG) CreateProcedure(ctx context.Context, p *SurgicalProcedure) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO surgical_procedure (id, patient_id, procedure_datetime, code_text, surgery_type, tumor_directed, outcome)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.PatientID, p.ProcedureDatetime, p.CodeText, p.SurgeryType, p.TumorDirected, p.Outcome,
	)
	return err
}

func (r *repoPG) ListProcedures(ctx context.Context, limit, offset int) ([]*SurgicalProcedure, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM surgical_procedure`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+procCols+` FROM surgical_procedure ORDER BY procedure_datetime NULLS LAST, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := collectProcedures(rows)
	return list, total, err
}

func (r *repoPG) ListProceduresByPatient(ctx context.Context, patientID uuid.UUID) ([]*SurgicalProcedure, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+procCols+` FROM surgical_procedure WHERE patient_id = $1 ORDER BY procedure_datetime NULLS LAST, id`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProcedures(rows)
}

func collectProcedures(rows pgx.Rows) ([]*SurgicalProcedure, error) {
	var list []*SurgicalProcedure
	for rows.Next() {
		var p SurgicalProcedure
		if err := rows.Scan(&p.ID, &p.PatientID, &p.ProcedureDatetime, &p.CodeText,
			&p.SurgeryType, &p.TumorDirected, &p.Outcome, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &p)
	}
	return list, rows.Err()
}

// -- Chemo episodes --

const chemoCols = `id, patient_id, start_date, end_date, drug_category, dose, created_at`

func (r *repoPG) CreateChemoEpisode(ctx context.Context, e *ChemoEpisode) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO chemo_episode (id, patient_id, start_date, end_date, drug_category, dose)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.PatientID, e.StartDate, e.EndDate, e.DrugCategory, e.Dose,
	)
	return err
}

func (r *repoPG) ListChemoEpisodes(ctx context.Context, limit, offset int) ([]*ChemoEpisode, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM chemo_episode`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+chemoCols+` FROM chemo_episode ORDER BY start_date NULLS LAST, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := collectChemoEpisodes(rows)
	return list, total, err
}

func (r *repoPG) ListChemoEpisodesByPatient(ctx context.Context, patientID uuid.UUID) ([]*ChemoEpisode, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+chemoCols+` FROM chemo_episode WHERE patient_id = $1 ORDER BY start_date NULLS LAST, id`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChemoEpisodes(rows)
}

func collectChemoEpisodes(rows pgx.Rows) ([]*ChemoEpisode, error) {
	var list []*ChemoEpisode
	for rows.Next() {
		var e ChemoEpisode
		if err := rows.Scan(&e.ID, &e.PatientID, &e.StartDate, &e.EndDate,
			&e.DrugCategory, &e.Dose, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// -- Radiation episodes --

const radCols = `id, patient_id, start_date, end_date, dose_gy, field_count, created_at`

func (r *repoPG) CreateRadiationEpisode(ctx context.Context, e *RadiationEpisode) error {
	e.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO radiation_episode (id, patient_id, start_date, end_date, dose_gy, field_count)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.PatientID, e.StartDate, e.EndDate, e.DoseGy, e.FieldCount,
	)
	return err
}

func (r *repoPG) ListRadiationEpisodes(ctx context.Context, limit, offset int) ([]*RadiationEpisode, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM radiation_episode`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+radCols+` FROM radiation_episode ORDER BY start_date NULLS LAST, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := collectRadiationEpisodes(rows)
	return list, total, err
}

func (r *repoPG) ListRadiationEpisodesByPatient(ctx context.Context, patientID uuid.UUID) ([]*RadiationEpisode, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+radCols+` FROM radiation_episode WHERE patient_id = $1 ORDER BY start_date NULLS LAST, id`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRadiationEpisodes(rows)
}

func collectRadiationEpisodes(rows pgx.Rows) ([]*RadiationEpisode, error) {
	var list []*RadiationEpisode
	for rows.Next() {
		var e RadiationEpisode
		if err := rows.Scan(&e.ID, &e.PatientID, &e.StartDate, &e.EndDate,
			&e.DoseGy, &e.FieldCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// -- Imaging studies --

const imagingCols = `id, patient_id, study_date, modality, conclusion, created_at`

func (r *repoPG) CreateImagingStudy(ctx context.Context, s *ImagingStudy) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO imaging_study (id, patient_id, study_date, modality, conclusion)
		VALUES ($1,$2,$3,$4,$5)`,
		s.ID, s.PatientID, s.StudyDate, s.Modality, s.Conclusion,
	)
	return err
}

func (r *repoPG) ListImagingStudies(ctx context.Context, limit, offset int) ([]*ImagingStudy, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM imaging_study`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+imagingCols+` FROM imaging_study ORDER BY study_date NULLS LAST, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := collectImagingStudies(rows)
	return list, total, err
}

func (r *repoPG) ListImagingStudiesByPatient(ctx context.Context, patientID uuid.UUID) ([]*ImagingStudy, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+imagingCols+` FROM imaging_study WHERE patient_id = $1 ORDER BY study_date NULLS LAST, id`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectImagingStudies(rows)
}

func collectImagingStudies(rows pgx.Rows) ([]*ImagingStudy, error) {
	var list []*ImagingStudy
	for rows.Next() {
		var s ImagingStudy
		if err := rows.Scan(&s.ID, &s.PatientID, &s.StudyDate, &s.Modality,
			&s.Conclusion, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

// -- Visits --

const visitCols = `id, patient_id, visit_date, visit_type, status, description, created_at`

func (r *repoPG) CreateVisit(ctx context.Context, v *VisitRecord) error {
	v.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visit_record (id, patient_id, visit_date, visit_type, status, description)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		v.ID, v.PatientID, v.VisitDate, v.VisitType, v.Status, v.Description,
	)
	return err
}

func (r *repoPG) ListVisits(ctx context.Context, limit, offset int) ([]*VisitRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM visit_record`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visit_record ORDER BY visit_date NULLS LAST, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := collectVisits(rows)
	return list, total, err
}

func (r *repoPG) ListVisitsByPatient(ctx context.Context, patientID uuid.UUID) ([]*VisitRecord, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visit_record WHERE patient_id = $1 ORDER BY visit_date NULLS LAST, id`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVisits(rows)
}

func collectVisits(rows pgx.Rows) ([]*VisitRecord, error) {
	var list []*VisitRecord
	for rows.Next() {
		var v VisitRecord
		if err := rows.Scan(&v.ID, &v.PatientID, &v.VisitDate, &v.VisitType,
			&v.Status, &v.Description, &v.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &v)
	}
	return list, rows.Err()
}

// -- Cohort --

func (r *repoPG) ListPatientIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT patient_id FROM (
			SELECT patient_id FROM diagnosis_record
			UNION SELECT patient_id FROM surgical_procedure
			UNION SELECT patient_id FROM chemo_episode
			UNION SELECT patient_id FROM radiation_episode
			UNION SELECT patient_id FROM imaging_study
			UNION SELECT patient_id FROM visit_record
		) AS cohort
		ORDER BY patient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
