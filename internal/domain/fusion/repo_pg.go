package fusion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oncotrace/oncotrace/internal/domain/summary"
	"github.com/oncotrace/oncotrace/internal/domain/timeline"
	"github.com/oncotrace/oncotrace/internal/platform/db"
)

const eventCols = `id, patient_id, event_date, event_datetime, event_type, event_subtype, description,
	source_id, source_stream, episode_id, sequence_number, day_offset_from_anchor, treatment_phase,
	days_to_next_event, free_text, category`

var eventColNames = []string{
	"id", "patient_id", "event_date", "event_datetime", "event_type", "event_subtype", "description",
	"source_id", "source_stream", "episode_id", "sequence_number", "day_offset_from_anchor",
	"treatment_phase", "days_to_next_event", "free_text", "category",
}

const summaryCols = `patient_id, diagnosis, molecular_marker, resection_extent, chemo_episode_count,
	radiation_episode_count, response_by_phase, progressed, days_to_progression,
	pfs_days_from_treatment_completion, overall_response_classification`

const runCols = `id, started_at, completed_at, status, patient_count, event_count, summary_count, audit_count`

const auditCols = `id, run_id, patient_id, kind, stream, source_id, detail, created_at`

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO fusion_run (`+runCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.StartedAt, run.CompletedAt, run.Status,
		run.PatientCount, run.EventCount, run.SummaryCount, run.AuditCount,
	)
	return err
}

func (r *repoPG) CompleteRun(ctx context.Context, run *Run) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE fusion_run SET completed_at = $2, status = $3, patient_count = $4,
			event_count = $5, summary_count = $6, audit_count = $7 WHERE id = $1`,
		run.ID, run.CompletedAt, run.Status,
		run.PatientCount, run.EventCount, run.SummaryCount, run.AuditCount,
	)
	return err
}

func (r *repoPG) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	return scanRun(r.conn(ctx).QueryRow(ctx, `SELECT `+runCols+` FROM fusion_run WHERE id = $1`, id))
}

func (r *repoPG) ListRuns(ctx context.Context, limit, offset int) ([]*Run, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM fusion_run`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx,
		`SELECT `+runCols+` FROM fusion_run ORDER BY started_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	runs, err := collectRuns(rows)
	return runs, total, err
}

// ReplaceAll performs the idempotent full refresh. Everything happens in
// one transaction; readers either see the previous run's output or this
// one's, never a mix. Events go in via COPY, summaries and audit rows via
// plain inserts.
func (r *repoPG) ReplaceAll(ctx context.Context, runID uuid.UUID, results []*PatientResult, audit []*AuditEntry) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		if _, err := q.Exec(ctx, `DELETE FROM clinical_event`); err != nil {
			return fmt.Errorf("clear events: %w", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM patient_response_summary`); err != nil {
			return fmt.Errorf("clear summaries: %w", err)
		}

		var eventRows [][]any
		for _, res := range results {
			for _, ev := range res.Events {
				if ev.ID == uuid.Nil {
					ev.ID = uuid.New()
				}
				eventRows = append(eventRows, []any{
					ev.ID, ev.PatientID, ev.EventDate, ev.EventDatetime, ev.EventType, ev.EventSubtype,
					ev.Description, ev.SourceID, ev.SourceStream, ev.EpisodeID, ev.SequenceNumber,
					ev.DayOffsetFromAnchor, ev.TreatmentPhase, ev.DaysToNextEvent, ev.FreeText, ev.Category,
				})
			}
		}
		if len(eventRows) > 0 {
			if _, err := q.CopyFrom(ctx, pgx.Identifier{"clinical_event"}, eventColNames, pgx.CopyFromRows(eventRows)); err != nil {
				return fmt.Errorf("copy events: %w", err)
			}
		}

		for _, res := range results {
			if res.Summary == nil {
				continue
			}
			if err := insertSummary(ctx, q, res.Summary); err != nil {
				return fmt.Errorf("insert summary for %s: %w", res.PatientID, err)
			}
		}

		for _, a := range audit {
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			if a.CreatedAt.IsZero() {
				a.CreatedAt = time.Now().UTC()
			}
			a.RunID = runID
			if _, err := q.Exec(ctx,
				`INSERT INTO fusion_audit (`+auditCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				a.ID, a.RunID, a.PatientID, a.Kind, a.Stream, a.SourceID, a.Detail, a.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert audit: %w", err)
			}
		}
		return nil
	})
}

func insertSummary(ctx context.Context, q querier, s *summary.PatientResponseSummary) error {
	var phaseJSON *string
	if len(s.ResponseByPhase) > 0 {
		b, err := json.Marshal(s.ResponseByPhase)
		if err != nil {
			return fmt.Errorf("marshal response_by_phase: %w", err)
		}
		js := string(b)
		phaseJSON = &js
	}
	_, err := q.Exec(ctx,
		`INSERT INTO patient_response_summary (`+summaryCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11)`,
		s.PatientID, s.Diagnosis, s.MolecularMarker, s.ResectionExtent,
		s.ChemoEpisodeCount, s.RadiationEpisodeCount, phaseJSON, s.Progressed,
		s.DaysToProgression, s.PFSDaysFromTreatmentCompletion, s.OverallResponseClassification,
	)
	return err
}

func (r *repoPG) ListEventsByPatient(ctx context.Context, patientID uuid.UUID) ([]*timeline.ClinicalEvent, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+eventCols+` FROM clinical_event WHERE patient_id = $1 ORDER BY sequence_number`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *repoPG) GetSummary(ctx context.Context, patientID uuid.UUID) (*summary.PatientResponseSummary, error) {
	return scanSummary(r.conn(ctx).QueryRow(ctx,
		`SELECT `+summaryCols+` FROM patient_response_summary WHERE patient_id = $1`, patientID))
}

func (r *repoPG) ListSummaries(ctx context.Context, limit, offset int) ([]*summary.PatientResponseSummary, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient_response_summary`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx,
		`SELECT `+summaryCols+` FROM patient_response_summary ORDER BY patient_id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*summary.PatientResponseSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repoPG) ListAuditByRun(ctx context.Context, runID uuid.UUID, limit, offset int) ([]*AuditEntry, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM fusion_audit WHERE run_id = $1`, runID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx,
		`SELECT `+auditCols+` FROM fusion_audit WHERE run_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		runID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*AuditEntry
	for rows.Next() {
		var a AuditEntry
		if err := rows.Scan(&a.ID, &a.RunID, &a.PatientID, &a.Kind, &a.Stream, &a.SourceID, &a.Detail, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &a)
	}
	return out, total, rows.Err()
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.StartedAt, &run.CompletedAt, &run.Status,
		&run.PatientCount, &run.EventCount, &run.SummaryCount, &run.AuditCount)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func collectRuns(rows pgx.Rows) ([]*Run, error) {
	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func collectEvents(rows pgx.Rows) ([]*timeline.ClinicalEvent, error) {
	var out []*timeline.ClinicalEvent
	for rows.Next() {
		var ev timeline.ClinicalEvent
		if err := rows.Scan(
			&ev.ID, &ev.PatientID, &ev.EventDate, &ev.EventDatetime, &ev.EventType, &ev.EventSubtype,
			&ev.Description, &ev.SourceID, &ev.SourceStream, &ev.EpisodeID, &ev.SequenceNumber,
			&ev.DayOffsetFromAnchor, &ev.TreatmentPhase, &ev.DaysToNextEvent, &ev.FreeText, &ev.Category,
		); err != nil {
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func scanSummary(row pgx.Row) (*summary.PatientResponseSummary, error) {
	var s summary.PatientResponseSummary
	var phaseJSON []byte
	err := row.Scan(&s.PatientID, &s.Diagnosis, &s.MolecularMarker, &s.ResectionExtent,
		&s.ChemoEpisodeCount, &s.RadiationEpisodeCount, &phaseJSON, &s.Progressed,
		&s.DaysToProgression, &s.PFSDaysFromTreatmentCompletion, &s.OverallResponseClassification)
	if err != nil {
		return nil, err
	}
	if len(phaseJSON) > 0 {
		if err := json.Unmarshal(phaseJSON, &s.ResponseByPhase); err != nil {
			return nil, fmt.Errorf("decode response_by_phase: %w", err)
		}
	}
	return &s, nil
}
