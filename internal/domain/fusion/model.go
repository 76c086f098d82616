// Package fusion orchestrates batch fusion runs: it fans patients out over
// a worker pool, drives the per-patient pipeline (normalize, anchor,
// assemble, link, aggregate), and materializes the results in one
// transactional replace. It also serves the read API over the fused output.
package fusion

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Audit entry kinds.
const (
	AuditRowExcluded   = "row_excluded"
	AuditMissingAnchor = "missing_anchor"
	AuditPatientFailed = "patient_failed"
)

// Run maps to the fusion_run table, one row per batch fusion.
type Run struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	Status       string     `db:"status" json:"status"`
	PatientCount int        `db:"patient_count" json:"patient_count"`
	EventCount   int        `db:"event_count" json:"event_count"`
	SummaryCount int        `db:"summary_count" json:"summary_count"`
	AuditCount   int        `db:"audit_count" json:"audit_count"`
}

// AuditEntry maps to the fusion_audit table. One row per excluded source
// row, anchorless patient, or failed patient; audit history is kept across
// runs.
type AuditEntry struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	RunID     uuid.UUID  `db:"run_id" json:"run_id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	Kind      string     `db:"kind" json:"kind"`
	Stream    *string    `db:"stream" json:"stream,omitempty"`
	SourceID  *uuid.UUID `db:"source_id" json:"source_id,omitempty"`
	Detail    string     `db:"detail" json:"detail"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
