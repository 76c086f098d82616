package fusion

import (
	"context"

	"github.com/google/uuid"

	"github.com/oncotrace/oncotrace/internal/domain/summary"
	"github.com/oncotrace/oncotrace/internal/domain/timeline"
)

// PatientResult is one patient's fused output: the ordered timeline and
// its summary row.
type PatientResult struct {
	PatientID uuid.UUID
	Events    []*timeline.ClinicalEvent
	Summary   *summary.PatientResponseSummary
}

// Repository persists fusion output and serves the read API.
type Repository interface {
	// Run lifecycle
	CreateRun(ctx context.Context, run *Run) error
	CompleteRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, int, error)

	// ReplaceAll swaps the fused output in one transaction: prior events
	// and summaries are deleted, the new results and this run's audit rows
	// inserted. A rerun over unchanged inputs yields the same output.
	ReplaceAll(ctx context.Context, runID uuid.UUID, results []*PatientResult, audit []*AuditEntry) error

	// Read side
	ListEventsByPatient(ctx context.Context, patientID uuid.UUID) ([]*timeline.ClinicalEvent, error)
	GetSummary(ctx context.Context, patientID uuid.UUID) (*summary.PatientResponseSummary, error)
	ListSummaries(ctx context.Context, limit, offset int) ([]*summary.PatientResponseSummary, int, error)
	ListAuditByRun(ctx context.Context, runID uuid.UUID, limit, offset int) ([]*AuditEntry, int, error)
}
