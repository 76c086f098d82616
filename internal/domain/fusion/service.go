package fusion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/oncotrace/oncotrace/internal/domain/streams"
	"github.com/oncotrace/oncotrace/internal/domain/summary"
	"github.com/oncotrace/oncotrace/internal/domain/timeline"
	"github.com/oncotrace/oncotrace/internal/platform/cache"
	"github.com/oncotrace/oncotrace/internal/platform/notify"
	"github.com/oncotrace/oncotrace/internal/platform/telemetry"
)

// StreamSource is the fusion engine's view of the source streams. The
// streams service satisfies it.
type StreamSource interface {
	ListPatientIDs(ctx context.Context) ([]uuid.UUID, error)
	LoadPatient(ctx context.Context, patientID uuid.UUID) (*streams.PatientStreams, error)
}

// Deps wires a fusion service. Cache, Notifier and Telemetry are optional;
// a nil value disables that concern without changing run semantics.
type Deps struct {
	Repo       Repository
	Source     StreamSource
	Normalizer *timeline.Normalizer
	Workers    int
	Cache      *cache.SummaryCache
	Notifier   *notify.RunNotifier
	Telemetry  *telemetry.TelemetryProvider
	Logger     zerolog.Logger
}

type Service struct {
	repo       Repository
	source     StreamSource
	normalizer *timeline.Normalizer
	workers    int
	cache      *cache.SummaryCache
	notifier   *notify.RunNotifier
	telemetry  *telemetry.TelemetryProvider
	logger     zerolog.Logger
}

func NewService(d Deps) *Service {
	if d.Workers < 1 {
		d.Workers = 1
	}
	return &Service{
		repo:       d.Repo,
		source:     d.Source,
		normalizer: d.Normalizer,
		workers:    d.Workers,
		cache:      d.Cache,
		notifier:   d.Notifier,
		telemetry:  d.Telemetry,
		logger:     d.Logger,
	}
}

// patientOutcome is one worker's result for one patient. A failed patient
// contributes audit rows but no output.
type patientOutcome struct {
	result   *PatientResult
	audit    []*AuditEntry
	failed   bool
	excluded int
}

// RunFusion executes one batch fusion over every patient present in the
// source streams. Patients are processed concurrently and independently; a
// failure in one is audited and never aborts the batch. The fused output
// replaces the previous run's output atomically.
func (s *Service) RunFusion(ctx context.Context) (*Run, error) {
	run := &Run{ID: uuid.New(), StartedAt: time.Now().UTC(), Status: RunStatusRunning}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	s.logger.Info().Str("run_id", run.ID.String()).Int("workers", s.workers).Msg("fusion run started")

	patientIDs, err := s.source.ListPatientIDs(ctx)
	if err != nil {
		return run, s.failRun(ctx, run, fmt.Errorf("list patients: %w", err))
	}

	outcomes := s.fuseAll(ctx, patientIDs)

	var results []*PatientResult
	var audit []*AuditEntry
	var fused, failed, excluded int
	for _, oc := range outcomes {
		audit = append(audit, oc.audit...)
		excluded += oc.excluded
		if oc.failed {
			failed++
			continue
		}
		fused++
		run.EventCount += len(oc.result.Events)
		results = append(results, oc.result)
	}
	run.PatientCount = len(patientIDs)
	run.SummaryCount = fused
	run.AuditCount = len(audit)

	if err := s.repo.ReplaceAll(ctx, run.ID, results, audit); err != nil {
		return run, s.failRun(ctx, run, fmt.Errorf("replace output: %w", err))
	}

	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Status = RunStatusCompleted
	if err := s.repo.CompleteRun(ctx, run); err != nil {
		return run, fmt.Errorf("complete run: %w", err)
	}

	s.afterRun(ctx, run, fused, failed, excluded)
	s.logger.Info().
		Str("run_id", run.ID.String()).
		Int("patients", run.PatientCount).
		Int("fused", fused).
		Int("failed", failed).
		Int("events", run.EventCount).
		Int("audit", run.AuditCount).
		Msg("fusion run completed")
	return run, nil
}

func (s *Service) failRun(ctx context.Context, run *Run, cause error) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	run.Status = RunStatusFailed
	if err := s.repo.CompleteRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("run_id", run.ID.String()).Msg("unable to record failed run")
	}
	return cause
}

// fuseAll fans patients out over the worker pool and collects every
// outcome. Feeding stops on context cancellation; in-flight patients
// finish.
func (s *Service) fuseAll(ctx context.Context, patientIDs []uuid.UUID) []*patientOutcome {
	jobs := make(chan uuid.UUID)
	out := make(chan *patientOutcome)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pid := range jobs {
				out <- s.fusePatient(ctx, pid)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, pid := range patientIDs {
			select {
			case jobs <- pid:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	outcomes := make([]*patientOutcome, 0, len(patientIDs))
	for oc := range out {
		outcomes = append(outcomes, oc)
	}
	return outcomes
}

// fusePatient runs the full pipeline for one patient. Panics are recovered
// into a failed outcome so a malformed patient cannot take the batch down.
func (s *Service) fusePatient(ctx context.Context, pid uuid.UUID) (oc *patientOutcome) {
	oc = &patientOutcome{}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("patient_id", pid.String()).Interface("panic", r).Msg("patient fusion panicked")
			oc.failed = true
			oc.result = nil
			oc.audit = append(oc.audit, &AuditEntry{
				PatientID: pid,
				Kind:      AuditPatientFailed,
				Detail:    fmt.Sprintf("panic: %v", r),
			})
			s.countPatient("failed")
		}
	}()

	bundle, err := s.source.LoadPatient(ctx, pid)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", pid.String()).Msg("patient load failed")
		oc.failed = true
		oc.audit = append(oc.audit, &AuditEntry{PatientID: pid, Kind: AuditPatientFailed, Detail: err.Error()})
		s.countPatient("failed")
		return oc
	}

	norm := s.normalizer.Normalize(bundle)
	anchor := timeline.ResolveAnchor(bundle.Procedures)
	events := timeline.AssembleTimeline(norm.Events, anchor)
	links := timeline.LinkImaging(events, norm.Episodes, anchor)
	sum := summary.Aggregate(summary.Input{
		PatientID: pid,
		Events:    events,
		Episodes:  norm.Episodes,
		Links:     links,
		Anchor:    anchor,
	})

	for _, ex := range norm.Excluded {
		stream := ex.Stream
		sourceID := ex.SourceID
		oc.audit = append(oc.audit, &AuditEntry{
			PatientID: pid,
			Kind:      AuditRowExcluded,
			Stream:    &stream,
			SourceID:  &sourceID,
			Detail:    ex.Reason,
		})
		if s.telemetry != nil {
			s.telemetry.StreamRowCounter(stream, "excluded", 1)
		}
	}
	oc.excluded = len(norm.Excluded)

	if anchor == nil {
		oc.audit = append(oc.audit, &AuditEntry{
			PatientID: pid,
			Kind:      AuditMissingAnchor,
			Detail:    "no tumor-directed procedure with a usable datetime",
		})
	}

	oc.result = &PatientResult{PatientID: pid, Events: events, Summary: sum}
	s.countPatient("fused")
	return oc
}

func (s *Service) countPatient(outcome string) {
	if s.telemetry != nil {
		s.telemetry.PatientOutcomeCounter(outcome)
	}
}

// afterRun handles the post-commit side effects. None of them can fail the
// run; problems are logged and left behind.
func (s *Service) afterRun(ctx context.Context, run *Run, fused, failed, excluded int) {
	if err := s.cache.InvalidateSummaries(ctx); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.ID.String()).Msg("summary cache flush failed")
	}

	evt := notify.RunCompleted{
		RunID:          run.ID,
		StartedAt:      run.StartedAt,
		CompletedAt:    *run.CompletedAt,
		PatientsTotal:  run.PatientCount,
		PatientsFused:  fused,
		PatientsFailed: failed,
		EventsEmitted:  run.EventCount,
		RowsExcluded:   excluded,
	}
	if err := s.notifier.PublishRunCompleted(ctx, evt); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.ID.String()).Msg("run completion publish failed")
	}

	if s.telemetry != nil {
		s.telemetry.ObserveRunDuration(run.CompletedAt.Sub(run.StartedAt).Seconds())
		hm := s.telemetry.HealthMetrics()
		hm.SetClinicalEventsTotal(int64(run.EventCount))
		hm.SetSummariesTotal(int64(run.SummaryCount))
	}
}

// Timeline returns a patient's fused events in sequence order.
func (s *Service) Timeline(ctx context.Context, patientID uuid.UUID) ([]*timeline.ClinicalEvent, error) {
	return s.repo.ListEventsByPatient(ctx, patientID)
}

// Summary returns a patient's response summary, read through the cache
// when one is configured. Cache trouble degrades to a repo read.
func (s *Service) Summary(ctx context.Context, patientID uuid.UUID) (*summary.PatientResponseSummary, error) {
	key := cache.SummaryKey(patientID)
	var cached summary.PatientResponseSummary
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("summary cache read failed")
	} else if hit {
		return &cached, nil
	}

	sum, err := s.repo.GetSummary(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("summary not found: %w", err)
	}
	if err := s.cache.Set(ctx, key, sum); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("summary cache write failed")
	}
	return sum, nil
}

func (s *Service) Summaries(ctx context.Context, limit, offset int) ([]*summary.PatientResponseSummary, int, error) {
	return s.repo.ListSummaries(ctx, limit, offset)
}

func (s *Service) Runs(ctx context.Context, limit, offset int) ([]*Run, int, error) {
	return s.repo.ListRuns(ctx, limit, offset)
}

// Audit returns one run's audit entries. The run must exist.
func (s *Service) Audit(ctx context.Context, runID uuid.UUID, limit, offset int) ([]*AuditEntry, int, error) {
	if _, err := s.repo.GetRun(ctx, runID); err != nil {
		return nil, 0, fmt.Errorf("run not found: %w", err)
	}
	return s.repo.ListAuditByRun(ctx, runID, limit, offset)
}
