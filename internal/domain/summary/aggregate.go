package summary

import (
	"strings"

	"github.com/google/uuid"

	"github.com/oncotrace/oncotrace/internal/domain/classify"
	"github.com/oncotrace/oncotrace/internal/domain/timeline"
)

// Imaging-phase buckets for the classification ladder. pre_op_baseline is
// in neither: a baseline study describes the untreated tumor and never
// contributes a treatment-response signal.
var (
	surveillanceBucket = map[string]bool{
		timeline.ImagingLongTermSurveill: true,
		timeline.ImagingSurveillance:     true,
	}
	earlyBucket = map[string]bool{
		timeline.ImagingImmediatePostOp: true,
		timeline.ImagingDuringRadiation: true,
		timeline.ImagingEarlyPostRad:    true,
		timeline.ImagingDuringChemo:     true,
	}
)

// Input is everything the aggregator needs for one patient: the assembled
// timeline plus the linker's and anchor resolver's outputs.
type Input struct {
	PatientID uuid.UUID
	Events    []*timeline.ClinicalEvent
	Episodes  []*timeline.TreatmentEpisode
	Links     []*timeline.ImagingLinkage
	Anchor    *timeline.AnchorSurgery
}

// Aggregate rolls one patient's fused timeline into its response summary.
// Events must already be in timeline order; "latest" and "earliest" follow
// that order so the rollup is as deterministic as the timeline itself.
func Aggregate(in Input) *PatientResponseSummary {
	s := &PatientResponseSummary{PatientID: in.PatientID}

	s.Diagnosis = earliestDiagnosis(in.Events)
	s.MolecularMarker = molecularMarker(in.Events)
	s.ResectionExtent = resectionExtent(in.Events, in.Anchor)

	for _, ep := range in.Episodes {
		switch ep.Modality {
		case timeline.ModalityChemo:
			s.ChemoEpisodeCount++
		case timeline.ModalityRadiation:
			s.RadiationEpisodeCount++
		}
	}

	phaseByImaging := make(map[uuid.UUID]string, len(in.Links))
	for _, link := range in.Links {
		phaseByImaging[link.ImagingID] = link.ImagingPhase
	}

	// Walk imaging events in timeline order; later entries overwrite, so
	// each slot ends up holding the latest flag.
	var surveillanceLatest, earlyLatest string
	for _, ev := range in.Events {
		if ev.EventType != timeline.EventImaging || ev.Category == nil {
			continue
		}
		if classify.IsProgression(*ev.Category) {
			continue
		}
		phase, ok := phaseByImaging[ev.SourceID]
		if !ok || phase == timeline.ImagingPreOpBaseline {
			continue
		}
		if s.ResponseByPhase == nil {
			s.ResponseByPhase = make(map[string]string)
		}
		s.ResponseByPhase[phase] = *ev.Category
		switch {
		case surveillanceBucket[phase]:
			surveillanceLatest = *ev.Category
		case earlyBucket[phase]:
			earlyLatest = *ev.Category
		}
	}

	pfs := ComputePFS(in.Events, in.Episodes, in.Anchor)
	s.Progressed = pfs.Progressed
	s.DaysToProgression = pfs.DaysToProgression
	s.PFSDaysFromTreatmentCompletion = pfs.PFSDaysFromTreatmentCompletion

	s.OverallResponseClassification = classifyOverall(s.Progressed, surveillanceLatest, earlyLatest)
	return s
}

// classifyOverall applies the precedence ladder. Progression beats
// everything; surveillance findings beat early-phase findings; an
// early-phase complete response has no rung of its own and falls through.
func classifyOverall(progressed bool, surveillanceLatest, earlyLatest string) string {
	switch {
	case progressed:
		return ClassProgressiveDisease
	case surveillanceLatest == classify.ResponseSuspected:
		return ClassPartialResponse
	case surveillanceLatest == classify.CompleteResponseSuspected:
		return ClassCompleteResponse
	case surveillanceLatest == classify.StableDisease:
		return ClassStableDisease
	case earlyLatest == classify.ResponseSuspected:
		return ClassEarlyResponse
	case earlyLatest == classify.StableDisease:
		return ClassEarlyStableDisease
	default:
		return ClassInsufficientData
	}
}

func earliestDiagnosis(events []*timeline.ClinicalEvent) *string {
	for _, ev := range events {
		if ev.EventType == timeline.EventDiagnosis {
			d := ev.Description
			return &d
		}
	}
	return nil
}

// molecularMarker formats the earliest molecular-pathology diagnosis row as
// "component: result". Rows with neither component nor result are skipped.
func molecularMarker(events []*timeline.ClinicalEvent) *string {
	for _, ev := range events {
		if ev.EventType != timeline.EventDiagnosis || ev.Category == nil {
			continue
		}
		if !strings.Contains(strings.ToLower(*ev.Category), "molecular") {
			continue
		}
		switch {
		case ev.EventSubtype != nil && ev.FreeText != nil:
			m := *ev.EventSubtype + ": " + *ev.FreeText
			return &m
		case ev.EventSubtype != nil:
			return ev.EventSubtype
		case ev.FreeText != nil:
			return ev.FreeText
		}
	}
	return nil
}

// resectionExtent reads the derived extent off the anchor surgery's event.
func resectionExtent(events []*timeline.ClinicalEvent, anchor *timeline.AnchorSurgery) *string {
	if anchor == nil {
		return nil
	}
	for _, ev := range events {
		if ev.EventType == timeline.EventSurgery && ev.SourceID == anchor.SourceID {
			return ev.Category
		}
	}
	return nil
}
