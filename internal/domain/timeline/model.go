// Package timeline holds the fusion core: normalizing six source streams
// into one common event shape, resolving the surgical anchor, assembling the
// ordered per-patient timeline, and linking imaging events to treatment
// episodes. Everything here is pure and in-memory; persistence lives in the
// fusion package.
package timeline

import (
	"time"

	"github.com/google/uuid"
)

// Event types, in tie-break rank order for same-instant events.
const (
	EventDiagnosis      = "diagnosis"
	EventSurgery        = "surgery"
	EventChemoStart     = "chemo_start"
	EventChemoEnd       = "chemo_end"
	EventRadiationStart = "radiation_start"
	EventRadiationEnd   = "radiation_end"
	EventImaging        = "imaging"
	EventVisit          = "visit"
)

// eventTypeRank orders event types when date and datetime tie.
var eventTypeRank = map[string]int{
	EventDiagnosis:      0,
	EventSurgery:        1,
	EventChemoStart:     2,
	EventChemoEnd:       3,
	EventRadiationStart: 4,
	EventRadiationEnd:   5,
	EventImaging:        6,
	EventVisit:          7,
}

// Treatment phases derived from anchor-relative day offset.
const (
	PhasePreSurgery     = "pre_surgery"
	PhaseSurgeryDay     = "surgery_day"
	PhaseEarlyPostOp    = "early_post_op"
	PhaseAdjuvantWindow = "adjuvant_treatment_window"
	PhaseActiveTreat    = "active_treatment_phase"
	PhaseSurveillance   = "surveillance_phase"
	PhaseUnknown        = "unknown_phase"
)

// Imaging phases assigned by the linker's priority cascade.
const (
	ImagingPreOpBaseline    = "pre_op_baseline"
	ImagingImmediatePostOp  = "immediate_post_op"
	ImagingDuringRadiation  = "during_radiation"
	ImagingEarlyPostRad     = "early_post_radiation"
	ImagingDuringChemo      = "during_chemo"
	ImagingLongTermSurveill = "long_term_surveillance"
	ImagingSurveillance     = "surveillance"
)

// Episode modalities.
const (
	ModalityChemo     = "chemo"
	ModalityRadiation = "radiation"
)

// ClinicalEvent is the common shape every source row is projected into, and
// the row materialized to the clinical_event table.
type ClinicalEvent struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	PatientID           uuid.UUID  `db:"patient_id" json:"patient_id"`
	EventDate           time.Time  `db:"event_date" json:"event_date"`
	EventDatetime       *time.Time `db:"event_datetime" json:"event_datetime,omitempty"`
	EventType           string     `db:"event_type" json:"event_type"`
	EventSubtype        *string    `db:"event_subtype" json:"event_subtype,omitempty"`
	Description         string     `db:"description" json:"description"`
	SourceID            uuid.UUID  `db:"source_id" json:"source_id"`
	SourceStream        string     `db:"source_stream" json:"source_stream"`
	EpisodeID           *uuid.UUID `db:"episode_id" json:"episode_id,omitempty"`
	SequenceNumber      int        `db:"sequence_number" json:"sequence_number"`
	DayOffsetFromAnchor *int       `db:"day_offset_from_anchor" json:"day_offset_from_anchor,omitempty"`
	TreatmentPhase      string     `db:"treatment_phase" json:"treatment_phase"`
	DaysToNextEvent     *int       `db:"days_to_next_event" json:"days_to_next_event,omitempty"`
	FreeText            *string    `db:"free_text" json:"free_text,omitempty"`
	Category            *string    `db:"category" json:"category,omitempty"`
}

// TreatmentEpisode is a contiguous chemo or radiation course, carried
// through the pipeline for linkage and PFS.
type TreatmentEpisode struct {
	EpisodeID    uuid.UUID  `json:"episode_id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Modality     string     `json:"modality"`
	Summary      string     `json:"summary"`
	DurationDays *int       `json:"duration_days,omitempty"`
}

// EffectiveEnd returns the episode end used for windows and distances. An
// open episode (no end) is treated as ending the day it starts.
func (e *TreatmentEpisode) EffectiveEnd() time.Time {
	if e.EndDate != nil {
		return *e.EndDate
	}
	return e.StartDate
}

// AnchorSurgery is a patient's earliest tumor-directed procedure, the zero
// point for relative time.
type AnchorSurgery struct {
	PatientID   uuid.UUID `json:"patient_id"`
	SurgeryDate time.Time `json:"surgery_date"`
	SourceID    uuid.UUID `json:"source_id"`
}

// ImagingLinkage is the per-imaging-event linkage and timing classification.
type ImagingLinkage struct {
	ImagingID              uuid.UUID  `json:"imaging_id"`
	PatientID              uuid.UUID  `json:"patient_id"`
	ProgressionFlag        *string    `json:"progression_flag,omitempty"`
	ResponseFlag           *string    `json:"response_flag,omitempty"`
	ImagingPhase           string     `json:"imaging_phase"`
	LinkedRadiationEpisode *uuid.UUID `json:"linked_radiation_episode,omitempty"`
	LinkedChemoEpisode     *uuid.UUID `json:"linked_chemo_episode,omitempty"`
}

// ExcludedRow records a source row dropped during normalization, for the
// run audit.
type ExcludedRow struct {
	Stream   string    `json:"stream"`
	SourceID uuid.UUID `json:"source_id"`
	Reason   string    `json:"reason"`
}

// PhaseForOffset maps an anchor-relative day offset to its treatment phase.
// The intervals are fixed and non-overlapping; a nil offset (no anchor)
// maps to unknown_phase.
func PhaseForOffset(offset *int) string {
	if offset == nil {
		return PhaseUnknown
	}
	switch {
	case *offset < 0:
		return PhasePreSurgery
	case *offset == 0:
		return PhaseSurgeryDay
	case *offset <= 30:
		return PhaseEarlyPostOp
	case *offset <= 90:
		return PhaseAdjuvantWindow
	case *offset <= 365:
		return PhaseActiveTreat
	default:
		return PhaseSurveillance
	}
}

// DaysBetween returns b − a in whole days. Both arguments are expected at
// UTC midnight.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
