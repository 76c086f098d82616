// Package summary rolls a patient's fused timeline up into one response
// classification row: PFS metrics, per-phase response flags, and the
// overall classification ladder.
package summary

import (
	"github.com/google/uuid"
)

// Overall response classifications, ordered by precedence. The order is
// clinically meaningful and must not be rearranged.
const (
	ClassProgressiveDisease = "Progressive Disease"
	ClassPartialResponse    = "Partial Response"
	ClassCompleteResponse   = "Complete Response"
	ClassStableDisease      = "Stable Disease"
	ClassEarlyResponse      = "Early Response"
	ClassEarlyStableDisease = "Early Stable Disease"
	ClassInsufficientData   = "Insufficient Data"
)

// PatientResponseSummary is the one-row-per-patient rollup materialized to
// the patient_response_summary table.
type PatientResponseSummary struct {
	PatientID                      uuid.UUID         `db:"patient_id" json:"patient_id"`
	Diagnosis                      *string           `db:"diagnosis" json:"diagnosis,omitempty"`
	MolecularMarker                *string           `db:"molecular_marker" json:"molecular_marker,omitempty"`
	ResectionExtent                *string           `db:"resection_extent" json:"resection_extent,omitempty"`
	ChemoEpisodeCount              int               `db:"chemo_episode_count" json:"chemo_episode_count"`
	RadiationEpisodeCount          int               `db:"radiation_episode_count" json:"radiation_episode_count"`
	ResponseByPhase                map[string]string `db:"response_by_phase" json:"response_by_phase,omitempty"`
	Progressed                     bool              `db:"progressed" json:"progressed"`
	DaysToProgression              *int              `db:"days_to_progression" json:"days_to_progression,omitempty"`
	PFSDaysFromTreatmentCompletion *int              `db:"pfs_days_from_treatment_completion" json:"pfs_days_from_treatment_completion,omitempty"`
	OverallResponseClassification  string            `db:"overall_response_classification" json:"overall_response_classification"`
}
