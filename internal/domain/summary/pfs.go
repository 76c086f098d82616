package summary

import (
	"time"

	"github.com/oncotrace/oncotrace/internal/domain/classify"
	"github.com/oncotrace/oncotrace/internal/domain/timeline"
)

// PFS holds the progression-free-survival fields for one patient.
type PFS struct {
	Progressed                     bool
	FirstProgressionDate           *time.Time
	DaysToProgression              *int
	PFSDaysFromTreatmentCompletion *int
}

// ComputePFS derives progression metrics from an assembled timeline. The
// first progression is the earliest imaging event carrying a
// progression-family flag. Treatment completion is the latest episode end
// across both modalities, or the anchor date when the patient has no
// episodes; the PFS interval is signed and never clamped, so progression
// during treatment shows up as a negative number.
func ComputePFS(events []*timeline.ClinicalEvent, episodes []*timeline.TreatmentEpisode, anchor *timeline.AnchorSurgery) PFS {
	var out PFS
	first := firstProgression(events)
	if first == nil {
		return out
	}
	out.Progressed = true
	out.FirstProgressionDate = first

	if anchor != nil {
		d := timeline.DaysBetween(anchor.SurgeryDate, *first)
		out.DaysToProgression = &d
	}

	completion := treatmentCompletion(episodes, anchor)
	if completion != nil {
		d := timeline.DaysBetween(*completion, *first)
		out.PFSDaysFromTreatmentCompletion = &d
	}
	return out
}

// firstProgression relies on events already being in timeline order, so
// the first hit is the earliest and ties resolve the same way the
// assembler resolved them.
func firstProgression(events []*timeline.ClinicalEvent) *time.Time {
	for _, ev := range events {
		if ev.EventType != timeline.EventImaging || ev.Category == nil {
			continue
		}
		if classify.IsProgression(*ev.Category) {
			d := ev.EventDate
			return &d
		}
	}
	return nil
}

func treatmentCompletion(episodes []*timeline.TreatmentEpisode, anchor *timeline.AnchorSurgery) *time.Time {
	if len(episodes) == 0 {
		if anchor == nil {
			return nil
		}
		d := anchor.SurgeryDate
		return &d
	}
	latest := episodes[0].EffectiveEnd()
	for _, ep := range episodes[1:] {
		if end := ep.EffectiveEnd(); end.After(latest) {
			latest = end
		}
	}
	return &latest
}
