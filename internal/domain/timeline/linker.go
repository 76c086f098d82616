package timeline

import (
	"time"

	"github.com/oncotrace/oncotrace/internal/domain/classify"
)

// Linkage windows, in days around an episode.
const (
	linkWindowBefore = 30
	linkWindowAfter  = 90
	postRadWindow    = 60
)

// LinkImaging attaches each imaging event to its nearest chemo and
// radiation episodes and classifies when in the treatment course the study
// happened. It must run after AssembleTimeline so day offsets are in place.
// The returned linkage rows are in timeline order.
func LinkImaging(events []*ClinicalEvent, episodes []*TreatmentEpisode, anchor *AnchorSurgery) []*ImagingLinkage {
	var links []*ImagingLinkage
	for _, ev := range events {
		if ev.EventType != EventImaging {
			continue
		}
		radEp := nearestEpisode(ev.EventDate, episodes, ModalityRadiation)
		chemoEp := nearestEpisode(ev.EventDate, episodes, ModalityChemo)

		link := &ImagingLinkage{
			ImagingID:    ev.SourceID,
			PatientID:    ev.PatientID,
			ImagingPhase: imagingPhase(ev, episodes, anchor),
		}
		if ev.Category != nil {
			if classify.IsProgression(*ev.Category) {
				link.ProgressionFlag = ev.Category
			} else {
				link.ResponseFlag = ev.Category
			}
		}
		if radEp != nil {
			id := radEp.EpisodeID
			link.LinkedRadiationEpisode = &id
		}
		if chemoEp != nil {
			id := chemoEp.EpisodeID
			link.LinkedChemoEpisode = &id
		}
		if nearest := nearerOf(ev.EventDate, radEp, chemoEp); nearest != nil {
			id := nearest.EpisodeID
			ev.EpisodeID = &id
		}
		links = append(links, link)
	}
	return links
}

// nearestEpisode picks the episode of the given modality whose window
// [start−30d, end+90d] contains the date and whose end is closest to it.
// Distance ties break on the earlier end, then the smaller episode id, so
// equidistant episodes resolve the same way every run.
func nearestEpisode(date time.Time, episodes []*TreatmentEpisode, modality string) *TreatmentEpisode {
	var best *TreatmentEpisode
	for _, ep := range episodes {
		if ep.Modality != modality {
			continue
		}
		end := ep.EffectiveEnd()
		if date.Before(ep.StartDate.AddDate(0, 0, -linkWindowBefore)) || date.After(end.AddDate(0, 0, linkWindowAfter)) {
			continue
		}
		if best == nil || episodeCloser(date, ep, best) {
			best = ep
		}
	}
	return best
}

// episodeCloser reports whether a beats b for the given study date.
func episodeCloser(date time.Time, a, b *TreatmentEpisode) bool {
	da := absInt(DaysBetween(a.EffectiveEnd(), date))
	db := absInt(DaysBetween(b.EffectiveEnd(), date))
	if da != db {
		return da < db
	}
	if !a.EffectiveEnd().Equal(b.EffectiveEnd()) {
		return a.EffectiveEnd().Before(b.EffectiveEnd())
	}
	return a.EpisodeID.String() < b.EpisodeID.String()
}

// nearerOf picks which of the two linked episodes the event row itself
// points at. Either argument may be nil.
func nearerOf(date time.Time, a, b *TreatmentEpisode) *TreatmentEpisode {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case episodeCloser(date, a, b):
		return a
	default:
		return b
	}
}

// imagingPhase classifies when a study happened, checking the most specific
// timing first. Episode rungs consider every episode of the modality, not
// just the linked one. The anchor-relative rungs only apply when the
// patient has an anchor; without one the episode-relative rungs still fire.
func imagingPhase(ev *ClinicalEvent, episodes []*TreatmentEpisode, anchor *AnchorSurgery) string {
	off := ev.DayOffsetFromAnchor
	if anchor != nil && off != nil {
		if *off >= -7 && *off <= -1 {
			return ImagingPreOpBaseline
		}
		if *off >= 0 && *off <= 2 {
			return ImagingImmediatePostOp
		}
	}
	if withinAnySpan(ev.EventDate, episodes, ModalityRadiation) {
		return ImagingDuringRadiation
	}
	for _, ep := range episodes {
		if ep.Modality != ModalityRadiation {
			continue
		}
		if d := DaysBetween(ep.EffectiveEnd(), ev.EventDate); d >= 1 && d <= postRadWindow {
			return ImagingEarlyPostRad
		}
	}
	if withinAnySpan(ev.EventDate, episodes, ModalityChemo) {
		return ImagingDuringChemo
	}
	if anchor != nil && off != nil && *off > 365 {
		return ImagingLongTermSurveill
	}
	return ImagingSurveillance
}

func withinAnySpan(date time.Time, episodes []*TreatmentEpisode, modality string) bool {
	for _, ep := range episodes {
		if ep.Modality == modality && withinSpan(date, ep.StartDate, ep.EffectiveEnd()) {
			return true
		}
	}
	return false
}

func withinSpan(date, start, end time.Time) bool {
	return !date.Before(start) && !date.After(end)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
