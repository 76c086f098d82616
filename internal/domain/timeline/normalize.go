package timeline

import (
	"github.com/rs/zerolog"

	"github.com/oncotrace/oncotrace/internal/domain/classify"
	"github.com/oncotrace/oncotrace/internal/domain/streams"
)

// NormalizedPatient is the normalizer's output for one patient: the flat
// event list (unordered, unsequenced), the treatment episodes, and the rows
// excluded for lacking a usable date.
type NormalizedPatient struct {
	Events   []*ClinicalEvent
	Episodes []*TreatmentEpisode
	Excluded []ExcludedRow
}

// Normalizer projects raw stream rows into ClinicalEvents. It never
// mutates source rows and never fails: rows it cannot place are excluded
// and reported, not errored.
type Normalizer struct {
	classifier *classify.Classifier
	logger     zerolog.Logger
}

func NewNormalizer(classifier *classify.Classifier, logger zerolog.Logger) *Normalizer {
	return &Normalizer{classifier: classifier, logger: logger}
}

// Normalize maps every row in the bundle to its event shape. Episode rows
// emit a start event always and an end event only when the episode has
// ended. Rows with no usable date are dropped and recorded.
func (n *Normalizer) Normalize(bundle *streams.PatientStreams) *NormalizedPatient {
	out := &NormalizedPatient{}
	n.normalizeDiagnoses(bundle, out)
	n.normalizeProcedures(bundle, out)
	n.normalizeChemo(bundle, out)
	n.normalizeRadiation(bundle, out)
	n.normalizeImaging(bundle, out)
	n.normalizeVisits(bundle, out)
	return out
}

func (n *Normalizer) exclude(out *NormalizedPatient, stream string, row ExcludedRow) {
	row.Stream = stream
	out.Excluded = append(out.Excluded, row)
	n.logger.Warn().
		Str("stream", stream).
		Str("source_id", row.SourceID.String()).
		Str("reason", row.Reason).
		Msg("row excluded from fusion")
}

func (n *Normalizer) normalizeDiagnoses(bundle *streams.PatientStreams, out *NormalizedPatient) {
	for _, d := range bundle.Diagnoses {
		if d.DiagnosisDate == nil {
			n.exclude(out, streams.StreamDiagnosis, ExcludedRow{SourceID: d.ID, Reason: "missing diagnosis date"})
			continue
		}
		out.Events = append(out.Events, &ClinicalEvent{
			PatientID:    d.PatientID,
			EventDate:    DateOnly(*d.DiagnosisDate),
			EventType:    EventDiagnosis,
			EventSubtype: d.Component,
			Description:  d.Name,
			SourceID:     d.ID,
			SourceStream: streams.StreamDiagnosis,
			FreeText:     d.Result,
			Category:     d.Category,
		})
	}
}

func (n *Normalizer) normalizeProcedures(bundle *streams.PatientStreams, out *NormalizedPatient) {
	for _, p := range bundle.Procedures {
		if p.ProcedureDatetime == nil {
			n.exclude(out, streams.StreamSurgery, ExcludedRow{SourceID: p.ID, Reason: "missing procedure datetime"})
			continue
		}
		var extent *string
		if p.Outcome != nil {
			extent = n.classifier.ClassifyResection(*p.Outcome)
		}
		dt := *p.ProcedureDatetime
		out.Events = append(out.Events, &ClinicalEvent{
			PatientID:     p.PatientID,
			EventDate:     *p.ProcedureDate(),
			EventDatetime: &dt,
			EventType:     EventSurgery,
			EventSubtype:  p.SurgeryType,
			Description:   p.CodeText,
			SourceID:      p.ID,
			SourceStream:  streams.StreamSurgery,
			FreeText:      p.Outcome,
			Category:      extent,
		})
	}
}

func (n *Normalizer) normalizeChemo(bundle *streams.PatientStreams, out *NormalizedPatient) {
	for _, c := range bundle.Chemo {
		if c.StartDate == nil {
			n.exclude(out, streams.StreamChemo, ExcludedRow{SourceID: c.ID, Reason: "missing start date"})
			continue
		}
		summary := c.Summary()
		episode := &TreatmentEpisode{
			EpisodeID: c.ID,
			PatientID: c.PatientID,
			StartDate: DateOnly(*c.StartDate),
			Modality:  ModalityChemo,
			Summary:   summary,
		}
		if c.EndDate != nil {
			end := DateOnly(*c.EndDate)
			episode.EndDate = &end
			dur := DaysBetween(episode.StartDate, end)
			episode.DurationDays = &dur
		}
		out.Episodes = append(out.Episodes, episode)
		n.emitEpisodeEvents(out, episode, EventChemoStart, EventChemoEnd, "chemo", summary, streams.StreamChemo, c.DrugCategory)
	}
}

func (n *Normalizer) normalizeRadiation(bundle *streams.PatientStreams, out *NormalizedPatient) {
	category := ModalityRadiation
	for _, r := range bundle.Radiation {
		if r.StartDate == nil {
			n.exclude(out, streams.StreamRadiation, ExcludedRow{SourceID: r.ID, Reason: "missing start date"})
			continue
		}
		summary := r.Summary()
		episode := &TreatmentEpisode{
			EpisodeID: r.ID,
			PatientID: r.PatientID,
			StartDate: DateOnly(*r.StartDate),
			Modality:  ModalityRadiation,
			Summary:   summary,
		}
		if r.EndDate != nil {
			end := DateOnly(*r.EndDate)
			episode.EndDate = &end
			dur := DaysBetween(episode.StartDate, end)
			episode.DurationDays = &dur
		}
		out.Episodes = append(out.Episodes, episode)
		n.emitEpisodeEvents(out, episode, EventRadiationStart, EventRadiationEnd, "radiation", summary, streams.StreamRadiation, &category)
	}
}

// emitEpisodeEvents turns one episode into its boundary events. The start
// event is unconditional; the end event exists only for closed episodes, so
// an ongoing course never fabricates an end date.
func (n *Normalizer) emitEpisodeEvents(out *NormalizedPatient, ep *TreatmentEpisode, startType, endType, subtype, summary, stream string, category *string) {
	episodeID := ep.EpisodeID
	sub := subtype
	out.Events = append(out.Events, &ClinicalEvent{
		PatientID:    ep.PatientID,
		EventDate:    ep.StartDate,
		EventType:    startType,
		EventSubtype: &sub,
		Description:  summary,
		SourceID:     ep.EpisodeID,
		SourceStream: stream,
		EpisodeID:    &episodeID,
		Category:     category,
	})
	if ep.EndDate == nil {
		return
	}
	endSub := subtype
	out.Events = append(out.Events, &ClinicalEvent{
		PatientID:    ep.PatientID,
		EventDate:    *ep.EndDate,
		EventType:    endType,
		EventSubtype: &endSub,
		Description:  summary,
		SourceID:     ep.EpisodeID,
		SourceStream: stream,
		EpisodeID:    &episodeID,
		Category:     category,
	})
}

func (n *Normalizer) normalizeImaging(bundle *streams.PatientStreams, out *NormalizedPatient) {
	for _, img := range bundle.Imaging {
		if img.StudyDate == nil {
			n.exclude(out, streams.StreamImaging, ExcludedRow{SourceID: img.ID, Reason: "missing study date"})
			continue
		}
		var category *string
		if img.Conclusion != nil {
			flags := n.classifier.ClassifyImaging(*img.Conclusion)
			if flags.ProgressionFlag != nil {
				category = flags.ProgressionFlag
			} else {
				category = flags.ResponseFlag
			}
		}
		modality := img.Modality
		out.Events = append(out.Events, &ClinicalEvent{
			PatientID:    img.PatientID,
			EventDate:    DateOnly(*img.StudyDate),
			EventType:    EventImaging,
			EventSubtype: &modality,
			Description:  img.Modality + " imaging",
			SourceID:     img.ID,
			SourceStream: streams.StreamImaging,
			FreeText:     img.Conclusion,
			Category:     category,
		})
	}
}

func (n *Normalizer) normalizeVisits(bundle *streams.PatientStreams, out *NormalizedPatient) {
	for _, v := range bundle.Visits {
		if v.VisitDate == nil {
			n.exclude(out, streams.StreamVisit, ExcludedRow{SourceID: v.ID, Reason: "missing visit date"})
			continue
		}
		desc := "visit"
		switch {
		case v.Description != nil:
			desc = *v.Description
		case v.VisitType != nil:
			desc = *v.VisitType
		}
		out.Events = append(out.Events, &ClinicalEvent{
			PatientID:    v.PatientID,
			EventDate:    DateOnly(*v.VisitDate),
			EventType:    EventVisit,
			EventSubtype: v.VisitType,
			Description:  desc,
			SourceID:     v.ID,
			SourceStream: streams.StreamVisit,
			Category:     v.Status,
		})
	}
}
