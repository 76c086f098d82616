package timeline

import (
	"sort"
	"time"
)

// AssembleTimeline orders the patient's events and fills in the derived
// fields: dense sequence numbers starting at 1, the signed day offset from
// the anchor, the treatment phase, and the gap to the next event. The sort
// key is total, so two runs over the same rows produce the same order.
func AssembleTimeline(events []*ClinicalEvent, anchor *AnchorSurgery) []*ClinicalEvent {
	sort.SliceStable(events, func(i, j int) bool {
		return eventLess(events[i], events[j])
	})
	for i, ev := range events {
		ev.SequenceNumber = i + 1
		if anchor != nil {
			offset := DaysBetween(anchor.SurgeryDate, ev.EventDate)
			ev.DayOffsetFromAnchor = &offset
		} else {
			ev.DayOffsetFromAnchor = nil
		}
		ev.TreatmentPhase = PhaseForOffset(ev.DayOffsetFromAnchor)
		if i < len(events)-1 {
			gap := DaysBetween(ev.EventDate, events[i+1].EventDate)
			ev.DaysToNextEvent = &gap
		} else {
			ev.DaysToNextEvent = nil
		}
	}
	return events
}

// eventLess is the timeline ordering: calendar date, then intraday
// timestamp with date-only events first, then event type rank, then source
// stream and source id so the order never depends on input order.
func eventLess(a, b *ClinicalEvent) bool {
	if !a.EventDate.Equal(b.EventDate) {
		return a.EventDate.Before(b.EventDate)
	}
	if c := compareDatetime(a.EventDatetime, b.EventDatetime); c != 0 {
		return c < 0
	}
	if ra, rb := eventTypeRank[a.EventType], eventTypeRank[b.EventType]; ra != rb {
		return ra < rb
	}
	if a.SourceStream != b.SourceStream {
		return a.SourceStream < b.SourceStream
	}
	return a.SourceID.String() < b.SourceID.String()
}

func compareDatetime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.Before(*b):
		return -1
	case b.Before(*a):
		return 1
	default:
		return 0
	}
}
