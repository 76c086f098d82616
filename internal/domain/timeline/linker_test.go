package timeline

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oncotrace/oncotrace/internal/domain/classify"
)

func episode(id uuid.UUID, modality string, start time.Time, end *time.Time) *TreatmentEpisode {
	return &TreatmentEpisode{
		EpisodeID: id,
		PatientID: testPatient,
		StartDate: start,
		EndDate:   end,
		Modality:  modality,
		Summary:   modality + " course",
	}
}

func imagingEvent(id uuid.UUID, d time.Time, category *string) *ClinicalEvent {
	ev := event(id, EventImaging, d, nil)
	ev.Category = category
	return ev
}

func linkOne(t *testing.T, ev *ClinicalEvent, episodes []*TreatmentEpisode, anchor *AnchorSurgery) *ImagingLinkage {
	t.Helper()
	events := AssembleTimeline([]*ClinicalEvent{ev}, anchor)
	links := LinkImaging(events, episodes, anchor)
	if len(links) != 1 {
		t.Fatalf("expected 1 linkage, got %d", len(links))
	}
	return links[0]
}

func TestLinkImaging_NearestEpisodeWithinWindow(t *testing.T) {
	near := uuid.New()
	far := uuid.New()
	episodes := []*TreatmentEpisode{
		episode(near, ModalityRadiation, date(2024, 2, 1), datePtr(2024, 3, 1)),
		episode(far, ModalityRadiation, date(2024, 5, 1), datePtr(2024, 6, 1)),
	}

	link := linkOne(t, imagingEvent(uuid.New(), date(2024, 3, 20), nil), episodes, nil)
	if link.LinkedRadiationEpisode == nil || *link.LinkedRadiationEpisode != near {
		t.Errorf("expected link to nearest episode %s, got %v", near, link.LinkedRadiationEpisode)
	}
	if link.LinkedChemoEpisode != nil {
		t.Errorf("expected no chemo link, got %v", link.LinkedChemoEpisode)
	}
	if link.ImagingPhase != ImagingEarlyPostRad {
		t.Errorf("expected early_post_radiation, got %s", link.ImagingPhase)
	}
}

func TestLinkImaging_OutsideWindowNotLinked(t *testing.T) {
	episodes := []*TreatmentEpisode{
		episode(uuid.New(), ModalityChemo, date(2024, 1, 1), datePtr(2024, 2, 1)),
	}

	// 2024-06-01 is well past end+90d.
	link := linkOne(t, imagingEvent(uuid.New(), date(2024, 6, 1), nil), episodes, nil)
	if link.LinkedChemoEpisode != nil {
		t.Errorf("expected no link outside the window, got %v", link.LinkedChemoEpisode)
	}
	if link.ImagingPhase != ImagingSurveillance {
		t.Errorf("expected surveillance fallback, got %s", link.ImagingPhase)
	}
}

func TestLinkImaging_EquidistantTieBreaksOnEarlierEnd(t *testing.T) {
	earlier := uuid.New()
	later := uuid.New()
	episodes := []*TreatmentEpisode{
		episode(later, ModalityChemo, date(2024, 3, 21), datePtr(2024, 3, 21)),
		episode(earlier, ModalityChemo, date(2024, 2, 1), datePtr(2024, 3, 1)),
	}

	// 2024-03-11 is 10 days from both episode ends.
	link := linkOne(t, imagingEvent(uuid.New(), date(2024, 3, 11), nil), episodes, nil)
	if link.LinkedChemoEpisode == nil || *link.LinkedChemoEpisode != earlier {
		t.Errorf("expected tie to resolve to earlier end %s, got %v", earlier, link.LinkedChemoEpisode)
	}
}

func TestLinkImaging_IdenticalEndsTieBreakOnEpisodeID(t *testing.T) {
	episodes := []*TreatmentEpisode{
		episode(idHigh, ModalityChemo, date(2024, 3, 1), nil),
		episode(idLow, ModalityChemo, date(2024, 3, 1), nil),
	}

	link := linkOne(t, imagingEvent(uuid.New(), date(2024, 3, 10), nil), episodes, nil)
	if link.LinkedChemoEpisode == nil || *link.LinkedChemoEpisode != idLow {
		t.Errorf("expected tie to resolve to smaller id %s, got %v", idLow, link.LinkedChemoEpisode)
	}
}

func TestLinkImaging_PhaseCascade(t *testing.T) {
	anchor := anchorAt(2024, 2, 1)
	episodes := []*TreatmentEpisode{
		episode(uuid.New(), ModalityRadiation, date(2024, 3, 1), datePtr(2024, 4, 10)),
		episode(uuid.New(), ModalityChemo, date(2024, 4, 15), datePtr(2024, 9, 30)),
	}

	cases := []struct {
		name string
		day  time.Time
		want string
	}{
		{"week before surgery", date(2024, 1, 28), ImagingPreOpBaseline},
		{"day after surgery", date(2024, 2, 2), ImagingImmediatePostOp},
		{"mid radiation", date(2024, 3, 20), ImagingDuringRadiation},
		{"three weeks after radiation", date(2024, 5, 1), ImagingEarlyPostRad},
		{"mid chemo", date(2024, 7, 1), ImagingDuringChemo},
		{"beyond a year", date(2025, 3, 1), ImagingLongTermSurveill},
		{"between phases", date(2024, 12, 1), ImagingSurveillance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			link := linkOne(t, imagingEvent(uuid.New(), tc.day, nil), episodes, anchor)
			if link.ImagingPhase != tc.want {
				t.Errorf("expected %s, got %s", tc.want, link.ImagingPhase)
			}
		})
	}
}

func TestLinkImaging_NoAnchorSkipsOffsetRungs(t *testing.T) {
	// The day after what would have been surgery classifies as surveillance
	// when the patient has no anchor at all.
	link := linkOne(t, imagingEvent(uuid.New(), date(2024, 2, 2), nil), nil, nil)
	if link.ImagingPhase != ImagingSurveillance {
		t.Errorf("expected surveillance without anchor, got %s", link.ImagingPhase)
	}
}

func TestLinkImaging_OpenEpisodeEndsAtStart(t *testing.T) {
	epID := uuid.New()
	episodes := []*TreatmentEpisode{
		episode(epID, ModalityChemo, date(2024, 6, 1), nil),
	}

	onStart := linkOne(t, imagingEvent(uuid.New(), date(2024, 6, 1), nil), episodes, nil)
	if onStart.ImagingPhase != ImagingDuringChemo {
		t.Errorf("expected during_chemo on the start date, got %s", onStart.ImagingPhase)
	}

	after := linkOne(t, imagingEvent(uuid.New(), date(2024, 6, 15), nil), episodes, nil)
	if after.LinkedChemoEpisode == nil || *after.LinkedChemoEpisode != epID {
		t.Errorf("expected open episode link, got %v", after.LinkedChemoEpisode)
	}
	if after.ImagingPhase != ImagingSurveillance {
		t.Errorf("expected surveillance after the one-day span, got %s", after.ImagingPhase)
	}
}

func TestLinkImaging_SplitsFlagsByFamily(t *testing.T) {
	prog := linkOne(t, imagingEvent(uuid.New(), date(2024, 3, 1), strPtr(classify.ProgressionSuspected)), nil, nil)
	if prog.ProgressionFlag == nil || *prog.ProgressionFlag != classify.ProgressionSuspected {
		t.Errorf("expected progression flag, got %v", prog.ProgressionFlag)
	}
	if prog.ResponseFlag != nil {
		t.Errorf("expected nil response flag, got %v", prog.ResponseFlag)
	}

	resp := linkOne(t, imagingEvent(uuid.New(), date(2024, 3, 1), strPtr(classify.StableDisease)), nil, nil)
	if resp.ResponseFlag == nil || *resp.ResponseFlag != classify.StableDisease {
		t.Errorf("expected response flag, got %v", resp.ResponseFlag)
	}
	if resp.ProgressionFlag != nil {
		t.Errorf("expected nil progression flag, got %v", resp.ProgressionFlag)
	}
}

func TestLinkImaging_EventPointsAtNearestOverall(t *testing.T) {
	radID := uuid.New()
	chemoID := uuid.New()
	episodes := []*TreatmentEpisode{
		episode(radID, ModalityRadiation, date(2024, 2, 15), datePtr(2024, 3, 15)),
		episode(chemoID, ModalityChemo, date(2024, 2, 1), datePtr(2024, 3, 1)),
	}

	ev := imagingEvent(uuid.New(), date(2024, 3, 10), nil)
	link := linkOne(t, ev, episodes, nil)
	if link.LinkedRadiationEpisode == nil || link.LinkedChemoEpisode == nil {
		t.Fatal("expected links to both modalities")
	}
	if ev.EpisodeID == nil || *ev.EpisodeID != radID {
		t.Errorf("expected event to reference the nearer episode %s, got %v", radID, ev.EpisodeID)
	}
}
