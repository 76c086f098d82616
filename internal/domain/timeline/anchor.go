package timeline

import (
	"github.com/oncotrace/oncotrace/internal/domain/streams"
)

// ResolveAnchor picks the patient's anchor surgery: the earliest
// tumor-directed procedure with a usable datetime. Ties on the exact
// timestamp break on the smaller source id, so reruns over the same rows
// always pick the same anchor. Returns nil when the patient has no
// qualifying procedure.
func ResolveAnchor(procedures []*streams.SurgicalProcedure) *AnchorSurgery {
	var best *streams.SurgicalProcedure
	for _, p := range procedures {
		if !p.TumorDirected || p.ProcedureDatetime == nil {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		switch {
		case p.ProcedureDatetime.Before(*best.ProcedureDatetime):
			best = p
		case p.ProcedureDatetime.Equal(*best.ProcedureDatetime) && p.ID.String() < best.ID.String():
			best = p
		}
	}
	if best == nil {
		return nil
	}
	return &AnchorSurgery{
		PatientID:   best.PatientID,
		SurgeryDate: *best.ProcedureDate(),
		SourceID:    best.ID,
	}
}
