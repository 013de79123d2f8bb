// Package reconcile compares schedules extracted from a bulletin against the
// stored schedule of each church.
package reconcile

import (
	"slices"
	"strings"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// Reconcile compares every field present in extracted against the entity's
// stored slots. Comparison is order-sensitive. A field missing from
// extracted is never reported; it was not mentioned, not cleared.
func Reconcile(extracted model.Schedule, entity model.Entity) model.ChangeSet {
	cs := model.ChangeSet{EntityID: entity.ID, Name: entity.Name, Changes: []model.Change{}}

	for _, f := range model.TrackedFields {
		ex := extracted.Get(f)
		if ex == nil {
			continue
		}
		suggested := normalize(*ex)
		current := normalize(entity.Slots(f))
		if slices.Equal(current, suggested) {
			continue
		}
		cs.Changes = append(cs.Changes, model.Change{
			Field:     f,
			Current:   current,
			Suggested: suggested,
		})
	}
	return cs
}

// Report reconciles each entity sharing a document. Schedules are keyed by
// entity ID; when the document yielded exactly one schedule it applies to
// every entity without one of its own.
func Report(extracted map[string]model.Schedule, entities []model.Entity) *model.ChangeReport {
	var only *model.Schedule
	if len(extracted) == 1 {
		for _, s := range extracted {
			only = &s
		}
	}

	report := &model.ChangeReport{ChangeSets: []model.ChangeSet{}}
	for _, e := range entities {
		s, ok := extracted[e.ID]
		if !ok {
			if only == nil {
				continue
			}
			s = *only
		}
		if cs := Reconcile(s, e); !cs.Empty() {
			report.ChangeSets = append(report.ChangeSets, cs)
		}
	}
	return report
}

func normalize(slots []model.Slot) []model.Slot {
	out := make([]model.Slot, len(slots))
	for i, s := range slots {
		out[i] = model.Slot{
			Day:   strings.TrimSpace(s.Day),
			Time:  strings.TrimSpace(s.Time),
			Start: strings.TrimSpace(s.Start),
			End:   strings.TrimSpace(s.End),
			Note:  strings.TrimSpace(s.Note),
		}
	}
	return out
}
