package events

import "github.com/sells-group/bulletin-cli/internal/model"

// FamilyOf returns the first non-empty family of parishes among entities.
func FamilyOf(entities []model.Entity) string {
	for _, e := range entities {
		if e.FamilyOfParishes != "" {
			return e.FamilyOfParishes
		}
	}
	return ""
}

// FilterByFamily returns the events that belong to family. An empty family
// matches nothing.
func FilterByFamily(records []model.EventRecord, family string) []model.EventRecord {
	out := []model.EventRecord{}
	if family == "" {
		return out
	}
	for _, r := range records {
		if r.FamilyOfParishes == family {
			out = append(out, r)
		}
	}
	return out
}

// ChurchRef is the slice of an entity shown to the extraction model.
type ChurchRef struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	FamilyOfParishes string `json:"familyOfParishes,omitempty"`
}

// ChurchContext reduces entities to what event extraction needs.
func ChurchContext(entities []model.Entity) []ChurchRef {
	out := make([]ChurchRef, 0, len(entities))
	for _, e := range entities {
		out = append(out, ChurchRef{ID: e.ID, Name: e.Name, FamilyOfParishes: e.FamilyOfParishes})
	}
	return out
}

// EventRef is the slice of an existing event used for deduplication.
type EventRef struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Date       string  `json:"date"`
	ChurchID   *string `json:"church_id"`
	ChurchName *string `json:"church_name"`
	StartTime  *string `json:"start_time"`
}

// ExistingContext reduces events to the fields used to match duplicates.
func ExistingContext(records []model.EventRecord) []EventRef {
	out := make([]EventRef, 0, len(records))
	for _, r := range records {
		out = append(out, EventRef{
			ID:         r.ID,
			Title:      r.Title,
			Date:       r.Date,
			ChurchID:   r.ChurchID,
			ChurchName: r.ChurchName,
			StartTime:  r.StartTime,
		})
	}
	return out
}
