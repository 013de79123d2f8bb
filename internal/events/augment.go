package events

import (
	"time"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// Augment stamps extracted events with their source bulletin and extraction
// time. A missing family of parishes is filled from family.
func Augment(records []model.EventRecord, link, family string, now time.Time) []model.EventRecord {
	out := make([]model.EventRecord, len(records))
	for i, r := range records {
		r.SourceLink = link
		if r.SourceDate == "" {
			r.SourceDate = now.Format(time.DateOnly)
		}
		r.ExtractedAt = now.Format(time.RFC3339)
		if r.FamilyOfParishes == "" {
			r.FamilyOfParishes = family
		}
		if r.Tags == nil {
			r.Tags = []string{}
		}
		out[i] = r
	}
	return out
}
