package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/bulletin-cli/internal/events"
	"github.com/sells-group/bulletin-cli/internal/model"
)

const massSystemPrompt = `You analyze Catholic parish bulletins and extract recurring schedules.

A bulletin may cover one church or several churches in the same family of parishes.
Return ONLY a JSON object, no prose and no code fences, shaped like:

{"churches": [{"id": "<church id>", "masses": [{"day": "Saturday", "time": "1700"}], "daily_masses": [{"day": "Wednesday", "time": "0900"}], "confession": [{"day": "Saturday", "start": "1530", "end": "1630", "note": "or by appointment"}], "adoration": [{"day": "Friday", "start": "0930", "end": "1100"}]}]}

Rules:
- Use the church ids you are given. Emit one entry per church the bulletin covers.
- Times are 24-hour HHMM strings. Days are full English weekday names.
- masses holds weekend masses (Saturday vigil and Sunday). daily_masses holds weekday masses.
- Omit a category entirely when the bulletin does not mention it. Use an empty list only when the bulletin says there are none.
- List slots in the order Sunday through Saturday, earliest first within a day.`

const eventsSystemPrompt = `You analyze Catholic parish bulletins and extract upcoming one-off events.

Return ONLY a JSON array, no prose and no code fences. Each element is:

{"id": null, "title": "...", "description": "...", "church_id": "<church id or null>", "church_name": "<name or null>", "family_of_parishes": "...", "date": "YYYY-MM-DD", "start_time": "HHMM or null", "end_time": "HHMM or null", "location": "... or null", "tags": ["..."]}

Rules:
- Skip recurring mass, confession and adoration times. Only dated events belong here.
- Dates must be absolute. Resolve weekday references against the bulletin date.
- Times are 24-hour HHMM strings.
- When an event matches one of the existing events you are given (same event, possibly reworded), reuse its id. Otherwise set id to null.
- Return [] when the bulletin lists no events.`

// massPrompt builds the user message for schedule extraction.
func massPrompt(entities []model.Entity) (string, error) {
	churches := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		churches = append(churches, map[string]any{
			"id":           e.ID,
			"name":         e.Name,
			"masses":       e.Slots(model.FieldMasses),
			"daily_masses": e.Slots(model.FieldDailyMasses),
			"confession":   e.Slots(model.FieldConfession),
			"adoration":    e.Slots(model.FieldAdoration),
		})
	}
	data, err := json.MarshalIndent(churches, "", "  ")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("The attached bulletin covers these churches. Their stored schedules are shown for reference:\n\n")
	sb.Write(data)
	sb.WriteString("\n\nExtract the current schedule for each church.")
	return sb.String(), nil
}

// eventsPrompt builds the user message for event extraction.
func eventsPrompt(entities []model.Entity, existing []model.EventRecord, today string) (string, error) {
	churches, err := json.MarshalIndent(events.ChurchContext(entities), "", "  ")
	if err != nil {
		return "", err
	}
	known, err := json.MarshalIndent(events.ExistingContext(existing), "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Today is %s.\n\nChurches covered by this bulletin:\n%s\n\nExisting events for this family of parishes:\n%s\n\nExtract the events announced in the attached bulletin.",
		today, churches, known), nil
}
