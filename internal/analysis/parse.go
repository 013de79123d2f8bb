package analysis

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// cleanJSON extracts a JSON value from text that may contain markdown code
// fences or surrounding prose. lo and hi delimit the expected top-level
// value.
func cleanJSON(text string, lo, hi byte) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.IndexByte(text, lo)
	end := strings.LastIndexByte(text, hi)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

type churchSchedule struct {
	ID string `json:"id"`
	model.Schedule
}

type massResponse struct {
	Churches []churchSchedule `json:"churches"`
}

// parseMass decodes a schedule extraction response keyed by church id.
// Entries without an id are dropped unless they are the only entry, in
// which case they are keyed by fallbackID.
func parseMass(text, fallbackID string) (map[string]model.Schedule, error) {
	var resp massResponse
	if err := json.Unmarshal([]byte(cleanJSON(text, '{', '}')), &resp); err != nil {
		return nil, eris.Wrap(err, "analysis: parse schedule json")
	}

	out := make(map[string]model.Schedule, len(resp.Churches))
	for _, c := range resp.Churches {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			if len(resp.Churches) != 1 || fallbackID == "" {
				continue
			}
			id = fallbackID
		}
		out[id] = c.Schedule
	}
	return out, nil
}

// parseEvents decodes an event extraction response.
func parseEvents(text string) ([]model.EventRecord, error) {
	out := []model.EventRecord{}
	if err := json.Unmarshal([]byte(cleanJSON(text, '[', ']')), &out); err != nil {
		return nil, eris.Wrap(err, "analysis: parse events json")
	}
	if out == nil {
		out = []model.EventRecord{}
	}
	return out, nil
}
