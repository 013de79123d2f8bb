package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// Church names an entity in a report section.
type Church struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

func churches(entities []model.Entity) []Church {
	out := make([]Church, 0, len(entities))
	for _, e := range entities {
		out = append(out, Church{ID: e.ID, Name: e.DisplayName()})
	}
	return out
}

// MassSection is the analysis result for one bulletin.
type MassSection struct {
	Link     string            `yaml:"bulletin"`
	Endpoint string            `yaml:"bulletin_website"`
	Churches []Church          `yaml:"churches"`
	Error    string            `yaml:"error,omitempty"`
	Changes  []model.ChangeSet `yaml:"changes,omitempty"`
}

// MassSections converts dispatch outcomes, already in entity order, into
// report sections.
func MassSections(outcomes []model.AnalysisOutcome[*model.ChangeReport]) []MassSection {
	out := make([]MassSection, 0, len(outcomes))
	for _, o := range outcomes {
		s := MassSection{
			Link:     o.Link,
			Endpoint: o.Endpoint,
			Churches: churches(o.Entities),
		}
		if o.Failed() {
			s.Error = o.Err.Error()
		} else if o.Result != nil {
			s.Changes = o.Result.ChangeSets
		}
		out = append(out, s)
	}
	return out
}

// ChurchStatus is one church's row in the report overview.
type ChurchStatus struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Bulletin string `yaml:"bulletin"`
	Status   string `yaml:"status"`
	Changes  int    `yaml:"changes"`
}

// Church statuses.
const (
	StatusChanges   = "changes suggested"
	StatusNoChanges = "no changes"
	StatusFailed    = "analysis failed"
)

// ChurchStatuses summarizes per-church outcomes, in the order given.
func ChurchStatuses(outcomes []model.EntityOutcome[*model.ChangeReport]) []ChurchStatus {
	out := make([]ChurchStatus, 0, len(outcomes))
	for _, o := range outcomes {
		row := ChurchStatus{
			ID:       o.Entity.ID,
			Name:     o.Entity.DisplayName(),
			Bulletin: o.Link,
			Status:   StatusNoChanges,
		}
		if o.Failed() {
			row.Status = StatusFailed
		} else if cs, ok := o.Result.For(o.Entity.ID); ok && !cs.Empty() {
			row.Status = StatusChanges
			row.Changes = len(cs.Changes)
		}
		out = append(out, row)
	}
	return out
}

type massDoc struct {
	Generated string          `yaml:"generated"`
	Summary   model.RunResult `yaml:"summary"`
	Churches  []ChurchStatus  `yaml:"churches"`
	Bulletins []MassSection   `yaml:"bulletins"`
}

// WriteMass writes the schedule analysis report grouped by bulletin.
func WriteMass(w io.Writer, format Format, sections []MassSection, statuses []ChurchStatus, summary model.RunResult, generated time.Time) error {
	if format == FormatYAML {
		return writeYAML(w, massDoc{Generated: stamp(generated), Summary: summary, Churches: statuses, Bulletins: sections})
	}

	var b strings.Builder
	b.WriteString("# Bulletin Analysis Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", stamp(generated))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Churches: %d\n", summary.Entities)
	fmt.Fprintf(&b, "- Bulletins resolved: %d of %d\n", summary.Resolved, summary.Endpoints)
	fmt.Fprintf(&b, "- Bulletins analyzed: %d (%d failed)\n", summary.TasksSucceeded, summary.TasksFailed)
	fmt.Fprintf(&b, "- Suggested changes: %d\n\n", summary.Changes)

	if len(statuses) > 0 {
		b.WriteString("## Churches\n\n")
		b.WriteString("| Church | Bulletin | Status |\n|---|---|---|\n")
		for _, c := range statuses {
			status := c.Status
			if c.Changes > 0 {
				status = fmt.Sprintf("%s (%d)", c.Status, c.Changes)
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", c.Name, c.Bulletin, status)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Detailed Suggestions\n\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "### %s\n\n", s.Link)
		if s.Error != "" {
			fmt.Fprintf(&b, "Analysis failed: %s\n\n", s.Error)
			continue
		}

		byID := make(map[string]model.ChangeSet, len(s.Changes))
		for _, cs := range s.Changes {
			byID[cs.EntityID] = cs
		}
		for _, c := range s.Churches {
			fmt.Fprintf(&b, "#### %s\n\n", c.Name)
			cs, ok := byID[c.ID]
			if !ok || cs.Empty() {
				b.WriteString("No changes suggested.\n\n")
				continue
			}
			for _, ch := range cs.Changes {
				fmt.Fprintf(&b, "**%s**\n\n", FieldHeading(ch.Field))
				if err := writeSlots(&b, "Current", ch.Current); err != nil {
					return err
				}
				if err := writeSlots(&b, "Suggested", ch.Suggested); err != nil {
					return err
				}
			}
		}
	}
	b.WriteString("---\n\nEnd of report.\n")

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "report: write mass")
}

func writeSlots(b *strings.Builder, label string, slots []model.Slot) error {
	if slots == nil {
		slots = []model.Slot{}
	}
	data, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return eris.Wrap(err, "report: marshal slots")
	}
	fmt.Fprintf(b, "%s:\n```json\n%s\n```\n\n", label, data)
	return nil
}
