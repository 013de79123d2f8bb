package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// EventsSection is the extraction result for one bulletin.
type EventsSection struct {
	Link     string              `yaml:"bulletin"`
	Endpoint string              `yaml:"bulletin_website"`
	Churches []Church            `yaml:"churches"`
	Error    string              `yaml:"error,omitempty"`
	Events   []model.EventRecord `yaml:"events,omitempty"`
	Rejected int                 `yaml:"rejected,omitempty"`
}

// EventsSections converts dispatch outcomes into report sections. rejected
// counts invalid events dropped per bulletin link.
func EventsSections(outcomes []model.AnalysisOutcome[[]model.EventRecord], rejected map[string]int) []EventsSection {
	out := make([]EventsSection, 0, len(outcomes))
	for _, o := range outcomes {
		s := EventsSection{
			Link:     o.Link,
			Endpoint: o.Endpoint,
			Churches: churches(o.Entities),
			Rejected: rejected[o.Link],
		}
		if o.Failed() {
			s.Error = o.Err.Error()
		} else {
			s.Events = o.Result
		}
		out = append(out, s)
	}
	return out
}

// EventsSummary describes how the persisted event set changed.
type EventsSummary struct {
	New     int  `yaml:"new"`
	Updated int  `yaml:"updated"`
	Total   int  `yaml:"total"`
	Written bool `yaml:"written"`
}

type eventsDoc struct {
	Generated string          `yaml:"generated"`
	Summary   EventsSummary   `yaml:"summary"`
	Bulletins []EventsSection `yaml:"bulletins"`
}

// WriteEvents writes the event extraction report grouped by bulletin.
func WriteEvents(w io.Writer, format Format, sections []EventsSection, summary EventsSummary, generated time.Time) error {
	if format == FormatYAML {
		return writeYAML(w, eventsDoc{Generated: stamp(generated), Summary: summary, Bulletins: sections})
	}

	var b strings.Builder
	b.WriteString("# Bulletin Events Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", stamp(generated))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- New events: %d\n", summary.New)
	fmt.Fprintf(&b, "- Updated events: %d\n", summary.Updated)
	fmt.Fprintf(&b, "- Total events: %d\n", summary.Total)
	if summary.Written {
		b.WriteString("- Events file updated.\n\n")
	} else {
		b.WriteString("- Dry run: events file not modified (use --write).\n\n")
	}

	b.WriteString("## Bulletins\n\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "### %s\n\n", s.Link)
		names := make([]string, 0, len(s.Churches))
		for _, c := range s.Churches {
			names = append(names, c.Name)
		}
		fmt.Fprintf(&b, "Churches: %s\n\n", strings.Join(names, ", "))

		if s.Error != "" {
			fmt.Fprintf(&b, "Extraction failed: %s\n\n", s.Error)
			continue
		}
		if s.Rejected > 0 {
			fmt.Fprintf(&b, "Dropped %d invalid event(s).\n\n", s.Rejected)
		}
		if len(s.Events) == 0 {
			b.WriteString("No events found.\n\n")
			continue
		}
		b.WriteString("| ID | Date | Time | Title | Church | Location |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, e := range s.Events {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				eventID(e), e.Date, timeRange(e), cell(e.Title), cell(model.Deref(e.ChurchName)), cell(model.Deref(e.Location)))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "report: write events")
}

// eventID labels records that will receive their ID when merged.
func eventID(e model.EventRecord) string {
	if e.ID == "" {
		return "new"
	}
	return e.ID
}

func timeRange(e model.EventRecord) string {
	start, end := model.Deref(e.StartTime), model.Deref(e.EndTime)
	switch {
	case start == "":
		return "all day"
	case end == "":
		return start
	default:
		return start + "-" + end
	}
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
