package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// NoteCached marks an entity whose endpoint was already resolved for an
// earlier entity in the same run.
const NoteCached = "retrieved from cache"

// NotFound is written in place of a missing link.
const NotFound = "NOT FOUND"

// LinkRow is one entity in the detailed links report.
type LinkRow struct {
	Church     string   `yaml:"church"`
	Endpoint   string   `yaml:"bulletin_website"`
	Link       string   `yaml:"pdf_link,omitempty"`
	Candidates []string `yaml:"candidates,omitempty"`
	Note       string   `yaml:"note,omitempty"`
	Error      string   `yaml:"error,omitempty"`
}

// LinkRows pairs each entity that has an endpoint with its resolution.
// Entities after the first sharing an endpoint are noted as cached.
func LinkRows(entities []model.Entity, res model.Resolutions) []LinkRow {
	seen := make(map[string]bool)
	var rows []LinkRow
	for _, e := range entities {
		if !e.HasEndpoint() {
			continue
		}
		r, ok := res.Get(e.Endpoint)
		if !ok {
			continue
		}
		row := LinkRow{
			Church:     e.DisplayName(),
			Endpoint:   e.Endpoint,
			Link:       r.Link,
			Candidates: r.Candidates,
			Error:      r.Error,
		}
		if seen[e.Endpoint] {
			row.Note = NoteCached
		}
		seen[e.Endpoint] = true
		rows = append(rows, row)
	}
	return rows
}

type linksDoc struct {
	Generated string        `yaml:"generated"`
	Summary   linksSummary  `yaml:"summary"`
	Detailed  []LinkRow     `yaml:"detailed"`
	Simple    []simpleEntry `yaml:"simple"`
}

type linksSummary struct {
	Endpoints  int `yaml:"endpoints"`
	Resolved   int `yaml:"resolved"`
	Unresolved int `yaml:"unresolved"`
}

type simpleEntry struct {
	Endpoint string `yaml:"endpoint"`
	Link     string `yaml:"link"`
}

// WriteLinks writes the links report: a detailed section per entity and a
// simple endpoint | link listing per distinct endpoint.
func WriteLinks(w io.Writer, format Format, entities []model.Entity, res model.Resolutions, generated time.Time) error {
	rows := LinkRows(entities, res)
	resolved := len(res.Resolved())

	simple := make([]simpleEntry, 0, res.Len())
	for _, r := range res.Results() {
		link := r.Link
		if link == "" {
			link = NotFound
		}
		simple = append(simple, simpleEntry{Endpoint: r.Endpoint, Link: link})
	}

	if format == FormatYAML {
		return writeYAML(w, linksDoc{
			Generated: stamp(generated),
			Summary:   linksSummary{Endpoints: res.Len(), Resolved: resolved, Unresolved: res.Len() - resolved},
			Detailed:  rows,
			Simple:    simple,
		})
	}

	var b strings.Builder
	b.WriteString("# Bulletin Links\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", stamp(generated))
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Bulletin websites: %d\n", res.Len())
	fmt.Fprintf(&b, "- Links found: %d\n", resolved)
	fmt.Fprintf(&b, "- Not found: %d\n\n", res.Len()-resolved)

	b.WriteString("## Detailed Results\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "### %s\n\n", r.Church)
		fmt.Fprintf(&b, "- Website: %s\n", r.Endpoint)
		if r.Link != "" {
			fmt.Fprintf(&b, "- PDF: %s\n", r.Link)
		} else {
			fmt.Fprintf(&b, "- PDF: %s\n", NotFound)
		}
		if len(r.Candidates) > 1 {
			b.WriteString("- Candidates:\n")
			for _, c := range r.Candidates {
				fmt.Fprintf(&b, "  - %s\n", c)
			}
		}
		if r.Note != "" {
			fmt.Fprintf(&b, "- Note: %s\n", r.Note)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, "- Error: %s\n", r.Error)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Simple Listing\n\n```\n")
	for _, s := range simple {
		fmt.Fprintf(&b, "%s | %s\n", s.Endpoint, s.Link)
	}
	b.WriteString("```\n")

	_, err := io.WriteString(w, b.String())
	return eris.Wrap(err, "report: write links")
}
