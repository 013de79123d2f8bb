package events

import (
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bulletin-cli/internal/model"
)

const icsProductID = "-//sells-group//bulletin-cli//EN"

// WriteICS renders events as an iCalendar feed. Events without a start
// time become all-day entries; times are interpreted in loc.
func WriteICS(w io.Writer, records []model.EventRecord, loc *time.Location, now time.Time) error {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName("Parish Events")

	for _, r := range records {
		day, err := time.ParseInLocation(time.DateOnly, r.Date, loc)
		if err != nil {
			continue
		}

		ev := cal.AddEvent(r.ID + "@bulletin-cli")
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary(r.Title)
		if r.Description != "" {
			ev.SetDescription(r.Description)
		}
		if place := locationOf(r); place != "" {
			ev.SetLocation(place)
		}
		if r.SourceLink != "" {
			ev.SetURL(r.SourceLink)
		}
		if len(r.Tags) > 0 {
			ev.AddProperty(ical.ComponentPropertyCategories, strings.Join(r.Tags, ","))
		}

		start, ok := clock(day, model.Deref(r.StartTime))
		if !ok {
			ev.SetAllDayStartAt(day)
			ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
			continue
		}
		ev.SetStartAt(start)
		end, ok := clock(day, model.Deref(r.EndTime))
		if !ok || !end.After(start) {
			end = start.Add(time.Hour)
		}
		ev.SetEndAt(end)
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return eris.Wrap(err, "events: write ics")
	}
	return nil
}

func locationOf(r model.EventRecord) string {
	if l := model.Deref(r.Location); l != "" {
		return l
	}
	return model.Deref(r.ChurchName)
}

// clock applies an "HHMM" time to day.
func clock(day time.Time, hhmm string) (time.Time, bool) {
	t, err := time.Parse("1504", hhmm)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), true
}
