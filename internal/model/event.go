package model

import "sort"

// EventRecord is a parish event extracted from a bulletin. ID is empty until
// the record has been merged; two records are the same event iff their IDs
// are equal after merge.
type EventRecord struct {
	ID               string   `json:"id" yaml:"id"`
	Title            string   `json:"title" yaml:"title" validate:"required"`
	Description      string   `json:"description,omitempty" yaml:"description,omitempty"`
	ChurchID         *string  `json:"church_id" yaml:"church_id"`
	ChurchName       *string  `json:"church_name" yaml:"church_name"`
	FamilyOfParishes string   `json:"family_of_parishes" yaml:"family_of_parishes"`
	Date             string   `json:"date" yaml:"date" validate:"required,datetime=2006-01-02"`
	StartTime        *string  `json:"start_time" yaml:"start_time" validate:"omitempty,datetime=1504"`
	EndTime          *string  `json:"end_time" yaml:"end_time" validate:"omitempty,datetime=1504"`
	Location         *string  `json:"location" yaml:"location"`
	Tags             []string `json:"tags" yaml:"tags"`
	SourceLink       string   `json:"source_bulletin_link" yaml:"source_bulletin_link"`
	SourceDate       string   `json:"source_bulletin_date,omitempty" yaml:"source_bulletin_date,omitempty"`
	ExtractedAt      string   `json:"extracted_at" yaml:"extracted_at"`
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SortEvents orders records by date, start time, then ID.
func SortEvents(events []EventRecord) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if at, bt := Deref(a.StartTime), Deref(b.StartTime); at != bt {
			return at < bt
		}
		return a.ID < b.ID
	})
}
