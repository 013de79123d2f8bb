package model

import "strings"

// NoEndpoint is the sentinel some records carry instead of a bulletin page.
const NoEndpoint = "N/A"

// Slot is one recurring time slot. Masses carry Time; confession and
// adoration windows carry Start and End. Times are 24-hour "HHMM".
type Slot struct {
	Day   string `json:"day" yaml:"day"`
	Time  string `json:"time,omitempty" yaml:"time,omitempty"`
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	End   string `json:"end,omitempty" yaml:"end,omitempty"`
	Note  string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Field names a tracked schedule category.
type Field string

const (
	FieldMasses      Field = "masses"
	FieldDailyMasses Field = "daily_masses"
	FieldConfession  Field = "confession"
	FieldAdoration   Field = "adoration"
)

// TrackedFields lists the schedule categories compared during
// reconciliation, in report order.
var TrackedFields = []Field{FieldMasses, FieldDailyMasses, FieldConfession, FieldAdoration}

// Schedule is the structured schedule payload of an entity. A nil slot list
// means the category was not mentioned; a non-nil empty list means the
// category is explicitly empty.
type Schedule struct {
	Masses      *[]Slot `json:"masses,omitempty" yaml:"masses,omitempty"`
	DailyMasses *[]Slot `json:"daily_masses,omitempty" yaml:"daily_masses,omitempty"`
	Confession  *[]Slot `json:"confession,omitempty" yaml:"confession,omitempty"`
	Adoration   *[]Slot `json:"adoration,omitempty" yaml:"adoration,omitempty"`
}

// Get returns the slot list for a field, or nil when it is absent.
func (s Schedule) Get(f Field) *[]Slot {
	switch f {
	case FieldMasses:
		return s.Masses
	case FieldDailyMasses:
		return s.DailyMasses
	case FieldConfession:
		return s.Confession
	case FieldAdoration:
		return s.Adoration
	default:
		return nil
	}
}

// Set replaces the slot list for a field. Unknown fields are ignored.
func (s *Schedule) Set(f Field, slots *[]Slot) {
	switch f {
	case FieldMasses:
		s.Masses = slots
	case FieldDailyMasses:
		s.DailyMasses = slots
	case FieldConfession:
		s.Confession = slots
	case FieldAdoration:
		s.Adoration = slots
	}
}

// Slots returns the slot list for a field, treating absence as empty.
func (s Schedule) Slots(f Field) []Slot {
	if p := s.Get(f); p != nil {
		return *p
	}
	return nil
}

// Empty reports whether no field is present.
func (s Schedule) Empty() bool {
	for _, f := range TrackedFields {
		if s.Get(f) != nil {
			return false
		}
	}
	return true
}

// Entity is a record whose schedule may be corrected by bulletin analysis.
// Identity fields are owned by the caller and never mutated by the pipeline.
type Entity struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	FamilyOfParishes string `json:"familyOfParishes,omitempty"`
	Endpoint         string `json:"bulletin_website,omitempty"`
	Schedule
}

// HasEndpoint reports whether the entity references a usable bulletin page.
func (e Entity) HasEndpoint() bool {
	ep := strings.TrimSpace(e.Endpoint)
	return ep != "" && ep != NoEndpoint
}

// DisplayName returns the name, falling back to the ID.
func (e Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	if e.ID != "" {
		return e.ID
	}
	return "Unknown"
}

// Slots is a convenience constructor for a present slot list.
func Slots(s ...Slot) *[]Slot {
	if s == nil {
		s = []Slot{}
	}
	return &s
}
