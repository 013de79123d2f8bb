package model

// Change is one field whose extracted slots differ from the stored ones.
// Both full lists are carried, not a diff.
type Change struct {
	Field     Field  `json:"field" yaml:"field"`
	Current   []Slot `json:"current" yaml:"current"`
	Suggested []Slot `json:"suggested" yaml:"suggested"`
}

// ChangeSet holds the proposed schedule changes for one entity.
type ChangeSet struct {
	EntityID string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Changes  []Change `json:"changes" yaml:"changes"`
}

// Empty reports whether no changes are proposed.
func (c ChangeSet) Empty() bool {
	return len(c.Changes) == 0
}

// ChangeReport is the mass-mode analysis result for one document.
type ChangeReport struct {
	ChangeSets []ChangeSet `json:"change_sets" yaml:"change_sets"`
}

// For returns the change set for the given entity ID.
func (r *ChangeReport) For(entityID string) (ChangeSet, bool) {
	if r == nil {
		return ChangeSet{}, false
	}
	for _, cs := range r.ChangeSets {
		if cs.EntityID == entityID {
			return cs, true
		}
	}
	return ChangeSet{}, false
}

// ChangeCount returns the total number of field changes in the report.
func (r *ChangeReport) ChangeCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, cs := range r.ChangeSets {
		n += len(cs.Changes)
	}
	return n
}
