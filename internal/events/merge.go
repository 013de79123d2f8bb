// Package events maintains the persisted parish event set: merging newly
// extracted events by ID, scoping context for extraction, validation and
// calendar export.
package events

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// maxIDAttempts bounds regeneration when a generated ID is already taken.
const maxIDAttempts = 16

// MergeStats counts what a merge did.
type MergeStats struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
}

// Merge folds incoming into existing by ID. An incoming record without an
// ID gets a fresh one that collides with nothing in the working set; a
// record whose ID is already known replaces the old record wholesale; a
// record with an unknown ID is inserted as-is. Existing records keep their
// position, including any without an ID, and new ones are appended in
// incoming order.
func Merge(existing, incoming []model.EventRecord, gen IDGenerator) ([]model.EventRecord, MergeStats) {
	if gen == nil {
		gen = RandomID
	}

	out := make([]model.EventRecord, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))
	unkeyed := 0
	for _, e := range existing {
		// Records persisted without an ID cannot be matched; keep them as-is.
		if e.ID == "" {
			unkeyed++
			out = append(out, e)
			continue
		}
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}

	var stats MergeStats
	for _, e := range incoming {
		if e.ID == "" {
			e.ID = uniqueID(gen, index)
			stats.New++
		} else if _, ok := index[e.ID]; ok {
			stats.Updated++
		} else {
			stats.New++
		}

		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}

	if unkeyed > 0 {
		zap.L().Warn("existing events without id kept unmatched", zap.Int("count", unkeyed))
	}
	zap.L().Info("merged events",
		zap.Int("new", stats.New),
		zap.Int("updated", stats.Updated),
		zap.Int("total", len(out)),
	)
	return out, stats
}

func uniqueID(gen IDGenerator, taken map[string]int) string {
	var id string
	for range maxIDAttempts {
		id = gen()
		if _, ok := taken[id]; id != "" && !ok {
			return id
		}
	}
	// The generator keeps colliding; suffix until free.
	if id == "" {
		id = RandomID()
	}
	for n := 2; ; n++ {
		candidate := id + "-" + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
