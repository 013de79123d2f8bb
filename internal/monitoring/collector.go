// Package monitoring watches run history for failing or stale pipelines and
// posts alerts to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Runs within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunFailRate  float64 `json:"run_fail_rate"`

	ByMode          map[model.RunMode]int `json:"by_mode"`
	AvgDurationSecs float64               `json:"avg_duration_secs"`

	// Bulletin outcomes summed over completed runs in the window.
	Endpoints      int     `json:"endpoints"`
	Unresolved     int     `json:"unresolved"`
	UnresolvedRate float64 `json:"unresolved_rate"`
	TasksFailed    int     `json:"tasks_failed"`

	// LastEventsRun is when the latest events run completed, regardless of
	// the window. Zero when none has.
	LastEventsRun time.Time `json:"last_events_run,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers a snapshot from the run store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot of run health over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		ByMode:        make(map[model.RunMode]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var totalMs int64
	var timed int
	for _, r := range runs {
		if r.Mode == model.RunModeEvents && r.Status == model.RunStatusComplete && r.UpdatedAt.After(snap.LastEventsRun) {
			snap.LastEventsRun = r.UpdatedAt
		}
		if r.CreatedAt.Before(cutoff) {
			continue
		}

		snap.RunsTotal++
		snap.ByMode[r.Mode]++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			if r.Result != nil {
				totalMs += r.Result.DurationMs
				timed++
				snap.Endpoints += r.Result.Endpoints
				snap.Unresolved += r.Result.Unresolved
				snap.TasksFailed += r.Result.TasksFailed
			}
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsRunning++
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if timed > 0 {
		snap.AvgDurationSecs = float64(totalMs) / 1000 / float64(timed)
	}
	if snap.Endpoints > 0 {
		snap.UnresolvedRate = float64(snap.Unresolved) / float64(snap.Endpoints)
	}
	return snap, nil
}
