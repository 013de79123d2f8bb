package model

import "time"

// RunMode identifies which pipeline a run executed.
type RunMode string

const (
	RunModeLinks  RunMode = "links"
	RunModeMass   RunMode = "mass"
	RunModeEvents RunMode = "events"
)

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID          string             `json:"id"`
	Mode        RunMode            `json:"mode"`
	Status      RunStatus          `json:"status"`
	Result      *RunResult         `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
	Resolutions []ResolutionResult `json:"resolutions,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// RunResult summarizes what a run produced.
type RunResult struct {
	Entities       int    `json:"entities" yaml:"entities"`
	Endpoints      int    `json:"endpoints" yaml:"endpoints"`
	Resolved       int    `json:"resolved" yaml:"resolved"`
	Unresolved     int    `json:"unresolved" yaml:"unresolved"`
	Downloaded     int    `json:"downloaded" yaml:"downloaded"`
	TasksSucceeded int    `json:"tasks_succeeded" yaml:"tasks_succeeded"`
	TasksFailed    int    `json:"tasks_failed" yaml:"tasks_failed"`
	Changes        int    `json:"changes" yaml:"changes"`
	EventsNew      int    `json:"events_new" yaml:"events_new"`
	EventsUpdated  int    `json:"events_updated" yaml:"events_updated"`
	EventsTotal    int    `json:"events_total" yaml:"events_total"`
	ReportPath     string `json:"report_path,omitempty" yaml:"report_path,omitempty"`
	DurationMs     int64  `json:"duration_ms" yaml:"duration_ms"`
}
