// Package pipeline runs the links, mass and events modes end to end:
// resolution, download, parallel analysis, reconciliation or merge, and the
// run report.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/config"
	"github.com/sells-group/bulletin-cli/internal/events"
	"github.com/sells-group/bulletin-cli/internal/fetcher"
	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/report"
	"github.com/sells-group/bulletin-cli/internal/resilience"
	"github.com/sells-group/bulletin-cli/internal/resolve"
	"github.com/sells-group/bulletin-cli/internal/store"
)

// Analyzer extracts data from one downloaded bulletin.
type Analyzer interface {
	Mass(ctx context.Context, task model.AnalysisTask) (map[string]model.Schedule, error)
	Events(ctx context.Context, task model.AnalysisTask, existing []model.EventRecord) ([]model.EventRecord, error)
}

// Deps are the collaborators a Pipeline needs. Store and Metrics may be nil;
// Analyzer is only required by Mass and Events.
type Deps struct {
	Store    store.Store
	Resolver resolve.Resolver
	Fetcher  fetcher.Fetcher
	Analyzer Analyzer
	Metrics  *Metrics
	Retry    *resilience.RetryConfig
	Now      func() time.Time
	NewID    events.IDGenerator
}

// Pipeline orchestrates one bulletin run per call.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	resolver resolve.Resolver
	fetcher  fetcher.Fetcher
	analyzer Analyzer
	metrics  *Metrics
	retry    resilience.RetryConfig
	now      func() time.Time
	newID    events.IDGenerator
	format   report.Format
}

// New creates a Pipeline from cfg and deps.
func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if deps.Resolver == nil {
		return nil, eris.New("pipeline: resolver is required")
	}
	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: report format")
	}

	p := &Pipeline{
		cfg:      cfg,
		store:    deps.Store,
		resolver: deps.Resolver,
		fetcher:  deps.Fetcher,
		analyzer: deps.Analyzer,
		metrics:  deps.Metrics,
		now:      deps.Now,
		newID:    deps.NewID,
		format:   format,
	}
	switch {
	case deps.Retry != nil:
		p.retry = *deps.Retry
	case len(cfg.Resolve.DelaysSecs) == 0:
		p.retry = resolve.DefaultRetryConfig()
		if cfg.Resolve.MaxAttempts > 0 {
			p.retry.MaxAttempts = cfg.Resolve.MaxAttempts
		}
	default:
		p.retry = resilience.FromSchedule(cfg.Resolve.MaxAttempts, cfg.Resolve.DelaysSecs)
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = events.RandomID
	}
	return p, nil
}

// Format returns the report format the pipeline writes.
func (p *Pipeline) Format() report.Format {
	return p.format
}

// run tracks one execution in the store and metrics. A missing store only
// disables history; store errors are logged, never fatal.
type run struct {
	p     *Pipeline
	mode  model.RunMode
	id    string
	start time.Time
	log   *zap.Logger
}

func (p *Pipeline) startRun(ctx context.Context, mode model.RunMode) *run {
	r := &run{p: p, mode: mode, start: p.now()}
	r.log = zap.L().With(zap.String("mode", string(mode)))

	if p.store != nil {
		rec, err := p.store.CreateRun(ctx, mode)
		if err != nil {
			r.log.Warn("pipeline: failed to create run record", zap.Error(err))
		} else {
			r.id = rec.ID
			r.log = r.log.With(zap.String("run_id", rec.ID))
		}
	}
	r.log.Info("pipeline: run started")
	return r
}

func (r *run) recordResolutions(ctx context.Context, res model.Resolutions) {
	for _, rr := range res.Results() {
		r.p.metrics.observeResolution(rr.Resolved(), rr.Attempts)
	}
	if r.p.store == nil || r.id == "" {
		return
	}
	if err := r.p.store.RecordResolutions(ctx, r.id, res.Results()); err != nil {
		r.log.Warn("pipeline: failed to record resolutions", zap.Error(err))
	}
}

func (r *run) complete(ctx context.Context, result *model.RunResult) {
	result.DurationMs = r.p.now().Sub(r.start).Milliseconds()
	result.ReportPath = r.p.cfg.Report.Output

	r.p.metrics.observeRun(string(r.mode), string(model.RunStatusComplete), r.p.now())
	if r.p.store != nil && r.id != "" {
		if err := r.p.store.CompleteRun(ctx, r.id, result); err != nil {
			r.log.Warn("pipeline: failed to complete run record", zap.Error(err))
		}
	}
	r.log.Info("pipeline: run complete",
		zap.Int("entities", result.Entities),
		zap.Int("resolved", result.Resolved),
		zap.Int("unresolved", result.Unresolved),
		zap.Int("downloaded", result.Downloaded),
		zap.Int("tasks_succeeded", result.TasksSucceeded),
		zap.Int("tasks_failed", result.TasksFailed),
		zap.Int64("duration_ms", result.DurationMs),
	)
}

func (r *run) fail(ctx context.Context, err error) error {
	r.p.metrics.observeRun(string(r.mode), string(model.RunStatusFailed), r.p.now())
	if r.p.store != nil && r.id != "" {
		if storeErr := r.p.store.FailRun(ctx, r.id, err.Error()); storeErr != nil {
			r.log.Warn("pipeline: failed to mark run failed", zap.Error(storeErr))
		}
	}
	r.log.Error("pipeline: run failed", zap.Error(err))
	return err
}

// resolve runs the resolution stage with a fresh per-run cache and fills the
// resolution counts of result.
func (p *Pipeline) resolve(ctx context.Context, r *run, entities []model.Entity, result *model.RunResult) model.Resolutions {
	cache := resolve.NewCache(p.resolver, p.retry)
	res := cache.ResolveAll(ctx, entities)
	r.recordResolutions(ctx, res)

	result.Entities = len(entities)
	result.Endpoints = res.Len()
	result.Resolved = len(res.Resolved())
	result.Unresolved = result.Endpoints - result.Resolved
	return res
}

// download fetches every resolved bulletin. Failing to prepare the bulletin
// directory aborts the run.
func (p *Pipeline) download(ctx context.Context, res model.Resolutions, result *model.RunResult) ([]model.DocumentHandle, error) {
	if p.fetcher == nil {
		return nil, eris.New("pipeline: fetcher is required")
	}
	handles, err := fetcher.FetchAll(ctx, p.fetcher, res, p.cfg.Data.BulletinsDir)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: download bulletins")
	}
	result.Downloaded = len(handles)
	p.metrics.observeDownloads(len(handles), result.Resolved-len(handles))
	return handles, nil
}

func (p *Pipeline) workers() int {
	return p.cfg.Analysis.Workers
}
