package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/dispatch"
	"github.com/sells-group/bulletin-cli/internal/events"
	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/report"
)

// Events resolves, downloads and analyzes every bulletin for parish events
// and merges them into the persisted event set. The set is read once before
// dispatch and, when write is true, saved once after every task finished.
func (p *Pipeline) Events(ctx context.Context, entities []model.Entity, out io.Writer, write bool) (*model.RunResult, error) {
	if p.analyzer == nil {
		return nil, eris.New("pipeline: analyzer is required")
	}
	r := p.startRun(ctx, model.RunModeEvents)
	result := &model.RunResult{}

	path := p.cfg.Data.EventsPath
	existing, err := events.Load(path)
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	res := p.resolve(ctx, r, entities, result)
	handles, err := p.download(ctx, res, result)
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	tasks := dispatch.BuildTasks(entities, handles)
	outcomes := dispatch.Run(ctx, entities, tasks, p.workers(),
		func(ctx context.Context, task model.AnalysisTask) ([]model.EventRecord, error) {
			start := time.Now()
			records, err := p.analyzer.Events(ctx, task, existing)
			p.metrics.observeAnalysis(string(model.RunModeEvents), err, time.Since(start))
			return records, err
		})
	result.TasksSucceeded, result.TasksFailed = dispatch.Summary(outcomes)

	now := p.now()
	rejected := make(map[string]int)
	var incoming []model.EventRecord
	for i, o := range outcomes {
		if o.Failed() {
			continue
		}
		valid, bad := events.Validate(o.Result)
		for _, rej := range bad {
			r.log.Warn("pipeline: dropping invalid event",
				zap.String("link", o.Link),
				zap.String("title", rej.Record.Title),
				zap.Error(rej.Err),
			)
		}
		rejected[o.Link] = len(bad)

		valid = events.Augment(valid, o.Link, events.FamilyOf(o.Entities), now)
		outcomes[i].Result = valid
		incoming = append(incoming, valid...)
	}

	merged, stats := events.Merge(existing, incoming, p.newID)
	result.EventsNew = stats.New
	result.EventsUpdated = stats.Updated
	result.EventsTotal = len(merged)
	p.metrics.observeMerge(stats.New, stats.Updated)

	if write {
		if err := events.Save(path, merged); err != nil {
			return nil, r.fail(ctx, err)
		}
	} else {
		r.log.Info("pipeline: dry run, events file not modified", zap.String("path", path))
	}

	summary := report.EventsSummary{
		New:     stats.New,
		Updated: stats.Updated,
		Total:   len(merged),
		Written: write,
	}
	if err := report.WriteEvents(out, p.format, report.EventsSections(outcomes, rejected), summary, now); err != nil {
		return nil, r.fail(ctx, err)
	}
	r.complete(ctx, result)
	return result, nil
}
