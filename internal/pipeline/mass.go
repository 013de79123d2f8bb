package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/dispatch"
	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/reconcile"
	"github.com/sells-group/bulletin-cli/internal/report"
)

// Mass resolves, downloads and analyzes every bulletin for service times,
// then reconciles the extracted schedules against the stored ones and
// writes the change report to out.
func (p *Pipeline) Mass(ctx context.Context, entities []model.Entity, out io.Writer) (*model.RunResult, error) {
	if p.analyzer == nil {
		return nil, eris.New("pipeline: analyzer is required")
	}
	r := p.startRun(ctx, model.RunModeMass)
	result := &model.RunResult{}

	res := p.resolve(ctx, r, entities, result)
	handles, err := p.download(ctx, res, result)
	if err != nil {
		return nil, r.fail(ctx, err)
	}

	tasks := dispatch.BuildTasks(entities, handles)
	extracted := dispatch.Run(ctx, entities, tasks, p.workers(),
		func(ctx context.Context, task model.AnalysisTask) (map[string]model.Schedule, error) {
			start := time.Now()
			schedules, err := p.analyzer.Mass(ctx, task)
			p.metrics.observeAnalysis(string(model.RunModeMass), err, time.Since(start))
			return schedules, err
		})
	result.TasksSucceeded, result.TasksFailed = dispatch.Summary(extracted)

	// Reconciliation reads only task-local data, so it runs after dispatch
	// in the already-deterministic outcome order.
	outcomes := make([]model.AnalysisOutcome[*model.ChangeReport], len(extracted))
	for i, o := range extracted {
		outcomes[i] = model.AnalysisOutcome[*model.ChangeReport]{
			Endpoint: o.Endpoint,
			Link:     o.Link,
			Entities: o.Entities,
			Err:      o.Err,
		}
		if o.Failed() {
			continue
		}
		changes := reconcile.Report(o.Result, o.Entities)
		outcomes[i].Result = changes
		result.Changes += changes.ChangeCount()

		r.log.Debug("pipeline: bulletin reconciled",
			zap.String("link", o.Link),
			zap.Int("entities", len(o.Entities)),
			zap.Int("changes", changes.ChangeCount()),
		)
	}

	statuses := report.ChurchStatuses(dispatch.PerEntity(entities, outcomes))
	if err := report.WriteMass(out, p.format, report.MassSections(outcomes), statuses, *result, p.now()); err != nil {
		return nil, r.fail(ctx, err)
	}
	r.complete(ctx, result)
	return result, nil
}
