// Package dispatch runs one analysis per downloaded bulletin across a
// bounded worker pool and hands results back in the caller's entity order.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bulletin-cli/internal/model"
)

// DefaultWorkers is the worker count used when none is given.
const DefaultWorkers = 10

// AnalyzeFunc analyzes one task. A returned error marks the task failed.
type AnalyzeFunc[T any] func(ctx context.Context, task model.AnalysisTask) (T, error)

// BuildTasks creates one task per handle carrying every entity that shares
// the handle's endpoint, in entity input order.
func BuildTasks(entities []model.Entity, handles []model.DocumentHandle) []model.AnalysisTask {
	byEndpoint := make(map[string][]model.Entity)
	for _, e := range entities {
		if e.HasEndpoint() {
			byEndpoint[e.Endpoint] = append(byEndpoint[e.Endpoint], e)
		}
	}

	tasks := make([]model.AnalysisTask, 0, len(handles))
	for _, h := range handles {
		tasks = append(tasks, model.AnalysisTask{
			Endpoint:  h.Endpoint,
			Link:      h.Link,
			LocalPath: h.LocalPath,
			Entities:  byEndpoint[h.Endpoint],
		})
	}
	return tasks
}

// originIndex maps each endpoint to the position of the first entity that
// references it. Endpoints no entity references sort after all others.
func originIndex(entities []model.Entity, tasks []model.AnalysisTask) []int {
	first := make(map[string]int)
	for i, e := range entities {
		if _, ok := first[e.Endpoint]; !ok {
			first[e.Endpoint] = i
		}
	}
	idx := make([]int, len(tasks))
	for i, t := range tasks {
		if pos, ok := first[t.Endpoint]; ok {
			idx[i] = pos
		} else {
			idx[i] = len(entities) + i
		}
	}
	return idx
}

// Run executes fn once per task on at most workers goroutines. A failing or
// panicking task yields an outcome with Err set and never stops its
// siblings. Outcomes are returned ordered by the first appearance of their
// endpoint in entities, whatever order the tasks finished in.
func Run[T any](ctx context.Context, entities []model.Entity, tasks []model.AnalysisTask, workers int, fn AnalyzeFunc[T]) []model.AnalysisOutcome[T] {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	order := originIndex(entities, tasks)

	type indexed struct {
		origin int
		out    model.AnalysisOutcome[T]
	}

	var (
		mu        sync.Mutex
		collected = make([]indexed, 0, len(tasks))
		failed    atomic.Int64
	)

	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, task := range tasks {
		origin := order[i]
		g.Go(func() error {
			log := zap.L().With(
				zap.String("endpoint", task.Endpoint),
				zap.String("link", task.Link),
				zap.Int("entities", len(task.Entities)),
			)

			out := model.AnalysisOutcome[T]{
				Endpoint: task.Endpoint,
				Link:     task.Link,
				Entities: task.Entities,
			}
			out.Result, out.Err = call(ctx, task, fn)
			if out.Err != nil {
				failed.Add(1)
				log.Error("analysis failed", zap.Error(out.Err))
			} else {
				log.Info("analysis complete")
			}

			mu.Lock()
			collected = append(collected, indexed{origin: origin, out: out})
			mu.Unlock()
			return nil // don't abort siblings on individual failure
		})
	}
	_ = g.Wait()

	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].origin < collected[j].origin
	})

	outcomes := make([]model.AnalysisOutcome[T], len(collected))
	for i, c := range collected {
		outcomes[i] = c.out
	}

	zap.L().Info("dispatch complete",
		zap.Int("tasks", len(tasks)),
		zap.Int64("failed", failed.Load()),
		zap.Int("workers", workers),
	)
	return outcomes
}

func call[T any](ctx context.Context, task model.AnalysisTask, fn AnalyzeFunc[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = eris.Errorf("dispatch: analysis panicked: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return result, eris.Wrap(err, "dispatch: not started")
	}
	return fn(ctx, task)
}

// PerEntity fans outcomes out to the entities that share each document, in
// entity input order. Entities without an outcome are omitted.
func PerEntity[T any](entities []model.Entity, outcomes []model.AnalysisOutcome[T]) []model.EntityOutcome[T] {
	byEndpoint := make(map[string]int, len(outcomes))
	for i, o := range outcomes {
		byEndpoint[o.Endpoint] = i
	}

	var out []model.EntityOutcome[T]
	for _, e := range entities {
		i, ok := byEndpoint[e.Endpoint]
		if !ok || !e.HasEndpoint() {
			continue
		}
		o := outcomes[i]
		out = append(out, model.EntityOutcome[T]{
			Entity:   e,
			Endpoint: o.Endpoint,
			Link:     o.Link,
			Result:   o.Result,
			Err:      o.Err,
		})
	}
	return out
}

// Summary counts succeeded and failed outcomes.
func Summary[T any](outcomes []model.AnalysisOutcome[T]) (succeeded, failed int) {
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}
