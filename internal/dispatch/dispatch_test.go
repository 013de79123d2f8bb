package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bulletin-cli/internal/model"
)

func entity(id, endpoint string) model.Entity {
	return model.Entity{ID: id, Name: "Church " + id, Endpoint: endpoint}
}

func handle(endpoint string) model.DocumentHandle {
	return model.DocumentHandle{Endpoint: endpoint, Link: endpoint + "/b.pdf", LocalPath: "/tmp/" + endpoint}
}

func TestBuildTasks_GroupsSharedEndpoint(t *testing.T) {
	t.Parallel()

	entities := []model.Entity{entity("1", "X"), entity("2", "Y"), entity("3", "X"), {ID: "4", Endpoint: model.NoEndpoint}}
	tasks := BuildTasks(entities, []model.DocumentHandle{handle("X"), handle("Y")})

	require.Len(t, tasks, 2)
	assert.Equal(t, "X", tasks[0].Endpoint)
	assert.Equal(t, "X/b.pdf", tasks[0].Link)
	require.Len(t, tasks[0].Entities, 2)
	assert.Equal(t, "1", tasks[0].Entities[0].ID)
	assert.Equal(t, "3", tasks[0].Entities[1].ID)
	require.Len(t, tasks[1].Entities, 1)
	assert.Equal(t, "2", tasks[1].Entities[0].ID)
}

func TestRun_OrderFollowsEntitiesNotCompletion(t *testing.T) {
	t.Parallel()

	entities := []model.Entity{entity("1", "C"), entity("2", "A"), entity("3", "B"), entity("4", "A")}
	// Handles arrive in a different order than entities.
	tasks := BuildTasks(entities, []model.DocumentHandle{handle("A"), handle("B"), handle("C")})

	// C finishes last, A first.
	delay := map[string]time.Duration{"A": 0, "B": 20 * time.Millisecond, "C": 40 * time.Millisecond}
	outcomes := Run(context.Background(), entities, tasks, 3, func(_ context.Context, task model.AnalysisTask) (string, error) {
		time.Sleep(delay[task.Endpoint])
		return "result-" + task.Endpoint, nil
	})

	require.Len(t, outcomes, 3)
	assert.Equal(t, "C", outcomes[0].Endpoint)
	assert.Equal(t, "A", outcomes[1].Endpoint)
	assert.Equal(t, "B", outcomes[2].Endpoint)
	assert.Equal(t, "result-A", outcomes[1].Result)
}

func TestRun_PartialFailureTolerated(t *testing.T) {
	t.Parallel()

	entities := []model.Entity{entity("1", "A"), entity("2", "B"), entity("3", "C")}
	tasks := BuildTasks(entities, []model.DocumentHandle{handle("A"), handle("B"), handle("C")})

	outcomes := Run(context.Background(), entities, tasks, 2, func(_ context.Context, task model.AnalysisTask) ([]string, error) {
		switch task.Endpoint {
		case "B":
			return nil, errors.New("model overloaded")
		case "C":
			panic("unexpected nil")
		}
		return []string{}, nil
	})

	require.Len(t, outcomes, 3)
	assert.False(t, outcomes[0].Failed())
	assert.NotNil(t, outcomes[0].Result)
	assert.Empty(t, outcomes[0].Result)

	assert.True(t, outcomes[1].Failed())
	assert.EqualError(t, outcomes[1].Err, "model overloaded")

	assert.True(t, outcomes[2].Failed())
	assert.Contains(t, outcomes[2].Err.Error(), "panicked")

	ok, failed := Summary(outcomes)
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, failed)
}

func TestRun_RespectsWorkerLimit(t *testing.T) {
	t.Parallel()

	var entities []model.Entity
	var handles []model.DocumentHandle
	for _, ep := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		entities = append(entities, entity(ep, ep))
		handles = append(handles, handle(ep))
	}

	var running, peak atomic.Int32
	Run(context.Background(), entities, BuildTasks(entities, handles), 2, func(_ context.Context, _ model.AnalysisTask) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return 0, nil
	})

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRun_EachTaskOnce(t *testing.T) {
	t.Parallel()

	entities := []model.Entity{entity("1", "X"), entity("2", "X")}
	var calls atomic.Int32
	outcomes := Run(context.Background(), entities, BuildTasks(entities, []model.DocumentHandle{handle("X")}), 0,
		func(_ context.Context, task model.AnalysisTask) (int, error) {
			calls.Add(1)
			return len(task.Entities), nil
		})

	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, outcomes, 1)
	assert.Equal(t, 2, outcomes[0].Result)
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entities := []model.Entity{entity("1", "X")}
	outcomes := Run(ctx, entities, BuildTasks(entities, []model.DocumentHandle{handle("X")}), 1,
		func(_ context.Context, _ model.AnalysisTask) (int, error) {
			t.Error("should not be called")
			return 0, nil
		})
	require.Len(t, outcomes, 1)
	assert.Contains(t, outcomes[0].Err.Error(), "context canceled")
}

func TestPerEntity_FansSharedResult(t *testing.T) {
	t.Parallel()

	entities := []model.Entity{entity("1", "X"), entity("2", "Y"), entity("3", "X"), entity("4", "Z")}
	outcomes := []model.AnalysisOutcome[string]{
		{Endpoint: "X", Link: "x.pdf", Result: "same"},
		{Endpoint: "Y", Link: "y.pdf", Err: errors.New("boom")},
	}

	got := PerEntity(entities, outcomes)
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].Entity.ID)
	assert.Equal(t, "same", got[0].Result)
	assert.Equal(t, "2", got[1].Entity.ID)
	assert.True(t, got[1].Failed())
	assert.Equal(t, "3", got[2].Entity.ID)
	assert.Equal(t, "same", got[2].Result)
}
