package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bulletin-cli/internal/config"
	"github.com/sells-group/bulletin-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// steppingClock returns a clock that advances one minute per call.
func steppingClock() func() time.Time {
	t := time.Date(2025, 11, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunModeEvents)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, model.RunModeEvents, got.Mode)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.Result)
	assert.Empty(t, got.Resolutions)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunModeMass)
	require.NoError(t, err)

	result := &model.RunResult{Entities: 12, Endpoints: 8, Resolved: 7, Unresolved: 1, Downloaded: 7, TasksSucceeded: 6, TasksFailed: 1, Changes: 3}
	require.NoError(t, st.CompleteRun(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, *result, *got.Result)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteRun(context.Background(), "missing", &model.RunResult{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunModeLinks)
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "registry: open data/churches.json: no such file"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "no such file")

	assert.True(t, errors.Is(st.FailRun(ctx, "missing", "x"), ErrNotFound))
}

func TestSQLite_RecordResolutions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.RunModeLinks)
	require.NoError(t, err)

	results := []model.ResolutionResult{
		{Endpoint: "https://b.example.org", Link: "https://parishbulletins.com/b.pdf", Candidates: []string{"https://parishbulletins.com/b.pdf", "https://b.example.org/old.pdf"}, Attempts: 1},
		{Endpoint: "https://a.example.org", Error: "resolve: status 503", Attempts: 10},
	}
	require.NoError(t, st.RecordResolutions(ctx, run.ID, results))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got.Resolutions, 2)
	assert.Equal(t, results[0], got.Resolutions[0])
	assert.Equal(t, "https://a.example.org", got.Resolutions[1].Endpoint)
	assert.Empty(t, got.Resolutions[1].Candidates)
	assert.Equal(t, 10, got.Resolutions[1].Attempts)

	// Re-recording replaces rows instead of failing on the primary key.
	require.NoError(t, st.RecordResolutions(ctx, run.ID, results[:1]))
	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Resolutions, 2)
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	st.now = steppingClock()
	ctx := context.Background()

	first, err := st.CreateRun(ctx, model.RunModeLinks)
	require.NoError(t, err)
	second, err := st.CreateRun(ctx, model.RunModeEvents)
	require.NoError(t, err)
	third, err := st.CreateRun(ctx, model.RunModeEvents)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, third.ID, &model.RunResult{EventsNew: 2}))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	events, err := st.ListRuns(ctx, RunFilter{Mode: model.RunModeEvents})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, 2, complete[0].Result.EventsNew)

	paged, err := st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, second.ID, paged[0].ID)
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "bulletin.db"),
	})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	run, err := st.CreateRun(context.Background(), model.RunModeLinks)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "mongo"`)
}
