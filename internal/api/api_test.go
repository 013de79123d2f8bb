package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bulletin-cli/internal/events"
	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/monitoring"
	"github.com/sells-group/bulletin-cli/internal/store"
)

type fixture struct {
	srv        *httptest.Server
	store      *store.SQLiteStore
	eventsPath string
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{eventsPath: filepath.Join(dir, "events.json")}

	require.NoError(t, events.Save(f.eventsPath, []model.EventRecord{
		{ID: "late0001", Title: "Advent Concert", Date: "2025-12-14", StartTime: model.Str("1900"), FamilyOfParishes: "All Hallows"},
		{ID: "early001", Title: "Fish Fry", Date: "2025-12-05", FamilyOfParishes: "Holy Trinity"},
		{ID: "mid00001", Title: "Bake Sale", Date: "2025-12-07", StartTime: model.Str("1000"), FamilyOfParishes: "All Hallows"},
	}))

	opts := Options{
		EventsPath: f.eventsPath,
		Location:   time.UTC,
		Gatherer:   prometheus.NewRegistry(),
		Now:        func() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) },
	}
	if withStore {
		st, err := store.NewSQLite(filepath.Join(dir, "runs.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() }) //nolint:errcheck
		require.NoError(t, st.Migrate(context.Background()))
		f.store = st
		opts.Store = st
		opts.Collector = monitoring.NewCollector(st)
	}

	f.srv = httptest.NewServer(NewRouter(opts))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	resp := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestListEvents_SortedAndFiltered(t *testing.T) {
	f := newFixture(t, false)

	var all []model.EventRecord
	resp := f.get(t, "/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	require.Len(t, all, 3)
	assert.Equal(t, []string{"early001", "mid00001", "late0001"}, []string{all[0].ID, all[1].ID, all[2].ID})

	var family []model.EventRecord
	resp = f.get(t, "/events?family=All+Hallows&from=2025-12-08")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&family))
	require.Len(t, family, 1)
	assert.Equal(t, "late0001", family[0].ID)
}

func TestListEvents_MalformedFile(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, os.WriteFile(f.eventsPath, []byte("[{"), 0o644))

	resp := f.get(t, "/events")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCalendar(t *testing.T) {
	f := newFixture(t, false)
	resp := f.get(t, "/events.ics?family=Holy+Trinity")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/calendar"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "SUMMARY:Fish Fry")
	assert.NotContains(t, string(body), "Bake Sale")
}

func TestRuns(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	run, err := f.store.CreateRun(ctx, model.RunModeLinks)
	require.NoError(t, err)
	require.NoError(t, f.store.RecordResolutions(ctx, run.ID, []model.ResolutionResult{
		{Endpoint: "https://stjohn.example.org", Link: "https://files.example.com/a.pdf", Attempts: 1},
	}))
	require.NoError(t, f.store.CompleteRun(ctx, run.ID, &model.RunResult{Entities: 2, Resolved: 1}))

	var runs []model.Run
	resp := f.get(t, "/runs?mode=links&limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	var got model.Run
	resp = f.get(t, "/runs/"+run.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.Len(t, got.Resolutions, 1)
	assert.Equal(t, "https://files.example.com/a.pdf", got.Resolutions[0].Link)

	resp = f.get(t, "/runs?mode=mass")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	assert.Empty(t, runs)
}

func TestRuns_Errors(t *testing.T) {
	f := newFixture(t, true)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/runs/missing").StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/runs?limit=-1").StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/runs?offset=abc").StatusCode)

	noStore := newFixture(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, noStore.get(t, "/runs").StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, noStore.get(t, "/runs/x").StatusCode)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, false)
	resp := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, false)
	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://parishes.example.org")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatus(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	done, err := f.store.CreateRun(ctx, model.RunModeEvents)
	require.NoError(t, err)
	require.NoError(t, f.store.CompleteRun(ctx, done.ID, &model.RunResult{Endpoints: 4, Unresolved: 1}))
	failed, err := f.store.CreateRun(ctx, model.RunModeMass)
	require.NoError(t, err)
	require.NoError(t, f.store.FailRun(ctx, failed.ID, "analyzer unavailable"))

	var snap monitoring.MetricsSnapshot
	resp := f.get(t, "/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, 2, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 4, snap.Endpoints)
	assert.InDelta(t, 0.25, snap.UnresolvedRate, 0.0001)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.LastEventsRun.IsZero())

	assert.Equal(t, http.StatusBadRequest, f.get(t, "/status?hours=0").StatusCode)
	assert.Equal(t, http.StatusServiceUnavailable, newFixture(t, false).get(t, "/status").StatusCode)
}
