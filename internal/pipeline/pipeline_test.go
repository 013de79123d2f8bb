package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bulletin-cli/internal/config"
	"github.com/sells-group/bulletin-cli/internal/events"
	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/store"
)

const (
	linkA = "https://files.example.com/ahcfop.pdf"
	linkC = "https://files.example.com/stclement.pdf"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Data: config.DataConfig{
			EventsPath:   filepath.Join(dir, "events.json"),
			BulletinsDir: filepath.Join(dir, "bulletins"),
		},
		Report:   config.ReportConfig{Format: "markdown"},
		Resolve:  config.ResolveConfig{MaxAttempts: 2},
		Analysis: config.AnalysisConfig{Workers: 4},
	}
}

func testEntities() []model.Entity {
	return []model.Entity{
		{ID: "1", Name: "St. John the Baptist", FamilyOfParishes: "All Hallows", Endpoint: "https://stjohn.example.org/bulletins",
			Schedule: model.Schedule{Masses: model.Slots(model.Slot{Day: "Sunday", Time: "0900"})}},
		{ID: "2", Name: "St. Anthony of Padua", FamilyOfParishes: "All Hallows", Endpoint: "https://stjohn.example.org/bulletins",
			Schedule: model.Schedule{Masses: model.Slots(model.Slot{Day: "Sunday", Time: "1100"})}},
		{ID: "3", Name: "St. Clement", FamilyOfParishes: "Holy Trinity", Endpoint: "https://stclement.example.org"},
		{ID: "4", Name: "St. Mary", Endpoint: "https://broken.example.org"},
		{ID: "5", Name: "St. Paul", Endpoint: model.NoEndpoint},
	}
}

func testLinks() map[string]string {
	return map[string]string{
		"https://stjohn.example.org/bulletins": linkA,
		"https://stclement.example.org":        linkC,
	}
}

func forLink(link string) any {
	return mock.MatchedBy(func(task model.AnalysisTask) bool { return task.Link == link })
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func onlyRun(t *testing.T, st store.Store) model.Run {
	t.Helper()
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run, err := st.GetRun(context.Background(), runs[0].ID)
	require.NoError(t, err)
	return *run
}

func TestNew_RequiresResolver(t *testing.T) {
	_, err := New(testConfig(t), Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolver is required")
}

func TestNew_ResolveRetryFromConfig(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(cfg, Deps{Resolver: linkTable(nil)})
	require.NoError(t, err)
	assert.Equal(t, 2, p.retry.MaxAttempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}, p.retry.Delays)

	cfg.Resolve.DelaysSecs = []float64{0.5, 3}
	p, err = New(cfg, Deps{Resolver: linkTable(nil)})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 3 * time.Second}, p.retry.Delays)
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Format = "html"
	_, err := New(cfg, Deps{Resolver: linkTable(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report format")
}

func TestLinks(t *testing.T) {
	st := newTestStore(t)
	metrics := NewMetrics(prometheus.NewRegistry())
	p, err := New(testConfig(t), Deps{
		Store:    st,
		Resolver: linkTable(testLinks()),
		Metrics:  metrics,
		Retry:    noSleepRetry(2),
		Now:      fixedClock(),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := p.Links(context.Background(), testEntities(), &buf)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Entities)
	assert.Equal(t, 3, result.Endpoints)
	assert.Equal(t, 2, result.Resolved)
	assert.Equal(t, 1, result.Unresolved)

	out := buf.String()
	assert.Contains(t, out, "# Bulletin Links")
	assert.Contains(t, out, "https://stjohn.example.org/bulletins | "+linkA)
	assert.Contains(t, out, "https://broken.example.org | NOT FOUND")
	assert.Contains(t, out, "retrieved from cache")

	run := onlyRun(t, st)
	assert.Equal(t, model.RunModeLinks, run.Mode)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 2, run.Result.Resolved)
	require.Len(t, run.Resolutions, 3)
	assert.Equal(t, 2, run.Resolutions[2].Attempts)
	assert.Contains(t, run.Resolutions[2].Error, "connection refused")

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Resolutions.WithLabelValues("resolved")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Resolutions.WithLabelValues("unresolved")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Runs.WithLabelValues("links", "complete")), 0)
}

func TestLinks_YAMLWithoutStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Format = "yaml"
	p, err := New(cfg, Deps{Resolver: linkTable(testLinks()), Retry: noSleepRetry(1), Now: fixedClock()})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = p.Links(context.Background(), testEntities(), &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "simple:")
	assert.Contains(t, buf.String(), "link: NOT FOUND")
}

func TestMass(t *testing.T) {
	st := newTestStore(t)
	az := new(mockAnalyzer)
	az.On("Mass", mock.Anything, forLink(linkA)).Return(map[string]model.Schedule{
		"1": {Masses: model.Slots(model.Slot{Day: "Sunday", Time: "0900"})},
		"2": {Masses: model.Slots(model.Slot{Day: "Sunday", Time: "1030"})},
	}, nil)
	az.On("Mass", mock.Anything, forLink(linkC)).Return(nil, eris.New("analysis: mass: model overloaded"))

	cfg := testConfig(t)
	f := &fakeFetcher{}
	p, err := New(cfg, Deps{
		Store:    st,
		Resolver: linkTable(testLinks()),
		Fetcher:  f,
		Analyzer: az,
		Retry:    noSleepRetry(2),
		Now:      fixedClock(),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := p.Mass(context.Background(), testEntities(), &buf)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 1, result.TasksSucceeded)
	assert.Equal(t, 1, result.TasksFailed)
	assert.Equal(t, 1, result.Changes)
	assert.ElementsMatch(t, []string{linkA, linkC}, f.got)
	assert.FileExists(t, filepath.Join(cfg.Data.BulletinsDir, "bulletin_1.pdf"))
	assert.FileExists(t, filepath.Join(cfg.Data.BulletinsDir, "bulletin_2.pdf"))

	out := buf.String()
	assert.Contains(t, out, "# Bulletin Analysis Report")
	assert.Contains(t, out, "- Suggested changes: 1")
	assert.Contains(t, out, "**Masses**")
	assert.Contains(t, out, "\"time\": \"1030\"")
	assert.Contains(t, out, "Analysis failed: analysis: mass: model overloaded")
	assert.Contains(t, out, "| "+linkC+" | analysis failed |")
	assert.Contains(t, out, "| "+linkA+" | changes suggested (1) |")

	// Sections follow entity order, not completion order.
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("### "+linkA)), bytes.Index(buf.Bytes(), []byte("### "+linkC)))

	run := onlyRun(t, st)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 1, run.Result.Changes)
	az.AssertExpectations(t)
}

func TestMass_SkipsFailedDownloads(t *testing.T) {
	az := new(mockAnalyzer)
	az.On("Mass", mock.Anything, forLink(linkA)).Return(map[string]model.Schedule{}, nil)

	p, err := New(testConfig(t), Deps{
		Resolver: linkTable(testLinks()),
		Fetcher:  &fakeFetcher{fail: map[string]bool{linkC: true}},
		Analyzer: az,
		Retry:    noSleepRetry(1),
		Now:      fixedClock(),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := p.Mass(context.Background(), testEntities(), &buf)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.TasksSucceeded)
	assert.Zero(t, result.TasksFailed)
	az.AssertNumberOfCalls(t, "Mass", 1)
	assert.NotContains(t, buf.String(), linkC)
}

func TestMass_RequiresAnalyzer(t *testing.T) {
	p, err := New(testConfig(t), Deps{Resolver: linkTable(nil)})
	require.NoError(t, err)
	_, err = p.Mass(context.Background(), testEntities(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyzer is required")
}

func seedEvents(t *testing.T, path string) []model.EventRecord {
	t.Helper()
	existing := []model.EventRecord{{
		ID:               "keep0001",
		Title:            "Choir",
		Date:             "2025-12-03",
		FamilyOfParishes: "All Hallows",
		Tags:             []string{},
	}}
	require.NoError(t, events.Save(path, existing))
	return existing
}

func eventsAnalyzer() *mockAnalyzer {
	az := new(mockAnalyzer)
	az.On("Events", mock.Anything, forLink(linkA), mock.Anything).Return([]model.EventRecord{
		{ID: "keep0001", Title: "Choir Practice", Date: "2025-12-03"},
		{Title: "Bake Sale", Date: "2025-12-07", StartTime: model.Str("1000")},
		{Title: "", Date: "2025-12-08"},
	}, nil)
	az.On("Events", mock.Anything, forLink(linkC), mock.Anything).Return([]model.EventRecord{
		{Title: "Fish Fry", Date: "2025-12-05"},
	}, nil)
	return az
}

func TestEvents_Write(t *testing.T) {
	cfg := testConfig(t)
	existing := seedEvents(t, cfg.Data.EventsPath)
	az := eventsAnalyzer()
	metrics := NewMetrics(prometheus.NewRegistry())

	p, err := New(cfg, Deps{
		Resolver: linkTable(testLinks()),
		Fetcher:  &fakeFetcher{},
		Analyzer: az,
		Metrics:  metrics,
		Retry:    noSleepRetry(1),
		Now:      fixedClock(),
		NewID:    sequentialIDs(),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := p.Events(context.Background(), testEntities(), &buf, true)
	require.NoError(t, err)

	assert.Equal(t, 2, result.EventsNew)
	assert.Equal(t, 1, result.EventsUpdated)
	assert.Equal(t, 3, result.EventsTotal)

	saved, err := events.Load(cfg.Data.EventsPath)
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, "keep0001", saved[0].ID)
	assert.Equal(t, "Choir Practice", saved[0].Title)
	assert.Equal(t, "evt00001", saved[1].ID)
	assert.Equal(t, "Bake Sale", saved[1].Title)
	assert.Equal(t, linkA, saved[1].SourceLink)
	assert.Equal(t, "All Hallows", saved[1].FamilyOfParishes)
	assert.Equal(t, "2025-11-28T09:30:00Z", saved[1].ExtractedAt)
	assert.Equal(t, "evt00002", saved[2].ID)
	assert.Equal(t, "Holy Trinity", saved[2].FamilyOfParishes)

	out := buf.String()
	assert.Contains(t, out, "Events file updated.")
	assert.Contains(t, out, "Dropped 1 invalid event(s).")
	assert.Contains(t, out, "| new | 2025-12-07 | 1000 | Bake Sale |")
	assert.Contains(t, out, "| keep0001 | 2025-12-03 | all day | Choir Practice |")

	// Every task sees the set as it was before the run.
	for _, call := range az.Calls {
		assert.Equal(t, existing, call.Arguments.Get(2))
	}
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.EventsMerged.WithLabelValues("new")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Analyses.WithLabelValues("events", "ok")), 0)
}

func TestEvents_DryRunLeavesFile(t *testing.T) {
	cfg := testConfig(t)
	seedEvents(t, cfg.Data.EventsPath)
	before, err := os.ReadFile(cfg.Data.EventsPath)
	require.NoError(t, err)

	p, err := New(cfg, Deps{
		Resolver: linkTable(testLinks()),
		Fetcher:  &fakeFetcher{},
		Analyzer: eventsAnalyzer(),
		Retry:    noSleepRetry(1),
		Now:      fixedClock(),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := p.Events(context.Background(), testEntities(), &buf, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.EventsTotal)

	after, err := os.ReadFile(cfg.Data.EventsPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Contains(t, buf.String(), "Dry run")
}

func TestEvents_MalformedFileFailsRun(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Data.EventsPath, []byte("{not json"), 0o644))
	st := newTestStore(t)
	az := new(mockAnalyzer)

	p, err := New(cfg, Deps{
		Store:    st,
		Resolver: linkTable(testLinks()),
		Fetcher:  &fakeFetcher{},
		Analyzer: az,
		Retry:    noSleepRetry(1),
		Now:      fixedClock(),
	})
	require.NoError(t, err)

	_, err = p.Events(context.Background(), testEntities(), &bytes.Buffer{}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events: parse")

	run := onlyRun(t, st)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "events: parse")
	az.AssertNotCalled(t, "Events", mock.Anything, mock.Anything, mock.Anything)

	data, err := os.ReadFile(cfg.Data.EventsPath)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}
