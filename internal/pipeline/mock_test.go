package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/resilience"
	"github.com/sells-group/bulletin-cli/internal/resolve"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Mass(ctx context.Context, task model.AnalysisTask) (map[string]model.Schedule, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]model.Schedule), args.Error(1)
}

func (m *mockAnalyzer) Events(ctx context.Context, task model.AnalysisTask, existing []model.EventRecord) ([]model.EventRecord, error) {
	args := m.Called(ctx, task, existing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EventRecord), args.Error(1)
}

// fakeFetcher writes a stub PDF for every link except those listed in fail.
type fakeFetcher struct {
	mu   sync.Mutex
	fail map[string]bool
	got  []string
}

func (f *fakeFetcher) DownloadToFile(_ context.Context, url string, path string) (int64, error) {
	f.mu.Lock()
	f.got = append(f.got, url)
	f.mu.Unlock()
	if f.fail[url] {
		return 0, eris.Errorf("fetch: %s returned 404", url)
	}
	body := []byte("%PDF-1.4 " + url)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}

// linkTable resolves endpoints from a fixed table. Endpoints mapped to ""
// have no bulletin; endpoints containing "broken" always fail.
func linkTable(links map[string]string) resolve.Resolver {
	return resolve.ResolverFunc(func(_ context.Context, endpoint string) (resolve.Resolution, error) {
		if strings.Contains(endpoint, "broken") {
			return resolve.Resolution{}, eris.New("connection refused")
		}
		link := links[endpoint]
		if link == "" {
			return resolve.Resolution{}, nil
		}
		return resolve.Resolution{Link: link, Candidates: []string{link}}, nil
	})
}

func noSleepRetry(attempts int) *resilience.RetryConfig {
	cfg := resilience.ScheduleConfig(attempts, time.Millisecond)
	cfg.Sleep = func(context.Context, time.Duration) error { return nil }
	return &cfg
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 11, 28, 9, 30, 0, 0, time.UTC) }
}

// sequentialIDs returns ids evt00001, evt00002, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("evt%05d", n)
	}
}
