package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/analysis"
	"github.com/sells-group/bulletin-cli/internal/fetcher"
	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/pipeline"
	"github.com/sells-group/bulletin-cli/internal/registry"
	"github.com/sells-group/bulletin-cli/internal/resolve"
	"github.com/sells-group/bulletin-cli/internal/store"
	anthropicpkg "github.com/sells-group/bulletin-cli/pkg/anthropic"
	"github.com/sells-group/bulletin-cli/pkg/firecrawl"
	"github.com/sells-group/bulletin-cli/pkg/jina"
)

// pipelineEnv holds the store, metrics registry and pipeline needed by the
// links/analyze/events/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Registry *prometheus.Registry
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config for mode, opens the run store and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open run store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := pipeline.Deps{
		Store: st,
		Resolver: newResolver(),
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent: cfg.Resolve.UserAgent,
			Timeout:   seconds(cfg.Fetch.TimeoutSecs),
		}),
		Metrics: pipeline.NewMetrics(reg),
	}
	if needsAnalyzer(mode) {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		deps.Analyzer = analysis.New(client, analysis.OptionsFromConfig(cfg))
		zap.L().Info("analyzer enabled",
			zap.String("model", cfg.Anthropic.Model),
			zap.String("input", cfg.Analysis.Input),
			zap.Int("workers", cfg.Analysis.Workers),
		)
	}

	p, err := pipeline.New(cfg, deps)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &pipelineEnv{Store: st, Pipeline: p, Registry: reg}, nil
}

func needsAnalyzer(mode string) bool {
	switch mode {
	case "mass", "events":
		return true
	case "serve":
		return cfg.Server.RefreshCron != ""
	default:
		return false
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func loadEntities() ([]model.Entity, error) {
	return registry.LoadEntitiesFromFile(cfg.Data.ChurchesPath)
}

// openReport returns the report destination: the file at path, or stdout
// when path is empty. The returned close func must always be called.
func openReport(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, eris.Wrapf(err, "create report dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create report %s", path)
	}
	return f, f.Close, nil
}

type modeFunc func(ctx context.Context, p *pipeline.Pipeline, entities []model.Entity, out io.Writer) (*model.RunResult, error)

// runMode loads the dataset, runs fn against a fresh pipeline and writes the
// report to the configured output.
func runMode(ctx context.Context, mode string, fn modeFunc) error {
	env, err := initPipeline(ctx, mode)
	if err != nil {
		return err
	}
	defer env.Close()

	entities, err := loadEntities()
	if err != nil {
		return err
	}

	out, closeOut, err := openReport(cfg.Report.Output)
	if err != nil {
		return err
	}

	result, runErr := fn(ctx, env.Pipeline, entities, out)
	if err := closeOut(); err != nil && runErr == nil {
		runErr = eris.Wrap(err, "close report")
	}
	if runErr != nil {
		return runErr
	}

	zap.L().Info("run finished",
		zap.String("mode", mode),
		zap.Int("resolved", result.Resolved),
		zap.Int("unresolved", result.Unresolved),
		zap.Int("tasks_failed", result.TasksFailed),
		zap.String("report", cfg.Report.Output),
	)
	return nil
}

// newResolver builds the HTTP resolver, chained to the configured renderers
// for pages that serve a challenge.
func newResolver() resolve.Resolver {
	primary := resolve.NewHTTPResolver(resolve.HTTPOptions{
		Timeout:          seconds(cfg.Resolve.TimeoutSecs),
		RequestInterval:  time.Duration(cfg.Resolve.RequestIntervalMs) * time.Millisecond,
		PreferredDomains: cfg.Resolve.PreferredDomains,
		UserAgent:        cfg.Resolve.UserAgent,
	})
	if len(cfg.Resolve.Renderers) == 0 {
		return primary
	}

	var renderers []resolve.Renderer
	for _, name := range cfg.Resolve.Renderers {
		switch name {
		case "firecrawl":
			renderers = append(renderers, &resolve.FirecrawlRenderer{Client: firecrawl.NewClient(cfg.Resolve.FirecrawlKey)})
		case "jina":
			renderers = append(renderers, &resolve.JinaRenderer{Client: jina.NewClient(cfg.Resolve.JinaKey)})
		}
	}
	return resolve.NewChainResolver(primary, cfg.Resolve.PreferredDomains, renderers...)
}
