package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/churches.json", cfg.Data.ChurchesPath)
	assert.Equal(t, "data/events.json", cfg.Data.EventsPath)
	assert.Equal(t, "markdown", cfg.Report.Format)
	assert.Equal(t, 10, cfg.Resolve.MaxAttempts)
	assert.Equal(t, []float64{1, 2, 4, 8, 16}, cfg.Resolve.DelaysSecs)
	assert.Equal(t, 15, cfg.Resolve.TimeoutSecs)
	assert.Equal(t, 500, cfg.Resolve.RequestIntervalMs)
	assert.Equal(t, []string{"parishbulletins.com", "files.ecatholic.com"}, cfg.Resolve.PreferredDomains)
	assert.Equal(t, 20, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 10, cfg.Analysis.Workers)
	assert.Equal(t, "pdf", cfg.Analysis.Input)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
  format: console
analysis:
  workers: 4
resolve:
  preferred_domains:
    - example.org
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, []string{"example.org"}, cfg.Resolve.PreferredDomains)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Resolve.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("BULLETIN_STORE_DRIVER", "sqlite")
	t.Setenv("BULLETIN_LOG_LEVEL", "warn")
	t.Setenv("BULLETIN_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("BULLETIN_ANTHROPIC_KEY", "sk-ant-env")
	t.Setenv("BULLETIN_RESOLVE_FIRECRAWL_KEY", "fc-env")
	t.Setenv("BULLETIN_RESOLVE_JINA_KEY", "jina-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-ant-env", cfg.Anthropic.Key)
	assert.Equal(t, "fc-env", cfg.Resolve.FirecrawlKey)
	assert.Equal(t, "jina-env", cfg.Resolve.JinaKey)
	assert.NoError(t, cfg.Validate("events"))
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unterminated"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

// validDefaults returns a Config with defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Data.ChurchesPath = "churches.json"
	cfg.Data.EventsPath = "events.json"
	cfg.Data.BulletinsDir = "bulletins"
	cfg.Resolve.MaxAttempts = 10
	cfg.Resolve.TimeoutSecs = 15
	cfg.Analysis.Workers = 10
	cfg.Analysis.Input = "pdf"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateLinks(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("links"))

	cfg.Data.ChurchesPath = ""
	err := cfg.Validate("links")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.churches_path is required")
}

func TestValidateAnalysisModes(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("mass")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant"
	assert.NoError(t, cfg.Validate("mass"))
	assert.NoError(t, cfg.Validate("events"))

	cfg.Analysis.Workers = 0
	err = cfg.Validate("events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.workers must be between 1 and 64")

	cfg.Analysis.Workers = 10
	cfg.Analysis.Input = "html"
	err = cfg.Validate("mass")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.input")
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.RefreshCron = "0 6 * * 1"
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Server.Port = 0
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateRenderers(t *testing.T) {
	cfg := validDefaults()
	cfg.Resolve.Renderers = []string{"jina"}
	assert.NoError(t, cfg.Validate("links"))

	cfg.Resolve.Renderers = []string{"firecrawl", "jina"}
	err := cfg.Validate("links")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve.firecrawl_key is required")

	cfg.Resolve.FirecrawlKey = "fc-key"
	assert.NoError(t, cfg.Validate("links"))

	cfg.Resolve.Renderers = []string{"browserless"}
	err = cfg.Validate("links")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown renderer "browserless"`)
}

func TestValidateReportFormat(t *testing.T) {
	cfg := validDefaults()
	cfg.Report.Format = "html"
	err := cfg.Validate("links")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report.format")
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
