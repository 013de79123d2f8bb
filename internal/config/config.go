package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
	Resolve    ResolveConfig    `yaml:"resolve" mapstructure:"resolve"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the reference dataset and the persisted event set.
type DataConfig struct {
	ChurchesPath string `yaml:"churches_path" mapstructure:"churches_path"`
	EventsPath   string `yaml:"events_path" mapstructure:"events_path"`
	BulletinsDir string `yaml:"bulletins_dir" mapstructure:"bulletins_dir"`
}

// ReportConfig configures the run report.
type ReportConfig struct {
	Output string `yaml:"output" mapstructure:"output"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ResolveConfig configures bulletin link resolution.
type ResolveConfig struct {
	MaxAttempts       int       `yaml:"max_attempts" mapstructure:"max_attempts"`
	DelaysSecs        []float64 `yaml:"delays_secs" mapstructure:"delays_secs"`
	TimeoutSecs       int       `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestIntervalMs int       `yaml:"request_interval_ms" mapstructure:"request_interval_ms"`
	PreferredDomains  []string  `yaml:"preferred_domains" mapstructure:"preferred_domains"`
	UserAgent         string    `yaml:"user_agent" mapstructure:"user_agent"`

	// Renderers are tried in order when a page serves a challenge:
	// "firecrawl" and/or "jina".
	Renderers    []string `yaml:"renderers" mapstructure:"renderers"`
	FirecrawlKey string   `yaml:"firecrawl_key" mapstructure:"firecrawl_key"`
	JinaKey      string   `yaml:"jina_key" mapstructure:"jina_key"`
}

// FetchConfig configures bulletin downloads.
type FetchConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnalysisConfig configures the analysis worker pool.
type AnalysisConfig struct {
	Workers          int    `yaml:"workers" mapstructure:"workers"`
	Input            string `yaml:"input" mapstructure:"input"`
	MaxTokens        int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int    `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MaxPages      int    `yaml:"max_pages" mapstructure:"max_pages"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RefreshCron    string   `yaml:"refresh_cron" mapstructure:"refresh_cron"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures run health alerts in serve mode.
type MonitoringConfig struct {
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold    float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	UnresolvedRateThreshold float64 `yaml:"unresolved_rate_threshold" mapstructure:"unresolved_rate_threshold"`
	StaleEventsHours        int     `yaml:"stale_events_hours" mapstructure:"stale_events_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BULLETIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.churches_path", "data/churches.json")
	v.SetDefault("data.events_path", "data/events.json")
	v.SetDefault("data.bulletins_dir", "bulletins")
	v.SetDefault("report.output", "")
	v.SetDefault("report.format", "markdown")
	v.SetDefault("resolve.max_attempts", 10)
	v.SetDefault("resolve.delays_secs", []float64{1, 2, 4, 8, 16})
	v.SetDefault("resolve.timeout_secs", 15)
	v.SetDefault("resolve.request_interval_ms", 500)
	v.SetDefault("resolve.preferred_domains", []string{"parishbulletins.com", "files.ecatholic.com"})
	v.SetDefault("resolve.user_agent", "Mozilla/5.0 (compatible; bulletin-cli/1.0)")
	v.SetDefault("resolve.renderers", []string{})
	v.SetDefault("resolve.firecrawl_key", "")
	v.SetDefault("resolve.jina_key", "")
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("analysis.workers", 10)
	v.SetDefault("analysis.input", "pdf")
	v.SetDefault("analysis.max_tokens", 8192)
	v.SetDefault("analysis.failure_threshold", 5)
	v.SetDefault("analysis.reset_timeout_secs", 60)
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.max_pages", 0)
	v.SetDefault("ocr.timeout_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "bulletin.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.refresh_cron", "")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.unresolved_rate_threshold", 0.5)
	v.SetDefault("monitoring.stale_events_hours", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the keys required by the given command mode.
func (c *Config) Validate(mode string) error {
	var errs []string
	need := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	need(c.Data.ChurchesPath != "", "data.churches_path is required")
	need(c.Resolve.MaxAttempts >= 1, "resolve.max_attempts must be >= 1")
	need(c.Resolve.TimeoutSecs > 0, "resolve.timeout_secs must be > 0")
	for _, r := range c.Resolve.Renderers {
		switch r {
		case "firecrawl":
			need(c.Resolve.FirecrawlKey != "", "resolve.firecrawl_key is required for the firecrawl renderer")
		case "jina":
		default:
			errs = append(errs, fmt.Sprintf("resolve.renderers: unknown renderer %q", r))
		}
	}

	analyze := func() {
		need(c.Anthropic.Key != "", "anthropic.key is required")
		need(c.Analysis.Workers >= 1 && c.Analysis.Workers <= 64, "analysis.workers must be between 1 and 64")
		need(c.Analysis.Input == "pdf" || c.Analysis.Input == "text", "analysis.input must be pdf or text")
		need(c.Data.BulletinsDir != "", "data.bulletins_dir is required")
	}

	switch mode {
	case "links":
	case "mass":
		analyze()
	case "events":
		analyze()
		need(c.Data.EventsPath != "", "data.events_path is required")
	case "serve":
		need(c.Server.Port > 0, "server.port must be > 0")
		need(c.Data.EventsPath != "", "data.events_path is required")
		if c.Server.RefreshCron != "" {
			analyze()
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Report.Format {
	case "", "markdown", "yaml":
	default:
		errs = append(errs, fmt.Sprintf("report.format %q must be markdown or yaml", c.Report.Format))
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
