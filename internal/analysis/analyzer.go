// Package analysis extracts schedules and events from downloaded bulletins
// with the Anthropic Messages API.
package analysis

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/config"
	"github.com/sells-group/bulletin-cli/internal/events"
	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/ocr"
	"github.com/sells-group/bulletin-cli/internal/resilience"
	"github.com/sells-group/bulletin-cli/pkg/anthropic"
)

// Input modes for sending a bulletin to the model.
const (
	InputPDF  = "pdf"
	InputText = "text"
)

// Options configures an Analyzer.
type Options struct {
	Model     string
	MaxTokens int64
	Input     string
	Extractor ocr.Extractor
	Breaker   *resilience.CircuitBreaker
	Retry     resilience.RetryConfig
	Now       func() time.Time
}

// OptionsFromConfig builds Options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:     cfg.Anthropic.Model,
		MaxTokens: int64(cfg.Analysis.MaxTokens),
		Input:     cfg.Analysis.Input,
		Extractor: ocr.NewExtractor(cfg.OCR),
		Breaker: resilience.NewCircuitBreaker(resilience.FromCircuitConfig(
			"anthropic", cfg.Analysis.FailureThreshold, cfg.Analysis.ResetTimeoutSecs,
		)),
		Retry: APIRetryConfig(),
	}
}

// APIRetryConfig retries overloaded and rate-limited Messages API calls with
// jittered exponential backoff.
func APIRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = retryableAPIError
	cfg.OnRetry = resilience.RetryLogger("anthropic", "messages")
	return cfg
}

// statusOverloaded is the Messages API's overloaded_error status.
const statusOverloaded = 529

func retryableAPIError(err error) bool {
	if code := anthropic.StatusCode(err); code != 0 {
		return code == statusOverloaded || resilience.IsTransientHTTPStatus(code)
	}
	return resilience.IsTransient(err)
}

// Analyzer sends bulletins to the model and parses its answers. It is safe
// for concurrent use.
type Analyzer struct {
	client anthropic.Client
	opts   Options
}

// New creates an Analyzer.
func New(client anthropic.Client, opts Options) *Analyzer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 8192
	}
	if opts.Input == "" {
		opts.Input = InputPDF
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	// A zero Retry means a single attempt.
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	if opts.Retry.ShouldRetry == nil {
		opts.Retry.ShouldRetry = retryableAPIError
	}
	return &Analyzer{client: client, opts: opts}
}

// Mass extracts the schedule of every church sharing the task's bulletin,
// keyed by church id.
func (a *Analyzer) Mass(ctx context.Context, task model.AnalysisTask) (map[string]model.Schedule, error) {
	prompt, err := massPrompt(task.Entities)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: build schedule prompt")
	}

	text, err := a.ask(ctx, "mass", massSystemPrompt, prompt, task)
	if err != nil {
		return nil, err
	}

	var fallbackID string
	if len(task.Entities) == 1 {
		fallbackID = task.Entities[0].ID
	}
	return parseMass(text, fallbackID)
}

// Events extracts the events announced in the task's bulletin. existing is
// the persisted event set; only events of the task's family of parishes are
// shown to the model so it can reuse their ids.
func (a *Analyzer) Events(ctx context.Context, task model.AnalysisTask, existing []model.EventRecord) ([]model.EventRecord, error) {
	family := events.FamilyOf(task.Entities)
	scoped := events.FilterByFamily(existing, family)

	prompt, err := eventsPrompt(task.Entities, scoped, a.opts.Now().Format(time.DateOnly))
	if err != nil {
		return nil, eris.Wrap(err, "analysis: build events prompt")
	}

	text, err := a.ask(ctx, "events", eventsSystemPrompt, prompt, task)
	if err != nil {
		return nil, err
	}
	return parseEvents(text)
}

func (a *Analyzer) ask(ctx context.Context, phase, system, prompt string, task model.AnalysisTask) (string, error) {
	msg, err := a.message(ctx, prompt, task.LocalPath)
	if err != nil {
		return "", err
	}

	req := anthropic.MessageRequest{
		Model:     a.opts.Model,
		MaxTokens: a.opts.MaxTokens,
		System:    anthropic.SystemPrompt(system),
		Messages:  []anthropic.Message{msg},
	}

	resp, err := resilience.DoVal(ctx, a.opts.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.ExecuteVal(ctx, a.opts.Breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return a.client.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "analysis: %s %s", phase, task.Link)
	}
	resp.Usage.LogCost(a.opts.Model, phase)

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", eris.Errorf("analysis: %s: empty response for %s", phase, task.Link)
	}
	return text, nil
}

// message attaches the bulletin either as a PDF document or as extracted
// text, depending on the input mode.
func (a *Analyzer) message(ctx context.Context, prompt, path string) (anthropic.Message, error) {
	switch a.opts.Input {
	case InputText:
		if a.opts.Extractor == nil {
			return anthropic.Message{}, eris.New("analysis: text input requires an extractor")
		}
		text, err := a.opts.Extractor.ExtractText(ctx, path)
		if err != nil {
			return anthropic.Message{}, eris.Wrap(err, "analysis: extract text")
		}
		if strings.TrimSpace(text) == "" {
			return anthropic.Message{}, eris.Errorf("analysis: no text in %s", path)
		}
		return anthropic.Message{
			Role:    "user",
			Content: "Bulletin text:\n\n" + text + "\n\n" + prompt,
		}, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return anthropic.Message{}, eris.Wrapf(err, "analysis: read %s", path)
		}
		zap.L().Debug("analysis: attaching pdf", zap.String("path", path), zap.Int("bytes", len(data)))
		return anthropic.Message{
			Role:    "user",
			Content: prompt,
			Documents: []anthropic.Document{{
				Data:  base64.StdEncoding.EncodeToString(data),
				Title: filepath.Base(path),
			}},
		}, nil
	}
}
