package resolve

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/resilience"
)

// DefaultRetryConfig is the resolution retry policy: ten attempts waiting
// 1, 2, 4, 8 and then 16 seconds between them.
func DefaultRetryConfig() resilience.RetryConfig {
	return resilience.ScheduleConfig(10,
		1*time.Second, 2*time.Second, 4*time.Second, 8*time.Second, 16*time.Second)
}

// Cache memoizes one resolution per endpoint. A Cache lives for one run and
// is safe for concurrent use, though ResolveAll works sequentially.
type Cache struct {
	resolver Resolver
	retry    resilience.RetryConfig

	mu      sync.Mutex
	results model.Resolutions
}

// NewCache wraps resolver with the given retry policy.
func NewCache(resolver Resolver, retry resilience.RetryConfig) *Cache {
	return &Cache{
		resolver: resolver,
		retry:    retry,
		results:  model.NewResolutions(),
	}
}

// Resolve returns the result for endpoint, running the retry sequence only
// the first time the endpoint is seen.
func (c *Cache) Resolve(ctx context.Context, endpoint string) model.ResolutionResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if res, ok := c.results.Get(endpoint); ok {
		return res
	}

	res := c.resolve(ctx, endpoint)
	c.results.Add(res)
	return res
}

// Cached reports whether endpoint already has a result.
func (c *Cache) Cached(endpoint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.results.Get(endpoint)
	return ok
}

// ResolveAll resolves every distinct usable endpoint referenced by entities,
// in order of first appearance, and returns a snapshot of the results.
func (c *Cache) ResolveAll(ctx context.Context, entities []model.Entity) model.Resolutions {
	log := zap.L().With(zap.String("component", "resolve"))

	for _, e := range entities {
		if !e.HasEndpoint() {
			log.Debug("skipping entity without bulletin page", zap.String("entity", e.DisplayName()))
			continue
		}
		if c.Cached(e.Endpoint) {
			log.Debug("using cached resolution", zap.String("endpoint", e.Endpoint))
			continue
		}

		res := c.Resolve(ctx, e.Endpoint)
		switch {
		case res.Resolved():
			log.Info("resolved bulletin",
				zap.String("entity", e.DisplayName()),
				zap.String("link", res.Link),
				zap.Int("attempts", res.Attempts),
			)
		case res.Error != "":
			log.Warn("bulletin resolution failed",
				zap.String("entity", e.DisplayName()),
				zap.String("endpoint", e.Endpoint),
				zap.Int("attempts", res.Attempts),
				zap.String("error", res.Error),
			)
		default:
			log.Warn("no bulletin link on page",
				zap.String("entity", e.DisplayName()),
				zap.String("endpoint", e.Endpoint),
			)
		}
	}

	return c.Snapshot()
}

// Snapshot returns a copy of the results gathered so far.
func (c *Cache) Snapshot() model.Resolutions {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := model.NewResolutions()
	for _, r := range c.results.Results() {
		out.Add(r)
	}
	return out
}

func (c *Cache) resolve(ctx context.Context, endpoint string) model.ResolutionResult {
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("resolve", endpoint)
	}

	attempts := 0
	found, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (Resolution, error) {
		attempts++
		return c.resolver.Resolve(ctx, endpoint)
	})

	res := model.ResolutionResult{Endpoint: endpoint, Attempts: attempts}
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Link = found.Link
	res.Candidates = found.Candidates
	return res
}
