package resolve

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/pkg/firecrawl"
	"github.com/sells-group/bulletin-cli/pkg/jina"
)

// Renderer loads a page through a headless browser service and returns its
// HTML after scripts have run.
type Renderer interface {
	Name() string
	Render(ctx context.Context, url string) ([]byte, error)
}

// FirecrawlRenderer renders pages with Firecrawl's scrape endpoint.
type FirecrawlRenderer struct {
	Client firecrawl.Client
}

// Name implements Renderer.
func (r *FirecrawlRenderer) Name() string { return "firecrawl" }

// Render implements Renderer.
func (r *FirecrawlRenderer) Render(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.Client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     url,
		Formats: []string{"rawHtml"},
		WaitFor: 2000,
	})
	if err != nil {
		return nil, err
	}
	if resp.Data.RawHTML == "" {
		return nil, eris.Errorf("resolve: firecrawl returned no html for %s", url)
	}
	return []byte(resp.Data.RawHTML), nil
}

// JinaRenderer renders pages with the Jina reader in html mode.
type JinaRenderer struct {
	Client jina.Client
}

// Name implements Renderer.
func (r *JinaRenderer) Name() string { return "jina" }

// Render implements Renderer.
func (r *JinaRenderer) Render(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.Client.Read(ctx, url, jina.WithFormat("html"))
	if err != nil {
		return nil, err
	}
	if resp.Data.Content == "" {
		return nil, eris.Errorf("resolve: jina returned no html for %s", url)
	}
	return []byte(resp.Data.Content), nil
}

// ChainResolver resolves with a primary resolver and, when the page answers
// with a challenge, tries each renderer in order.
type ChainResolver struct {
	primary   Resolver
	renderers []Renderer
	preferred []string
}

// NewChainResolver wraps primary. With no renderers it behaves exactly like
// primary.
func NewChainResolver(primary Resolver, preferred []string, renderers ...Renderer) *ChainResolver {
	return &ChainResolver{primary: primary, renderers: renderers, preferred: preferred}
}

// Resolve implements Resolver. Renderer failures are logged and the
// original block error is returned, so the retry policy still applies.
func (c *ChainResolver) Resolve(ctx context.Context, endpoint string) (Resolution, error) {
	res, err := c.primary.Resolve(ctx, endpoint)
	var blocked *BlockedError
	if err == nil || len(c.renderers) == 0 || !errors.As(err, &blocked) {
		return res, err
	}

	for _, r := range c.renderers {
		body, rerr := r.Render(ctx, endpoint)
		if rerr != nil {
			zap.L().Debug("resolve: renderer failed, trying next",
				zap.String("renderer", r.Name()),
				zap.String("endpoint", endpoint),
				zap.Error(rerr),
			)
			continue
		}
		links, lerr := ExtractLinks(endpoint, body, c.preferred)
		if lerr != nil {
			continue
		}
		zap.L().Info("resolve: rendered blocked page",
			zap.String("renderer", r.Name()),
			zap.String("endpoint", endpoint),
			zap.String("block", string(blocked.Block)),
			zap.Int("links", len(links)),
		)
		if len(links) == 0 {
			return Resolution{}, nil
		}
		return Resolution{Link: links[0], Candidates: links}, nil
	}
	return Resolution{}, err
}
