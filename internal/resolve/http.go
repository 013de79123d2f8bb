package resolve

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/bulletin-cli/internal/resilience"
)

const maxPageBytes = 4 << 20

// HTTPOptions configures an HTTPResolver.
type HTTPOptions struct {
	Timeout          time.Duration
	RequestInterval  time.Duration
	PreferredDomains []string
	UserAgent        string
	Client           *http.Client
}

// HTTPResolver fetches a bulletin page over HTTP and picks its PDF link.
type HTTPResolver struct {
	client    *http.Client
	limiter   *rate.Limiter
	preferred []string
	userAgent string
}

// NewHTTPResolver creates an HTTPResolver. Requests are spaced by
// RequestInterval to stay polite to parish sites.
func NewHTTPResolver(opts HTTPOptions) *HTTPResolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; bulletin-cli/1.0)"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	limit := rate.Inf
	if opts.RequestInterval > 0 {
		limit = rate.Every(opts.RequestInterval)
	}

	return &HTTPResolver{
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		preferred: opts.PreferredDomains,
		userAgent: opts.UserAgent,
	}
}

// Resolve fetches the endpoint page and returns the first preferred PDF
// link, else the first PDF link. Transport errors, error statuses and
// challenge pages are returned as errors so the caller may retry.
func (r *HTTPResolver) Resolve(ctx context.Context, endpoint string) (Resolution, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Resolution{}, eris.Wrap(err, "resolve: rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Resolution{}, resilience.Permanent(eris.Wrapf(err, "resolve: create request for %s", endpoint))
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return Resolution{}, eris.Wrapf(err, "resolve: fetch %s", endpoint)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Resolution{}, eris.Wrapf(err, "resolve: read %s", endpoint)
	}

	if block := DetectBlock(resp, body); block != BlockNone {
		return Resolution{}, resilience.NewTransientError(
			&BlockedError{Endpoint: endpoint, Block: block}, resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		return Resolution{}, resilience.NewTransientError(
			eris.Errorf("resolve: %s returned status %d", endpoint, resp.StatusCode), resp.StatusCode)
	}

	// A direct PDF endpoint is its own bulletin.
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/pdf") {
		return Resolution{Link: endpoint, Candidates: []string{endpoint}}, nil
	}

	links, err := ExtractLinks(endpoint, body, r.preferred)
	if err != nil {
		return Resolution{}, err
	}
	if len(links) == 0 {
		return Resolution{}, nil
	}
	return Resolution{Link: links[0], Candidates: links}, nil
}
