// Package resolve maps bulletin pages to the PDF link of their current
// bulletin, retrying transient failures and resolving each page once per run.
package resolve

import "context"

// Resolution is what a Resolver found on a page. An empty Link with a nil
// error is a clean "no document on this page" answer.
type Resolution struct {
	Link       string
	Candidates []string
}

// Resolver finds the document link published at an endpoint.
type Resolver interface {
	Resolve(ctx context.Context, endpoint string) (Resolution, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, endpoint string) (Resolution, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, endpoint string) (Resolution, error) {
	return f(ctx, endpoint)
}
