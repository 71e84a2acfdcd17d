package llm

import "context"

// Provider is one model backend. Complete blocks until the provider
// answers or ctx is done; implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
	Models() []string
}
