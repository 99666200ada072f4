package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client is the interface that all model providers implement.
type Client interface {
	// Chat sends a blocking chat completion request.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// ChatStream starts a streaming chat request and returns a Stream
	// the caller consumes. The returned error covers request setup only;
	// transport errors during streaming surface from Stream.Wait.
	ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any) (*Stream, error)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// Registry maps provider names to clients. It is constructed once at
// startup and dependency-injected; it is read-only afterwards, so no
// locking is needed during a conversation turn.
type Registry struct {
	providers map[string]Client
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Client)}
}

// Register adds a provider under the given name.
func (r *Registry) Register(name string, c Client) {
	r.providers[name] = c
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Client, bool) {
	c, ok := r.providers[name]
	return c, ok
}

// Providers lists registered provider names.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}

// Resolve splits a "provider/model" reference and returns the client
// plus the bare model name. A reference without a slash resolves against
// the sole registered provider, or fails when that is ambiguous.
func (r *Registry) Resolve(ref string) (Client, string, error) {
	if provider, model, ok := strings.Cut(ref, "/"); ok {
		c, found := r.providers[provider]
		if !found {
			return nil, "", fmt.Errorf("unknown model provider %q (registered: %v)", provider, r.Providers())
		}
		return c, model, nil
	}

	if len(r.providers) == 1 {
		for _, c := range r.providers {
			return c, ref, nil
		}
	}
	return nil, "", fmt.Errorf("model reference %q needs a provider/ prefix (registered: %v)", ref, r.Providers())
}
