package llm

import (
	"context"
	"fmt"
	"sync"
)

// ProviderAdapter is the interface every provider backend implements.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "openrouter", "openai").
	Name() string

	// Complete sends a blocking request and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client routes requests to registered provider adapters. It is a
// constructed object passed by reference, so tests can register a fake
// adapter instead of touching process-wide state.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	mu              sync.RWMutex
}

// NewClient creates an empty Client.
func NewClient() *Client {
	return &Client{providers: make(map[string]ProviderAdapter)}
}

// RegisterProvider adds a provider adapter. The first registered adapter
// becomes the default.
func (c *Client) RegisterProvider(adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[adapter.Name()] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = adapter.Name()
	}
}

// resolveProvider determines which adapter handles a request.
func (c *Client) resolveProvider(req Request) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{APIError: APIError{
			Message: "no provider specified and no default provider configured",
		}}
	}
	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{APIError: APIError{
			Message: fmt.Sprintf("provider %q is not registered", name),
		}}
	}
	return adapter, nil
}

// Complete sends a blocking request to the resolved provider.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	adapter, err := c.resolveProvider(req)
	if err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = adapter.Name()
	}
	return adapter.Complete(ctx, req)
}
