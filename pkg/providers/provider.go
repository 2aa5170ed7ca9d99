package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lepinkainen/feed-widget/pkg/api"
	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
)

// FeedSource fetches one feed document and returns it as an envelope.
// The URL is the JSON-in-script request URL built by the widget; sources
// that speak a different format rewrite it as needed.
type FeedSource interface {
	Fetch(ctx context.Context, url string) (*feedtypes.Envelope, error)
}

// FeedSourceFunc adapts a plain function to FeedSource
type FeedSourceFunc func(ctx context.Context, url string) (*feedtypes.Envelope, error)

// Fetch calls f(ctx, url)
func (f FeedSourceFunc) Fetch(ctx context.Context, url string) (*feedtypes.Envelope, error) {
	return f(ctx, url)
}

// SourceConfig carries what a source factory may need
type SourceConfig struct {
	Client *api.EnhancedClient
}

// SourceFactory creates a new instance of a feed source.
type SourceFactory func(config SourceConfig) (FeedSource, error)

// ProviderInfo contains metadata about a feed source.
type ProviderInfo struct {
	Name        string
	Description string
	Version     string
	Factory     SourceFactory
}

// ProviderRegistry manages registered feed sources.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]*ProviderInfo
}

// NewProviderRegistry creates a new provider registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]*ProviderInfo),
	}
}

// Register adds a source to the registry.
func (r *ProviderRegistry) Register(name string, info *ProviderInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s is already registered", name)
	}

	r.providers[name] = info
	return nil
}

// Get retrieves a source by name.
func (r *ProviderRegistry) Get(name string) (*ProviderInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}

	return info, nil
}

// List returns all registered source names in sorted order.
func (r *ProviderRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// CreateSource creates a new instance of the specified source.
func (r *ProviderRegistry) CreateSource(name string, config SourceConfig) (FeedSource, error) {
	info, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	return info.Factory(config)
}

// DefaultRegistry is the global registry sources add themselves to in init()
var DefaultRegistry = NewProviderRegistry()
