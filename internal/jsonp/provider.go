package jsonp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/feed-widget/pkg/api"
	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
	"github.com/lepinkainen/feed-widget/pkg/providers"
)

// Name is the registry key of this source
const Name = "jsonp"

// Provider fetches feeds through the JSON-in-script endpoint
type Provider struct {
	client *api.EnhancedClient
}

// NewProvider creates a JSONP source using client
func NewProvider(client *api.EnhancedClient) *Provider {
	if client == nil {
		client = api.NewFeedClient(api.FeedClientOptions{})
	}
	return &Provider{client: client}
}

// Fetch implements providers.FeedSource
func (p *Provider) Fetch(ctx context.Context, url string) (*feedtypes.Envelope, error) {
	req := NewRequest(url)
	slog.Debug("Issuing JSONP request", "url", req.URL, "callback", req.Callback)

	env, err := req.Do(ctx, p.client)
	if err != nil {
		return nil, fmt.Errorf("jsonp request %s: %w", req.Callback, err)
	}
	return env, nil
}

func factory(config providers.SourceConfig) (providers.FeedSource, error) {
	return NewProvider(config.Client), nil
}

func init() {
	providers.MustRegister(Name, &providers.ProviderInfo{
		Name:        Name,
		Description: "Blogger JSON-in-script feed with per-request callback",
		Version:     "1.0.0",
		Factory:     factory,
	})
}
