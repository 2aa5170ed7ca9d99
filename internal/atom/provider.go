// Package atom implements a feed source that reads the Atom rendition of the
// blog feed and converts it into the JSON envelope shape.
package atom

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mmcdole/gofeed"

	"github.com/lepinkainen/feed-widget/pkg/api"
	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
	"github.com/lepinkainen/feed-widget/pkg/providers"
)

// Name is the registry key of this source
const Name = "atom"

// Provider fetches the Atom feed and parses it with gofeed
type Provider struct {
	client *api.EnhancedClient
	parser *gofeed.Parser
}

// NewProvider creates an Atom source using client
func NewProvider(client *api.EnhancedClient) *Provider {
	if client == nil {
		client = api.NewFeedClient(api.FeedClientOptions{})
	}
	return &Provider{
		client: client,
		parser: gofeed.NewParser(),
	}
}

// Fetch implements providers.FeedSource
func (p *Provider) Fetch(ctx context.Context, feedURL string) (*feedtypes.Envelope, error) {
	atomURL, err := ToAtomURL(feedURL)
	if err != nil {
		return nil, err
	}

	slog.Debug("Fetching Atom feed", "url", atomURL)

	body, err := p.client.GetBytes(ctx, atomURL, map[string]string{
		"Accept": "application/atom+xml, application/xml;q=0.9",
	})
	if err != nil {
		return nil, err
	}

	parsed, err := p.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse atom feed: %w", err)
	}

	return ToEnvelope(parsed), nil
}

// ToAtomURL rewrites a json-in-script request into its alt=atom equivalent
func ToAtomURL(feedURL string) (string, error) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return "", fmt.Errorf("invalid feed url: %w", err)
	}

	q := u.Query()
	q.Set("alt", "atom")
	q.Del("callback")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ToEnvelope converts a parsed feed into the envelope the widget consumes.
// An empty item list still yields a non-nil Entry slice, matching the JSON feed.
func ToEnvelope(f *gofeed.Feed) *feedtypes.Envelope {
	entries := make([]feedtypes.Entry, 0, len(f.Items))
	for _, item := range f.Items {
		entry := feedtypes.Entry{
			Title: feedtypes.Text{T: item.Title},
		}

		if item.Link != "" {
			entry.Link = append(entry.Link, feedtypes.Link{Rel: feedtypes.RelAlternate, Type: "text/html", Href: item.Link})
		}

		if item.Content != "" {
			entry.Content = &feedtypes.Text{T: item.Content, Type: "html"}
		}
		if item.Description != "" {
			entry.Summary = &feedtypes.Text{T: item.Description, Type: "html"}
		}

		entries = append(entries, entry)
	}

	return &feedtypes.Envelope{
		Feed: &feedtypes.Feed{
			Title: feedtypes.Text{T: f.Title},
			Entry: entries,
		},
	}
}

func factory(config providers.SourceConfig) (providers.FeedSource, error) {
	return NewProvider(config.Client), nil
}

func init() {
	providers.MustRegister(Name, &providers.ProviderInfo{
		Name:        Name,
		Description: "Blogger Atom feed parsed with gofeed",
		Version:     "1.0.0",
		Factory:     factory,
	})
}
