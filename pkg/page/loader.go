package page

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lepinkainen/feed-widget/pkg/api"
	"github.com/lepinkainen/feed-widget/pkg/urlutils"
)

// Stdin selects standard input as the page source
const Stdin = "-"

// LoaderConfig represents page loading options
type LoaderConfig struct {
	Timeout time.Duration
	Client  *api.EnhancedClient
	Stdin   io.Reader
}

// DefaultLoaderConfig returns default loader configuration
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Timeout: 10 * time.Second,
		Stdin:   os.Stdin,
	}
}

// Load reads and parses a page from an http(s) URL, a local file or Stdin
func Load(ctx context.Context, source string, config *LoaderConfig) (*Document, error) {
	if config == nil {
		config = DefaultLoaderConfig()
	}

	var (
		body []byte
		err  error
	)
	switch {
	case source == Stdin:
		body, err = io.ReadAll(config.Stdin)
	case urlutils.IsHTTP(source):
		body, err = loadFromURL(ctx, source, config)
	default:
		body, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load page %s: %w", source, err)
	}

	slog.Debug("Loaded page", "source", source, "bytes", len(body))
	return Parse(bytes.NewReader(body))
}

// loadFromURL fetches a remote page using the shared API client
func loadFromURL(ctx context.Context, pageURL string, config *LoaderConfig) ([]byte, error) {
	client := config.Client
	if client == nil {
		client = api.NewGenericClient()
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	return client.GetBytes(ctx, pageURL, map[string]string{
		"Accept": "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5",
	})
}
