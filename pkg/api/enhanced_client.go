package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	httputil "github.com/lepinkainen/feed-widget/pkg/http"
)

// DefaultUserAgent identifies feed-widget to feed providers
const DefaultUserAgent = "FeedWidget/1.0"

// EnhancedClientConfig configures the enhanced HTTP client
type EnhancedClientConfig struct {
	BaseClient     *http.Client
	RateLimiter    RateLimiter
	RetryPolicy    *RetryPolicy
	UserAgent      string
	DefaultHeaders map[string]string
}

// EnhancedClient provides HTTP client functionality with rate limiting, retries, and standard headers
type EnhancedClient struct {
	client         *http.Client
	rateLimiter    RateLimiter
	retryPolicy    *RetryPolicy
	userAgent      string
	defaultHeaders map[string]string
}

// NewEnhancedClient creates a new enhanced HTTP client with the provided configuration
func NewEnhancedClient(config *EnhancedClientConfig) *EnhancedClient {
	if config.BaseClient == nil {
		config.BaseClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.RateLimiter == nil {
		config.RateLimiter = NewNoOpRateLimiter()
	}
	if config.RetryPolicy == nil {
		config.RetryPolicy = DefaultRetryPolicy()
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.DefaultHeaders == nil {
		config.DefaultHeaders = make(map[string]string)
	}

	return &EnhancedClient{
		client:         config.BaseClient,
		rateLimiter:    config.RateLimiter,
		retryPolicy:    config.RetryPolicy,
		userAgent:      config.UserAgent,
		defaultHeaders: config.DefaultHeaders,
	}
}

// GetBytes performs a GET request with rate limiting and retries and returns the body
func (ec *EnhancedClient) GetBytes(ctx context.Context, url string, additionalHeaders map[string]string) ([]byte, error) {
	var body []byte

	operation := func(ctx context.Context) error {
		res, err := ec.do(ctx, url, additionalHeaders)
		if err != nil {
			return err
		}

		data, err := httputil.ReadResponseBody(res)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		body = data
		return nil
	}

	if err := ExecuteWithRetry(ctx, operation, ec.retryPolicy, fmt.Sprintf("GET %s", url)); err != nil {
		return nil, err
	}
	return body, nil
}

// do sends one request. The caller owns the body of a successful response.
func (ec *EnhancedClient) do(ctx context.Context, url string, additionalHeaders map[string]string) (*http.Response, error) {
	if err := ec.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", ec.userAgent)
	for key, value := range ec.defaultHeaders {
		req.Header.Set(key, value)
	}
	// Additional headers override defaults
	for key, value := range additionalHeaders {
		req.Header.Set(key, value)
	}

	start := time.Now()
	res, err := ec.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		ec.logAPICall(url, duration, false, err)
		return nil, fmt.Errorf("failed to perform GET request: %w", err)
	}

	if err := httputil.EnsureStatusOK(res); err != nil {
		ec.logAPICall(url, duration, false, err)
		_ = res.Body.Close()
		return nil, &HTTPError{
			StatusCode: res.StatusCode,
			Message:    err.Error(),
		}
	}

	ec.logAPICall(url, duration, true, nil)
	return res, nil
}


func (ec *EnhancedClient) logAPICall(url string, duration time.Duration, success bool, err error) {
	status := "success"
	if !success {
		status = "failure"
	}

	fields := []any{
		"url", url,
		"duration", duration,
		"status", status,
	}

	if err != nil {
		fields = append(fields, "error", err)
	}

	if success {
		slog.Debug("API call completed", fields...)
	} else {
		slog.Warn("API call failed", fields...)
	}
}

// FeedClientOptions tunes the client used for blog feed requests
type FeedClientOptions struct {
	// AccessToken is sent as a bearer token for private blogs
	AccessToken string
	// RetryAttempts of 1 or less disables retries
	RetryAttempts int
	UserAgent     string
}

// NewFeedClient creates an enhanced client configured for the blog feed endpoint.
// The per-request timeout comes from the caller's context, not the base client.
func NewFeedClient(opts FeedClientOptions) *EnhancedClient {
	base := &http.Client{}
	if opts.AccessToken != "" {
		base = NewBearerHTTPClient(context.Background(), opts.AccessToken)
	}

	return NewEnhancedClient(&EnhancedClientConfig{
		BaseClient:  base,
		RateLimiter: NewNoOpRateLimiter(),
		RetryPolicy: RetryPolicyWithAttempts(opts.RetryAttempts),
		UserAgent:   opts.UserAgent,
		DefaultHeaders: map[string]string{
			"Accept": "application/javascript, application/json;q=0.9, */*;q=0.5",
		},
	})
}

// NewGenericClient creates an enhanced client with minimal configuration
func NewGenericClient() *EnhancedClient {
	return NewEnhancedClient(&EnhancedClientConfig{
		BaseClient:  &http.Client{Timeout: 15 * time.Second},
		RateLimiter: NewSimpleRateLimiter(250 * time.Millisecond),
		RetryPolicy: ConservativeRetryPolicy(),
		UserAgent:   DefaultUserAgent,
	})
}

// NewBearerHTTPClient returns an http.Client that attaches a static bearer token
func NewBearerHTTPClient(ctx context.Context, accessToken string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return oauth2.NewClient(ctx, src)
}
