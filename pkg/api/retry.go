package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	httputil "github.com/lepinkainen/feed-widget/pkg/http"
)

// RetryPolicy defines the configuration for retry behavior
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// RetryableErrors lists the HTTP status codes that trigger retries.
	// Nil selects httputil.IsRetryableStatusCode.
	RetryableErrors []int
}

// NoRetryPolicy performs every operation exactly once. Widgets use it by default:
// a failed feed request turns straight into an error block.
func NoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       1,
		InitialBackoff:    0,
		MaxBackoff:        0,
		BackoffMultiplier: 1.0,
	}
}

// DefaultRetryPolicy returns a sensible default retry policy
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ConservativeRetryPolicy returns a retry policy with minimal retries
func ConservativeRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       2,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		RetryableErrors:   []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable},
	}
}

// RetryPolicyWithAttempts returns DefaultRetryPolicy with a different attempt count.
// Values below one fall back to NoRetryPolicy.
func RetryPolicyWithAttempts(attempts int) *RetryPolicy {
	if attempts <= 1 {
		return NoRetryPolicy()
	}
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = attempts
	return policy
}

// CalculateBackoff calculates the backoff duration for a given attempt
func (rp *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := float64(rp.InitialBackoff) * math.Pow(rp.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(rp.MaxBackoff) {
		backoff = float64(rp.MaxBackoff)
	}

	return time.Duration(backoff)
}

// IsRetryableError checks if an error should trigger a retry
func (rp *RetryPolicy) IsRetryableError(err error) bool {
	if code, ok := statusCodeOf(err); ok {
		return rp.isRetryableStatusCode(code)
	}
	return false
}

// IsRateLimitError checks if an error is specifically due to rate limiting
func (rp *RetryPolicy) IsRateLimitError(err error) bool {
	code, ok := statusCodeOf(err)
	return ok && code == http.StatusTooManyRequests
}

// statusCodeOf extracts an HTTP status from our own errors and from token endpoint failures
func statusCodeOf(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}

	var oauthErr *oauth2.RetrieveError
	if errors.As(err, &oauthErr) && oauthErr.Response != nil {
		return oauthErr.Response.StatusCode, true
	}

	return 0, false
}

func (rp *RetryPolicy) isRetryableStatusCode(statusCode int) bool {
	if rp.RetryableErrors == nil {
		return httputil.IsRetryableStatusCode(statusCode)
	}
	for _, code := range rp.RetryableErrors {
		if statusCode == code {
			return true
		}
	}
	return false
}

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func(ctx context.Context) error

// ExecuteWithRetry executes an operation with retry logic.
// Backoff sleeps are cut short when ctx is done.
func ExecuteWithRetry(ctx context.Context, operation RetryableOperation, policy *RetryPolicy, operationName string) error {
	var lastErr error
	maxAttempts := max(policy.MaxAttempts, 1)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := policy.CalculateBackoff(attempt - 1)
			if policy.IsRateLimitError(lastErr) {
				backoff *= 2
			}
			slog.Warn("Retrying operation",
				"operation", operationName,
				"attempt", attempt,
				"maxAttempts", maxAttempts,
				"backoff", backoff,
				"lastError", lastErr)
			if err := sleep(ctx, backoff); err != nil {
				return fmt.Errorf("operation %s cancelled: %w", operationName, err)
			}
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("Operation succeeded after retry",
					"operation", operationName,
					"attempt", attempt)
			}
			return nil
		}

		lastErr = err

		if ctx.Err() != nil || !policy.IsRetryableError(err) {
			slog.Debug("Error is not retryable, stopping",
				"operation", operationName,
				"attempt", attempt,
				"error", err)
			break
		}
	}

	if maxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
