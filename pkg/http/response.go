// Package http provides small helpers around net/http responses.
package http

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// MaxBodySize caps how much of a response body is read into memory.
const MaxBodySize = 4 * 1024 * 1024

// ReadResponseBody reads at most MaxBodySize bytes and closes the body
func ReadResponseBody(resp *http.Response) ([]byte, error) {
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("Failed to close response body", "error", closeErr)
		}
	}()
	return io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
}

// GetContentType returns the content type of the response
func GetContentType(resp *http.Response) string {
	return resp.Header.Get("Content-Type")
}

// EnsureStatusOK checks if the response status is 200 OK
func EnsureStatusOK(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d %s", resp.StatusCode, resp.Status)
	}
	return nil
}

// IsRetryableStatusCode determines if an HTTP status code is worth retrying
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
