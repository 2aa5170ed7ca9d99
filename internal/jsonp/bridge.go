// Package jsonp implements the JSON-in-script feed source.
//
// The feed endpoint wraps its JSON in a call to a caller-chosen function
// name. Every request carries its own callback name and completion handle,
// so concurrent widgets never share state.
package jsonp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lepinkainen/feed-widget/pkg/api"
	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
)

// CallbackParam is the query parameter naming the wrapper function
const CallbackParam = "callback"

var (
	// ErrMalformedPayload is returned when the body is not a callback invocation
	ErrMalformedPayload = errors.New("malformed json-in-script payload")
	// ErrCallbackMismatch is returned when the body invokes a different callback
	ErrCallbackMismatch = errors.New("callback name mismatch")
)

// NewCallbackName returns a unique, JavaScript-safe function name of the
// form jsonp_<millis>_<12 hex chars>
func NewCallbackName(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("jsonp_%d_%s", now.UnixMilli(), suffix)
}

// Request is one in-flight callback bridge
type Request struct {
	URL      string
	Callback string

	done chan result
}

type result struct {
	envelope *feedtypes.Envelope
	err      error
}

// NewRequest attaches a fresh callback name to feedURL
func NewRequest(feedURL string) *Request {
	callback := NewCallbackName(time.Now())

	sep := "?"
	if strings.Contains(feedURL, "?") {
		sep = "&"
	}

	return &Request{
		URL:      feedURL + sep + CallbackParam + "=" + callback,
		Callback: callback,
		done:     make(chan result, 1),
	}
}

// Do performs the request and waits for the completion handle or ctx.
// The load context is cancelled on every return path.
func (r *Request) Do(ctx context.Context, client *api.EnhancedClient) (*feedtypes.Envelope, error) {
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go r.load(loadCtx, client)

	select {
	case res := <-r.done:
		return res.envelope, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load settles the completion handle exactly once. done is buffered so a
// late result never blocks after Do has returned.
func (r *Request) load(ctx context.Context, client *api.EnhancedClient) {
	body, err := client.GetBytes(ctx, r.URL, nil)
	if err != nil {
		r.done <- result{err: err}
		return
	}

	env, err := Decode(body, r.Callback)
	r.done <- result{envelope: env, err: err}
}

// Decode unwraps a callback invocation and decodes the envelope inside it
func Decode(body []byte, callback string) (*feedtypes.Envelope, error) {
	payload, err := Unwrap(body, callback)
	if err != nil {
		return nil, err
	}

	var env feedtypes.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode feed envelope: %w", err)
	}
	return &env, nil
}

// Unwrap strips `// API callback` comment lines and the `callback(...);`
// wrapper. A bare JSON object is passed through unchanged.
func Unwrap(body []byte, callback string) ([]byte, error) {
	body = stripLineComments(body)

	if len(body) > 0 && body[0] == '{' {
		return body, nil
	}

	open := bytes.IndexByte(body, '(')
	if open <= 0 {
		return nil, ErrMalformedPayload
	}

	name := string(bytes.TrimSpace(body[:open]))
	if callback != "" && name != callback {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrCallbackMismatch, name, callback)
	}

	rest := bytes.TrimRight(body[open+1:], "; \t\r\n")
	if len(rest) == 0 || rest[len(rest)-1] != ')' {
		return nil, ErrMalformedPayload
	}

	return bytes.TrimSpace(rest[:len(rest)-1]), nil
}

func stripLineComments(body []byte) []byte {
	body = bytes.TrimSpace(body)
	for bytes.HasPrefix(body, []byte("//")) {
		nl := bytes.IndexByte(body, '\n')
		if nl < 0 {
			return nil
		}
		body = bytes.TrimSpace(body[nl+1:])
	}
	return body
}
