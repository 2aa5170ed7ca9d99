// Package testutil provides fake feed endpoints for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// FeedServer is an httptest server that answers like the blog feed endpoint
// and records every request it receives.
type FeedServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []*http.Request
}

// NewFeedServer starts a server that runs handler for every request.
// The server is closed when the test finishes.
func NewFeedServer(t *testing.T, handler http.HandlerFunc) *FeedServer {
	t.Helper()

	fs := &FeedServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.requests = append(fs.requests, r.Clone(r.Context()))
		fs.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

// Requests returns a copy of the requests seen so far
func (fs *FeedServer) Requests() []*http.Request {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]*http.Request, len(fs.requests))
	copy(out, fs.requests)
	return out
}

// JSONPHandler wraps payload in the callback named by the request,
// the way the feed endpoint does for alt=json-in-script.
func JSONPHandler(payload string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callback := r.URL.Query().Get("callback")
		w.Header().Set("Content-Type", "text/javascript; charset=UTF-8")
		_, _ = fmt.Fprintf(w, "// API callback\n%s(%s);", callback, payload)
	}
}

// Entry builds one feed entry as JSON
func Entry(title, href, content string) string {
	return fmt.Sprintf(`{"title":{"$t":%q},"link":[{"rel":"replies","href":"%s#comments"},{"rel":"alternate","type":"text/html","href":%q}],"content":{"$t":%q}}`,
		title, href, href, content)
}

// Feed builds a feed envelope holding entries
func Feed(entries ...string) string {
	joined := ""
	for i, e := range entries {
		if i > 0 {
			joined += ","
		}
		joined += e
	}
	return fmt.Sprintf(`{"version":"1.0","encoding":"UTF-8","feed":{"title":{"$t":"Test Blog"},"entry":[%s]}}`, joined)
}
