package opengraph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lepinkainen/feed-widget/pkg/api"
	httputil "github.com/lepinkainen/feed-widget/pkg/http"
	"github.com/lepinkainen/feed-widget/pkg/urlutils"
)

const (
	maxConcurrentFetches = 5
	domainInterval       = time.Second
	fetchTimeout         = 15 * time.Second
)

var blockedDomains = []string{
	"x.com",
	"twitter.com",
	"facebook.com",
	"instagram.com",
	"linkedin.com",
}

// Fetcher handles OpenGraph metadata fetching with rate limiting and caching
type Fetcher struct {
	client    *http.Client
	store     *Store
	userAgent string
	timeout   time.Duration
	sem       *semaphore.Weighted

	domainMu sync.Mutex
	limiters map[string]*api.SimpleRateLimiter

	urlMutexes sync.Map
}

// NewFetcher creates a fetcher. store may be nil to disable caching and a
// nil client selects a default one with a redirect limit.
func NewFetcher(store *Store, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}

	return &Fetcher{
		client:    client,
		store:     store,
		userAgent: "Mozilla/5.0 (compatible; " + api.DefaultUserAgent + "; OpenGraph fetcher)",
		timeout:   fetchTimeout,
		sem:       semaphore.NewWeighted(maxConcurrentFetches),
		limiters:  make(map[string]*api.SimpleRateLimiter),
	}
}

// ResolveImage returns the og:image of pageURL, if any
func (f *Fetcher) ResolveImage(ctx context.Context, pageURL string) (string, bool) {
	data, err := f.FetchData(ctx, pageURL)
	if err != nil {
		slog.Debug("No OpenGraph image", "url", pageURL, "error", err)
		return "", false
	}
	if data == nil || data.Image == "" {
		return "", false
	}
	return data.Image, true
}

// FetchData fetches OpenGraph data from a URL with caching. A nil result
// without error means the URL is skipped or failed recently.
func (f *Fetcher) FetchData(ctx context.Context, targetURL string) (*Data, error) {
	if !urlutils.IsHTTP(targetURL) {
		return nil, fmt.Errorf("invalid URL format: %s", targetURL)
	}

	if isBlockedURL(targetURL) {
		slog.Debug("Skipping blocked URL", "url", targetURL)
		return nil, nil
	}

	if f.store != nil {
		cached, err := f.store.Get(ctx, targetURL)
		if err != nil {
			slog.Warn("Error reading from cache", "url", targetURL, "error", err)
		}
		if cached != nil {
			if !cached.Success {
				slog.Debug("Skipping URL due to recent failure", "url", targetURL)
				return nil, nil
			}
			slog.Debug("Found cached OpenGraph data", "url", targetURL)
			return cached, nil
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	data, err := f.fetchFreshData(fetchCtx, targetURL)
	if err != nil {
		slog.Debug("Failed to fetch OpenGraph data", "url", targetURL, "error", err)
		data = &Data{URL: targetURL, FetchedAt: time.Now()}
	} else {
		cleanupData(data)
		data.Success = true
		slog.Debug("Fetched OpenGraph data", "url", targetURL, "title", data.Title, "image", data.Image)
	}

	// Only the caller giving up skips the cache; our own timeout is a page failure
	if f.store != nil && (err == nil || ctx.Err() == nil) {
		if saveErr := f.store.Save(context.WithoutCancel(ctx), data); saveErr != nil {
			slog.Warn("Failed to cache OpenGraph data", "url", targetURL, "error", saveErr)
		}
	}

	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *Fetcher) limiterFor(domain string) *api.SimpleRateLimiter {
	f.domainMu.Lock()
	defer f.domainMu.Unlock()

	rl, ok := f.limiters[domain]
	if !ok {
		rl = api.NewSimpleRateLimiter(domainInterval)
		f.limiters[domain] = rl
	}
	return rl
}

// fetchFreshData fetches and parses one page
func (f *Fetcher) fetchFreshData(ctx context.Context, targetURL string) (*Data, error) {
	// One fetch per URL at a time
	urlMutex, _ := f.urlMutexes.LoadOrStore(targetURL, &sync.Mutex{})
	urlMutex.(*sync.Mutex).Lock()
	defer urlMutex.(*sync.Mutex).Unlock()

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.sem.Release(1)

	if err := f.limiterFor(urlutils.Host(targetURL)).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if err := httputil.EnsureStatusOK(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	contentType := httputil.GetContentType(resp)
	lower := strings.ToLower(contentType)
	if !strings.Contains(lower, "text/html") && !strings.Contains(lower, "application/xhtml") {
		resp.Body.Close()
		return nil, fmt.Errorf("not an HTML page: %s", contentType)
	}

	body, err := httputil.ReadResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	doc, err := parseHTML(body, contentType)
	if err != nil {
		return nil, err
	}

	t := newTags()
	t.collect(doc)
	return t.data(targetURL), nil
}

// parseHTML decodes body to UTF-8 using the declared or sniffed charset
func parseHTML(body []byte, contentType string) (*html.Node, error) {
	var r io.Reader = bytes.NewReader(body)
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		slog.Warn("Failed to detect charset, assuming UTF-8", "error", err)
		utf8Reader = bytes.NewReader(body)
	}

	doc, err := html.Parse(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// tags collects candidate values by source while walking the document
type tags struct {
	og       map[string]string
	named    map[string]string
	title    string
	imageSrc string
}

func newTags() *tags {
	return &tags{og: make(map[string]string), named: make(map[string]string)}
}

// collect recursively extracts meta, title and link tags. The first
// occurrence of every key wins.
func (t *tags) collect(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "meta":
			a := attrs(n)
			content := strings.TrimSpace(a["content"])
			if content == "" {
				break
			}
			if p := a["property"]; strings.HasPrefix(p, "og:") {
				setOnce(t.og, strings.TrimPrefix(p, "og:"), content)
			}
			if name := strings.ToLower(a["name"]); name != "" {
				setOnce(t.named, name, content)
			}
		case "title":
			if t.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				t.title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "link":
			// Blogger emits <link rel="image_src"> for posts with an image
			a := attrs(n)
			if t.imageSrc == "" && strings.EqualFold(a["rel"], "image_src") {
				t.imageSrc = strings.TrimSpace(a["href"])
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t.collect(c)
	}
}

// data picks og: values first, then twitter: and plain fallbacks
func (t *tags) data(pageURL string) *Data {
	data := &Data{
		URL:         pageURL,
		FetchedAt:   time.Now(),
		Title:       firstNonEmpty(t.og["title"], t.named["twitter:title"], t.title),
		Description: firstNonEmpty(t.og["description"], t.named["twitter:description"], t.named["description"]),
		Image:       firstNonEmpty(t.og["image"], t.og["image:url"], t.og["image:secure_url"], t.named["twitter:image"], t.named["twitter:image:src"], t.imageSrc),
		SiteName:    firstNonEmpty(t.og["site_name"], urlutils.Host(pageURL)),
	}

	if data.Image != "" {
		if resolved, err := urlutils.ResolveURL(pageURL, data.Image); err == nil {
			data.Image = resolved
		}
	}
	return data
}

func attrs(n *html.Node) map[string]string {
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[strings.ToLower(a.Key)] = a.Val
	}
	return m
}

func setOnce(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cleanupData validates and cleans up OpenGraph data
func cleanupData(data *Data) {
	data.Title = truncate(strings.ReplaceAll(strings.TrimSpace(data.Title), "\x00", ""), 200)
	data.Description = truncate(strings.ReplaceAll(strings.TrimSpace(data.Description), "\x00", ""), 500)
	data.SiteName = strings.ReplaceAll(strings.TrimSpace(data.SiteName), "\x00", "")

	if data.Image != "" && !urlutils.IsHTTP(data.Image) {
		slog.Warn("Invalid image URL found, clearing", "url", data.Image)
		data.Image = ""
	}
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes-3]) + "..."
}

// isBlockedURL checks if a URL is from a domain that blocks external access
func isBlockedURL(targetURL string) bool {
	host := urlutils.Host(targetURL)
	for _, domain := range blockedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// FetchConcurrent fetches OpenGraph data for multiple URLs concurrently
func (f *Fetcher) FetchConcurrent(ctx context.Context, urls []string) map[string]*Data {
	var (
		mu      sync.Mutex
		dataMap = make(map[string]*Data)
		g       errgroup.Group
	)
	g.SetLimit(maxConcurrentFetches)

	slog.Info("Starting concurrent OpenGraph fetch", "total_urls", len(urls))

	for _, targetURL := range urls {
		if targetURL == "" {
			continue
		}

		g.Go(func() error {
			data, err := f.FetchData(ctx, targetURL)
			if err != nil || data == nil {
				return nil
			}
			mu.Lock()
			dataMap[targetURL] = data
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Completed concurrent OpenGraph fetch", "successful_fetches", len(dataMap))
	return dataMap
}
