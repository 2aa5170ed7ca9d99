// Package opengraph fetches og:image and related metadata for post pages.
package opengraph

import "time"

// Data represents OpenGraph metadata extracted from a webpage
type Data struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	SiteName    string    `json:"site_name"`
	FetchedAt   time.Time `json:"fetched_at"`
	// Success is false for cached failures
	Success bool `json:"success"`
}

// Constants for OpenGraph caching
const (
	DefaultCacheTTL = 24 * time.Hour
	FailureCacheTTL = time.Hour
	DefaultDBFile   = "feed-widget-cache.db"
	CacheTable      = "opengraph_cache"
)
