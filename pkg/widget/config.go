package widget

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultConfig is used when a container has no data-config attribute
	DefaultConfig = "6/recent"
	// RecentCategory selects all posts instead of one label
	RecentCategory = "recent"
	// DefaultAPIBase is the feed endpoint of the blog
	DefaultAPIBase = "https://www.sudaneye.site/feeds/posts/default"
)

// Config is the parsed data-config attribute of one container
type Config struct {
	MaxResults int    `yaml:"max_results" json:"max_results"`
	Category   string `yaml:"category" json:"category"`
}

// IsRecent reports whether the config selects the unfiltered feed
func (c Config) IsRecent() bool {
	return c.Category == RecentCategory
}

// String returns the attribute form of the config
func (c Config) String() string {
	return fmt.Sprintf("%d/%s", c.MaxResults, c.Category)
}

// ParseConfig parses "<count>/<category>". An absent or blank value yields
// DefaultConfig. Anything else that does not have exactly two segments, a
// positive count and a non-empty category is rejected with ErrInvalidConfig.
func ParseConfig(raw string) (Config, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultConfig
	}

	parts := strings.Split(raw, "/")
	if len(parts) != 2 {
		return Config{}, fmt.Errorf("%w: %q: expected <count>/<category>", ErrInvalidConfig, raw)
	}

	countPart := strings.TrimSpace(parts[0])
	category := strings.TrimSpace(parts[1])

	count, err := strconv.Atoi(countPart)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %q: count is not a number", ErrInvalidConfig, raw)
	}
	if count <= 0 {
		return Config{}, fmt.Errorf("%w: %q: count must be positive", ErrInvalidConfig, raw)
	}
	if category == "" {
		return Config{}, fmt.Errorf("%w: %q: empty category", ErrInvalidConfig, raw)
	}

	return Config{MaxResults: count, Category: category}, nil
}

// BuildAPIURL returns the json-in-script feed URL for category. The recent
// sentinel queries the whole feed, anything else the label path /-/<category>.
func BuildAPIURL(base, category string, maxResults int) string {
	cfg := Config{MaxResults: maxResults, Category: category}
	params := "alt=json-in-script&max-results=" + strconv.Itoa(cfg.MaxResults)
	base = strings.TrimRight(base, "/")

	if cfg.IsRecent() {
		return base + "?" + params
	}
	return base + "/-/" + escapeComponent(cfg.Category) + "?" + params
}

// componentUnescaper restores the marks encodeURIComponent leaves alone
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escapeComponent percent-encodes s like encodeURIComponent: everything
// except A-Z a-z 0-9 and - _ . ! ~ * ' ( ) is escaped, spaces as %20.
func escapeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
