package widget

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
)

// Variant selects the card layout
type Variant string

const (
	// VariantMinimal renders image and title only
	VariantMinimal Variant = "minimal"
	// VariantCards adds a text snippet and a read-more link
	VariantCards Variant = "cards"
)

const (
	// SnippetWords is the number of words kept in a cards snippet
	SnippetWords = 20
	// Ellipsis is appended to every snippet
	Ellipsis = "..."

	// PlaceholderInline is a neutral grey SVG used by the minimal variant
	PlaceholderInline = "data:image/svg+xml;base64,PHN2ZyB4bWxucz0iaHR0cDovL3d3dy53My5vcmcvMjAwMC9zdmciIHZpZXdCb3g9IjAgMCAzMDAgMjAwIj48cmVjdCB3aWR0aD0iMTAwJSIgaGVpZ2h0PSIxMDAlIiBmaWxsPSIjZjVmNWY1Ii8+PHRleHQgeD0iNTAlIiB5PSI1MCUiIGZvbnQtZmFtaWx5PSJBcmlhbCIgZm9udC1zaXplPSIxNiIgdGV4dC1hbmNob3I9Im1pZGRsZSIgZmlsbD0iIzY2NiI+2KfZhNio2YrYqTwvdGV4dD48L3N2Zz4="
	// PlaceholderExternal is the hosted placeholder used by the cards variant
	PlaceholderExternal = "https://via.placeholder.com/300x200?text=No+Image"
)

var imgSrcPattern = regexp.MustCompile(`<img[^>]+src=["'](.*?)["']`)

// ParseVariant returns the variant named s, defaulting to VariantMinimal
func ParseVariant(s string) Variant {
	if Variant(s) == VariantCards {
		return VariantCards
	}
	return VariantMinimal
}

// Placeholder returns the image used when an entry carries none
func Placeholder(variant Variant) string {
	if variant == VariantCards {
		return PlaceholderExternal
	}
	return PlaceholderInline
}

// PostSummary is one display-ready post
type PostSummary struct {
	Title   string `yaml:"title" json:"title"`
	URL     string `yaml:"url" json:"url"`
	Image   string `yaml:"image" json:"image"`
	Snippet string `yaml:"snippet,omitempty" json:"snippet,omitempty"`
}

// HasPlaceholder reports whether no image was found for the post
func (p PostSummary) HasPlaceholder() bool {
	return p.Image == PlaceholderInline || p.Image == PlaceholderExternal
}

// ProcessPosts maps feed entries to summaries in feed order. Any entry
// without an alternate link fails the whole batch.
func ProcessPosts(entries []feedtypes.Entry, variant Variant) ([]PostSummary, error) {
	posts := make([]PostSummary, 0, len(entries))

	for i := range entries {
		entry := &entries[i]

		link, ok := entry.AlternateLink()
		if !ok {
			return nil, fmt.Errorf("%w: entry %d %q", ErrMissingAlternateLink, i, entry.Title.T)
		}

		body := entry.Body()
		post := PostSummary{
			Title: Sanitize(entry.Title.T),
			URL:   link,
			Image: Placeholder(variant),
		}
		if src, found := ExtractImage(body); found {
			post.Image = src
		}
		if variant == VariantCards {
			post.Snippet = Snippet(body, SnippetWords)
		}

		posts = append(posts, post)
	}

	return posts, nil
}

// Sanitize escapes < and > so a title can never open a tag
func Sanitize(text string) string {
	return strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(text)
}

// ExtractImage returns the src of the first <img> tag in body
func ExtractImage(body string) (string, bool) {
	m := imgSrcPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Snippet strips markup from body, collapses whitespace and keeps the first
// limit words followed by Ellipsis. An empty body yields an empty snippet.
func Snippet(body string, limit int) string {
	words := strings.Fields(PlainText(body))
	if len(words) == 0 {
		return ""
	}
	if len(words) > limit {
		words = words[:limit]
	}
	return strings.Join(words, " ") + Ellipsis
}

// PlainText returns the text content of an HTML fragment with entities
// decoded. Script and style bodies are dropped. Block and void elements
// separate words; inline elements join their text.
func PlainText(fragment string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer error, either way the text so far is the result
			return sb.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(name) {
				skip++
			}
			separate(&sb, name)
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(name) && skip > 0 {
				skip--
			}
			separate(&sb, name)
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			separate(&sb, name)
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

// breakingTags start a new word in the text content
var breakingTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"figcaption": true, "figure": true, "footer": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "iframe": true, "img": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true,
	"ul": true, "video": true, "wbr": true,
}

func separate(sb *strings.Builder, name []byte) {
	if breakingTags[string(name)] {
		sb.WriteByte(' ')
	}
}

func isRawTextTag(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
