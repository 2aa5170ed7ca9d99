// Package preview provides an interactive preview of processed posts using Bubble Tea.
package preview

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lepinkainen/feed-widget/pkg/widget"
)

const rule = "═══════════════════════════════════════════════════════════════════════\n"

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	lineLen := 0

	for _, word := range strings.Fields(text) {
		wordLen := len([]rune(word))

		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString("\n")
			lineLen = 0
		}
		if lineLen > 0 {
			result.WriteString(" ")
			lineLen++
		}

		result.WriteString(word)
		lineLen += wordLen
	}

	return result.String()
}

// FormatCompactListItem formats one post for the list view
// Example: " 1. [img] Post Title"
func FormatCompactListItem(index int, post widget.PostSummary) string {
	marker := "img"
	if post.HasPlaceholder() {
		marker = "---"
	}

	const maxTitleLength = 70
	title := []rune(post.Title)
	if len(title) > maxTitleLength {
		title = append(title[:maxTitleLength-3], []rune("...")...)
	}

	return fmt.Sprintf("%2d. [%s] %s", index+1, marker, string(title))
}

// FormatDetailedItem formats one post with all of its fields
func FormatDetailedItem(post widget.PostSummary) string {
	var b strings.Builder

	b.WriteString(rule)
	fmt.Fprintf(&b, "Title: %s\n", post.Title)
	fmt.Fprintf(&b, "Link: %s\n", post.URL)

	if post.HasPlaceholder() {
		b.WriteString("Image: (placeholder)\n")
	} else {
		fmt.Fprintf(&b, "Image: %s\n", post.Image)
	}

	if post.Snippet != "" {
		fmt.Fprintf(&b, "\nSnippet:\n%s\n", wrapText(post.Snippet, 70))
	}

	b.WriteString(rule)
	return b.String()
}

// FormatHTMLItem renders one post with the real templates
func FormatHTMLItem(post widget.PostSummary, renderer widget.Renderer, variant widget.Variant) string {
	if renderer == nil {
		return "No renderer configured"
	}

	var buf bytes.Buffer
	if err := renderer.RenderPosts(&buf, variant, []widget.PostSummary{post}); err != nil {
		return fmt.Sprintf("Error rendering post: %s", err)
	}

	return wrapMarkup(strings.TrimSpace(buf.String()), 80)
}

// wrapMarkup breaks long lines at spaces or tag ends, leaving tags intact
func wrapMarkup(markup string, width int) string {
	var result strings.Builder

	for _, line := range strings.Split(markup, "\n") {
		remaining := line
		for len(remaining) > width {
			breakPoint := width
			for i := width; i > width-20 && i > 0; i-- {
				if remaining[i] == ' ' || remaining[i] == '>' {
					breakPoint = i + 1
					break
				}
			}
			result.WriteString(remaining[:breakPoint])
			result.WriteString("\n")
			remaining = remaining[breakPoint:]
		}
		if remaining != "" {
			result.WriteString(remaining)
			result.WriteString("\n")
		}
	}

	return result.String()
}
