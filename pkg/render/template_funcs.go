package render

import (
	"html"
	"strings"
	"text/template"
)

// TemplateFuncs returns a map of template helper functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"escape":    escape,
		"trim":      strings.TrimSpace,
		"hasPrefix": strings.HasPrefix,
		"truncate":  truncateText,
	}
}

// escape escapes HTML special characters while avoiding double-encoding.
// Titles arrive with < and > already escaped and must not become &amp;lt;.
func escape(s string) string {
	s = html.UnescapeString(s)
	return html.EscapeString(s)
}

// truncateText truncates text to at most maxLen runes
func truncateText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
