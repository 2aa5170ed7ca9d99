// Package render produces widget markup from text templates.
package render

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"text/template"

	"github.com/lepinkainen/feed-widget/pkg/widget"
)

const (
	// ErrorTemplate renders the warning block
	ErrorTemplate = "error"
	// PostsTemplatePrefix is followed by the variant name
	PostsTemplatePrefix = "posts-"
)

// DefaultTemplates are loaded by NewGenerator
var DefaultTemplates = []string{"posts-minimal", "posts-cards", ErrorTemplate}

var readMoreLabels = map[widget.Locale]string{
	widget.LocaleArabic:  "اقرأ المزيد",
	widget.LocaleEnglish: "Read more",
}

// Generator renders posts and errors with named templates
type Generator struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
	locale    widget.Locale
}

// PostsData is passed to the posts-* templates
type PostsData struct {
	Variant  widget.Variant
	Locale   widget.Locale
	ReadMore string
	Posts    []widget.PostSummary
}

// ErrorData is passed to the error template
type ErrorData struct {
	Locale  widget.Locale
	Message string
}

// NewTemplateGenerator creates an empty generator
func NewTemplateGenerator(locale widget.Locale) *Generator {
	if locale == "" {
		locale = widget.DefaultLocale
	}
	return &Generator{
		templates: make(map[string]*template.Template),
		funcMap:   TemplateFuncs(),
		locale:    locale,
	}
}

// NewGenerator creates a generator with DefaultTemplates loaded
func NewGenerator(locale widget.Locale) (*Generator, error) {
	tg := NewTemplateGenerator(locale)
	for _, name := range DefaultTemplates {
		if err := tg.LoadTemplate(name); err != nil {
			return nil, err
		}
	}
	slog.Debug("Templates loaded", "locale", locale, "templates", tg.GetAvailableTemplates())
	return tg, nil
}

// LoadTemplate loads <name>.tmpl, preferring the override directory
func (tg *Generator) LoadTemplate(name string) error {
	file := name + ".tmpl"

	content, origin, err := readTemplate(file)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", file, err)
	}

	return tg.AddTemplate(name, string(content), origin)
}

// AddTemplate parses content as the template called name
func (tg *Generator) AddTemplate(name, content, origin string) error {
	tmpl, err := template.New(name).Funcs(tg.funcMap).Parse(content)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	tg.templates[name] = tmpl
	slog.Debug("Template loaded", "name", name, "origin", origin)
	return nil
}

// Execute runs the named template with data
func (tg *Generator) Execute(name string, data any, w io.Writer) error {
	tmpl, exists := tg.templates[name]
	if !exists {
		return fmt.Errorf("template %s not found", name)
	}

	// Render into a buffer so a failing template never leaves half a fragment
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	_, err := buf.WriteTo(w)
	return err
}

// RenderPosts implements widget.Renderer
func (tg *Generator) RenderPosts(w io.Writer, variant widget.Variant, posts []widget.PostSummary) error {
	slog.Debug("Rendering posts", "variant", variant, "posts", len(posts))

	return tg.Execute(PostsTemplatePrefix+string(variant), &PostsData{
		Variant:  variant,
		Locale:   tg.locale,
		ReadMore: readMoreLabels[tg.locale],
		Posts:    posts,
	}, w)
}

// RenderError implements widget.Renderer
func (tg *Generator) RenderError(w io.Writer, message string) error {
	return tg.Execute(ErrorTemplate, &ErrorData{Locale: tg.locale, Message: message}, w)
}

// GetAvailableTemplates returns the loaded template names in sorted order
func (tg *Generator) GetAvailableTemplates() []string {
	names := make([]string, 0, len(tg.templates))
	for name := range tg.templates {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
