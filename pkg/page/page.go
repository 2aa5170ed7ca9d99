// Package page finds widget containers in an HTML document and populates them.
package page

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/feed-widget/pkg/widget"
)

const (
	// ConfigAttr is the attribute that marks a widget container
	ConfigAttr = "data-config"
	// ContainerSelector matches every widget container
	ContainerSelector = "[" + ConfigAttr + "]"
)

// Document is a parsed HTML page
type Document struct {
	doc *goquery.Document
	// mu serializes tree mutations from concurrently settling widgets
	mu sync.Mutex
}

// Parse reads an HTML document
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Containers returns the widget containers in document order. A container
// nested inside another one is skipped, the outer widget replaces it.
func (d *Document) Containers() []widget.Container {
	var containers []widget.Container
	d.doc.Find(ContainerSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(ContainerSelector).Length() > 0 {
			config, _ := s.Attr(ConfigAttr)
			slog.Warn("Skipping nested widget container", "config", config)
			return
		}
		containers = append(containers, &element{sel: s, doc: d})
	})
	return containers
}

// WidgetFactory builds the widget for one container
type WidgetFactory func(widget.Container) *widget.Widget

// Populate runs one widget per container through the scheduler and waits for
// all of them to settle. The containers are looked up once, up front.
func (d *Document) Populate(ctx context.Context, scheduler *widget.Scheduler, newWidget WidgetFactory) ([]*widget.Widget, error) {
	containers := d.Containers()
	slog.Info("Populating widget containers", "count", len(containers))

	widgets := make([]*widget.Widget, len(containers))
	for i, c := range containers {
		widgets[i] = newWidget(c)
	}

	if err := scheduler.Run(ctx, widgets); err != nil {
		return widgets, fmt.Errorf("widget scheduling interrupted: %w", err)
	}
	return widgets, nil
}

// Render writes the document back out as HTML
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := goquery.Render(w, d.doc.Selection); err != nil {
		return fmt.Errorf("failed to render document: %w", err)
	}
	return nil
}

// element adapts a goquery selection to widget.Container
type element struct {
	sel *goquery.Selection
	doc *Document
}

func (e *element) Config() (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.sel.Attr(ConfigAttr)
}

func (e *element) SetHTML(markup string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.sel.SetHtml(markup)
}

// Fragment is a standalone container used outside of a page, by the CLI
// fragment command and the HTTP handler.
type Fragment struct {
	mu     sync.Mutex
	config string
	markup string
}

// NewFragment creates a container carrying config
func NewFragment(config string) *Fragment {
	return &Fragment{config: config}
}

// Config implements widget.Container
func (f *Fragment) Config() (string, bool) {
	return f.config, f.config != ""
}

// SetHTML implements widget.Container
func (f *Fragment) SetHTML(markup string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markup = markup
}

// HTML returns the markup last written to the fragment
func (f *Fragment) HTML() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markup
}
