package page

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
	"github.com/lepinkainen/feed-widget/pkg/providers"
	"github.com/lepinkainen/feed-widget/pkg/widget"
)

const testPage = `<!DOCTYPE html>
<html><head><title>Blog</title></head>
<body>
<div id="sidebar" data-config="2/news"><p>loading</p></div>
<div id="static">untouched</div>
<section id="footer" data-config=""></section>
</body></html>`

type stubRenderer struct{}

func (stubRenderer) RenderPosts(w io.Writer, variant widget.Variant, posts []widget.PostSummary) error {
	for _, p := range posts {
		fmt.Fprintf(w, `<a href="%s">%s</a>`, p.URL, p.Title)
	}
	return nil
}

func (stubRenderer) RenderError(w io.Writer, message string) error {
	_, err := fmt.Fprintf(w, `<p class="err">%s</p>`, message)
	return err
}

func TestContainers(t *testing.T) {
	doc, err := Parse(strings.NewReader(testPage))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	containers := doc.Containers()
	if len(containers) != 2 {
		t.Fatalf("Containers() = %d, want 2", len(containers))
	}

	if cfg, ok := containers[0].Config(); !ok || cfg != "2/news" {
		t.Errorf("first container config = %q, %v", cfg, ok)
	}
	if cfg, ok := containers[1].Config(); !ok || cfg != "" {
		t.Errorf("second container config = %q, %v", cfg, ok)
	}
}

func TestContainers_SkipsNested(t *testing.T) {
	page := `<html><body>
<div data-config="3/outer"><div data-config="2/inner"></div></div>
<div data-config="1/sibling"></div>
</body></html>`
	doc, err := Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	containers := doc.Containers()
	if len(containers) != 2 {
		t.Fatalf("Containers() = %d, want 2", len(containers))
	}
	for i, want := range []string{"3/outer", "1/sibling"} {
		if cfg, _ := containers[i].Config(); cfg != want {
			t.Errorf("container %d config = %q, want %q", i, cfg, want)
		}
	}
}

func TestPopulate(t *testing.T) {
	doc, err := Parse(strings.NewReader(testPage))
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	source := providers.FeedSourceFunc(func(ctx context.Context, url string) (*feedtypes.Envelope, error) {
		if strings.Contains(url, "/-/news") {
			return &feedtypes.Envelope{Feed: &feedtypes.Feed{Entry: []feedtypes.Entry{{
				Title: feedtypes.Text{T: "News"},
				Link:  []feedtypes.Link{{Rel: feedtypes.RelAlternate, Href: "https://blog.example/news"}},
			}}}}, nil
		}
		return &feedtypes.Envelope{}, nil
	})

	opts := widget.DefaultOptions()
	opts.Delay = 0
	opts.Locale = widget.LocaleEnglish

	widgets, err := doc.Populate(context.Background(), widget.NewScheduler(0, 2), func(c widget.Container) *widget.Widget {
		return widget.New(c, source, stubRenderer{}, opts)
	})
	if err != nil {
		t.Fatalf("Populate() unexpected error: %v", err)
	}
	if len(widgets) != 2 {
		t.Fatalf("Populate() returned %d widgets", len(widgets))
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<div id="sidebar" data-config="2/news"><a href="https://blog.example/news">News</a></div>`,
		`<div id="static">untouched</div>`,
		`<section id="footer" data-config=""><p class="err">No articles available</p></section>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered page missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "loading") {
		t.Errorf("container content was not replaced:\n%s", out)
	}
}

func TestFragment(t *testing.T) {
	f := NewFragment("")
	if _, ok := f.Config(); ok {
		t.Error("empty fragment config should report absent")
	}

	f = NewFragment("4/news")
	if cfg, ok := f.Config(); !ok || cfg != "4/news" {
		t.Errorf("Config() = %q, %v", cfg, ok)
	}

	f.SetHTML("<p>x</p>")
	if f.HTML() != "<p>x</p>" {
		t.Errorf("HTML() = %q", f.HTML())
	}
}
