package render

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
	"github.com/lepinkainen/feed-widget/pkg/widget"
)

func newGenerator(t *testing.T, locale widget.Locale) *Generator {
	t.Helper()
	tg, err := NewGenerator(locale)
	if err != nil {
		t.Fatalf("NewGenerator() unexpected error: %v", err)
	}
	return tg
}

func TestNewGenerator_LoadsEmbeddedTemplates(t *testing.T) {
	tg := newGenerator(t, widget.LocaleArabic)

	got := strings.Join(tg.GetAvailableTemplates(), ",")
	if got != "error,posts-cards,posts-minimal" {
		t.Errorf("GetAvailableTemplates() = %q", got)
	}
}

func TestRenderPosts_Minimal(t *testing.T) {
	tg := newGenerator(t, widget.LocaleArabic)
	posts := []widget.PostSummary{
		{Title: "First", URL: "https://blog.example/1", Image: "1.png"},
		{Title: "Second", URL: "https://blog.example/2", Image: widget.PlaceholderInline},
	}

	var buf bytes.Buffer
	if err := tg.RenderPosts(&buf, widget.VariantMinimal, posts); err != nil {
		t.Fatalf("RenderPosts() unexpected error: %v", err)
	}
	out := buf.String()

	if strings.Count(out, `<article class="blog-post">`) != 2 {
		t.Errorf("expected two articles, got:\n%s", out)
	}
	first := strings.Index(out, "https://blog.example/1")
	second := strings.Index(out, "https://blog.example/2")
	if first < 0 || second < 0 || first > second {
		t.Errorf("posts not rendered in input order:\n%s", out)
	}
	if !strings.Contains(out, `<img src="1.png" alt="First" loading="lazy">`) {
		t.Errorf("image markup missing:\n%s", out)
	}
	if !strings.Contains(out, widget.PlaceholderInline) {
		t.Errorf("placeholder missing:\n%s", out)
	}
	if strings.Contains(out, "card-snippet") {
		t.Errorf("minimal variant should not render snippets")
	}
}

func TestRenderPosts_Cards(t *testing.T) {
	tg := newGenerator(t, widget.LocaleEnglish)
	posts := []widget.PostSummary{
		{Title: "Card", URL: "https://blog.example/c?a=1&b=2", Image: widget.PlaceholderExternal, Snippet: "Some words..."},
	}

	var buf bytes.Buffer
	if err := tg.RenderPosts(&buf, widget.VariantCards, posts); err != nil {
		t.Fatalf("RenderPosts() unexpected error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<p class="card-snippet">Some words...</p>`,
		`class="card-read-more">Read more</a>`,
		`href="https://blog.example/c?a=1&amp;b=2"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPosts_TitleScriptIsEscaped(t *testing.T) {
	posts, err := widget.ProcessPosts([]feedtypes.Entry{{
		Title: feedtypes.Text{T: "<script>alert(1)</script>"},
		Link:  []feedtypes.Link{{Rel: feedtypes.RelAlternate, Href: "https://blog.example/x"}},
	}}, widget.VariantMinimal)
	if err != nil {
		t.Fatalf("ProcessPosts() unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := newGenerator(t, widget.LocaleArabic).RenderPosts(&buf, widget.VariantMinimal, posts); err != nil {
		t.Fatalf("RenderPosts() unexpected error: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "<script>") {
		t.Errorf("title rendered as live markup:\n%s", out)
	}
	if !strings.Contains(out, "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Errorf("escaped title missing:\n%s", out)
	}
	if strings.Contains(out, "&amp;lt;") {
		t.Errorf("title double-encoded:\n%s", out)
	}
}

func TestRenderPosts_AttributeInjection(t *testing.T) {
	posts := []widget.PostSummary{
		{Title: "t", URL: `https://blog.example/" onmouseover="x`, Image: `x.png" onerror="alert(1)`},
	}

	var buf bytes.Buffer
	if err := newGenerator(t, widget.LocaleArabic).RenderPosts(&buf, widget.VariantMinimal, posts); err != nil {
		t.Fatalf("RenderPosts() unexpected error: %v", err)
	}
	if strings.Contains(buf.String(), `" onerror="`) || strings.Contains(buf.String(), `" onmouseover="`) {
		t.Errorf("attribute breakout not escaped:\n%s", buf.String())
	}
}

func TestRenderError(t *testing.T) {
	tg := newGenerator(t, widget.LocaleArabic)

	var buf bytes.Buffer
	if err := tg.RenderError(&buf, "لا توجد مقالات متاحة"); err != nil {
		t.Fatalf("RenderError() unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `<div class="blog-error">`) || !strings.Contains(out, "⚠️ لا توجد مقالات متاحة") {
		t.Errorf("RenderError() = %q", out)
	}
}

func TestRenderPosts_UnknownVariant(t *testing.T) {
	var buf bytes.Buffer
	err := newGenerator(t, widget.LocaleArabic).RenderPosts(&buf, widget.Variant("grid"), nil)
	if err == nil {
		t.Error("RenderPosts() with unknown variant should fail")
	}
	if buf.Len() != 0 {
		t.Errorf("failed render wrote %q", buf.String())
	}
}

func TestLoadTemplate_Override(t *testing.T) {
	SetTemplateOverrideFS(fstest.MapFS{
		"error.tmpl": &fstest.MapFile{Data: []byte(`<p class="custom">{{.Message}}</p>`)},
	})
	t.Cleanup(func() { SetTemplateOverrideFS(nil) })

	tg := newGenerator(t, widget.LocaleEnglish)

	var buf bytes.Buffer
	if err := tg.RenderError(&buf, "boom"); err != nil {
		t.Fatalf("RenderError() unexpected error: %v", err)
	}
	if buf.String() != `<p class="custom">boom</p>` {
		t.Errorf("override not used: %q", buf.String())
	}

	// Templates missing from the override directory come from the embedded set
	buf.Reset()
	if err := tg.RenderPosts(&buf, widget.VariantMinimal, nil); err != nil {
		t.Fatalf("RenderPosts() unexpected error: %v", err)
	}
}

func TestAddTemplate_ParseError(t *testing.T) {
	tg := NewTemplateGenerator("")
	if err := tg.AddTemplate("broken", "{{.Missing", "test"); err == nil {
		t.Error("AddTemplate() should fail on invalid syntax")
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "a & b", want: "a &amp; b"},
		{in: "a &amp; b", want: "a &amp; b"},
		{in: `"quoted"`, want: "&#34;quoted&#34;"},
		{in: "&lt;b&gt;", want: "&lt;b&gt;"},
	}
	for _, tt := range tests {
		if got := escape(tt.in); got != tt.want {
			t.Errorf("escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateText(t *testing.T) {
	if got := truncateText("مرحبا بالعالم", 8); got != "مرحبا..." {
		t.Errorf("truncateText() = %q", got)
	}
	if got := truncateText("short", 10); got != "short" {
		t.Errorf("truncateText() = %q", got)
	}
}
