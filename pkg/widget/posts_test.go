package widget

import (
	"errors"
	"strings"
	"testing"

	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
)

func entry(title, href, content string) feedtypes.Entry {
	e := feedtypes.Entry{
		Title: feedtypes.Text{T: title},
		Link: []feedtypes.Link{
			{Rel: "replies", Href: href + "#comments"},
			{Rel: feedtypes.RelAlternate, Href: href},
		},
	}
	if content != "" {
		e.Content = &feedtypes.Text{T: content}
	}
	return e
}

func TestProcessPosts_OrderAndLinks(t *testing.T) {
	entries := []feedtypes.Entry{
		entry("One", "https://blog.example/1.html", ""),
		entry("Two", "https://blog.example/2.html", ""),
		entry("Three", "https://blog.example/3.html", ""),
	}

	posts, err := ProcessPosts(entries, VariantMinimal)
	if err != nil {
		t.Fatalf("ProcessPosts() unexpected error: %v", err)
	}
	if len(posts) != len(entries) {
		t.Fatalf("ProcessPosts() returned %d posts, want %d", len(posts), len(entries))
	}

	for i, post := range posts {
		want, _ := entries[i].AlternateLink()
		if post.URL != want {
			t.Errorf("posts[%d].URL = %q, want %q", i, post.URL, want)
		}
		if post.Title != entries[i].Title.T {
			t.Errorf("posts[%d].Title = %q, want %q", i, post.Title, entries[i].Title.T)
		}
	}
}

func TestProcessPosts_Image(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		entry   feedtypes.Entry
		want    string
	}{
		{
			name:    "inline image",
			variant: VariantMinimal,
			entry:   entry("a", "https://blog.example/a", `<p><img src="x.png"></p>`),
			want:    "x.png",
		},
		{
			name:    "single quotes and extra attributes",
			variant: VariantMinimal,
			entry:   entry("a", "https://blog.example/a", `<img class="big" src='https://img.example/y.jpg' alt="">`),
			want:    "https://img.example/y.jpg",
		},
		{
			name:    "first image wins",
			variant: VariantMinimal,
			entry:   entry("a", "https://blog.example/a", `<img src="first.png"><img src="second.png">`),
			want:    "first.png",
		},
		{
			name:    "no image uses inline placeholder",
			variant: VariantMinimal,
			entry:   entry("a", "https://blog.example/a", `<p>text only</p>`),
			want:    PlaceholderInline,
		},
		{
			name:    "no image in cards uses external placeholder",
			variant: VariantCards,
			entry:   entry("a", "https://blog.example/a", `<p>text only</p>`),
			want:    PlaceholderExternal,
		},
		{
			name:    "summary is searched when content is missing",
			variant: VariantMinimal,
			entry: feedtypes.Entry{
				Title:   feedtypes.Text{T: "a"},
				Link:    []feedtypes.Link{{Rel: "alternate", Href: "https://blog.example/a"}},
				Summary: &feedtypes.Text{T: `<img src="summary.png">`},
			},
			want: "summary.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := ProcessPosts([]feedtypes.Entry{tt.entry}, tt.variant)
			if err != nil {
				t.Fatalf("ProcessPosts() unexpected error: %v", err)
			}
			if posts[0].Image != tt.want {
				t.Errorf("Image = %q, want %q", posts[0].Image, tt.want)
			}
		})
	}
}

func TestProcessPosts_MissingAlternateLink(t *testing.T) {
	entries := []feedtypes.Entry{
		entry("ok", "https://blog.example/ok", ""),
		{Title: feedtypes.Text{T: "broken"}, Link: []feedtypes.Link{{Rel: "self", Href: "https://blog.example/self"}}},
	}

	_, err := ProcessPosts(entries, VariantMinimal)
	if !errors.Is(err, ErrMissingAlternateLink) {
		t.Errorf("ProcessPosts() error = %v, want ErrMissingAlternateLink", err)
	}
}

func TestProcessPosts_TitleEscaping(t *testing.T) {
	posts, err := ProcessPosts([]feedtypes.Entry{
		entry(`<script>alert("x")</script> & co`, "https://blog.example/x", ""),
	}, VariantMinimal)
	if err != nil {
		t.Fatalf("ProcessPosts() unexpected error: %v", err)
	}

	want := `&lt;script&gt;alert("x")&lt;/script&gt; & co`
	if posts[0].Title != want {
		t.Errorf("Title = %q, want %q", posts[0].Title, want)
	}
}

func TestProcessPosts_Snippet(t *testing.T) {
	body := "<div><p>" + strings.Repeat("word ", 30) + "</p></div>"

	minimal, _ := ProcessPosts([]feedtypes.Entry{entry("t", "https://blog.example/t", body)}, VariantMinimal)
	if minimal[0].Snippet != "" {
		t.Errorf("minimal variant should not carry a snippet, got %q", minimal[0].Snippet)
	}

	cards, _ := ProcessPosts([]feedtypes.Entry{entry("t", "https://blog.example/t", body)}, VariantCards)
	want := strings.TrimSpace(strings.Repeat("word ", SnippetWords)) + Ellipsis
	if cards[0].Snippet != want {
		t.Errorf("Snippet = %q, want %q", cards[0].Snippet, want)
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		limit int
		want  string
	}{
		{name: "empty", body: "", limit: 20, want: ""},
		{name: "markup only", body: `<img src="a.png"><br/>`, limit: 20, want: ""},
		{name: "short text", body: "<p>Hello   <b>world</b></p>", limit: 20, want: "Hello world..."},
		{name: "truncates", body: "one two three four", limit: 2, want: "one two..."},
		{name: "entities decoded", body: "<p>Tom &amp; Jerry</p>", limit: 20, want: "Tom & Jerry..."},
		{name: "block tags separate words", body: "<p>end</p><p>start</p>", limit: 20, want: "end start..."},
		{name: "script dropped", body: "<script>var x = 1;</script><p>visible</p>", limit: 20, want: "visible..."},
		{name: "inline tags join words", body: "<p>Hel<b>lo</b> wor<i>ld</i></p>", limit: 20, want: "Hello world..."},
		{name: "links and spans inline", body: `<div>read <a href="/x">the<span>se</span></a> notes</div>`, limit: 20, want: "read these notes..."},
		{name: "line break separates", body: "first<br>second<br/>third", limit: 20, want: "first second third..."},
		{name: "newlines collapsed", body: "a\n\n\tb", limit: 20, want: "a b..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Snippet(tt.body, tt.limit); got != tt.want {
				t.Errorf("Snippet() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseVariant(t *testing.T) {
	if ParseVariant("cards") != VariantCards {
		t.Error("ParseVariant(cards) should return VariantCards")
	}
	if ParseVariant("") != VariantMinimal || ParseVariant("grid") != VariantMinimal {
		t.Error("unknown variants should fall back to minimal")
	}
}
