// Package feedtypes provides shared type definitions for the Blogger JSON feed.
package feedtypes

// RelAlternate is the link relation pointing at the public post page.
const RelAlternate = "alternate"

// Envelope is the top-level object returned by the feed endpoint.
type Envelope struct {
	Feed *Feed `json:"feed"`
}

// Feed holds the feed entries. Entry is nil when the category has no posts.
type Feed struct {
	Title Text    `json:"title"`
	Entry []Entry `json:"entry"`
}

// Text is the GData text construct, the value lives under "$t".
type Text struct {
	T    string `json:"$t"`
	Type string `json:"type,omitempty"`
}

// Link is one entry link with its relation.
type Link struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

// Entry is a single post as served by the feed.
type Entry struct {
	Title   Text   `json:"title"`
	Link    []Link `json:"link"`
	Content *Text  `json:"content,omitempty"`
	Summary *Text  `json:"summary,omitempty"`
}

// HasEntries reports whether the envelope carries the expected feed.entry list.
func (e *Envelope) HasEntries() bool {
	return e != nil && e.Feed != nil && e.Feed.Entry != nil
}

// AlternateLink returns the href of the first link with rel="alternate".
func (e *Entry) AlternateLink() (string, bool) {
	for _, l := range e.Link {
		if l.Rel == RelAlternate {
			return l.Href, true
		}
	}
	return "", false
}

// Body returns the content text, falling back to the summary.
func (e *Entry) Body() string {
	if e.Content != nil && e.Content.T != "" {
		return e.Content.T
	}
	if e.Summary != nil {
		return e.Summary.T
	}
	return ""
}
