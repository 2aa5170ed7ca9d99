package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
	"github.com/lepinkainen/feed-widget/pkg/providers"
)

type fakeContainer struct {
	mu      sync.Mutex
	config  string
	present bool
	writes  []string
}

func newContainer(config string) *fakeContainer {
	return &fakeContainer{config: config, present: true}
}

func (c *fakeContainer) Config() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config, c.present
}

func (c *fakeContainer) SetHTML(markup string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, markup)
}

func (c *fakeContainer) Writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

type textRenderer struct{}

func (textRenderer) RenderPosts(w io.Writer, variant Variant, posts []PostSummary) error {
	for _, p := range posts {
		if _, err := fmt.Fprintf(w, "[%s|%s|%s]", p.Title, p.URL, p.Image); err != nil {
			return err
		}
	}
	return nil
}

func (textRenderer) RenderError(w io.Writer, message string) error {
	_, err := fmt.Fprintf(w, "ERROR:%s", message)
	return err
}

func envelope(entries ...feedtypes.Entry) *feedtypes.Envelope {
	if entries == nil {
		entries = []feedtypes.Entry{}
	}
	return &feedtypes.Envelope{Feed: &feedtypes.Feed{Entry: entries}}
}

func staticSource(env *feedtypes.Envelope, err error) providers.FeedSource {
	return providers.FeedSourceFunc(func(ctx context.Context, url string) (*feedtypes.Envelope, error) {
		return env, err
	})
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.APIBase = testBase
	opts.Delay = 0
	opts.Timeout = time.Second
	return opts
}

func TestWidget_InitRendersPosts(t *testing.T) {
	var requested string
	source := providers.FeedSourceFunc(func(ctx context.Context, url string) (*feedtypes.Envelope, error) {
		requested = url
		return envelope(
			entry("First", "https://blog.example/1", `<img src="1.png">`),
			entry("Second", "https://blog.example/2", ""),
		), nil
	})

	c := newContainer("2/news")
	w := New(c, source, textRenderer{}, testOptions())

	if w.State() != StateCreated {
		t.Fatalf("initial state = %v, want created", w.State())
	}
	if err := w.Init(context.Background()); err != nil {
		t.Fatalf("Init() unexpected error: %v", err)
	}

	if requested != testBase+"/-/news?alt=json-in-script&max-results=2" {
		t.Errorf("requested URL = %q", requested)
	}
	if w.State() != StateRendered {
		t.Errorf("state = %v, want rendered", w.State())
	}

	writes := c.Writes()
	if len(writes) != 1 {
		t.Fatalf("SetHTML called %d times, want 1", len(writes))
	}
	want := "[First|https://blog.example/1|1.png][Second|https://blog.example/2|" + PlaceholderInline + "]"
	if writes[0] != want {
		t.Errorf("rendered = %q, want %q", writes[0], want)
	}
	if len(w.Posts()) != 2 {
		t.Errorf("Posts() = %d, want 2", len(w.Posts()))
	}
}

func TestWidget_DefaultConfigWhenAttributeMissing(t *testing.T) {
	var requested string
	source := providers.FeedSourceFunc(func(ctx context.Context, url string) (*feedtypes.Envelope, error) {
		requested = url
		return envelope(), nil
	})

	c := &fakeContainer{}
	if err := New(c, source, textRenderer{}, testOptions()).Init(context.Background()); err != nil {
		t.Fatalf("Init() unexpected error: %v", err)
	}
	if requested != testBase+"?alt=json-in-script&max-results=6" {
		t.Errorf("requested URL = %q", requested)
	}
}

func TestWidget_ErrorStates(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		source  providers.FeedSource
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing feed key",
			config:  "6/recent",
			source:  staticSource(&feedtypes.Envelope{}, nil),
			wantErr: ErrEmptyFeed,
			wantMsg: "لا توجد مقالات متاحة",
		},
		{
			name:    "missing feed.entry",
			config:  "6/recent",
			source:  staticSource(&feedtypes.Envelope{Feed: &feedtypes.Feed{}}, nil),
			wantErr: ErrEmptyFeed,
			wantMsg: "لا توجد مقالات متاحة",
		},
		{
			name:    "nil envelope",
			config:  "6/recent",
			source:  staticSource(nil, nil),
			wantErr: ErrEmptyFeed,
			wantMsg: "لا توجد مقالات متاحة",
		},
		{
			name:    "transport failure",
			config:  "6/recent",
			source:  staticSource(nil, errors.New("connection refused")),
			wantErr: ErrLoadFailure,
			wantMsg: "فشل في تحميل البيانات",
		},
		{
			name:    "invalid config",
			config:  "many/recent",
			source:  staticSource(envelope(), nil),
			wantErr: ErrInvalidConfig,
			wantMsg: "إعدادات الأداة غير صالحة",
		},
		{
			name:    "missing alternate link",
			config:  "1/recent",
			source:  staticSource(envelope(feedtypes.Entry{Title: feedtypes.Text{T: "x"}}), nil),
			wantErr: ErrMissingAlternateLink,
			wantMsg: "رابط المقال غير متوفر",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newContainer(tt.config)
			w := New(c, tt.source, textRenderer{}, testOptions())

			err := w.Init(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Init() error = %v, want %v", err, tt.wantErr)
			}
			if w.State() != StateErrored {
				t.Errorf("state = %v, want errored", w.State())
			}
			if !errors.Is(w.Err(), tt.wantErr) {
				t.Errorf("Err() = %v", w.Err())
			}

			writes := c.Writes()
			if len(writes) != 1 || writes[0] != "ERROR:"+tt.wantMsg {
				t.Errorf("container writes = %q, want one error block %q", writes, tt.wantMsg)
			}
		})
	}
}

func TestWidget_TimeoutSettlesOnce(t *testing.T) {
	late := make(chan struct{})
	returned := make(chan struct{})
	source := providers.FeedSourceFunc(func(ctx context.Context, url string) (*feedtypes.Envelope, error) {
		// Ignores ctx on purpose and answers after the deadline
		<-late
		defer close(returned)
		return envelope(entry("late", "https://blog.example/late", "")), nil
	})

	opts := testOptions()
	opts.Timeout = 20 * time.Millisecond
	opts.Locale = LocaleEnglish

	c := newContainer("6/recent")
	w := New(c, source, textRenderer{}, opts)

	err := w.Init(context.Background())
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("Init() error = %v, want ErrRequestTimeout", err)
	}

	close(late)
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("late source call never returned")
	}
	// Give a misbehaving implementation the chance to write again
	time.Sleep(20 * time.Millisecond)

	writes := c.Writes()
	if len(writes) != 1 || writes[0] != "ERROR:The request timed out" {
		t.Errorf("container writes = %q, want exactly one timeout block", writes)
	}
	if w.State() != StateErrored {
		t.Errorf("state = %v, want errored", w.State())
	}
}

func TestWidget_SourceHonouringDeadline(t *testing.T) {
	source := providers.FeedSourceFunc(func(ctx context.Context, url string) (*feedtypes.Envelope, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("jsonp request: %w", ctx.Err())
	})

	opts := testOptions()
	opts.Timeout = 10 * time.Millisecond

	err := New(newContainer("6/recent"), source, textRenderer{}, opts).Init(context.Background())
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("Init() error = %v, want ErrRequestTimeout", err)
	}
}

func TestWidget_DelayHonoursContext(t *testing.T) {
	called := false
	source := providers.FeedSourceFunc(func(ctx context.Context, url string) (*feedtypes.Envelope, error) {
		called = true
		return envelope(), nil
	})

	opts := testOptions()
	opts.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newContainer("6/recent")
	err := New(c, source, textRenderer{}, opts).Init(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Init() error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("source should not be called when the delay is cancelled")
	}
	if len(c.Writes()) != 1 {
		t.Errorf("container writes = %d, want 1", len(c.Writes()))
	}
}

func TestWidget_DelayBeforeRequest(t *testing.T) {
	var requestedAt time.Time
	source := providers.FeedSourceFunc(func(ctx context.Context, url string) (*feedtypes.Envelope, error) {
		requestedAt = time.Now()
		return envelope(), nil
	})

	opts := testOptions()
	opts.Delay = 30 * time.Millisecond

	start := time.Now()
	if err := New(newContainer("6/recent"), source, textRenderer{}, opts).Init(context.Background()); err != nil {
		t.Fatalf("Init() unexpected error: %v", err)
	}
	if requestedAt.Sub(start) < opts.Delay {
		t.Errorf("request issued after %v, want at least %v", requestedAt.Sub(start), opts.Delay)
	}
}

func TestWidget_SecondInitRejected(t *testing.T) {
	c := newContainer("6/recent")
	w := New(c, staticSource(envelope(), nil), textRenderer{}, testOptions())

	if err := w.Init(context.Background()); err != nil {
		t.Fatalf("Init() unexpected error: %v", err)
	}
	if err := w.Init(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Init() error = %v, want ErrAlreadyStarted", err)
	}
	if len(c.Writes()) != 1 {
		t.Errorf("container writes = %d, want 1", len(c.Writes()))
	}
}

type fakeResolver struct {
	images map[string]string
}

func (r fakeResolver) ResolveImage(ctx context.Context, pageURL string) (string, bool) {
	img, ok := r.images[pageURL]
	return img, ok
}

func TestWidget_ImageResolver(t *testing.T) {
	source := staticSource(envelope(
		entry("has image", "https://blog.example/1", `<img src="inline.png">`),
		entry("no image", "https://blog.example/2", ""),
		entry("unknown", "https://blog.example/3", ""),
	), nil)

	opts := testOptions()
	opts.Images = fakeResolver{images: map[string]string{
		"https://blog.example/1": "og-1.png",
		"https://blog.example/2": "og-2.png",
	}}

	w := New(newContainer("3/recent"), source, textRenderer{}, opts)
	if err := w.Init(context.Background()); err != nil {
		t.Fatalf("Init() unexpected error: %v", err)
	}

	posts := w.Posts()
	want := []string{"inline.png", "og-2.png", PlaceholderInline}
	for i, img := range want {
		if posts[i].Image != img {
			t.Errorf("posts[%d].Image = %q, want %q", i, posts[i].Image, img)
		}
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	kinds []string
}

func (o *recordingObserver) ObserveWidget(state State, kind string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.kinds = append(o.kinds, state.String()+":"+kind)
}

func TestWidget_Observer(t *testing.T) {
	obs := &recordingObserver{}
	opts := testOptions()
	opts.Observer = obs

	_ = New(newContainer("1/recent"), staticSource(envelope(entry("a", "https://blog.example/a", "")), nil), textRenderer{}, opts).Init(context.Background())
	_ = New(newContainer("1/recent"), staticSource(&feedtypes.Envelope{}, nil), textRenderer{}, opts).Init(context.Background())

	got := strings.Join(obs.kinds, ",")
	if got != "rendered:ok,errored:empty_feed" {
		t.Errorf("observed = %q", got)
	}
}

type failingRenderer struct{ textRenderer }

func (failingRenderer) RenderError(w io.Writer, message string) error {
	return errors.New("template missing")
}

func TestWidget_ErrorRenderFallback(t *testing.T) {
	c := newContainer("bad")
	_ = New(c, staticSource(envelope(), nil), failingRenderer{}, testOptions()).Init(context.Background())

	writes := c.Writes()
	if len(writes) != 1 || !strings.Contains(writes[0], `class="blog-error"`) {
		t.Errorf("fallback error block = %q", writes)
	}
}

func TestMessage(t *testing.T) {
	wrapped := fmt.Errorf("fetch: %w", ErrRequestTimeout)

	if got := Message(wrapped, LocaleArabic); got != "مهلة الطلب انتهت" {
		t.Errorf("Message(ar) = %q", got)
	}
	if got := Message(wrapped, LocaleEnglish); got != "The request timed out" {
		t.Errorf("Message(en) = %q", got)
	}
	if got := Message(errors.New("boom"), "fr"); got != "فشل في تحميل البيانات" {
		t.Errorf("unknown locale and error = %q", got)
	}
	if got := Message(context.DeadlineExceeded, LocaleEnglish); got != "The request timed out" {
		t.Errorf("deadline exceeded = %q", got)
	}
}

func TestKind(t *testing.T) {
	tests := map[error]string{
		nil:                     "ok",
		ErrInvalidConfig:        "invalid_config",
		ErrEmptyFeed:            "empty_feed",
		ErrRequestTimeout:       "timeout",
		ErrLoadFailure:          "load_failure",
		ErrMissingAlternateLink: "missing_link",
		errors.New("other"):     "load_failure",
	}
	for err, want := range tests {
		if got := Kind(err); got != want {
			t.Errorf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}
