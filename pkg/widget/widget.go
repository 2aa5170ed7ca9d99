// Package widget turns a feed container into rendered post cards.
//
// A Widget reads its container's configuration, waits a fixed delay, issues
// one feed request with a timeout and renders either the posts or a
// localized error block. Each widget is used exactly once.
package widget

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lepinkainen/feed-widget/pkg/feedtypes"
	"github.com/lepinkainen/feed-widget/pkg/providers"
)

const (
	// DefaultDelay is the pause before the feed request
	DefaultDelay = 2000 * time.Millisecond
	// DefaultTimeout bounds the feed request
	DefaultTimeout = 20000 * time.Millisecond
)

// Container is the host element a widget populates
type Container interface {
	// Config returns the data-config attribute and whether it is present
	Config() (string, bool)
	// SetHTML replaces the inner HTML of the container
	SetHTML(markup string)
}

// Renderer produces the markup for posts and errors
type Renderer interface {
	RenderPosts(w io.Writer, variant Variant, posts []PostSummary) error
	RenderError(w io.Writer, message string) error
}

// ImageResolver finds an image for a post page that has no inline image
type ImageResolver interface {
	ResolveImage(ctx context.Context, pageURL string) (string, bool)
}

// Observer receives the outcome of every widget
type Observer interface {
	ObserveWidget(state State, kind string, elapsed time.Duration)
}

// State is the lifecycle position of a widget
type State int

const (
	StateCreated State = iota
	StateLoading
	StateRendered
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateLoading:
		return "loading"
	case StateRendered:
		return "rendered"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tunes a widget. Delay is used as given; a zero Timeout selects
// DefaultTimeout.
type Options struct {
	APIBase string
	Variant Variant
	Locale  Locale
	Delay   time.Duration
	Timeout time.Duration

	// Images is consulted for posts that fell back to the placeholder
	Images ImageResolver
	// Observer is notified once the widget settles
	Observer Observer
}

// DefaultOptions returns the production timings with the minimal variant
func DefaultOptions() Options {
	return Options{
		APIBase: DefaultAPIBase,
		Variant: VariantMinimal,
		Locale:  DefaultLocale,
		Delay:   DefaultDelay,
		Timeout: DefaultTimeout,
	}
}

// Widget is one feed widget bound to a container
type Widget struct {
	container Container
	source    providers.FeedSource
	renderer  Renderer
	opts      Options

	mu    sync.Mutex
	state State
	err   error
	posts []PostSummary
}

// New creates a widget in the Created state
func New(container Container, source providers.FeedSource, renderer Renderer, opts Options) *Widget {
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if opts.Variant == "" {
		opts.Variant = VariantMinimal
	}
	if opts.Locale == "" {
		opts.Locale = DefaultLocale
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Widget{
		container: container,
		source:    source,
		renderer:  renderer,
		opts:      opts,
		state:     StateCreated,
	}
}

// State returns the current lifecycle state
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the error that moved the widget to StateErrored
func (w *Widget) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Posts returns the summaries rendered by the widget
func (w *Widget) Posts() []PostSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.posts
}

// Init loads the feed and populates the container. Every failure is
// rendered as an error block; the error is also returned to the caller.
func (w *Widget) Init(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateCreated {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.state = StateLoading
	w.mu.Unlock()

	start := time.Now()

	posts, err := w.load(ctx)
	if err == nil {
		err = w.RenderPosts(posts)
	}
	if err != nil {
		w.ShowError(Message(err, w.opts.Locale))
		w.settle(StateErrored, nil, err, start)
		return err
	}

	w.settle(StateRendered, posts, nil, start)
	return nil
}

func (w *Widget) settle(state State, posts []PostSummary, err error, start time.Time) {
	w.mu.Lock()
	w.state = state
	w.posts = posts
	w.err = err
	w.mu.Unlock()

	elapsed := time.Since(start)
	raw, _ := w.container.Config()
	if err != nil {
		slog.Warn("Widget failed", "config", raw, "kind", Kind(err), "error", err, "elapsed", elapsed)
	} else {
		slog.Info("Widget rendered", "config", raw, "posts", len(posts), "elapsed", elapsed)
	}

	if w.opts.Observer != nil {
		w.opts.Observer.ObserveWidget(state, Kind(err), elapsed)
	}
}

func (w *Widget) load(ctx context.Context) ([]PostSummary, error) {
	raw, _ := w.container.Config()
	cfg, err := ParseConfig(raw)
	if err != nil {
		return nil, err
	}

	apiURL := BuildAPIURL(w.opts.APIBase, cfg.Category, cfg.MaxResults)
	slog.Debug("Widget configured", "config", cfg.String(), "recent", cfg.IsRecent(), "url", apiURL)

	if err := w.delayRequest(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}

	env, err := w.fetchData(ctx, apiURL)
	if err != nil {
		return nil, err
	}
	if !env.HasEntries() {
		return nil, ErrEmptyFeed
	}

	posts, err := ProcessPosts(env.Feed.Entry, w.opts.Variant)
	if err != nil {
		return nil, err
	}

	if w.opts.Images != nil {
		w.resolveImages(ctx, posts)
	}
	return posts, nil
}

func (w *Widget) delayRequest(ctx context.Context) error {
	if w.opts.Delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(w.opts.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fetchResult struct {
	env *feedtypes.Envelope
	err error
}

// fetchData runs one source request under the widget timeout. The result
// channel is buffered, so a source that answers after the deadline finishes
// without blocking and its answer is dropped.
func (w *Widget) fetchData(ctx context.Context, apiURL string) (*feedtypes.Envelope, error) {
	fctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		env, err := w.source.Fetch(fctx, apiURL)
		done <- fetchResult{env: env, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(fctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %w", ErrRequestTimeout, res.err)
			}
			return nil, fmt.Errorf("%w: %w", ErrLoadFailure, res.err)
		}
		return res.env, nil
	case <-fctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailure, ctx.Err())
		}
		return nil, fmt.Errorf("%w after %s", ErrRequestTimeout, w.opts.Timeout)
	}
}

func (w *Widget) resolveImages(ctx context.Context, posts []PostSummary) {
	for i := range posts {
		if !posts[i].HasPlaceholder() {
			continue
		}
		if img, ok := w.opts.Images.ResolveImage(ctx, posts[i].URL); ok {
			posts[i].Image = img
		}
	}
}

// RenderPosts replaces the container content with the post cards
func (w *Widget) RenderPosts(posts []PostSummary) error {
	var buf bytes.Buffer
	if err := w.renderer.RenderPosts(&buf, w.opts.Variant, posts); err != nil {
		return fmt.Errorf("%w: render posts: %w", ErrLoadFailure, err)
	}
	w.container.SetHTML(buf.String())
	return nil
}

// ShowError replaces the container content with a warning block
func (w *Widget) ShowError(message string) {
	var buf bytes.Buffer
	if err := w.renderer.RenderError(&buf, message); err != nil {
		slog.Error("Failed to render error block", "error", err)
		buf.Reset()
		buf.WriteString(`<div class="blog-error"><p>⚠️ ` + html.EscapeString(message) + `</p></div>`)
	}
	w.container.SetHTML(buf.String())
}
