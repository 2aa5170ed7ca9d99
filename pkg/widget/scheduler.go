package widget

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/feed-widget/pkg/api"
)

const (
	// DefaultStartInterval spaces consecutive widget starts
	DefaultStartInterval = 1000 * time.Millisecond
	// DefaultConcurrency bounds the number of widgets loading at once
	DefaultConcurrency = 4
)

// Scheduler starts widgets spaced out by a rate limiter and bounded by a
// concurrency limit. A failing widget never affects the others.
type Scheduler struct {
	limiter     api.RateLimiter
	concurrency int
}

// NewScheduler creates a scheduler. A non-positive interval disables
// spacing and a non-positive concurrency selects DefaultConcurrency.
func NewScheduler(interval time.Duration, concurrency int) *Scheduler {
	var limiter api.RateLimiter = api.NewNoOpRateLimiter()
	if interval > 0 {
		limiter = api.NewSimpleRateLimiter(interval)
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Scheduler{limiter: limiter, concurrency: concurrency}
}

// Run initializes every widget and waits for all started widgets to settle.
// When ctx is cancelled no further widgets are started and ctx.Err() is returned.
func (s *Scheduler) Run(ctx context.Context, widgets []*Widget) error {
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	var startErr error
	for i, w := range widgets {
		if err := s.limiter.Wait(ctx); err != nil {
			slog.Warn("Stopping widget scheduler", "started", i, "pending", len(widgets)-i, "error", err)
			startErr = err
			break
		}

		g.Go(func() error {
			// Errors are already rendered into the container
			_ = w.Init(ctx)
			return nil
		})
	}

	_ = g.Wait()
	return startErr
}
