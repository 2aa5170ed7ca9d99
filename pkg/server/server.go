// Package server serves rendered widgets over HTTP with fiber.
package server

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lepinkainen/feed-widget/pkg/metrics"
	"github.com/lepinkainen/feed-widget/pkg/page"
	"github.com/lepinkainen/feed-widget/pkg/providers"
	"github.com/lepinkainen/feed-widget/pkg/render"
	"github.com/lepinkainen/feed-widget/pkg/widget"
)

// Config holds what the handlers need to build widgets
type Config struct {
	Source  providers.FeedSource
	Options widget.Options

	// StartInterval and Concurrency tune the scheduler used by POST /render
	StartInterval time.Duration
	Concurrency   int

	// Metrics is optional; without it /metrics is not mounted
	Metrics *metrics.Collector
}

// Server owns the fiber app and the per-locale renderers
type Server struct {
	cfg Config

	mu        sync.Mutex
	renderers map[widget.Locale]*render.Generator
}

// New creates a server
func New(cfg Config) *Server {
	if cfg.Options.Observer == nil && cfg.Metrics != nil {
		cfg.Options.Observer = cfg.Metrics
	}
	return &Server{
		cfg:       cfg,
		renderers: make(map[widget.Locale]*render.Generator),
	}
}

// App returns a fiber app with all routes mounted
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "feed-widget",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		slog.Info("Request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start),
			"request_id", c.Locals("requestid"))
		return err
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/widget", s.handleWidget)
	app.Post("/render", s.handleRender)

	if s.cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	return app
}

func (s *Server) renderer(locale widget.Locale) (*render.Generator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen, ok := s.renderers[locale]; ok {
		return gen, nil
	}
	gen, err := render.NewGenerator(locale)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	s.renderers[locale] = gen
	return gen, nil
}

// requestOptions applies the variant and locale query parameters
func (s *Server) requestOptions(c *fiber.Ctx) widget.Options {
	opts := s.cfg.Options
	if v := c.Query("variant"); v != "" {
		opts.Variant = widget.ParseVariant(v)
	}
	if l := c.Query("locale"); l != "" {
		opts.Locale = widget.ParseLocale(l)
	}
	return opts
}

func (s *Server) track() func() {
	if s.cfg.Metrics == nil {
		return func() {}
	}
	return s.cfg.Metrics.TrackRequest()
}

// handleWidget renders one fragment. Widget failures are part of the
// rendered markup, so the status stays 200.
func (s *Server) handleWidget(c *fiber.Ctx) error {
	defer s.track()()

	opts := s.requestOptions(c)
	gen, err := s.renderer(opts.Locale)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	fragment := page.NewFragment(c.Query("config"))
	w := widget.New(fragment, s.cfg.Source, gen, opts)
	if err := w.Init(c.UserContext()); err != nil {
		slog.Debug("Widget rendered an error", "config", c.Query("config"), "kind", widget.Kind(err))
	}

	c.Set("X-Widget-State", w.State().String())
	c.Type("html", "utf-8")
	return c.SendString(fragment.HTML())
}

// handleRender populates every container of the posted page
func (s *Server) handleRender(c *fiber.Ctx) error {
	defer s.track()()

	opts := s.requestOptions(c)
	gen, err := s.renderer(opts.Locale)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	doc, err := page.Parse(bytes.NewReader(c.Body()))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	scheduler := widget.NewScheduler(s.cfg.StartInterval, s.cfg.Concurrency)
	widgets, err := doc.Populate(c.UserContext(), scheduler, func(container widget.Container) *widget.Widget {
		return widget.New(container, s.cfg.Source, gen, opts)
	})
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	c.Set("X-Widget-Count", fmt.Sprint(len(widgets)))
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
