// Package main provides the CLI entry point for feed-widget.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/feed-widget/internal/config"
	"github.com/lepinkainen/feed-widget/internal/logging"
	"github.com/lepinkainen/feed-widget/pkg/api"
	"github.com/lepinkainen/feed-widget/pkg/filesystem"
	"github.com/lepinkainen/feed-widget/pkg/metrics"
	"github.com/lepinkainen/feed-widget/pkg/opengraph"
	"github.com/lepinkainen/feed-widget/pkg/page"
	"github.com/lepinkainen/feed-widget/pkg/preview"
	"github.com/lepinkainen/feed-widget/pkg/providers"
	"github.com/lepinkainen/feed-widget/pkg/render"
	"github.com/lepinkainen/feed-widget/pkg/server"
	"github.com/lepinkainen/feed-widget/pkg/widget"

	// Import sources to trigger init() self-registration
	_ "github.com/lepinkainen/feed-widget/internal/atom"
	_ "github.com/lepinkainen/feed-widget/internal/jsonp"
)

// WidgetFlags override the config file for a single run
type WidgetFlags struct {
	Variant   string `help:"Card layout (minimal, cards)"`
	Locale    string `help:"Error message language (ar, en)"`
	Source    string `help:"Feed source (jsonp, atom)"`
	APIBase   string `help:"Feed endpoint" name:"api-base"`
	NoDelay   bool   `help:"Skip the pre-request delay"`
	Images    bool   `help:"Look up og:image for posts without an inline image"`
	Templates string `help:"Directory with template overrides" default:"templates" type:"path"`
}

// CLI structure
var CLI struct {
	ConfigFile string `help:"Configuration file path" name:"config-file" default:"feed-widget.yaml"`
	Debug      bool   `help:"Enable debug logging" default:"false"`

	Render struct {
		WidgetFlags
		In  string `help:"Page to populate: file path, http(s) URL or - for stdin" short:"i" required:""`
		Out string `help:"Output file, - for stdout" short:"o" default:"-"`
	} `cmd:"render" help:"Populate every data-config container of an HTML page."`

	Fragment struct {
		WidgetFlags
		Config string `help:"Widget configuration <count>/<category>" short:"c" default:"6/recent"`
	} `cmd:"fragment" help:"Render a single widget fragment to stdout."`

	Posts struct {
		WidgetFlags
		Config string `help:"Widget configuration <count>/<category>" short:"c" default:"6/recent"`
	} `cmd:"posts" help:"Print the processed post summaries as YAML."`

	Preview struct {
		WidgetFlags
		Config string `help:"Widget configuration <count>/<category>" short:"c" default:"6/recent"`
		Index  int    `help:"Output rendered HTML for a specific post index (0-based) to stdout" default:"-1"`
	} `cmd:"preview" help:"Preview processed posts interactively."`

	Serve struct {
		WidgetFlags
		Addr string `help:"Listen address"`
	} `cmd:"serve" help:"Serve rendered widgets over HTTP."`

	Cache struct {
		Stats   struct{} `cmd:"" help:"Show image cache statistics."`
		Cleanup struct{} `cmd:"" help:"Remove expired image cache entries."`
		Clear   struct{} `cmd:"" help:"Remove every image cache entry."`
		Warm    struct {
			WidgetFlags
			Config string `help:"Widget configuration <count>/<category>" short:"c" default:"6/recent"`
		} `cmd:"" help:"Prefetch OpenGraph data for every post of a widget configuration."`
	} `cmd:"cache" help:"Manage the og:image cache."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("feed-widget"),
		kong.Description("Render blog feed widgets from a Blogger-style feed."),
		kong.UsageOnError(),
	)

	cfg, err := config.LoadConfig(CLI.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if CLI.Debug {
		cfg.Logging.Level = "debug"
	}
	logCloser, err := logging.Setup(logging.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch ctx.Command() {
	case "render":
		err = renderPage(runCtx, cfg, &CLI.Render.WidgetFlags, CLI.Render.In, CLI.Render.Out)
	case "fragment":
		err = renderFragment(runCtx, cfg, &CLI.Fragment.WidgetFlags, CLI.Fragment.Config)
	case "posts":
		err = dumpPosts(runCtx, cfg, &CLI.Posts.WidgetFlags, CLI.Posts.Config)
	case "preview":
		err = previewPosts(runCtx, cfg, &CLI.Preview.WidgetFlags, CLI.Preview.Config, CLI.Preview.Index)
	case "serve":
		err = serve(runCtx, cfg, &CLI.Serve.WidgetFlags, CLI.Serve.Addr)
	case "cache warm":
		err = warmCache(runCtx, cfg, &CLI.Cache.Warm.WidgetFlags, CLI.Cache.Warm.Config)
	case "cache stats", "cache cleanup", "cache clear":
		err = manageCache(runCtx, cfg, ctx.Command())
	default:
		panic(ctx.Command())
	}

	if err != nil {
		slog.Error("Command failed", "command", ctx.Command(), "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// runtime holds what every widget of one run shares
type runtime struct {
	source providers.FeedSource
	opts   widget.Options
	store  *opengraph.Store
}

func (rt *runtime) Close() {
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			slog.Warn("Failed to close image cache", "error", err)
		}
	}
}

// newRuntime applies the CLI flags over the config file and builds the source
func newRuntime(ctx context.Context, cfg *config.Config, flags *WidgetFlags) (*runtime, error) {
	if flags.Variant != "" {
		cfg.Widget.Variant = flags.Variant
	}
	if flags.Locale != "" {
		cfg.Widget.Locale = flags.Locale
	}
	if flags.Source != "" {
		cfg.Source.Name = flags.Source
	}
	if flags.APIBase != "" {
		cfg.Widget.APIBase = flags.APIBase
	}
	if flags.NoDelay {
		cfg.Widget.Delay = 0
	}
	if flags.Images {
		cfg.Images.Enabled = true
	}
	if flags.Templates != "" {
		render.SetTemplateOverrideFS(os.DirFS(flags.Templates))
	}

	client := api.NewFeedClient(cfg.FeedClientOptions())
	source, err := providers.CreateSource(cfg.Source.Name, providers.SourceConfig{Client: client})
	if err != nil {
		return nil, fmt.Errorf("unknown feed source %q (available: %v): %w", cfg.Source.Name, providers.ListProviders(), err)
	}

	rt := &runtime{source: source, opts: cfg.WidgetOptions()}

	if cfg.Images.Enabled {
		store, err := openImageStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		rt.store = store
		rt.opts.Images = opengraph.NewFetcher(store, nil)
	}

	slog.Debug("Widget runtime ready",
		"source", cfg.Source.Name,
		"api_base", rt.opts.APIBase,
		"variant", rt.opts.Variant,
		"locale", rt.opts.Locale,
		"images", cfg.Images.Enabled)
	return rt, nil
}

func openImageStore(ctx context.Context, cfg *config.Config) (*opengraph.Store, error) {
	path := cfg.Images.DBPath
	if path == "" {
		path = opengraph.DefaultDBFile
	}
	return opengraph.OpenStore(ctx, filesystem.ResolvePath(path), cfg.Images.TTL)
}

func (rt *runtime) renderer() (*render.Generator, error) {
	return render.NewGenerator(rt.opts.Locale)
}

// renderPage populates a whole page through the scheduler
func renderPage(ctx context.Context, cfg *config.Config, flags *WidgetFlags, in, out string) error {
	rt, err := newRuntime(ctx, cfg, flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	gen, err := rt.renderer()
	if err != nil {
		return err
	}

	doc, err := page.Load(ctx, in, nil)
	if err != nil {
		return err
	}

	scheduler := widget.NewScheduler(cfg.Scheduler.StartInterval, cfg.Scheduler.Concurrency)
	widgets, err := doc.Populate(ctx, scheduler, func(c widget.Container) *widget.Widget {
		return widget.New(c, rt.source, gen, rt.opts)
	})
	if err != nil {
		return err
	}
	logSummary(widgets)

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return err
	}
	return writeOutput(out, buf.Bytes())
}

func logSummary(widgets []*widget.Widget) {
	counts := make(map[string]int)
	for _, w := range widgets {
		counts[w.State().String()]++
		if err := w.Err(); err != nil {
			slog.Warn("Widget failed", "kind", widget.Kind(err), "error", err)
		}
	}
	slog.Info("Page populated", "widgets", len(widgets), "rendered", counts["rendered"], "errored", counts["errored"])
}

func writeOutput(out string, data []byte) error {
	if out == "" || out == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := filesystem.WriteFileAtomic(out, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	slog.Info("Wrote page", "path", out, "bytes", len(data))
	return nil
}

// runSingle runs one widget against an in-memory fragment
func runSingle(ctx context.Context, rt *runtime, configValue string) (*page.Fragment, *widget.Widget, error) {
	gen, err := rt.renderer()
	if err != nil {
		return nil, nil, err
	}

	fragment := page.NewFragment(configValue)
	w := widget.New(fragment, rt.source, gen, rt.opts)
	_ = w.Init(ctx)
	return fragment, w, nil
}

func renderFragment(ctx context.Context, cfg *config.Config, flags *WidgetFlags, configValue string) error {
	rt, err := newRuntime(ctx, cfg, flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	fragment, w, err := runSingle(ctx, rt, configValue)
	if err != nil {
		return err
	}
	if werr := w.Err(); werr != nil {
		slog.Warn("Widget rendered an error", "kind", widget.Kind(werr), "error", werr)
	}

	_, err = io.WriteString(os.Stdout, fragment.HTML()+"\n")
	return err
}

// postsDump is the YAML document printed by the posts command
type postsDump struct {
	Config string               `yaml:"config"`
	State  string               `yaml:"state"`
	Error  string               `yaml:"error,omitempty"`
	Posts  []widget.PostSummary `yaml:"posts"`
}

func dumpPosts(ctx context.Context, cfg *config.Config, flags *WidgetFlags, configValue string) error {
	rt, err := newRuntime(ctx, cfg, flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	_, w, err := runSingle(ctx, rt, configValue)
	if err != nil {
		return err
	}

	dump := postsDump{Config: configValue, State: w.State().String(), Posts: w.Posts()}
	if werr := w.Err(); werr != nil {
		dump.Error = werr.Error()
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(dump); err != nil {
		return fmt.Errorf("failed to encode posts: %w", err)
	}
	return enc.Close()
}

func previewPosts(ctx context.Context, cfg *config.Config, flags *WidgetFlags, configValue string, index int) error {
	rt, err := newRuntime(ctx, cfg, flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	_, w, err := runSingle(ctx, rt, configValue)
	if err != nil {
		return err
	}
	if werr := w.Err(); werr != nil {
		return fmt.Errorf("%s: %w", widget.Message(werr, rt.opts.Locale), werr)
	}

	gen, err := rt.renderer()
	if err != nil {
		return err
	}

	posts := w.Posts()
	if index >= 0 {
		if index >= len(posts) {
			return fmt.Errorf("index %d out of range (total %d)", index, len(posts))
		}
		fmt.Println(preview.FormatHTMLItem(posts[index], gen, rt.opts.Variant))
		return nil
	}

	return preview.Run(posts, configValue, rt.opts.Variant, gen)
}

func serve(ctx context.Context, cfg *config.Config, flags *WidgetFlags, addr string) error {
	rt, err := newRuntime(ctx, cfg, flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	if addr == "" {
		addr = cfg.Server.Addr
	}

	srvCfg := server.Config{
		Source:        rt.source,
		Options:       rt.opts,
		StartInterval: cfg.Scheduler.StartInterval,
		Concurrency:   cfg.Scheduler.Concurrency,
	}
	if cfg.Server.Metrics {
		srvCfg.Metrics = metrics.NewCollector()
	}

	app := server.New(srvCfg).App()
	go func() {
		<-ctx.Done()
		slog.Info("Shutting down widget server")
		if err := app.Shutdown(); err != nil {
			slog.Warn("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting widget server", "addr", addr, "metrics", cfg.Server.Metrics)
	return app.Listen(addr)
}

func manageCache(ctx context.Context, cfg *config.Config, command string) error {
	store, err := openImageStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	switch command {
	case "cache cleanup":
		removed, err := store.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d expired entries\n", removed)
		return nil

	case "cache clear":
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Image cache cleared")
		return nil
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		return err
	}
	entries, err := store.Entries(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for _, e := range entries {
		if !e.Success {
			failed++
		}
	}
	stats["failed_entries"] = failed

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-20s %v\n", k, stats[k])
	}
	return nil
}

// warmCache fetches the posts without enrichment and then resolves the
// OpenGraph data of every post page into the cache
func warmCache(ctx context.Context, cfg *config.Config, flags *WidgetFlags, configValue string) error {
	flags.Images = true
	rt, err := newRuntime(ctx, cfg, flags)
	if err != nil {
		return err
	}
	defer rt.Close()

	fetcher := opengraph.NewFetcher(rt.store, nil)
	rt.opts.Images = nil

	_, w, err := runSingle(ctx, rt, configValue)
	if err != nil {
		return err
	}
	if werr := w.Err(); werr != nil {
		return fmt.Errorf("%s: %w", widget.Message(werr, rt.opts.Locale), werr)
	}

	urls := make([]string, 0, len(w.Posts()))
	for _, p := range w.Posts() {
		urls = append(urls, p.URL)
	}

	data := fetcher.FetchConcurrent(ctx, urls)
	fmt.Printf("Cached OpenGraph data for %d of %d posts\n", len(data), len(urls))
	return nil
}
