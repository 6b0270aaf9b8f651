package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"latencyglobe/internal/api"
	"latencyglobe/internal/catalog"
	"latencyglobe/internal/config"
	"latencyglobe/internal/export"
	"latencyglobe/internal/geo"
	"latencyglobe/internal/logging"
	"latencyglobe/internal/model"
	"latencyglobe/internal/poller"
	"latencyglobe/internal/server"
	"latencyglobe/internal/snapshot"
	"latencyglobe/internal/telemetry"
	"latencyglobe/internal/tracker"
	"latencyglobe/internal/views"
)

const usage = `latencyglobe - exchange to cloud region latency dashboard

Usage:
  latencyglobe init --config <path>
  latencyglobe serve --config <path> [--listen :8080] [--source <url>]
  latencyglobe fetch [--source <url>] [--catalog <path>]
  latencyglobe stats [--source <url>] [--csv <file>] [--window 1h] [--polls 3]
  latencyglobe status --server <url> [--providers AWS,GCP] [--max 250]
  latencyglobe history --server <url> [--range 1h] [--pair <id>]
  latencyglobe export csv [--source <url>] --out <file> [--history]
  latencyglobe export geojson [--config <path>] --out <file>
  latencyglobe catalog init --out <file>
  latencyglobe catalog list [--catalog <path>] [--q <text>]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	switch cmd {
	case "-h", "--help", "help":
		fmt.Print(usage)
	case "init":
		handleInit(os.Args[2:])
	case "serve":
		handleServe(os.Args[2:])
	case "fetch":
		handleFetch(os.Args[2:])
	case "stats":
		handleStats(os.Args[2:])
	case "status":
		handleStatus(os.Args[2:])
	case "history":
		handleHistory(os.Args[2:])
	case "export":
		handleExport(os.Args[2:])
	case "catalog":
		handleCatalog(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func handleInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	listen := fs.String("listen", "", "listen address")
	source := fs.String("source", "", "remote latency endpoint")
	_ = fs.Parse(args)

	if *configPath == "" {
		fatal(errors.New("--config is required"))
	}
	var cfg config.Config
	overrideServe(&cfg, *listen, *source)
	config.ApplyDefaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		fatal(err)
	}
	if err := config.Save(*configPath, cfg); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", *configPath)
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	listen := fs.String("listen", "", "listen address")
	source := fs.String("source", "", "remote latency endpoint")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	overrideServe(&cfg, *listen, *source)
	config.ApplyDefaults(&cfg)
	if err := config.Validate(cfg); err != nil {
		fatal(err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	cat, err := catalog.Load(cfg.Server.CatalogPath)
	if err != nil {
		fatal(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.New(reg)

	builder := snapshot.NewBuilder(cat, geo.NewEstimator(newRand(cfg.Random.Seed, 0)))
	tr := tracker.New(tracker.Config{
		HistoryCap:       cfg.History.Cap,
		SeedThreshold:    cfg.History.SeedThreshold,
		FailureThreshold: cfg.Poller.FailureThreshold,
		SeedRand:         newRand(cfg.Random.Seed, 1),
		Logger:           logger,
	})
	defer tr.Close()

	var fetcher poller.Fetcher = builder
	if cfg.Poller.Source != "" {
		fetcher = api.NewClient(cfg.Poller.Source)
	}
	p := poller.New(fetcher, tr, poller.Config{
		Interval:        cfg.Poller.Interval,
		ClockInterval:   cfg.Poller.ClockInterval,
		FetchTimeout:    cfg.Poller.FetchTimeout,
		BreakerFailures: cfg.Poller.BreakerFailures,
		BreakerTimeout:  cfg.Poller.BreakerTimeout,
		Logger:          logger,
		Metrics:         metrics,
	})
	srv := server.New(cfg.Server, server.Deps{
		Catalog:  cat,
		Builder:  builder,
		Tracker:  tr,
		Gatherer: reg,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		zap.String("listen", cfg.Server.Listen),
		zap.String("source", sourceName(cfg.Poller.Source)),
		zap.Int("nodes", len(cat.Exchanges())+len(cat.Regions())),
		zap.Int("pairs", len(cat.Pairs())),
		zap.String("session", tr.Session()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown", zap.Error(err))
		fatal(err)
	}
	logger.Info("stopped")
}

func handleFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	source := fs.String("source", "", "remote latency endpoint (empty estimates locally)")
	catalogPath := fs.String("catalog", "", "catalog YAML for local estimates")
	seed := fs.Int64("seed", 0, "jitter seed for local estimates")
	timeout := fs.Duration("timeout", config.DefaultFetchTimeout, "fetch timeout")
	_ = fs.Parse(args)

	fetcher, err := newFetcher(*source, *catalogPath, *seed)
	if err != nil {
		fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	links, err := fetcher.Fetch(ctx)
	if err != nil {
		fatal(err)
	}
	printLinks(os.Stdout, links)
}

func handleStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	source := fs.String("source", "", "remote latency endpoint (empty estimates locally)")
	catalogPath := fs.String("catalog", "", "catalog YAML for local estimates")
	csvPath := fs.String("csv", "", "read samples from a CSV export instead of polling")
	window := fs.String("window", "1h", "time window (1h, 24h or 7d)")
	polls := fs.Int("polls", 3, "number of fetches")
	interval := fs.Duration("interval", time.Second, "delay between fetches")
	seed := fs.Int64("seed", 0, "jitter seed")
	_ = fs.Parse(args)

	rng, d, err := views.ParseRange(*window)
	if err != nil {
		fatal(err)
	}

	var (
		samples []model.Sample
		links   []model.Link
		now     = time.Now().UTC()
	)
	if *csvPath != "" {
		samples, err = export.ReadCSV(*csvPath)
		if err != nil {
			fatal(err)
		}
		if len(samples) > 0 {
			now = samples[len(samples)-1].Timestamp
		}
	} else {
		tr, err := pollTracker(*source, *catalogPath, *seed, *polls, *interval)
		if err != nil {
			fatal(err)
		}
		samples, links, now = tr.History(), tr.Links(), tr.Now()
	}

	samples = views.Window(samples, now, d)
	summary := views.SummarizeSamples(samples)
	if summary.Count == 0 {
		fmt.Fprintln(os.Stdout, "no samples in window")
		return
	}

	fmt.Fprintf(os.Stdout, "window=%s samples=%d from=%s to=%s\n", rng, summary.Count, summary.From.Format(time.RFC3339), summary.To.Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "latency avg=%.1fms p95=%.1fms min=%.1fms max=%.1fms\n", summary.AvgMs, summary.P95Ms, summary.MinMs, summary.MaxMs)

	if len(links) == 0 {
		return
	}
	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		fatal(err)
	}
	visible := views.VisibleLinks(cat, links, views.DefaultFilter())
	printRollup(os.Stdout, views.RollupByProvider(cat, visible, model.Providers))
}

func handleStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "dashboard server")
	providers := fs.String("providers", "", "comma-separated provider filter")
	maxMs := fs.String("max", "", "latency threshold in ms")
	focus := fs.String("focus", "", "node id to focus on")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := api.NewClient(*serverURL)
	state, err := client.State(ctx)
	if err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "session=%s now=%s seeded=%t history=%d\n",
		state.Session, state.Now.Format(time.RFC3339), state.Seeded, len(state.History))
	fmt.Fprintf(os.Stdout, "stale=%t failures=%d last_success=%s\n",
		state.Status.Stale, state.Status.ConsecutiveFailures, formatTime(state.Status.LastSuccess))
	if state.Status.LastError != "" {
		fmt.Fprintf(os.Stdout, "last_error=%s\n", state.Status.LastError)
	}

	q := url.Values{}
	if *providers != "" {
		q.Set("providers", *providers)
	}
	if *maxMs != "" {
		q.Set("max", *maxMs)
	}
	if *focus != "" {
		q.Set("focus", *focus)
	}
	links, err := client.Links(ctx, q)
	if err != nil {
		fatal(err)
	}
	printLinks(os.Stdout, links.Links)

	rollup, err := client.Providers(ctx, q)
	if err != nil {
		fatal(err)
	}
	printRollup(os.Stdout, rollup.Providers)
}

func handleHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "dashboard server")
	rangeName := fs.String("range", "1h", "time window (1h, 24h or 7d)")
	pair := fs.String("pair", "", "pair id")
	_ = fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := api.NewClient(*serverURL).History(ctx, *rangeName, *pair)
	if err != nil {
		fatal(err)
	}
	s := resp.Summary
	if s.Count == 0 {
		fmt.Fprintln(os.Stdout, "no samples in window")
		return
	}
	fmt.Fprintf(os.Stdout, "range=%s pair=%s samples=%d\n", resp.Range, sourceName(resp.PairID), s.Count)
	fmt.Fprintf(os.Stdout, "latency avg=%.1fms p95=%.1fms min=%.1fms max=%.1fms\n", s.AvgMs, s.P95Ms, s.MinMs, s.MaxMs)
}

func handleExport(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "export subcommand required\n")
		os.Exit(2)
	}
	switch args[0] {
	case "csv":
		exportCSV(args[1:])
	case "geojson":
		exportGeoJSON(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown export format %q\n", args[0])
		os.Exit(2)
	}
}

func exportCSV(args []string) {
	fs := flag.NewFlagSet("export csv", flag.ExitOnError)
	source := fs.String("source", "", "remote latency endpoint (empty estimates locally)")
	catalogPath := fs.String("catalog", "", "catalog YAML for local estimates")
	out := fs.String("out", "", "output file (appended to when it exists)")
	withHistory := fs.Bool("history", false, "include the demo history backfill")
	seed := fs.Int64("seed", 0, "jitter seed")
	_ = fs.Parse(args)

	if *out == "" {
		fatal(errors.New("--out is required"))
	}

	var samples []model.Sample
	if *withHistory {
		tr, err := pollTracker(*source, *catalogPath, *seed, 1, 0)
		if err != nil {
			fatal(err)
		}
		samples = tr.History()
	} else {
		fetcher, err := newFetcher(*source, *catalogPath, *seed)
		if err != nil {
			fatal(err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultFetchTimeout)
		defer cancel()
		links, err := fetcher.Fetch(ctx)
		if err != nil {
			fatal(err)
		}
		for _, l := range links {
			samples = append(samples, model.SampleFromLink(l))
		}
	}

	if err := export.AppendCSV(*out, samples); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "exported %d samples to %s\n", len(samples), *out)
}

func exportGeoJSON(args []string) {
	fs := flag.NewFlagSet("export geojson", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config")
	out := fs.String("out", "", "output file")
	providers := fs.String("providers", "", "comma-separated provider filter")
	regions := fs.Bool("regions", true, "include cloud regions")
	_ = fs.Parse(args)

	if *out == "" {
		fatal(errors.New("--out is required"))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	cat, err := catalog.Load(cfg.Server.CatalogPath)
	if err != nil {
		fatal(err)
	}

	f := views.DefaultFilter()
	if *providers != "" {
		f.Providers, err = parseProviders(*providers)
		if err != nil {
			fatal(err)
		}
	}

	builder := snapshot.NewBuilder(cat, geo.NewEstimator(newRand(cfg.Random.Seed, 0)))
	links := views.VisibleLinks(cat, builder.Build(time.Now().UTC()), f)
	fc := export.Globe(cat, links, export.GlobeOptions{Providers: f.ProviderSet(), ShowRegions: *regions})
	body, err := fc.MarshalJSON()
	if err != nil {
		fatal(err)
	}
	if err := writeFile(*out, body); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "exported %d features to %s\n", len(fc.Features), *out)
}

func handleCatalog(args []string) {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, "catalog subcommand required\n")
		os.Exit(2)
	}
	switch args[0] {
	case "init":
		catalogInit(args[1:])
	case "list":
		catalogList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown catalog subcommand %q\n", args[0])
		os.Exit(2)
	}
}

func catalogInit(args []string) {
	fs := flag.NewFlagSet("catalog init", flag.ExitOnError)
	out := fs.String("out", "", "output file")
	_ = fs.Parse(args)

	if *out == "" {
		fatal(errors.New("--out is required"))
	}
	f, err := catalog.DecodeFile(catalog.DefaultFile())
	if err != nil {
		fatal(err)
	}
	if err := catalog.Save(*out, f); err != nil {
		fatal(err)
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", *out)
}

func catalogList(args []string) {
	fs := flag.NewFlagSet("catalog list", flag.ExitOnError)
	catalogPath := fs.String("catalog", "", "catalog YAML (empty uses the built-in one)")
	query := fs.String("q", "", "case-insensitive search")
	_ = fs.Parse(args)

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		fatal(err)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tPROVIDER\tREGION\tNAME\tCITY\tCOUNTRY")
	for _, n := range cat.Nodes(*query) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", n.ID, n.Kind, n.Provider, n.Region, n.Name, n.City, n.Country)
	}
	_ = tw.Flush()
}

// pollTracker runs polls synchronous fetches into a fresh tracker.
func pollTracker(source, catalogPath string, seed int64, polls int, interval time.Duration) (*tracker.Tracker, error) {
	fetcher, err := newFetcher(source, catalogPath, seed)
	if err != nil {
		return nil, err
	}
	tr := tracker.New(tracker.Config{SeedRand: newRand(seed, 1)})
	p := poller.New(fetcher, tr, poller.Config{})
	for i := 0; i < polls; i++ {
		if i > 0 {
			time.Sleep(interval)
		}
		if err := p.PollOnce(context.Background()); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

func newFetcher(source, catalogPath string, seed int64) (poller.Fetcher, error) {
	if source != "" {
		return api.NewClient(source), nil
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return nil, err
	}
	return snapshot.NewBuilder(cat, geo.NewEstimator(newRand(seed, 0))), nil
}

// newRand returns a source for one consumer. Zero seeds from the clock;
// otherwise offset keeps consumers sharing a seed on separate streams.
func newRand(seed, offset int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(time.Now().UnixNano() + offset))
	}
	return rand.New(rand.NewSource(seed + offset))
}

func printLinks(w io.Writer, links []model.Link) {
	if len(links) == 0 {
		fmt.Fprintln(w, "no links")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFROM\tTO\tLATENCY\tUPDATED")
	for _, l := range links {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0fms\t%s\n", l.ID, l.FromID, l.ToID, l.LatencyMs, l.LastUpdated.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func printRollup(w io.Writer, rollup []views.ProviderRollup) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tLINKS\tAVG\tMIN\tMAX")
	for _, r := range rollup {
		fmt.Fprintf(tw, "%s\t%d\t%.1fms\t%.0fms\t%.0fms\n", r.Provider, r.Count, r.AvgMs, r.MinMs, r.MaxMs)
	}
	_ = tw.Flush()
}

func parseProviders(list string) ([]model.Provider, error) {
	out := []model.Provider{}
	for _, item := range splitList(list) {
		p, err := model.ParseProvider(item)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, nil
	}
	return config.Load(path)
}

func overrideServe(cfg *config.Config, listen, source string) {
	if listen != "" {
		cfg.Server.Listen = listen
	}
	if source != "" {
		cfg.Poller.Source = source
	}
}

func sourceName(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func fatal(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
