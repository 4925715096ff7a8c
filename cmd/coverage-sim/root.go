// Command coverage-sim evaluates whether a satellite pool keeps a ground
// observer continuously covered, scores pool reliability, and can run the
// analysis as a rolling monitor with Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/coverage-guarantee/core"
	"github.com/signalsfoundry/coverage-guarantee/internal/config"
	"github.com/signalsfoundry/coverage-guarantee/internal/coverage"
	"github.com/signalsfoundry/coverage-guarantee/internal/logging"
	"github.com/signalsfoundry/coverage-guarantee/internal/observability"
	"github.com/signalsfoundry/coverage-guarantee/kb"
	"github.com/signalsfoundry/coverage-guarantee/model"
)

// Set by the release build.
var version = "dev"

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath     string
	catalogPath    string
	windowsPath    string
	start          string
	logLevel       string
	constellations []string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "coverage-sim",
		Short: "Continuous-coverage guarantee engine for satellite pools",
		Long: `coverage-sim checks whether a pool of Starlink and OneWeb satellites keeps
a ground observer covered by enough satellites at every sampled instant. It
reports coverage gaps with remediation candidates, scores the reliability of
the pool, and can run both analyses on a rolling horizon.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file (defaults apply when empty)")
	flags.StringVar(&opts.catalogPath, "catalog", "", "YAML satellite catalog (required)")
	flags.StringVar(&opts.windowsPath, "windows", "", "answer visibility from a JSON window plan instead of SGP4 propagation")
	flags.StringVar(&opts.start, "start", "", "analysis start time, RFC3339 (default now)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default $LOG_LEVEL)")
	flags.StringSliceVar(&opts.constellations, "constellation", nil, "restrict the pool to these constellations")

	root.AddCommand(
		newEvaluateCmd(opts),
		newReliabilityCmd(opts),
		newMonitorCmd(opts),
	)
	return root
}

// session is everything one subcommand run needs.
type session struct {
	cfg      config.File
	catalog  *kb.Catalog
	filter   []model.Constellation
	cache    *core.CachingOracle
	engine   *coverage.Engine
	registry *prometheus.Registry
	metrics  *observability.CoverageCollector
	log      logging.Logger
	start    time.Time
	shutdown func(context.Context) error
}

func (o *globalOptions) open(ctx context.Context, logOut io.Writer, extra ...coverage.Option) (*session, error) {
	level := o.logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	log := logging.New(logging.Config{Level: level, Format: os.Getenv("LOG_FORMAT"), Output: logOut})

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.catalogPath == "" {
		return nil, errors.New("--catalog is required")
	}
	catalog, err := kb.LoadCatalogFile(o.catalogPath)
	if err != nil {
		return nil, err
	}
	filter, err := parseConstellations(o.constellations)
	if err != nil {
		return nil, err
	}
	start, err := parseStart(o.start)
	if err != nil {
		return nil, err
	}

	oracle, err := o.oracle(cfg)
	if err != nil {
		return nil, err
	}
	cache := core.NewCachingOracle(oracle)

	registry := prometheus.NewRegistry()
	metrics, err := observability.NewCoverageCollector(registry)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	tracing := observability.TracingConfigFromEnv()
	tracing.ServiceVersion = version
	if _, ok := tracing.Attributes["observer.name"]; !ok && cfg.Observer.Name != "" {
		tracing.Attributes["observer.name"] = cfg.Observer.Name
	}
	shutdown, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	engineOpts := append([]coverage.Option{
		coverage.WithLogger(log),
		coverage.WithRecorder(metrics),
	}, extra...)
	engine, err := coverage.NewEngine(cfg.Coverage, cache, engineOpts...)
	if err != nil {
		observability.ShutdownWithTimeout(ctx, shutdown, log)
		return nil, err
	}

	log.Debug(ctx, "session ready",
		logging.Int("catalog_size", catalog.Len()),
		logging.String("start", start.Format(time.RFC3339)),
		logging.Duration("horizon", cfg.Horizon.Duration),
		logging.Duration("step", cfg.Horizon.Step),
	)
	return &session{
		cfg:      cfg,
		catalog:  catalog,
		filter:   filter,
		cache:    cache,
		engine:   engine,
		registry: registry,
		metrics:  metrics,
		log:      log,
		start:    start,
		shutdown: shutdown,
	}, nil
}

func (o *globalOptions) oracle(cfg config.File) (core.VisibilityOracle, error) {
	if o.windowsPath != "" {
		plan, err := loadWindowPlan(o.windowsPath)
		if err != nil {
			return nil, err
		}
		return core.NewWindowOracle(plan), nil
	}
	return core.NewSGP4Oracle(cfg.Observer, cfg.Coverage.ElevationThresholds())
}

func (s *session) pool() []model.SatelliteDescriptor {
	return s.catalog.Pool(s.filter...)
}

func (s *session) close(ctx context.Context) {
	observability.ShutdownWithTimeout(context.WithoutCancel(ctx), s.shutdown, s.log)
}

func parseConstellations(names []string) ([]model.Constellation, error) {
	out := make([]model.Constellation, 0, len(names))
	for _, name := range names {
		c, err := model.ParseConstellation(name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseStart(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	return t.UTC(), nil
}

func loadWindowPlan(path string) (core.WindowPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read window plan: %w", err)
	}
	var plan core.WindowPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode window plan %s: %w", path, err)
	}
	return plan, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
