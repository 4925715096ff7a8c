package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/coverage-guarantee/internal/coverage"
	"github.com/signalsfoundry/coverage-guarantee/internal/logging"
	"github.com/signalsfoundry/coverage-guarantee/internal/observability"
	"github.com/signalsfoundry/coverage-guarantee/kb"
	"github.com/signalsfoundry/coverage-guarantee/model"
	"github.com/signalsfoundry/coverage-guarantee/timectrl"
)

type monitorOptions struct {
	metricsAddr string
	ticks       int
	accelerated bool
}

func newMonitorCmd(opts *globalOptions) *cobra.Command {
	mopts := monitorOptions{}
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Re-run both analyses every monitor interval over a rolling horizon",
		Long: `monitor advances simulation time by the configured monitor interval and,
at every tick, evaluates coverage over [now, now+horizon) and scores
reliability against the coverage history gathered so far. One JSON summary
line is written per tick. The catalog file is re-read when it changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := opts.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.close(ctx)

			mon, err := observability.NewMonitorCollector(s.registry)
			if err != nil {
				return fmt.Errorf("init monitor metrics: %w", err)
			}
			return runMonitor(ctx, s, mon, opts.catalogPath, mopts, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&mopts.metricsAddr, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics, empty to disable")
	flags.IntVar(&mopts.ticks, "ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	flags.BoolVar(&mopts.accelerated, "accelerated", false, "advance simulation time as fast as possible instead of in wall-clock time")
	return cmd
}

// tickSummary is the per-tick line written by the monitor.
type tickSummary struct {
	Time             time.Time          `json:"time"`
	PoolSize         int                `json:"pool_size"`
	CoverageID       string             `json:"coverage_analysis_id,omitempty"`
	CoverageRate     float64            `json:"coverage_rate"`
	Gaps             int                `json:"gaps"`
	Guaranteed       bool               `json:"guaranteed"`
	ReliabilityScore float64            `json:"reliability_score"`
	RiskLevel        coverage.RiskLevel `json:"risk_level,omitempty"`
	HistorySamples   int                `json:"history_samples"`
	CacheHitRatio    float64            `json:"cache_hit_ratio"`
	Errors           []string           `json:"errors,omitempty"`
}

type monitor struct {
	session     *session
	metrics     *observability.MonitorCollector
	catalogPath string
	catalogMod  time.Time

	mu  sync.Mutex
	enc *json.Encoder
}

func runMonitor(ctx context.Context, s *session, mon *observability.MonitorCollector, catalogPath string, opts monitorOptions, out io.Writer) error {
	m := &monitor{
		session:     s,
		metrics:     mon,
		catalogPath: catalogPath,
		enc:         json.NewEncoder(out),
	}
	if info, err := os.Stat(catalogPath); err == nil {
		m.catalogMod = info.ModTime()
	}

	unsubscribe := s.catalog.Subscribe(func(ev kb.Event) {
		s.log.Info(ctx, "catalog changed",
			logging.String("event", ev.Type.String()),
			logging.String("satellite_id", ev.Satellite.ID),
		)
	})
	defer unsubscribe()

	var metricsSrv *http.Server
	if opts.metricsAddr != "" {
		metricsSrv = serveMetrics(opts.metricsAddr, s.metrics, s.log)
	}

	mode := timectrl.RealTime
	if opts.accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(s.start, s.cfg.MonitorInterval, mode)
	tc.AddListener(func(now time.Time) { m.tick(ctx, now) })

	s.log.Info(ctx, "monitor started",
		logging.Duration("interval", s.cfg.MonitorInterval),
		logging.Duration("horizon", s.cfg.Horizon.Duration),
		logging.Int("ticks", opts.ticks),
		logging.Bool("accelerated", opts.accelerated),
	)
	<-tc.Start(ctx, time.Duration(opts.ticks)*s.cfg.MonitorInterval)
	s.log.Info(ctx, "monitor stopped", logging.String("sim_time", tc.Now().Format(time.RFC3339)))

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func (m *monitor) tick(ctx context.Context, now time.Time) {
	started := time.Now()
	defer func() { m.metrics.ObserveTick(time.Since(started)) }()

	s := m.session
	if err := m.reloadCatalog(); err != nil {
		s.log.Warn(ctx, "catalog reload failed; keeping the current pool", logging.Err(err))
	}

	pool := s.pool()
	m.metrics.SetPoolSize(len(pool))
	points := timectrl.TimePoints(now, s.cfg.Horizon.Step, s.cfg.Horizon.Duration)
	summary := tickSummary{Time: now.UTC(), PoolSize: len(pool)}

	report, err := s.engine.EnsureContinuousCoverage(ctx, pool, points)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
	} else {
		summary.CoverageID = report.AnalysisID
		summary.CoverageRate = report.ValidationResults.CoverageRate
		summary.Gaps = len(report.CoverageGaps.IdentifiedGaps)
		summary.Guaranteed = report.Guaranteed
	}

	rel, err := m.reliability(ctx, pool)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
	} else {
		summary.ReliabilityScore = rel.ReliabilityMetrics.ReliabilityScore
		summary.RiskLevel = rel.ReliabilityMetrics.RiskLevel
	}
	if ctx.Err() != nil {
		return
	}

	// Entries behind the rolling horizon are never asked for again.
	if limit := 4 * len(pool) * len(points); s.cache.Len() > limit {
		s.cache.Reset()
	}
	summary.HistorySamples = s.engine.History().Len()
	summary.CacheHitRatio = s.cache.HitRatio()
	m.metrics.SetHistorySamples(summary.HistorySamples)
	m.metrics.SetOracleCacheHitRatio(summary.CacheHitRatio)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enc.Encode(summary); err != nil {
		s.log.Warn(ctx, "write tick summary failed", logging.Err(err))
	}
}

// reliability scores the pool against the coverage history gathered by
// earlier ticks.
func (m *monitor) reliability(ctx context.Context, pool []model.SatelliteDescriptor) (*coverage.ReliabilityReport, error) {
	engine := m.session.engine
	history, err := engine.History().HistoricalRecords(ctx, pool)
	if err != nil {
		return nil, err
	}
	return engine.CalculateCoverageReliability(ctx, pool, history)
}

// reloadCatalog re-reads the catalog file when its modification time moves
// and applies the difference to the live catalog.
func (m *monitor) reloadCatalog() error {
	if m.catalogPath == "" {
		return nil
	}
	info, err := os.Stat(m.catalogPath)
	if err != nil {
		return err
	}
	if !info.ModTime().After(m.catalogMod) {
		return nil
	}
	fresh, err := kb.LoadCatalogFile(m.catalogPath)
	if err != nil {
		return err
	}
	m.catalogMod = info.ModTime()
	changed, err := syncCatalog(m.session.catalog, fresh)
	if changed > 0 {
		// Cached answers are keyed by satellite ID and may describe old elements.
		m.session.cache.Reset()
	}
	return err
}

// syncCatalog makes live hold exactly the satellites in fresh and returns
// how many catalog events it caused. Changed descriptors are removed and
// re-added so subscribers see both events.
func syncCatalog(live, fresh *kb.Catalog) (int, error) {
	var (
		changed int
		errs    []error
	)
	for _, sat := range live.Pool() {
		next, ok := fresh.GetSatellite(sat.ID)
		if ok && next == sat {
			continue
		}
		if err := live.RemoveSatellite(sat.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		changed++
	}
	for _, sat := range fresh.Pool() {
		if _, ok := live.GetSatellite(sat.ID); ok {
			continue
		}
		if err := live.AddSatellite(sat); err != nil {
			errs = append(errs, err)
			continue
		}
		changed++
	}
	return changed, errors.Join(errs...)
}

func serveMetrics(addr string, collector *observability.CoverageCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
