package coverage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/coverage-guarantee/core"
	"github.com/signalsfoundry/coverage-guarantee/internal/logging"
	"github.com/signalsfoundry/coverage-guarantee/model"
)

const tracerName = "github.com/signalsfoundry/coverage-guarantee/internal/coverage"

// Operation names used for metrics and spans.
const (
	OperationEnsureCoverage = "ensure_continuous_coverage"
	OperationReliability    = "calculate_coverage_reliability"
)

// Recorder receives per-call outcomes for cross-call aggregation.
type Recorder interface {
	ObserveCoverage(guaranteed bool, coverageRate float64, gapsBySeverity map[string]int, degradedQueries int, elapsed time.Duration)
	ObserveReliability(overall float64, meetsThreshold bool, elapsed time.Duration)
	ObserveRejected(operation string)
}

// Engine evaluates coverage guarantees and pool reliability. Both public
// operations are safe for concurrent use; the only mutable state is the
// coverage history ring.
type Engine struct {
	cfg      Configuration
	oracle   core.VisibilityOracle
	history  *CoverageHistory
	provider HistoricalMetricsProvider
	recorder Recorder
	checks   []Check
	log      logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithHistoryProvider sets where reliability history comes from when the
// caller passes none. Without one, a nil history scores at the configured
// default availability. The coverage history ring is never consulted.
func WithHistoryProvider(p HistoricalMetricsProvider) Option {
	return func(e *Engine) {
		if p != nil {
			e.provider = p
		}
	}
}

// WithChecks replaces the validation check set.
func WithChecks(checks ...Check) Option {
	return func(e *Engine) { e.checks = append([]Check(nil), checks...) }
}

// WithClock overrides the wall clock used for elapsed-time metrics.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine validates cfg and builds an engine around oracle.
func NewEngine(cfg Configuration, oracle core.VisibilityOracle, opts ...Option) (*Engine, error) {
	if oracle == nil {
		return nil, errors.New("visibility oracle is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:    cfg.clone(),
		oracle: oracle,
		checks: DefaultChecks(),
		log:    logging.Noop(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	e.history = NewCoverageHistory(e.cfg.HistoryCapacity)
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(logging.String("component", "coverage_engine"))
	return e, nil
}

// Configuration returns a copy of the engine configuration.
func (e *Engine) Configuration() Configuration {
	return e.cfg.clone()
}

// History exposes the coverage history ring.
func (e *Engine) History() *CoverageHistory {
	return e.history
}

// EnsureContinuousCoverage samples visibility at every time point, detects
// and classifies gaps, plans remediation and decides whether the target
// coverage rate is guaranteed. Empty or unordered time points and a pool
// with no usable entry are errors; a missed target is not.
func (e *Engine) EnsureContinuousCoverage(ctx context.Context, pool []model.SatelliteDescriptor, timePoints []time.Time) (*ContinuousCoverageReport, error) {
	started := e.now()
	ctx, analysisID := logging.EnsureAnalysisID(ctx)
	ctx, span := e.tracer.Start(ctx, "coverage.EnsureContinuousCoverage", trace.WithAttributes(
		attribute.String("analysis_id", analysisID),
		attribute.Int("pool.size", len(pool)),
		attribute.Int("time_points", len(timePoints)),
	))
	defer span.End()

	report, err := e.ensureContinuousCoverage(ctx, analysisID, pool, timePoints, started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e.recorder != nil {
			e.recorder.ObserveRejected(OperationEnsureCoverage)
		}
		e.log.Warn(ctx, "coverage analysis not performed", logging.Err(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("guaranteed", report.Guaranteed),
		attribute.Float64("coverage_rate", report.ValidationResults.CoverageRate),
		attribute.Int("gaps", len(report.CoverageGaps.IdentifiedGaps)),
	)
	if e.recorder != nil {
		e.recorder.ObserveCoverage(report.Guaranteed, report.ValidationResults.CoverageRate,
			gapsBySeverity(report.CoverageGaps.IdentifiedGaps), report.Metadata.DegradedQueries, report.Metadata.Elapsed)
	}
	return report, nil
}

func (e *Engine) ensureContinuousCoverage(ctx context.Context, analysisID string, pool []model.SatelliteDescriptor, timePoints []time.Time, started time.Time) (*ContinuousCoverageReport, error) {
	times, err := normalizeTimePoints(timePoints)
	if err != nil {
		return nil, err
	}
	usable, excluded := sanitizePool(pool)
	if excluded > 0 {
		e.log.Warn(ctx, "excluded malformed pool entries", logging.Int("excluded_entries", excluded))
	}
	if len(usable) == 0 {
		if excluded > 0 {
			return nil, fmt.Errorf("%w: all %d pool entries malformed (%w)", ErrEmptyInput, excluded, ErrMalformedSatellite)
		}
		return nil, fmt.Errorf("%w: satellite pool is empty", ErrEmptyInput)
	}

	sampleCtx, sampleSpan := e.tracer.Start(ctx, "coverage.SampleVisibility")
	sampled, err := sampleVisibility(sampleCtx, e.oracle, usable, times, e.cfg.Workers, e.log)
	sampleSpan.End()
	if err != nil {
		return nil, err
	}
	snapshots := sampled.snapshots
	if sampled.degraded > 0 {
		e.log.Warn(ctx, "oracle queries degraded to not-visible",
			logging.Int("degraded_queries", sampled.degraded),
			logging.Int("oracle_queries", sampled.queries),
		)
	}

	minRequired := e.cfg.MinSatelliteCount
	rawGaps, err := DetectGaps(snapshots, minRequired)
	if err != nil {
		return nil, err
	}
	gaps := ClassifyAll(rawGaps, e.cfg.MaxGapDurationSeconds)
	classification := GroupGaps(gaps)
	predicted := PredictGaps(snapshots, minRequired, e.cfg.PredictionMargin, e.history.Samples())
	remediation := NewRemediationPlanner(e.cfg).Plan(gaps, usable)
	e.log.Debug(ctx, "gap analysis complete",
		logging.Int("gaps", len(gaps)),
		logging.Int("impact_score", classification.ImpactScore),
		logging.Int("predicted_gaps", len(predicted)),
		logging.Int("remediation_actions", len(remediation.Actions)),
	)

	status := coverageStatus(snapshots, minRequired)
	improvement := improvementFraction(remediation.ExpectedCoverageImprovementMinutes, snapshots)
	validated := math.Min(status.ActualCoverageRate+improvement, 1.0)
	guaranteed := validated >= e.cfg.TargetCoverageRate

	report := &ContinuousCoverageReport{
		AnalysisID:            analysisID,
		CurrentCoverageStatus: status,
		CoverageGaps: GapReport{
			IdentifiedGaps:    gaps,
			GapClassification: classification,
			PredictedGaps:     predicted,
		},
		GuaranteeActions: remediation,
		ValidationResults: ValidationResults{
			ActualCoverageRate:  status.ActualCoverageRate,
			ImprovementFraction: improvement,
			CoverageRate:        validated,
			TargetCoverageRate:  e.cfg.TargetCoverageRate,
			ValidationPassed:    guaranteed,
			Checks: runChecks(e.checks, CheckInput{
				Config:                e.cfg,
				Snapshots:             snapshots,
				Gaps:                  gaps,
				ValidatedCoverageRate: validated,
			}),
		},
		Guaranteed: guaranteed,
		Metadata: RunMetrics{
			PoolSize:        len(usable),
			ExcludedEntries: excluded,
			TimePoints:      len(times),
			OracleQueries:   sampled.queries,
			DegradedQueries: sampled.degraded,
			Elapsed:         e.now().Sub(started),
		},
	}

	// Only a fully completed analysis reaches the history.
	e.history.Append(historySamples(analysisID, snapshots, minRequired)...)

	e.log.Info(ctx, "coverage analysis complete",
		logging.Int("time_points", len(times)),
		logging.Int("gaps", len(gaps)),
		logging.Float("actual_coverage_rate", status.ActualCoverageRate),
		logging.Float("validated_coverage_rate", validated),
		logging.Bool("guaranteed", guaranteed),
	)
	return report, nil
}

// CalculateCoverageReliability scores the pool's long-run dependability.
// history may be nil, in which case the configured provider is asked, if
// any, and the default availability applies otherwise. An
// empty pool yields a zero score; a non-empty pool with no usable entry is
// an error.
func (e *Engine) CalculateCoverageReliability(ctx context.Context, pool []model.SatelliteDescriptor, history []HistoricalRecord) (*ReliabilityReport, error) {
	started := e.now()
	ctx, analysisID := logging.EnsureAnalysisID(ctx)
	ctx, span := e.tracer.Start(ctx, "coverage.CalculateCoverageReliability", trace.WithAttributes(
		attribute.String("analysis_id", analysisID),
		attribute.Int("pool.size", len(pool)),
	))
	defer span.End()

	usable, excluded := sanitizePool(pool)
	if len(usable) == 0 && excluded > 0 {
		err := fmt.Errorf("%w: all %d pool entries malformed (%w)", ErrEmptyInput, excluded, ErrMalformedSatellite)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if e.recorder != nil {
			e.recorder.ObserveRejected(OperationReliability)
		}
		return nil, err
	}

	meta := RunMetrics{PoolSize: len(usable), ExcludedEntries: excluded}
	if history == nil && len(usable) > 0 && e.provider != nil {
		records, err := e.provider.HistoricalRecords(ctx, usable)
		switch {
		case err != nil && isContextErr(err):
			return nil, err
		case err != nil:
			meta.HistoryDegraded = true
			e.log.Warn(ctx, "historical metrics unavailable; using default availability", logging.Err(err))
		default:
			history = records
		}
	}
	meta.HistorySamples = len(history)

	assessment := NewReliabilityAssessor(e.cfg).Assess(usable, history)
	score := assessment.Score
	meta.Elapsed = e.now().Sub(started)

	report := &ReliabilityReport{
		AnalysisID: analysisID,
		ReliabilityMetrics: ReliabilityMetrics{
			Availability:     score.Availability,
			ReliabilityScore: score.Overall,
			MeetsRequirement: score.MeetsThreshold,
			Threshold:        e.cfg.ReliabilityThreshold,
			RiskLevel:        assessment.RiskLevel,
			RiskFactors:      assessment.RiskFactors,
		},
		Score:                      score,
		ConstellationCounts:        assessment.ConstellationCounts,
		ReliabilityRecommendations: e.recommendations(assessment),
		Metadata:                   meta,
	}

	span.SetAttributes(
		attribute.Float64("reliability.overall", score.Overall),
		attribute.Bool("reliability.meets_threshold", score.MeetsThreshold),
	)
	if e.recorder != nil {
		e.recorder.ObserveReliability(score.Overall, score.MeetsThreshold, meta.Elapsed)
	}
	e.log.Info(ctx, "reliability assessment complete",
		logging.Int("pool_size", len(usable)),
		logging.Float("overall_score", score.Overall),
		logging.Bool("meets_threshold", score.MeetsThreshold),
		logging.String("risk_level", string(assessment.RiskLevel)),
	)
	return report, nil
}

// Recommendation texts.
const (
	RecommendIncreaseRedundancy = "increase redundancy"
	RecommendEnhanceMonitoring  = "enhance monitoring"
)

func (e *Engine) recommendations(a ReliabilityAssessment) []string {
	out := []string{}
	if a.Score.Overall < e.cfg.ReliabilityThreshold {
		out = append(out, RecommendIncreaseRedundancy)
	}
	if a.RiskLevel != RiskLow {
		out = append(out, RecommendEnhanceMonitoring)
	}
	for _, cons := range a.ShortConstellations {
		out = append(out, fmt.Sprintf("add %s satellites: pool has %d, minimum is %d",
			cons, a.ConstellationCounts[cons], e.cfg.Constellations[cons].MinSatellites))
	}
	return out
}

// normalizeTimePoints truncates to whole UTC seconds and checks strict order.
func normalizeTimePoints(in []time.Time) ([]time.Time, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: no time points", ErrEmptyInput)
	}
	out := make([]time.Time, len(in))
	for i, t := range in {
		out[i] = t.UTC().Truncate(time.Second)
		if i > 0 && !out[i].After(out[i-1]) {
			return nil, fmt.Errorf("%w: time point %d (%s) does not follow %s",
				ErrInvalidInputOrder, i, out[i].Format(time.RFC3339), out[i-1].Format(time.RFC3339))
		}
	}
	return out, nil
}

// sanitizePool drops malformed and duplicate-ID entries.
func sanitizePool(pool []model.SatelliteDescriptor) ([]model.SatelliteDescriptor, int) {
	out := make([]model.SatelliteDescriptor, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	excluded := 0
	for _, sat := range pool {
		if sat.Validate() != nil {
			excluded++
			continue
		}
		if _, dup := seen[sat.ID]; dup {
			excluded++
			continue
		}
		seen[sat.ID] = struct{}{}
		out = append(out, sat)
	}
	return out, excluded
}

func coverageStatus(snapshots []VisibilitySnapshot, minRequired int) CoverageStatus {
	start, end := analysedSpan(snapshots)
	status := CoverageStatus{
		StartTime:                  start,
		EndTime:                    end,
		TotalTimePoints:            len(snapshots),
		MinSatelliteCount:          minRequired,
		MeanVisibleByConstellation: meanVisibleByConstellation(snapshots),
	}
	if len(snapshots) == 0 {
		return status
	}
	status.MinVisible = snapshots[0].Count()
	total := 0
	for _, s := range snapshots {
		n := s.Count()
		total += n
		if n >= minRequired {
			status.CoveredTimePoints++
		}
		if n < status.MinVisible {
			status.MinVisible = n
		}
		if n > status.MaxVisible {
			status.MaxVisible = n
		}
	}
	status.MeanVisible = float64(total) / float64(len(snapshots))
	status.ActualCoverageRate = float64(status.CoveredTimePoints) / float64(len(snapshots))
	return status
}

// improvementFraction converts remediation minutes into a share of the
// analysed span.
func improvementFraction(minutes float64, snapshots []VisibilitySnapshot) float64 {
	start, end := analysedSpan(snapshots)
	span := end.Sub(start).Seconds()
	if span <= 0 || minutes <= 0 {
		return 0
	}
	return minutes * 60 / span
}

func historySamples(analysisID string, snapshots []VisibilitySnapshot, minRequired int) []HistorySample {
	out := make([]HistorySample, len(snapshots))
	for i, s := range snapshots {
		out[i] = HistorySample{
			AnalysisID:   analysisID,
			Time:         s.Time,
			VisibleCount: s.Count(),
			Required:     minRequired,
			Covered:      s.Count() >= minRequired,
		}
	}
	return out
}

func gapsBySeverity(gaps []CoverageGap) map[string]int {
	out := map[string]int{
		string(SeverityLow):    0,
		string(SeverityMedium): 0,
		string(SeverityHigh):   0,
	}
	for _, g := range gaps {
		out[string(g.Severity)]++
	}
	return out
}
