package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/coverage-guarantee/internal/coverage"
)

// Outcome label values.
const (
	OutcomeGuaranteed    = "guaranteed"
	OutcomeNotGuaranteed = "not_guaranteed"
	OutcomeMeets         = "meets_threshold"
	OutcomeBelow         = "below_threshold"
	OutcomeRejected      = "rejected"
)

var _ coverage.Recorder = (*CoverageCollector)(nil)

// CoverageCollector aggregates per-call engine outcomes into Prometheus
// metrics. It satisfies the engine's Recorder interface.
type CoverageCollector struct {
	gatherer prometheus.Gatherer

	Analyses          *prometheus.CounterVec
	AnalysisDurations *prometheus.HistogramVec
	Gaps              *prometheus.CounterVec
	DegradedQueries   prometheus.Counter

	CoverageRate     prometheus.Gauge
	Guaranteed       prometheus.Gauge
	ReliabilityScore prometheus.Gauge
}

// NewCoverageCollector registers coverage metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCoverageCollector(reg prometheus.Registerer) (*CoverageCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	analyses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_analyses_total",
		Help: "Total number of engine calls, labeled by operation and outcome.",
	}, []string{"operation", "outcome"})
	analyses, err := registerCounterVec(reg, analyses, "coverage_analyses_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coverage_analysis_duration_seconds",
		Help:    "Engine call latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})
	durations, err = registerHistogramVec(reg, durations, "coverage_analysis_duration_seconds")
	if err != nil {
		return nil, err
	}

	gaps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "coverage_gaps_total",
		Help: "Detected coverage gaps, labeled by severity.",
	}, []string{"severity"})
	gaps, err = registerCounterVec(reg, gaps, "coverage_gaps_total")
	if err != nil {
		return nil, err
	}

	degraded, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "coverage_degraded_queries_total",
		Help: "Visibility queries the oracle could not answer and that were treated as not visible.",
	}), "coverage_degraded_queries_total")
	if err != nil {
		return nil, err
	}

	rate, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coverage_validated_rate",
		Help: "Validated coverage rate of the most recent analysis.",
	}), "coverage_validated_rate")
	if err != nil {
		return nil, err
	}
	guaranteed, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coverage_guaranteed",
		Help: "1 when the most recent analysis met the coverage target, else 0.",
	}), "coverage_guaranteed")
	if err != nil {
		return nil, err
	}
	reliability, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "coverage_reliability_score",
		Help: "Overall reliability score of the most recent assessment.",
	}), "coverage_reliability_score")
	if err != nil {
		return nil, err
	}

	return &CoverageCollector{
		gatherer:          gatherer,
		Analyses:          analyses,
		AnalysisDurations: durations,
		Gaps:              gaps,
		DegradedQueries:   degraded,
		CoverageRate:      rate,
		Guaranteed:        guaranteed,
		ReliabilityScore:  reliability,
	}, nil
}

// ObserveCoverage records one completed coverage analysis.
func (c *CoverageCollector) ObserveCoverage(guaranteed bool, coverageRate float64, gapsBySeverity map[string]int, degradedQueries int, elapsed time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeNotGuaranteed
	verdict := 0.0
	if guaranteed {
		outcome = OutcomeGuaranteed
		verdict = 1
	}
	c.Analyses.WithLabelValues(coverage.OperationEnsureCoverage, outcome).Inc()
	c.AnalysisDurations.WithLabelValues(coverage.OperationEnsureCoverage).Observe(elapsed.Seconds())
	for severity, n := range gapsBySeverity {
		c.Gaps.WithLabelValues(severity).Add(float64(n))
	}
	c.DegradedQueries.Add(float64(degradedQueries))
	c.CoverageRate.Set(coverageRate)
	c.Guaranteed.Set(verdict)
}

// ObserveReliability records one completed reliability assessment.
func (c *CoverageCollector) ObserveReliability(overall float64, meetsThreshold bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	outcome := OutcomeBelow
	if meetsThreshold {
		outcome = OutcomeMeets
	}
	c.Analyses.WithLabelValues(coverage.OperationReliability, outcome).Inc()
	c.AnalysisDurations.WithLabelValues(coverage.OperationReliability).Observe(elapsed.Seconds())
	c.ReliabilityScore.Set(overall)
}

// ObserveRejected counts a call that failed on structural input errors.
func (c *CoverageCollector) ObserveRejected(operation string) {
	if c == nil {
		return
	}
	c.Analyses.WithLabelValues(operation, OutcomeRejected).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CoverageCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
