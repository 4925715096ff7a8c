package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/signalsfoundry/coverage-guarantee/internal/coverage"
)

func TestCoverageCollectorRecordsAnalyses(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCoverageCollector(reg)
	if err != nil {
		t.Fatalf("NewCoverageCollector: %v", err)
	}

	collector.ObserveCoverage(false, 0.75, map[string]int{"low": 1, "medium": 0, "high": 2}, 4, 20*time.Millisecond)
	collector.ObserveCoverage(true, 1, map[string]int{"low": 1}, 0, 10*time.Millisecond)

	if got := testutil.ToFloat64(collector.Analyses.WithLabelValues(coverage.OperationEnsureCoverage, OutcomeNotGuaranteed)); got != 1 {
		t.Fatalf("not_guaranteed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Analyses.WithLabelValues(coverage.OperationEnsureCoverage, OutcomeGuaranteed)); got != 1 {
		t.Fatalf("guaranteed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Gaps.WithLabelValues("low")); got != 2 {
		t.Fatalf("low gaps = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Gaps.WithLabelValues("high")); got != 2 {
		t.Fatalf("high gaps = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.DegradedQueries); got != 4 {
		t.Fatalf("degraded = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.CoverageRate); got != 1 {
		t.Fatalf("coverage rate gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Guaranteed); got != 1 {
		t.Fatalf("guaranteed gauge = %v, want 1", got)
	}
	if count := histogramSampleCount(t, reg, "coverage_analysis_duration_seconds", map[string]string{
		"operation": coverage.OperationEnsureCoverage,
	}); count != 2 {
		t.Fatalf("duration sample_count = %d, want 2", count)
	}
}

func TestCoverageCollectorRecordsReliabilityAndRejections(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCoverageCollector(reg)
	if err != nil {
		t.Fatalf("NewCoverageCollector: %v", err)
	}

	collector.ObserveReliability(0.9565, false, time.Millisecond)
	collector.ObserveRejected(coverage.OperationEnsureCoverage)

	if got := testutil.ToFloat64(collector.Analyses.WithLabelValues(coverage.OperationReliability, OutcomeBelow)); got != 1 {
		t.Fatalf("below_threshold = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Analyses.WithLabelValues(coverage.OperationEnsureCoverage, OutcomeRejected)); got != 1 {
		t.Fatalf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ReliabilityScore); got != 0.9565 {
		t.Fatalf("reliability gauge = %v", got)
	}
}

func TestCoverageCollectorReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCoverageCollector(reg)
	if err != nil {
		t.Fatalf("NewCoverageCollector: %v", err)
	}
	second, err := NewCoverageCollector(reg)
	if err != nil {
		t.Fatalf("second NewCoverageCollector: %v", err)
	}
	second.ObserveRejected(coverage.OperationReliability)
	if got := testutil.ToFloat64(first.Analyses.WithLabelValues(coverage.OperationReliability, OutcomeRejected)); got != 1 {
		t.Fatalf("shared counter = %v, want 1", got)
	}
}

func TestNilCoverageCollectorIsSafe(t *testing.T) {
	var c *CoverageCollector
	c.ObserveCoverage(true, 1, nil, 0, 0)
	c.ObserveReliability(1, true, 0)
	c.ObserveRejected(coverage.OperationReliability)
}

func TestMetricsHandlerExposesCoverageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCoverageCollector(reg)
	if err != nil {
		t.Fatalf("NewCoverageCollector: %v", err)
	}
	monitor, err := NewMonitorCollector(reg)
	if err != nil {
		t.Fatalf("NewMonitorCollector: %v", err)
	}
	collector.ObserveCoverage(true, 0.97, map[string]int{"medium": 1}, 0, time.Millisecond)
	monitor.SetPoolSize(20)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"coverage_analyses_total",
		"coverage_analysis_duration_seconds",
		"coverage_gaps_total",
		"coverage_validated_rate 0.97",
		"coverage_guaranteed 1",
		"coverage_monitor_pool_size 20",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
