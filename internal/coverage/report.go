package coverage

import (
	"time"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// CoverageStatus summarises the sampled horizon.
type CoverageStatus struct {
	StartTime                  time.Time                       `json:"start_time"`
	EndTime                    time.Time                       `json:"end_time"`
	TotalTimePoints            int                             `json:"total_time_points"`
	CoveredTimePoints          int                             `json:"covered_time_points"`
	ActualCoverageRate         float64                         `json:"actual_coverage_rate"`
	MinSatelliteCount          int                             `json:"min_satellite_count"`
	MinVisible                 int                             `json:"min_visible"`
	MaxVisible                 int                             `json:"max_visible"`
	MeanVisible                float64                         `json:"mean_visible"`
	MeanVisibleByConstellation map[model.Constellation]float64 `json:"mean_visible_by_constellation"`
}

// GapReport groups the gap outputs.
type GapReport struct {
	IdentifiedGaps    []CoverageGap     `json:"identified_gaps"`
	GapClassification GapClassification `json:"gap_classification"`
	PredictedGaps     []PredictedGap    `json:"predicted_gaps"`
}

// ValidationResults holds the guarantee arithmetic and check outcomes.
type ValidationResults struct {
	ActualCoverageRate  float64       `json:"actual_coverage_rate"`
	ImprovementFraction float64       `json:"improvement_fraction"`
	CoverageRate        float64       `json:"coverage_rate"`
	TargetCoverageRate  float64       `json:"target_coverage_rate"`
	ValidationPassed    bool          `json:"validation_passed"`
	Checks              []CheckResult `json:"checks"`
}

// RunMetrics are per-call counters. Each report carries its own; callers
// aggregate across calls if they need totals.
type RunMetrics struct {
	PoolSize        int           `json:"pool_size"`
	ExcludedEntries int           `json:"excluded_entries"`
	TimePoints      int           `json:"time_points,omitempty"`
	OracleQueries   int           `json:"oracle_queries,omitempty"`
	DegradedQueries int           `json:"degraded_queries_count"`
	HistorySamples  int           `json:"history_samples,omitempty"`
	HistoryDegraded bool          `json:"history_degraded,omitempty"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}

// ContinuousCoverageReport is the result of EnsureContinuousCoverage. A
// false Guaranteed is a normal outcome.
type ContinuousCoverageReport struct {
	AnalysisID            string             `json:"analysis_id"`
	CurrentCoverageStatus CoverageStatus     `json:"current_coverage_status"`
	CoverageGaps          GapReport          `json:"coverage_gaps"`
	GuaranteeActions      RemediationSummary `json:"guarantee_actions"`
	ValidationResults     ValidationResults  `json:"validation_results"`
	Guaranteed            bool               `json:"guaranteed"`
	Metadata              RunMetrics         `json:"metadata"`
}

// ReliabilityMetrics is the headline block of a reliability report.
type ReliabilityMetrics struct {
	Availability     float64      `json:"availability"`
	ReliabilityScore float64      `json:"reliability_score"`
	MeetsRequirement bool         `json:"meets_requirement"`
	Threshold        float64      `json:"threshold"`
	RiskLevel        RiskLevel    `json:"risk_level"`
	RiskFactors      []RiskFactor `json:"risk_factors"`
}

// ReliabilityReport is the result of CalculateCoverageReliability.
type ReliabilityReport struct {
	AnalysisID                 string                      `json:"analysis_id"`
	ReliabilityMetrics         ReliabilityMetrics          `json:"reliability_metrics"`
	Score                      ReliabilityScore            `json:"score"`
	ConstellationCounts        map[model.Constellation]int `json:"constellation_counts"`
	ReliabilityRecommendations []string                    `json:"reliability_recommendations"`
	Metadata                   RunMetrics                  `json:"metadata"`
}
