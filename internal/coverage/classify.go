package coverage

import (
	"fmt"
	"math"
	"time"
)

// Severity ranks a coverage gap by its duration.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Actionable reports whether remediation is planned for gaps of this
// severity.
func (s Severity) Actionable() bool {
	return s == SeverityMedium || s == SeverityHigh
}

func (s Severity) weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// RiskLevel is a qualitative low/medium/high rating.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Classify assigns a severity from the gap duration: at most half the
// threshold is low, up to and including the threshold is medium, beyond it
// is high.
func Classify(gap CoverageGap, maxDurationSeconds float64) Severity {
	switch d := gap.DurationSeconds; {
	case d <= maxDurationSeconds/2:
		return SeverityLow
	case d <= maxDurationSeconds:
		return SeverityMedium
	default:
		return SeverityHigh
	}
}

// ClassifyAll returns a copy of gaps with Severity filled in.
func ClassifyAll(gaps []CoverageGap, maxDurationSeconds float64) []CoverageGap {
	out := make([]CoverageGap, len(gaps))
	for i, g := range gaps {
		g.Severity = Classify(g, maxDurationSeconds)
		out[i] = g
	}
	return out
}

// GapClassification partitions classified gaps for reporting.
type GapClassification struct {
	Critical               []CoverageGap `json:"critical"`
	Medium                 []CoverageGap `json:"medium"`
	Low                    []CoverageGap `json:"low"`
	ImpactScore            int           `json:"impact_score"`
	ServiceDegradationRisk RiskLevel     `json:"service_degradation_risk"`
}

// GroupGaps partitions gaps by severity and scores their combined impact.
// Gaps must already be classified.
func GroupGaps(gaps []CoverageGap) GapClassification {
	out := GapClassification{
		Critical: []CoverageGap{},
		Medium:   []CoverageGap{},
		Low:      []CoverageGap{},
	}
	for _, g := range gaps {
		switch g.Severity {
		case SeverityHigh:
			out.Critical = append(out.Critical, g)
		case SeverityMedium:
			out.Medium = append(out.Medium, g)
		default:
			out.Low = append(out.Low, g)
		}
		out.ImpactScore += g.Severity.weight()
	}

	switch {
	case len(out.Critical) > 0:
		out.ServiceDegradationRisk = RiskHigh
	case out.ImpactScore > 5:
		out.ServiceDegradationRisk = RiskMedium
	default:
		out.ServiceDegradationRisk = RiskLow
	}
	return out
}

// PredictedGap flags a covered time point that looks prone to losing
// coverage. Advisory only.
type PredictedGap struct {
	Index        int       `json:"index"`
	Time         time.Time `json:"time"`
	VisibleCount int       `json:"visible_count"`
	Margin       int       `json:"margin"`
	Confidence   float64   `json:"confidence"`
	Reason       string    `json:"reason"`
}

const (
	predictionMinConfidence = 0.5
	predictionMaxConfidence = 0.95
)

// PredictGaps scans covered snapshots whose visible count sits at most
// margin above minRequired. Confidence starts at 0.6 with no headroom and
// 0.4 otherwise, gains 0.2 when the count is falling, and gains up to 0.2
// from the share of past samples at the same minute of day that were
// uncovered. Only points reaching 0.5 are returned.
func PredictGaps(snapshots []VisibilitySnapshot, minRequired, margin int, history []HistorySample) []PredictedGap {
	pastRate := uncoveredRateByMinute(history)
	out := make([]PredictedGap, 0)

	for i, snap := range snapshots {
		count := snap.Count()
		headroom := count - minRequired
		if headroom < 0 || headroom > margin {
			continue
		}

		confidence := 0.4
		reasons := "thin margin"
		if headroom == 0 {
			confidence = 0.6
			reasons = "at minimum"
		}
		if i > 0 && count < snapshots[i-1].Count() {
			confidence += 0.2
			reasons += ", declining"
		}
		if rate, ok := pastRate[minuteOfDay(snap.Time)]; ok && rate > 0 {
			confidence += 0.2 * rate
			reasons += fmt.Sprintf(", %.0f%% historical gaps", rate*100)
		}
		confidence = math.Min(confidence, predictionMaxConfidence)
		if confidence < predictionMinConfidence {
			continue
		}
		out = append(out, PredictedGap{
			Index:        i,
			Time:         snap.Time,
			VisibleCount: count,
			Margin:       headroom,
			Confidence:   confidence,
			Reason:       reasons,
		})
	}
	return out
}

func minuteOfDay(t time.Time) int {
	t = t.UTC()
	return t.Hour()*60 + t.Minute()
}

func uncoveredRateByMinute(history []HistorySample) map[int]float64 {
	if len(history) == 0 {
		return nil
	}
	total := make(map[int]int)
	uncovered := make(map[int]int)
	for _, s := range history {
		m := minuteOfDay(s.Time)
		total[m]++
		if !s.Covered {
			uncovered[m]++
		}
	}
	out := make(map[int]float64, len(total))
	for m, n := range total {
		out[m] = float64(uncovered[m]) / float64(n)
	}
	return out
}
