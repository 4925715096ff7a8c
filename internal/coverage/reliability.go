package coverage

import (
	"math"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// ReliabilityScore is the composite dependability rating of a pool. It is
// built once by the assessor and not modified afterwards.
type ReliabilityScore struct {
	Availability   float64 `json:"availability_score"`
	Stability      float64 `json:"stability_score"`
	ContinuityRisk float64 `json:"continuity_risk_score"`
	Recovery       float64 `json:"recovery_score"`
	Overall        float64 `json:"overall_score"`
	MeetsThreshold bool    `json:"meets_threshold"`
}

// ReliabilityAssessment carries the score plus the inputs behind it.
type ReliabilityAssessment struct {
	Score               ReliabilityScore            `json:"score"`
	RiskLevel           RiskLevel                   `json:"risk_level"`
	RiskFactors         []RiskFactor                `json:"risk_factors"`
	HistorySamples      int                         `json:"history_samples"`
	UsedDefaultHistory  bool                        `json:"used_default_availability"`
	ConstellationCounts map[model.Constellation]int `json:"constellation_counts"`
	// ShortConstellations lists configured constellations whose pool count
	// is below their minimum, in canonical order.
	ShortConstellations []model.Constellation `json:"short_constellations,omitempty"`
}

// ReliabilityAssessor scores pools against a fixed configuration.
type ReliabilityAssessor struct {
	cfg Configuration
}

// NewReliabilityAssessor builds an assessor over cfg.
func NewReliabilityAssessor(cfg Configuration) ReliabilityAssessor {
	return ReliabilityAssessor{cfg: cfg}
}

// Assess computes the four sub-scores and the weighted overall score. An
// empty pool yields an all-zero score that does not meet the threshold.
// history may be nil; with no records the configured default availability
// is used.
func (a ReliabilityAssessor) Assess(pool []model.SatelliteDescriptor, history []HistoricalRecord) ReliabilityAssessment {
	counts := make(map[model.Constellation]int)
	for _, sat := range pool {
		counts[sat.Constellation]++
	}
	out := ReliabilityAssessment{
		RiskFactors:         append([]RiskFactor(nil), a.cfg.RiskFactors...),
		HistorySamples:      len(history),
		ConstellationCounts: counts,
		ShortConstellations: a.shortConstellations(counts),
	}
	if len(pool) == 0 {
		out.RiskLevel = RiskHigh
		return out
	}

	availability, usedDefault := a.availability(history)
	risk := clamp01(a.cfg.baselineRisk())
	score := ReliabilityScore{
		Availability:   availability,
		Stability:      a.stability(len(pool), counts),
		ContinuityRisk: risk,
		Recovery:       a.recovery(len(pool)),
	}
	w := a.cfg.Weights
	score.Overall = clamp01(w.Availability*score.Availability +
		w.Stability*score.Stability +
		w.Continuity*(1-score.ContinuityRisk) +
		w.Recovery*score.Recovery)
	score.MeetsThreshold = score.Overall >= a.cfg.ReliabilityThreshold

	out.Score = score
	out.UsedDefaultHistory = usedDefault
	out.RiskLevel = riskLevel(risk)
	return out
}

func (a ReliabilityAssessor) availability(history []HistoricalRecord) (float64, bool) {
	if len(history) == 0 {
		return clamp01(a.cfg.DefaultAvailability), true
	}
	up := 0
	for _, r := range history {
		if r.Available {
			up++
		}
	}
	return float64(up) / float64(len(history)), false
}

// stability saturates in pool size at StabilitySaturation and rewards
// constellation diversity and per-constellation minimum compliance.
func (a ReliabilityAssessor) stability(size int, counts map[model.Constellation]int) float64 {
	saturation := a.cfg.StabilitySaturation
	sizeFactor := math.Min(float64(size), float64(saturation)) / float64(saturation)

	configured := a.cfg.configuredConstellations()
	diversity, compliance := 1.0, 1.0
	if len(configured) > 0 {
		present, compliant := 0, 0
		for _, cons := range configured {
			if counts[cons] > 0 {
				present++
			}
			if counts[cons] >= a.cfg.Constellations[cons].MinSatellites {
				compliant++
			}
		}
		diversity = float64(present) / float64(len(configured))
		compliance = float64(compliant) / float64(len(configured))
	}
	return clamp01(0.5*sizeFactor + 0.25*diversity + 0.25*compliance)
}

// recovery treats a third of the pool as backup capacity.
func (a ReliabilityAssessor) recovery(size int) float64 {
	backup := float64(size) / 3
	ratio := math.Min(backup/a.cfg.TargetBackupSatellites, 1)
	failover := 0.0
	if a.cfg.AutomaticFailover {
		failover = 1
	}
	return clamp01(0.6*ratio + 0.4*failover)
}

func (a ReliabilityAssessor) shortConstellations(counts map[model.Constellation]int) []model.Constellation {
	var out []model.Constellation
	for _, cons := range a.cfg.configuredConstellations() {
		if counts[cons] < a.cfg.Constellations[cons].MinSatellites {
			out = append(out, cons)
		}
	}
	return out
}

func riskLevel(risk float64) RiskLevel {
	switch {
	case risk < 0.2:
		return RiskLow
	case risk < 0.5:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
