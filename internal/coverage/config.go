package coverage

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/signalsfoundry/coverage-guarantee/core"
	"github.com/signalsfoundry/coverage-guarantee/model"
)

// ConstellationLimits holds the per-constellation coverage targets. The
// elevation threshold is handed to the visibility oracle; min and max feed
// stability scoring and remediation ordering.
type ConstellationLimits struct {
	MinSatellites         int     `json:"min_satellites" yaml:"min_satellites" validate:"gte=0"`
	MaxSatellites         int     `json:"max_satellites" yaml:"max_satellites" validate:"gtefield=MinSatellites"`
	ElevationThresholdDeg float64 `json:"elevation_threshold_deg" yaml:"elevation_threshold_deg" validate:"gte=0,lte=90"`
}

// ReliabilityWeights combine the four reliability sub-scores. Continuity is
// applied to (1 - risk).
type ReliabilityWeights struct {
	Availability float64 `json:"availability" yaml:"availability" validate:"gte=0,lte=1"`
	Stability    float64 `json:"stability" yaml:"stability" validate:"gte=0,lte=1"`
	Continuity   float64 `json:"continuity" yaml:"continuity" validate:"gte=0,lte=1"`
	Recovery     float64 `json:"recovery" yaml:"recovery" validate:"gte=0,lte=1"`
}

func (w ReliabilityWeights) sum() float64 {
	return w.Availability + w.Stability + w.Continuity + w.Recovery
}

// RiskFactor is one continuity risk category with its probability.
type RiskFactor struct {
	Category    string  `json:"category" yaml:"category" validate:"required"`
	Probability float64 `json:"probability" yaml:"probability" validate:"gte=0,lte=1"`
}

// Configuration is fixed at Engine construction. Changing it means building
// a new Engine.
type Configuration struct {
	TargetCoverageRate    float64 `json:"target_coverage_rate" yaml:"target_coverage_rate" validate:"gt=0,lte=1"`
	MaxGapDurationSeconds float64 `json:"max_gap_duration_seconds" yaml:"max_gap_duration_seconds" validate:"gt=0"`
	MinSatelliteCount     int     `json:"min_satellite_count" yaml:"min_satellite_count" validate:"gte=1"`
	ReliabilityThreshold  float64 `json:"reliability_threshold" yaml:"reliability_threshold" validate:"gte=0,lte=1"`

	Constellations map[model.Constellation]ConstellationLimits `json:"constellations" yaml:"constellations" validate:"dive"`

	Weights ReliabilityWeights `json:"reliability_weights" yaml:"reliability_weights"`

	// Remediation.
	MaxCandidatesPerGap   int     `json:"max_candidates_per_gap" yaml:"max_candidates_per_gap" validate:"gte=1"`
	ImprovementCapMinutes float64 `json:"improvement_cap_minutes" yaml:"improvement_cap_minutes" validate:"gte=0"`

	// Reliability.
	DefaultAvailability    float64      `json:"default_availability" yaml:"default_availability" validate:"gte=0,lte=1"`
	RiskFactors            []RiskFactor `json:"risk_factors" yaml:"risk_factors" validate:"dive"`
	StabilitySaturation    int          `json:"stability_saturation" yaml:"stability_saturation" validate:"gte=1"`
	TargetBackupSatellites float64      `json:"target_backup_satellites" yaml:"target_backup_satellites" validate:"gt=0"`
	AutomaticFailover      bool         `json:"automatic_failover" yaml:"automatic_failover"`

	// Runtime.
	HistoryCapacity  int `json:"history_capacity" yaml:"history_capacity" validate:"gte=1"`
	Workers          int `json:"workers" yaml:"workers" validate:"gte=0"`
	PredictionMargin int `json:"prediction_margin" yaml:"prediction_margin" validate:"gte=0"`
}

// DefaultConfiguration returns the reference defaults: 10-15 Starlink plus
// 3-6 OneWeb satellites, 95% coverage target, 2 minute gap limit.
func DefaultConfiguration() Configuration {
	return Configuration{
		TargetCoverageRate:    0.95,
		MaxGapDurationSeconds: 120,
		MinSatelliteCount:     13,
		ReliabilityThreshold:  0.98,
		Constellations: map[model.Constellation]ConstellationLimits{
			model.ConstellationStarlink: {MinSatellites: 10, MaxSatellites: 15, ElevationThresholdDeg: 5},
			model.ConstellationOneWeb:   {MinSatellites: 3, MaxSatellites: 6, ElevationThresholdDeg: 10},
		},
		Weights: ReliabilityWeights{
			Availability: 0.30,
			Stability:    0.25,
			Continuity:   0.25,
			Recovery:     0.20,
		},
		MaxCandidatesPerGap:   3,
		ImprovementCapMinutes: 10,
		DefaultAvailability:   0.98,
		RiskFactors: []RiskFactor{
			{Category: "orbital_conjunction", Probability: 0.08},
			{Category: "ground_station_outage", Probability: 0.07},
		},
		StabilitySaturation:    15,
		TargetBackupSatellites: 5,
		AutomaticFailover:      true,
		HistoryCapacity:        2880,
		PredictionMargin:       1,
	}
}

var configValidate = validator.New()

// Validate checks field ranges and cross-field constraints.
func (c Configuration) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid coverage configuration: %w", err)
	}
	if math.Abs(c.Weights.sum()-1) > 1e-6 {
		return fmt.Errorf("invalid coverage configuration: reliability weights sum to %.4f, want 1", c.Weights.sum())
	}
	for cons := range c.Constellations {
		if cons == model.ConstellationUnknown {
			return fmt.Errorf("invalid coverage configuration: limits configured for unknown constellation")
		}
	}
	if risk := c.baselineRisk(); risk > 1 {
		return fmt.Errorf("invalid coverage configuration: risk factors sum to %.4f, want <= 1", risk)
	}
	return nil
}

// ElevationThresholds exposes the per-constellation cutoffs in the form the
// oracles consume.
func (c Configuration) ElevationThresholds() core.ElevationThresholds {
	out := make(core.ElevationThresholds, len(c.Constellations))
	for cons, limits := range c.Constellations {
		out[cons] = limits.ElevationThresholdDeg
	}
	return out
}

func (c Configuration) baselineRisk() float64 {
	var total float64
	for _, f := range c.RiskFactors {
		total += f.Probability
	}
	return total
}

// clone deep-copies the map and slice fields so an Engine never shares them
// with its caller.
func (c Configuration) clone() Configuration {
	out := c
	if c.Constellations != nil {
		out.Constellations = make(map[model.Constellation]ConstellationLimits, len(c.Constellations))
		for k, v := range c.Constellations {
			out.Constellations[k] = v
		}
	}
	out.RiskFactors = append([]RiskFactor(nil), c.RiskFactors...)
	return out
}

// configuredConstellations returns the constellations with limits, in
// canonical order.
func (c Configuration) configuredConstellations() []model.Constellation {
	out := make([]model.Constellation, 0, len(c.Constellations))
	for _, cons := range model.Constellations {
		if _, ok := c.Constellations[cons]; ok {
			out = append(out, cons)
		}
	}
	return out
}
