package coverage

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// CheckKind names a validation check.
type CheckKind string

const (
	CheckCoverageRate          CheckKind = "coverage_rate"
	CheckLongestGap            CheckKind = "longest_gap"
	CheckConstellationMinimums CheckKind = "constellation_minimums"
)

// CheckInput is everything a check may look at.
type CheckInput struct {
	Config                Configuration
	Snapshots             []VisibilitySnapshot
	Gaps                  []CoverageGap
	ValidatedCoverageRate float64
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Kind    CheckKind `json:"kind"`
	Passed  bool      `json:"passed"`
	Details string    `json:"details"`
}

// Check is one validation over a completed analysis.
type Check interface {
	Kind() CheckKind
	Evaluate(in CheckInput) CheckResult
}

// DefaultChecks is the fixed check set run by the engine.
func DefaultChecks() []Check {
	return []Check{
		coverageRateCheck{},
		longestGapCheck{},
		constellationMinimumCheck{},
	}
}

func runChecks(checks []Check, in CheckInput) []CheckResult {
	out := make([]CheckResult, 0, len(checks))
	for _, c := range checks {
		out = append(out, c.Evaluate(in))
	}
	return out
}

type coverageRateCheck struct{}

func (coverageRateCheck) Kind() CheckKind { return CheckCoverageRate }

func (c coverageRateCheck) Evaluate(in CheckInput) CheckResult {
	return CheckResult{
		Kind:   c.Kind(),
		Passed: in.ValidatedCoverageRate >= in.Config.TargetCoverageRate,
		Details: fmt.Sprintf("validated coverage %.4f against target %.4f",
			in.ValidatedCoverageRate, in.Config.TargetCoverageRate),
	}
}

type longestGapCheck struct{}

func (longestGapCheck) Kind() CheckKind { return CheckLongestGap }

func (c longestGapCheck) Evaluate(in CheckInput) CheckResult {
	longest := 0.0
	for _, g := range in.Gaps {
		if g.DurationSeconds > longest {
			longest = g.DurationSeconds
		}
	}
	return CheckResult{
		Kind:    c.Kind(),
		Passed:  longest <= in.Config.MaxGapDurationSeconds,
		Details: fmt.Sprintf("longest gap %.0fs against limit %.0fs", longest, in.Config.MaxGapDurationSeconds),
	}
}

// constellationMinimumCheck compares the mean visible count of each
// configured constellation with its minimum.
type constellationMinimumCheck struct{}

func (constellationMinimumCheck) Kind() CheckKind { return CheckConstellationMinimums }

func (c constellationMinimumCheck) Evaluate(in CheckInput) CheckResult {
	means := meanVisibleByConstellation(in.Snapshots)
	var short []string
	for _, cons := range in.Config.configuredConstellations() {
		min := in.Config.Constellations[cons].MinSatellites
		if means[cons] < float64(min) {
			short = append(short, fmt.Sprintf("%s mean %.2f below minimum %d", cons, means[cons], min))
		}
	}
	if len(short) == 0 {
		return CheckResult{Kind: c.Kind(), Passed: true, Details: "all configured constellations meet their minimum on average"}
	}
	return CheckResult{Kind: c.Kind(), Passed: false, Details: strings.Join(short, "; ")}
}

func meanVisibleByConstellation(snapshots []VisibilitySnapshot) map[model.Constellation]float64 {
	out := make(map[model.Constellation]float64)
	if len(snapshots) == 0 {
		return out
	}
	for _, s := range snapshots {
		for cons, n := range s.ByConstellation {
			out[cons] += float64(n)
		}
	}
	for cons := range out {
		out[cons] /= float64(len(snapshots))
	}
	return out
}
