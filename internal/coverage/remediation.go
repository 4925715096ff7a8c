package coverage

import (
	"math"
	"sort"
	"time"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// RemediationAction proposes satellites to add coverage during one gap.
type RemediationAction struct {
	GapIndex                    int       `json:"gap_index"`
	GapStart                    time.Time `json:"gap_start"`
	CandidateSatelliteIDs       []string  `json:"candidate_satellite_ids"`
	Priority                    Severity  `json:"priority"`
	EstimatedImprovementMinutes float64   `json:"estimated_improvement_minutes"`
	Unresolvable                bool      `json:"unresolvable,omitempty"`
}

// RemediationSummary is the planner's output.
type RemediationSummary struct {
	Actions                            []RemediationAction `json:"actions"`
	ActionableGaps                     int                 `json:"actionable_gaps"`
	UnresolvableGaps                   int                 `json:"unresolvable_gaps"`
	ExpectedCoverageImprovementMinutes float64             `json:"expected_coverage_improvement_minutes"`
}

// RemediationPlanner selects candidate satellites for medium and high
// severity gaps. It never proposes a satellite that was visible at any point
// of the gap and never mutates the pool.
type RemediationPlanner struct {
	Limits                map[model.Constellation]ConstellationLimits
	MaxCandidates         int
	ImprovementCapMinutes float64
}

// NewRemediationPlanner builds a planner from the configuration.
func NewRemediationPlanner(cfg Configuration) RemediationPlanner {
	return RemediationPlanner{
		Limits:                cfg.Constellations,
		MaxCandidates:         cfg.MaxCandidatesPerGap,
		ImprovementCapMinutes: cfg.ImprovementCapMinutes,
	}
}

// Plan produces one action per actionable gap. Gaps must be classified.
func (p RemediationPlanner) Plan(gaps []CoverageGap, pool []model.SatelliteDescriptor) RemediationSummary {
	summary := RemediationSummary{Actions: []RemediationAction{}}
	for i, gap := range gaps {
		if !gap.Severity.Actionable() {
			continue
		}
		summary.ActionableGaps++

		candidates := p.selectCandidates(gap, pool)
		action := RemediationAction{
			GapIndex:              i,
			GapStart:              gap.StartTime,
			CandidateSatelliteIDs: candidates,
			Priority:              gap.Severity,
		}
		if len(candidates) == 0 {
			action.Unresolvable = true
			summary.UnresolvableGaps++
		} else {
			action.EstimatedImprovementMinutes = math.Min(gap.DurationSeconds/60, p.ImprovementCapMinutes)
		}
		summary.ExpectedCoverageImprovementMinutes += action.EstimatedImprovementMinutes
		summary.Actions = append(summary.Actions, action)
	}
	return summary
}

// selectCandidates takes satellites round-robin across constellations,
// starting with the constellation furthest below its minimum at the gap
// trough. Within a constellation pool order is kept.
func (p RemediationPlanner) selectCandidates(gap CoverageGap, pool []model.SatelliteDescriptor) []string {
	limit := p.MaxCandidates
	if limit <= 0 {
		return []string{}
	}

	active := make(map[string]struct{}, len(gap.ActiveSatelliteIDs))
	for _, id := range gap.ActiveSatelliteIDs {
		active[id] = struct{}{}
	}

	queues := make(map[model.Constellation][]string)
	seen := make(map[string]struct{})
	for _, sat := range pool {
		if sat.Validate() != nil {
			continue
		}
		if _, busy := active[sat.ID]; busy {
			continue
		}
		if _, dup := seen[sat.ID]; dup {
			continue
		}
		seen[sat.ID] = struct{}{}
		queues[sat.Constellation] = append(queues[sat.Constellation], sat.ID)
	}

	order := p.constellationOrder(gap)
	out := make([]string, 0, limit)
	for len(out) < limit {
		progressed := false
		for _, cons := range order {
			if len(out) == limit {
				break
			}
			q := queues[cons]
			if len(q) == 0 {
				continue
			}
			out = append(out, q[0])
			queues[cons] = q[1:]
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}

func (p RemediationPlanner) constellationOrder(gap CoverageGap) []model.Constellation {
	rank := make(map[model.Constellation]int, len(model.Constellations))
	for i, c := range model.Constellations {
		rank[c] = i
	}
	deficit := func(c model.Constellation) int {
		return p.Limits[c].MinSatellites - gap.TroughByConstellation[c]
	}
	order := append([]model.Constellation(nil), model.Constellations...)
	sort.SliceStable(order, func(i, j int) bool {
		di, dj := deficit(order[i]), deficit(order[j])
		if di != dj {
			return di > dj
		}
		return rank[order[i]] < rank[order[j]]
	})
	return order
}
