package coverage

import (
	"fmt"
	"sort"
	"time"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// CoverageGap is a maximal run of snapshots whose visible count is below the
// required minimum. StartIndex and EndIndex are inclusive and both point at
// uncovered snapshots. EndTime is the instant coverage resumes: the next
// snapshot's time, or the end of the final sampling step when the gap is
// still open at the end of the sequence.
type CoverageGap struct {
	StartIndex           int       `json:"start_index"`
	EndIndex             int       `json:"end_index"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	DurationSeconds      float64   `json:"duration_seconds"`
	Severity             Severity  `json:"severity,omitempty"`
	VisibleCountAtTrough int       `json:"visible_count_at_trough"`
	StillOpen            bool      `json:"still_open,omitempty"`

	// TroughByConstellation holds per-constellation counts at the trough.
	TroughByConstellation map[model.Constellation]int `json:"trough_by_constellation,omitempty"`
	// ActiveSatelliteIDs lists every satellite visible at any point of the
	// gap, sorted.
	ActiveSatelliteIDs []string `json:"active_satellite_ids,omitempty"`
}

// Duration returns the gap length.
func (g CoverageGap) Duration() time.Duration {
	return g.EndTime.Sub(g.StartTime)
}

// Points returns the number of snapshots inside the gap.
func (g CoverageGap) Points() int {
	return g.EndIndex - g.StartIndex + 1
}

// DetectGaps scans snapshots once and returns every coverage gap in order.
// A snapshot with exactly minRequired visible satellites is covered.
// Snapshots must be non-empty and strictly increasing in time.
func DetectGaps(snapshots []VisibilitySnapshot, minRequired int) ([]CoverageGap, error) {
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("detect gaps: %w: no snapshots", ErrEmptyInput)
	}
	for i := 1; i < len(snapshots); i++ {
		if !snapshots[i].Time.After(snapshots[i-1].Time) {
			return nil, fmt.Errorf("detect gaps: %w: snapshot %d at %s does not follow %s",
				ErrInvalidInputOrder, i, snapshots[i].Time.Format(time.RFC3339), snapshots[i-1].Time.Format(time.RFC3339))
		}
	}

	step := finalStep(snapshots)
	gaps := make([]CoverageGap, 0)
	inGap := false
	var cur CoverageGap
	active := make(map[string]struct{})

	closeGap := func(lastIndex int, end time.Time, open bool) {
		cur.EndIndex = lastIndex
		cur.EndTime = end
		cur.DurationSeconds = end.Sub(cur.StartTime).Seconds()
		cur.StillOpen = open
		cur.ActiveSatelliteIDs = sortedKeys(active)
		gaps = append(gaps, cur)
		inGap = false
		active = make(map[string]struct{})
	}

	for i, snap := range snapshots {
		count := snap.Count()
		if count < minRequired {
			if !inGap {
				inGap = true
				cur = CoverageGap{
					StartIndex:            i,
					StartTime:             snap.Time,
					VisibleCountAtTrough:  count,
					TroughByConstellation: copyCounts(snap.ByConstellation),
				}
			} else if count < cur.VisibleCountAtTrough {
				cur.VisibleCountAtTrough = count
				cur.TroughByConstellation = copyCounts(snap.ByConstellation)
			}
			for _, id := range snap.VisibleIDs {
				active[id] = struct{}{}
			}
			continue
		}
		if inGap {
			closeGap(i-1, snap.Time, false)
		}
	}
	if inGap {
		last := len(snapshots) - 1
		closeGap(last, snapshots[last].Time.Add(step), true)
	}
	return gaps, nil
}

// finalStep is the nominal sampling step attributed to the last snapshot:
// the spacing between the final two time points, or zero for one point.
func finalStep(snapshots []VisibilitySnapshot) time.Duration {
	n := len(snapshots)
	if n < 2 {
		return 0
	}
	return snapshots[n-1].Time.Sub(snapshots[n-2].Time)
}

// analysedSpan is [first time, last time + final step).
func analysedSpan(snapshots []VisibilitySnapshot) (time.Time, time.Time) {
	if len(snapshots) == 0 {
		return time.Time{}, time.Time{}
	}
	return snapshots[0].Time, snapshots[len(snapshots)-1].Time.Add(finalStep(snapshots))
}

func copyCounts(in map[model.Constellation]int) map[model.Constellation]int {
	out := make(map[model.Constellation]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
