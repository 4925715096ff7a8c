package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// VisibilityWindow is a contiguous interval during which a satellite stays
// above its elevation threshold. End is exclusive.
type VisibilityWindow struct {
	SatelliteID      string    `json:"satellite_id"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	PeakElevationDeg float64   `json:"peak_elevation_deg"`
}

// Contains reports whether at falls inside [Start, End).
func (w VisibilityWindow) Contains(at time.Time) bool {
	return !at.Before(w.Start) && at.Before(w.End)
}

// WindowPlan groups windows by satellite ID.
type WindowPlan map[string][]VisibilityWindow

// WindowOracle answers queries from a precomputed window table. Satellites
// absent from the table are reported as unavailable; satellites present
// with no matching window are not visible.
type WindowOracle struct {
	mu      sync.RWMutex
	windows WindowPlan
}

// NewWindowOracle builds an oracle over plan. Every key in plan is a known
// satellite, even when its window list is empty.
func NewWindowOracle(plan WindowPlan) *WindowOracle {
	o := &WindowOracle{windows: make(WindowPlan, len(plan))}
	for id, ws := range plan {
		o.SetWindows(id, ws)
	}
	return o
}

// SetWindows replaces the windows for one satellite.
func (o *WindowOracle) SetWindows(satelliteID string, windows []VisibilityWindow) {
	cp := append([]VisibilityWindow(nil), windows...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Start.Before(cp[j].Start) })
	o.mu.Lock()
	o.windows[satelliteID] = cp
	o.mu.Unlock()
}

// Query implements VisibilityOracle.
func (o *WindowOracle) Query(ctx context.Context, sat model.SatelliteDescriptor, at time.Time) (Visibility, error) {
	if err := ctx.Err(); err != nil {
		return Visibility{}, err
	}
	o.mu.RLock()
	windows, ok := o.windows[sat.ID]
	o.mu.RUnlock()
	if !ok {
		return Visibility{}, fmt.Errorf("%w: no windows for %q", ErrOracleUnavailable, sat.ID)
	}

	// First window whose end is after at; it is the only candidate.
	idx := sort.Search(len(windows), func(i int) bool { return windows[i].End.After(at) })
	if idx < len(windows) && windows[idx].Contains(at) {
		return Visibility{Visible: true, ElevationDeg: windows[idx].PeakElevationDeg}, nil
	}
	return Visibility{}, nil
}

// SampleWindows queries oracle for every satellite in pool at each of times
// (ascending) and folds the samples into visibility windows. Each sample
// stands for the interval up to the next one, so a window still open at the
// final sample closes one final spacing later (one second for a single
// sample). Unavailable samples count as not visible; any other oracle error
// aborts sampling.
func SampleWindows(ctx context.Context, oracle VisibilityOracle, pool []model.SatelliteDescriptor, times []time.Time) (WindowPlan, error) {
	if oracle == nil {
		return nil, errors.New("oracle is nil")
	}
	plan := make(WindowPlan)
	if len(times) == 0 {
		return plan, nil
	}
	last := times[len(times)-1]
	finalStep := time.Second
	if n := len(times); n > 1 && last.Sub(times[n-2]) > 0 {
		finalStep = last.Sub(times[n-2])
	}
	horizon := last.Add(finalStep)

	for _, sat := range pool {
		var (
			open bool
			cur  VisibilityWindow
		)
		for _, t := range times {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			vis, err := oracle.Query(ctx, sat, t)
			if err != nil && !errors.Is(err, ErrOracleUnavailable) {
				return nil, fmt.Errorf("sample %q at %s: %w", sat.ID, t.Format(time.RFC3339), err)
			}
			visible := err == nil && vis.Visible
			if visible {
				if !open {
					open = true
					cur = VisibilityWindow{SatelliteID: sat.ID, Start: t, PeakElevationDeg: vis.ElevationDeg}
				} else if vis.ElevationDeg > cur.PeakElevationDeg {
					cur.PeakElevationDeg = vis.ElevationDeg
				}
				continue
			}
			if open {
				cur.End = t
				plan[sat.ID] = append(plan[sat.ID], cur)
				open = false
			}
		}
		if open {
			cur.End = horizon
			plan[sat.ID] = append(plan[sat.ID], cur)
		}
		if _, ok := plan[sat.ID]; !ok {
			plan[sat.ID] = nil
		}
	}
	return plan, nil
}
