package coverage

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/coverage-guarantee/core"
	"github.com/signalsfoundry/coverage-guarantee/internal/logging"
	"github.com/signalsfoundry/coverage-guarantee/model"
)

// VisibilitySnapshot is the set of satellites visible at one time point.
type VisibilitySnapshot struct {
	Time            time.Time                   `json:"time"`
	VisibleIDs      []string                    `json:"visible_ids"`
	ByConstellation map[model.Constellation]int `json:"by_constellation"`
	DegradedQueries int                         `json:"degraded_queries,omitempty"`

	visible map[string]struct{}
}

// NewVisibilitySnapshot builds a snapshot from the visible satellites.
func NewVisibilitySnapshot(at time.Time, visible []model.SatelliteDescriptor) VisibilitySnapshot {
	s := VisibilitySnapshot{
		Time:            at,
		VisibleIDs:      make([]string, 0, len(visible)),
		ByConstellation: make(map[model.Constellation]int),
		visible:         make(map[string]struct{}, len(visible)),
	}
	for _, sat := range visible {
		s.add(sat)
	}
	return s
}

func (s *VisibilitySnapshot) add(sat model.SatelliteDescriptor) {
	if s.visible == nil {
		s.visible = make(map[string]struct{})
	}
	if s.ByConstellation == nil {
		s.ByConstellation = make(map[model.Constellation]int)
	}
	if _, dup := s.visible[sat.ID]; dup {
		return
	}
	s.visible[sat.ID] = struct{}{}
	s.VisibleIDs = append(s.VisibleIDs, sat.ID)
	s.ByConstellation[sat.Constellation]++
}

// Count returns the number of visible satellites.
func (s VisibilitySnapshot) Count() int { return len(s.VisibleIDs) }

// IsVisible reports whether the satellite with id is visible.
func (s VisibilitySnapshot) IsVisible(id string) bool {
	if s.visible != nil {
		_, ok := s.visible[id]
		return ok
	}
	for _, v := range s.VisibleIDs {
		if v == id {
			return true
		}
	}
	return false
}

type sampleResult struct {
	snapshots []VisibilitySnapshot
	queries   int
	degraded  int
}

// sampleVisibility queries oracle for every (time point, satellite) pair on
// a bounded worker pool. Results are written by original index, so the
// returned snapshots keep chronological order whatever the completion order.
// Cancellation is checked between queries; on cancellation no partial result
// is returned.
func sampleVisibility(ctx context.Context, oracle core.VisibilityOracle, pool []model.SatelliteDescriptor, times []time.Time, workers int, log logging.Logger) (sampleResult, error) {
	snapshots := make([]VisibilitySnapshot, len(times))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers, len(times)))

	for i, at := range times {
		g.Go(func() error {
			snap := VisibilitySnapshot{
				Time:            at,
				VisibleIDs:      []string{},
				ByConstellation: make(map[model.Constellation]int),
				visible:         make(map[string]struct{}),
			}
			for _, sat := range pool {
				if err := gctx.Err(); err != nil {
					return err
				}
				vis, err := oracle.Query(gctx, sat, at)
				if err != nil {
					if isContextErr(err) {
						return err
					}
					if !errors.Is(err, core.ErrOracleUnavailable) {
						log.Warn(gctx, "oracle query failed; treating satellite as not visible",
							logging.String("satellite_id", sat.ID),
							logging.String("time", at.Format(time.RFC3339)),
							logging.Err(err),
						)
					}
					snap.DegradedQueries++
					continue
				}
				if vis.Visible {
					snap.add(sat)
				}
			}
			snapshots[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sampleResult{}, fmt.Errorf("sample visibility: %w", err)
	}
	// A cancelled parent can race the last task's success.
	if err := ctx.Err(); err != nil {
		return sampleResult{}, fmt.Errorf("sample visibility: %w", err)
	}

	res := sampleResult{snapshots: snapshots, queries: len(times) * len(pool)}
	for _, s := range snapshots {
		res.degraded += s.DegradedQueries
	}
	return res, nil
}

func workerCount(configured, tasks int) int {
	n := configured
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > tasks {
		n = tasks
	}
	if n < 1 {
		n = 1
	}
	return n
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
