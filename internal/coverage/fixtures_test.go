package coverage

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/coverage-guarantee/core"
	"github.com/signalsfoundry/coverage-guarantee/model"
)

var base = time.Date(2025, time.March, 1, 6, 0, 0, 0, time.UTC)

func timePoints(n int, step time.Duration) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * step)
	}
	return out
}

func satellites(prefix string, cons model.Constellation, n int) []model.SatelliteDescriptor {
	out := make([]model.SatelliteDescriptor, n)
	for i := range out {
		out[i] = model.SatelliteDescriptor{
			ID:            fmt.Sprintf("%s-%02d", prefix, i+1),
			Constellation: cons,
			AltitudeKm:    550,
		}
	}
	return out
}

// snapshotsFromCounts builds one snapshot per count, with ids s-01.. visible.
func snapshotsFromCounts(t *testing.T, times []time.Time, counts []int) []VisibilitySnapshot {
	t.Helper()
	if len(times) != len(counts) {
		t.Fatalf("snapshotsFromCounts: %d times vs %d counts", len(times), len(counts))
	}
	maxCount := 0
	for _, c := range counts {
		maxCount = max(maxCount, c)
	}
	pool := satellites("s", model.ConstellationStarlink, maxCount)
	out := make([]VisibilitySnapshot, len(counts))
	for i, c := range counts {
		out[i] = NewVisibilitySnapshot(times[i], pool[:c])
	}
	return out
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// scenarioOracle answers by sampling index: visible(id, index).
func scenarioOracle(step time.Duration, visible func(id string, index int) bool) core.VisibilityOracle {
	return core.OracleFunc(func(ctx context.Context, sat model.SatelliteDescriptor, at time.Time) (core.Visibility, error) {
		if err := ctx.Err(); err != nil {
			return core.Visibility{}, err
		}
		idx := int(at.Sub(base) / step)
		if visible(sat.ID, idx) {
			return core.Visibility{Visible: true, ElevationDeg: 45}, nil
		}
		return core.Visibility{}, nil
	})
}

// starlinkUpTo reports whether id is one of sl-01..sl-n.
func starlinkUpTo(id string, n int) bool {
	return strings.HasPrefix(id, "sl-") && id <= fmt.Sprintf("sl-%02d", n)
}

func alwaysVisible() core.VisibilityOracle {
	return core.OracleFunc(func(ctx context.Context, _ model.SatelliteDescriptor, _ time.Time) (core.Visibility, error) {
		if err := ctx.Err(); err != nil {
			return core.Visibility{}, err
		}
		return core.Visibility{Visible: true, ElevationDeg: 60}, nil
	})
}

type recordedCoverage struct {
	guaranteed bool
	rate       float64
	gaps       map[string]int
	degraded   int
}

type fakeRecorder struct {
	mu          sync.Mutex
	coverage    []recordedCoverage
	reliability []float64
	rejected    []string
}

func (r *fakeRecorder) ObserveCoverage(guaranteed bool, rate float64, gaps map[string]int, degraded int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coverage = append(r.coverage, recordedCoverage{guaranteed: guaranteed, rate: rate, gaps: gaps, degraded: degraded})
}

func (r *fakeRecorder) ObserveReliability(overall float64, _ bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reliability = append(r.reliability, overall)
}

func (r *fakeRecorder) ObserveRejected(operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, operation)
}
