package core

import (
	"context"
	"errors"
	"time"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// ErrOracleUnavailable is returned when an oracle cannot answer for a given
// (satellite, time) pair. Callers degrade the pair to not-visible.
var ErrOracleUnavailable = errors.New("visibility oracle unavailable")

// Visibility is the answer for one satellite at one instant.
type Visibility struct {
	Visible      bool
	ElevationDeg float64
}

// VisibilityOracle answers whether a satellite is visible from the observer
// at a given time. Implementations must be deterministic for a given
// (satellite, time) pair within one analysis run and safe for concurrent use.
type VisibilityOracle interface {
	Query(ctx context.Context, sat model.SatelliteDescriptor, at time.Time) (Visibility, error)
}

// OracleFunc adapts a plain function to VisibilityOracle.
type OracleFunc func(ctx context.Context, sat model.SatelliteDescriptor, at time.Time) (Visibility, error)

// Query calls f.
func (f OracleFunc) Query(ctx context.Context, sat model.SatelliteDescriptor, at time.Time) (Visibility, error) {
	return f(ctx, sat, at)
}

// ElevationThresholds maps a constellation to its minimum elevation in
// degrees. Constellations without an entry use DefaultElevationThresholdDeg.
type ElevationThresholds map[model.Constellation]float64

// DefaultElevationThresholdDeg applies when no per-constellation threshold
// is configured.
const DefaultElevationThresholdDeg = 10.0

// For returns the threshold for c.
func (t ElevationThresholds) For(c model.Constellation) float64 {
	if v, ok := t[c]; ok {
		return v
	}
	return DefaultElevationThresholdDeg
}
