package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// SGP4Oracle propagates each satellite's TLE with SGP4 and reports it
// visible when its elevation above the observer clears the constellation's
// threshold. Parsed element sets are cached per satellite ID and reparsed
// when the descriptor carries different TLE lines.
type SGP4Oracle struct {
	observer   Vec3
	thresholds ElevationThresholds

	mu   sync.RWMutex
	sats map[string]parsedTLE
}

type parsedTLE struct {
	line1, line2 string
	elements     satellite.Satellite
}

// NewSGP4Oracle builds an oracle for a fixed ground observer.
func NewSGP4Oracle(observer model.Observer, thresholds ElevationThresholds) (*SGP4Oracle, error) {
	if err := observer.Validate(); err != nil {
		return nil, err
	}
	if thresholds == nil {
		thresholds = ElevationThresholds{}
	}
	return &SGP4Oracle{
		observer:   ObserverECEF(observer),
		thresholds: thresholds,
		sats:       make(map[string]parsedTLE),
	}, nil
}

// Query implements VisibilityOracle. A satellite without a usable TLE, or
// whose propagation diverges, yields ErrOracleUnavailable.
func (o *SGP4Oracle) Query(ctx context.Context, sat model.SatelliteDescriptor, at time.Time) (Visibility, error) {
	if err := ctx.Err(); err != nil {
		return Visibility{}, err
	}
	elements, err := o.elements(sat)
	if err != nil {
		return Visibility{}, err
	}

	pos, ok := propagateECEF(elements, at.UTC())
	if !ok {
		return Visibility{}, fmt.Errorf("%w: propagation of %q failed at %s", ErrOracleUnavailable, sat.ID, at.UTC().Format(time.RFC3339))
	}

	elevation := ElevationDegrees(o.observer, pos)
	visible := elevation >= o.thresholds.For(sat.Constellation) && hasLineOfSight(o.observer, pos)
	return Visibility{Visible: visible, ElevationDeg: elevation}, nil
}

func (o *SGP4Oracle) elements(sat model.SatelliteDescriptor) (satellite.Satellite, error) {
	o.mu.RLock()
	cached, ok := o.sats[sat.ID]
	o.mu.RUnlock()
	if ok && cached.line1 == sat.TLELine1 && cached.line2 == sat.TLELine2 {
		return cached.elements, nil
	}

	if !sat.HasTLE() {
		return satellite.Satellite{}, fmt.Errorf("%w: satellite %q has no TLE", ErrOracleUnavailable, sat.ID)
	}
	// go-satellite aborts the process on unparsable columns, so the layout
	// is checked before handing the lines over.
	if err := model.ValidateTLE(sat.TLELine1, sat.TLELine2); err != nil {
		return satellite.Satellite{}, fmt.Errorf("%w: satellite %q: %v", ErrOracleUnavailable, sat.ID, err)
	}
	elements := satellite.TLEToSat(sat.TLELine1, sat.TLELine2, satellite.GravityWGS72)

	o.mu.Lock()
	o.sats[sat.ID] = parsedTLE{line1: sat.TLELine1, line2: sat.TLELine2, elements: elements}
	o.mu.Unlock()
	return elements, nil
}

// propagateECEF returns the satellite position in ECEF kilometres.
// go-satellite works at whole-second resolution, matching TimePoint.
func propagateECEF(elements satellite.Satellite, at time.Time) (Vec3, bool) {
	year, month, day := at.Date()
	hour, min, sec := at.Clock()

	posECI, _ := satellite.Propagate(elements, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	pos := Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
	if !pos.IsFinite() || pos.Norm() < EarthRadiusKm {
		return Vec3{}, false
	}
	return pos, true
}
