package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

func TestHasLineOfSight_NoObstruction(t *testing.T) {
	// Two satellites high and on the same side of Earth, separated in Y.
	posA := Vec3{X: 8000, Y: 0, Z: 0}
	posB := Vec3{X: 8000, Y: 1000, Z: 0}

	if !hasLineOfSight(posA, posB) {
		t.Errorf("expected LoS between two high satellites on same side of Earth")
	}
}

func TestHasLineOfSight_Obstructed(t *testing.T) {
	posA := Vec3{X: 7000, Y: 0, Z: 0}
	posB := Vec3{X: -7000, Y: 0, Z: 0}

	if hasLineOfSight(posA, posB) {
		t.Errorf("expected LoS to be blocked by Earth")
	}
}

func TestHasLineOfSight_GroundObserverOverhead(t *testing.T) {
	ground := ObserverECEF(model.Observer{LatitudeDeg: 0, LongitudeDeg: 0})
	overhead := Vec3{X: EarthRadiusKm + 550, Y: 0, Z: 0}
	if !hasLineOfSight(ground, overhead) {
		t.Fatalf("expected LoS from ground observer to overhead satellite")
	}
	antipode := Vec3{X: -(EarthRadiusKm + 550), Y: 0, Z: 0}
	if hasLineOfSight(ground, antipode) {
		t.Fatalf("expected Earth to block satellite on the far side")
	}
}

func TestObserverECEF(t *testing.T) {
	cases := []struct {
		name string
		obs  model.Observer
		want Vec3
	}{
		{"equator prime meridian", model.Observer{}, Vec3{X: EarthRadiusKm}},
		{"north pole", model.Observer{LatitudeDeg: 90}, Vec3{Z: EarthRadiusKm}},
		{"equator 90E with altitude", model.Observer{LongitudeDeg: 90, AltitudeM: 1000}, Vec3{Y: EarthRadiusKm + 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ObserverECEF(tc.obs)
			if got.Sub(tc.want).Norm() > 1e-6 {
				t.Fatalf("ObserverECEF = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestElevationDegrees(t *testing.T) {
	ground := Vec3{X: EarthRadiusKm}

	if got := ElevationDegrees(ground, Vec3{X: EarthRadiusKm + 550}); math.Abs(got-90) > 1e-9 {
		t.Fatalf("overhead elevation = %v, want 90", got)
	}
	// A target displaced purely tangentially sits on the local horizon.
	if got := ElevationDegrees(ground, Vec3{X: EarthRadiusKm, Y: 1000}); math.Abs(got) > 1e-9 {
		t.Fatalf("horizon elevation = %v, want 0", got)
	}
	// 45 degrees: equal radial and tangential offsets.
	if got := ElevationDegrees(ground, Vec3{X: EarthRadiusKm + 500, Y: 500}); math.Abs(got-45) > 1e-9 {
		t.Fatalf("diagonal elevation = %v, want 45", got)
	}
	if got := ElevationDegrees(ground, Vec3{X: -EarthRadiusKm}); got >= 0 {
		t.Fatalf("antipodal elevation = %v, want negative", got)
	}
}

func TestVec3IsFinite(t *testing.T) {
	if !(Vec3{X: 1, Y: 2, Z: 3}).IsFinite() {
		t.Fatalf("expected finite vector")
	}
	if (Vec3{X: math.NaN()}).IsFinite() {
		t.Fatalf("expected NaN component to be non-finite")
	}
	if (Vec3{Z: math.Inf(1)}).IsFinite() {
		t.Fatalf("expected Inf component to be non-finite")
	}
}
