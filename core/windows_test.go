package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

var windowBase = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return windowBase.Add(time.Duration(sec) * time.Second) }

func sampleTimes(n int, step time.Duration) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = windowBase.Add(time.Duration(i) * step)
	}
	return out
}

func TestWindowOracleQuery(t *testing.T) {
	oracle := NewWindowOracle(WindowPlan{
		"sat-a": {
			{SatelliteID: "sat-a", Start: at(60), End: at(120), PeakElevationDeg: 40},
			{SatelliteID: "sat-a", Start: at(0), End: at(30), PeakElevationDeg: 25},
		},
		"sat-b": nil,
	})
	sat := model.SatelliteDescriptor{ID: "sat-a", Constellation: model.ConstellationStarlink}

	cases := []struct {
		sec       int
		visible   bool
		elevation float64
	}{
		{0, true, 25},
		{29, true, 25},
		{30, false, 0},
		{59, false, 0},
		{60, true, 40},
		{119, true, 40},
		{120, false, 0},
	}
	for _, tc := range cases {
		vis, err := oracle.Query(context.Background(), sat, at(tc.sec))
		if err != nil {
			t.Fatalf("Query(%d): %v", tc.sec, err)
		}
		if vis.Visible != tc.visible || vis.ElevationDeg != tc.elevation {
			t.Fatalf("Query(%d) = %+v, want visible=%v elevation=%v", tc.sec, vis, tc.visible, tc.elevation)
		}
	}

	vis, err := oracle.Query(context.Background(), model.SatelliteDescriptor{ID: "sat-b"}, at(10))
	if err != nil || vis.Visible {
		t.Fatalf("known satellite without windows: vis=%+v err=%v", vis, err)
	}
	if _, err := oracle.Query(context.Background(), model.SatelliteDescriptor{ID: "ghost"}, at(10)); !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("unknown satellite error = %v, want ErrOracleUnavailable", err)
	}
}

func TestSampleWindowsFoldsSamples(t *testing.T) {
	// sat-a visible for seconds [30, 90), sat-b visible from 120 to the end,
	// sat-c never known to the oracle.
	oracle := NewWindowOracle(WindowPlan{
		"sat-a": {{Start: at(30), End: at(90), PeakElevationDeg: 55}},
		"sat-b": {{Start: at(120), End: at(10_000), PeakElevationDeg: 30}},
	})
	pool := []model.SatelliteDescriptor{
		{ID: "sat-a", Constellation: model.ConstellationStarlink},
		{ID: "sat-b", Constellation: model.ConstellationOneWeb},
		{ID: "sat-c", Constellation: model.ConstellationOther},
	}
	times := sampleTimes(6, 30*time.Second) // 0..150

	plan, err := SampleWindows(context.Background(), oracle, pool, times)
	if err != nil {
		t.Fatalf("SampleWindows: %v", err)
	}

	a := plan["sat-a"]
	if len(a) != 1 || !a[0].Start.Equal(at(30)) || !a[0].End.Equal(at(90)) || a[0].PeakElevationDeg != 55 {
		t.Fatalf("sat-a windows = %+v", a)
	}
	b := plan["sat-b"]
	if len(b) != 1 || !b[0].Start.Equal(at(120)) || !b[0].End.Equal(at(180)) {
		t.Fatalf("sat-b windows = %+v, want [120,180)", b)
	}
	if c, ok := plan["sat-c"]; !ok || len(c) != 0 {
		t.Fatalf("sat-c windows = %+v (present=%v), want empty entry", c, ok)
	}
}

func TestSampleWindowsRoundTripsThroughWindowOracle(t *testing.T) {
	source := NewWindowOracle(WindowPlan{
		"sat-a": {{Start: at(0), End: at(60)}, {Start: at(120), End: at(180)}},
	})
	pool := []model.SatelliteDescriptor{{ID: "sat-a", Constellation: model.ConstellationStarlink}}
	times := sampleTimes(10, 30*time.Second)

	plan, err := SampleWindows(context.Background(), source, pool, times)
	if err != nil {
		t.Fatalf("SampleWindows: %v", err)
	}
	replay := NewWindowOracle(plan)
	for _, ts := range times {
		want, _ := source.Query(context.Background(), pool[0], ts)
		got, err := replay.Query(context.Background(), pool[0], ts)
		if err != nil {
			t.Fatalf("replay Query: %v", err)
		}
		if got.Visible != want.Visible {
			t.Fatalf("visibility mismatch at %s: got %v want %v", ts, got.Visible, want.Visible)
		}
	}
}

func TestSampleWindowsKeepsFinalSample(t *testing.T) {
	// sat-a visible throughout, sat-b only at the last sample.
	oracle := NewWindowOracle(WindowPlan{
		"sat-a": {{Start: at(0), End: at(10_000), PeakElevationDeg: 45}},
		"sat-b": {{Start: at(60), End: at(10_000), PeakElevationDeg: 20}},
	})
	pool := []model.SatelliteDescriptor{
		{ID: "sat-a", Constellation: model.ConstellationStarlink},
		{ID: "sat-b", Constellation: model.ConstellationStarlink},
	}
	times := sampleTimes(3, 30*time.Second) // 0, 30, 60

	plan, err := SampleWindows(context.Background(), oracle, pool, times)
	if err != nil {
		t.Fatalf("SampleWindows: %v", err)
	}
	if a := plan["sat-a"]; len(a) != 1 || !a[0].Start.Equal(at(0)) || !a[0].End.Equal(at(90)) {
		t.Fatalf("sat-a windows = %+v, want [0,90)", a)
	}
	if b := plan["sat-b"]; len(b) != 1 || !b[0].Start.Equal(at(60)) || !b[0].End.Equal(at(90)) {
		t.Fatalf("sat-b windows = %+v, want [60,90)", b)
	}

	replay := NewWindowOracle(plan)
	for _, sat := range pool {
		for _, ts := range times {
			want, _ := oracle.Query(context.Background(), sat, ts)
			got, err := replay.Query(context.Background(), sat, ts)
			if err != nil || got.Visible != want.Visible {
				t.Fatalf("%s at %s: got %+v (err %v), want visible=%v", sat.ID, ts, got, err, want.Visible)
			}
		}
	}

	single, err := SampleWindows(context.Background(), oracle, pool[:1], times[:1])
	if err != nil {
		t.Fatalf("SampleWindows: %v", err)
	}
	if a := single["sat-a"]; len(a) != 1 || !a[0].End.Equal(at(1)) {
		t.Fatalf("single-sample windows = %+v, want [0,1)", a)
	}
}

func TestSampleWindowsPropagatesHardErrors(t *testing.T) {
	boom := errors.New("boom")
	oracle := OracleFunc(func(context.Context, model.SatelliteDescriptor, time.Time) (Visibility, error) {
		return Visibility{}, boom
	})
	pool := []model.SatelliteDescriptor{{ID: "sat-a", Constellation: model.ConstellationStarlink}}
	if _, err := SampleWindows(context.Background(), oracle, pool, sampleTimes(3, time.Minute)); !errors.Is(err, boom) {
		t.Fatalf("SampleWindows error = %v, want boom", err)
	}
	if _, err := SampleWindows(context.Background(), nil, pool, nil); err == nil {
		t.Fatalf("expected error for nil oracle")
	}
}
