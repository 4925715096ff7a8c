package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Coverage.MinSatelliteCount != 13 || cfg.Horizon.Step != 30*time.Second || cfg.Horizon.Duration != 24*time.Hour {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.yaml")
	doc := `
coverage:
  target_coverage_rate: 0.9
  min_satellite_count: 8
  constellations:
    starlink:
      min_satellites: 6
      max_satellites: 12
      elevation_threshold_deg: 25
    oneweb:
      min_satellites: 2
      max_satellites: 4
      elevation_threshold_deg: 15
observer:
  name: svalbard
  latitude_deg: 78.2
  longitude_deg: 15.4
horizon:
  step: 1m
  duration: 6h
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Coverage.TargetCoverageRate != 0.9 || cfg.Coverage.MinSatelliteCount != 8 {
		t.Fatalf("coverage = %+v", cfg.Coverage)
	}
	if cfg.Coverage.MaxGapDurationSeconds != 120 || cfg.Coverage.ReliabilityThreshold != 0.98 {
		t.Fatalf("defaults lost: %+v", cfg.Coverage)
	}
	if got := cfg.Coverage.Constellations[model.ConstellationStarlink]; got.MinSatellites != 6 || got.ElevationThresholdDeg != 25 {
		t.Fatalf("starlink limits = %+v", got)
	}
	if cfg.Observer.Name != "svalbard" || cfg.Horizon.Step != time.Minute || cfg.Horizon.Duration != 6*time.Hour {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("COVERAGE_TARGET_RATE", "0.8")
	t.Setenv("COVERAGE_MIN_SATELLITES", "5")
	t.Setenv("COVERAGE_MAX_GAP_SECONDS", "300")
	t.Setenv("COVERAGE_RELIABILITY_THRESHOLD", "0.9")
	t.Setenv("COVERAGE_WORKERS", "4")
	t.Setenv("COVERAGE_HORIZON", "2h")
	t.Setenv("COVERAGE_STEP", "10s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := cfg.Coverage
	if c.TargetCoverageRate != 0.8 || c.MinSatelliteCount != 5 || c.MaxGapDurationSeconds != 300 || c.ReliabilityThreshold != 0.9 || c.Workers != 4 {
		t.Fatalf("coverage = %+v", c)
	}
	if cfg.Horizon.Duration != 2*time.Hour || cfg.Horizon.Step != 10*time.Second {
		t.Fatalf("horizon = %+v", cfg.Horizon)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "coverage: [",
		"bad target":     "coverage:\n  target_coverage_rate: 3\n",
		"bad latitude":   "observer:\n  latitude_deg: 120\n",
		"step too small": "horizon:\n  step: 100ms\n",
		"short horizon":  "horizon:\n  step: 1h\n  duration: 10m\n",
		"unknown cons":   "coverage:\n  constellations:\n    iridium:\n      min_satellites: 1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "coverage.yaml")
			if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMergesPartialConstellationLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coverage.yaml")
	doc := `
coverage:
  constellations:
    starlink:
      min_satellites: 8
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := cfg.Coverage.Constellations[model.ConstellationStarlink]
	if got.MinSatellites != 8 || got.MaxSatellites != 15 || got.ElevationThresholdDeg != 5 {
		t.Fatalf("starlink limits = %+v, want min 8 over the defaults", got)
	}
	if ow := cfg.Coverage.Constellations[model.ConstellationOneWeb]; ow.MinSatellites != 3 || ow.ElevationThresholdDeg != 10 {
		t.Fatalf("oneweb limits = %+v, want defaults", ow)
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	cases := map[string]string{
		"COVERAGE_TARGET_RATE":           "high",
		"COVERAGE_MIN_SATELLITES":        "13.5",
		"COVERAGE_MAX_GAP_SECONDS":       "2m",
		"COVERAGE_RELIABILITY_THRESHOLD": "n/a",
		"COVERAGE_WORKERS":               "many",
		"COVERAGE_HORIZON":               "24",
		"COVERAGE_STEP":                  "fast",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := Load("")
			if err == nil {
				t.Fatalf("expected error for %s=%q", name, value)
			}
			if !strings.Contains(err.Error(), name) {
				t.Fatalf("error %q does not name %s", err, name)
			}
		})
	}
}
