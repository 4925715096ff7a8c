package coverage

import (
	"testing"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

func TestDefaultConfigurationIsValid(t *testing.T) {
	cfg := DefaultConfiguration()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.TargetCoverageRate != 0.95 || cfg.MaxGapDurationSeconds != 120 || cfg.MinSatelliteCount != 13 || cfg.ReliabilityThreshold != 0.98 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !approx(cfg.baselineRisk(), 0.15) {
		t.Fatalf("baseline risk = %v, want 0.15", cfg.baselineRisk())
	}
}

func TestConfigurationValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"zero target", func(c *Configuration) { c.TargetCoverageRate = 0 }},
		{"target above one", func(c *Configuration) { c.TargetCoverageRate = 1.01 }},
		{"zero gap limit", func(c *Configuration) { c.MaxGapDurationSeconds = 0 }},
		{"zero minimum", func(c *Configuration) { c.MinSatelliteCount = 0 }},
		{"threshold above one", func(c *Configuration) { c.ReliabilityThreshold = 1.5 }},
		{"max below min", func(c *Configuration) {
			c.Constellations[model.ConstellationOneWeb] = ConstellationLimits{MinSatellites: 5, MaxSatellites: 2}
		}},
		{"elevation above zenith", func(c *Configuration) {
			c.Constellations[model.ConstellationStarlink] = ConstellationLimits{MinSatellites: 1, MaxSatellites: 2, ElevationThresholdDeg: 91}
		}},
		{"unknown constellation", func(c *Configuration) {
			c.Constellations[model.ConstellationUnknown] = ConstellationLimits{}
		}},
		{"weights off", func(c *Configuration) { c.Weights.Recovery = 0.5 }},
		{"risk above one", func(c *Configuration) {
			c.RiskFactors = []RiskFactor{{Category: "a", Probability: 0.7}, {Category: "b", Probability: 0.7}}
		}},
		{"unnamed risk", func(c *Configuration) { c.RiskFactors = []RiskFactor{{Probability: 0.1}} }},
		{"no candidates", func(c *Configuration) { c.MaxCandidatesPerGap = 0 }},
		{"negative workers", func(c *Configuration) { c.Workers = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfiguration()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigurationCloneIsDeep(t *testing.T) {
	cfg := DefaultConfiguration()
	cp := cfg.clone()
	cp.Constellations[model.ConstellationStarlink] = ConstellationLimits{}
	cp.RiskFactors[0].Probability = 0
	if cfg.Constellations[model.ConstellationStarlink].MinSatellites != 10 || cfg.RiskFactors[0].Probability != 0.08 {
		t.Fatal("clone shares state with the original")
	}
}

func TestElevationThresholds(t *testing.T) {
	th := DefaultConfiguration().ElevationThresholds()
	if th.For(model.ConstellationStarlink) != 5 || th.For(model.ConstellationOneWeb) != 10 {
		t.Fatalf("thresholds = %v", th)
	}
}
