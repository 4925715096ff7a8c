// Package config loads the coverage service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/coverage-guarantee/internal/coverage"
	"github.com/signalsfoundry/coverage-guarantee/model"
)

// Horizon describes the sampled time window.
type Horizon struct {
	Step     time.Duration `json:"step" yaml:"step"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// File is the on-disk configuration.
type File struct {
	Coverage coverage.Configuration `json:"coverage" yaml:"coverage"`
	Observer model.Observer         `json:"observer" yaml:"observer"`
	Horizon  Horizon                `json:"horizon" yaml:"horizon"`

	// MonitorInterval is the wall-clock delay between monitor ticks.
	MonitorInterval time.Duration `json:"monitor_interval" yaml:"monitor_interval"`
}

// Default returns the reference configuration: a mid-latitude observer and a
// 24 hour horizon sampled every 30 seconds.
func Default() File {
	return File{
		Coverage: coverage.DefaultConfiguration(),
		Observer: model.Observer{Name: "default", LatitudeDeg: 47.6, LongitudeDeg: -122.3},
		Horizon: Horizon{
			Step:     30 * time.Second,
			Duration: 24 * time.Hour,
		},
		MonitorInterval: 30 * time.Second,
	}
}

// Load reads path over the defaults, applies COVERAGE_* environment
// overrides and validates the result. An empty path or a missing file
// yields the defaults. An override that does not parse is an error.
func Load(path string) (File, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *File) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return Parse(data, cfg)
}

// Parse decodes YAML into cfg, keeping fields the document omits. A
// constellation entry is merged over the limits cfg already holds for that
// constellation, so it may name only the fields it changes.
func Parse(data []byte, cfg *File) error {
	base := make(map[model.Constellation]coverage.ConstellationLimits, len(cfg.Coverage.Constellations))
	for cons, limits := range cfg.Coverage.Constellations {
		base[cons] = limits
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	var overlay struct {
		Coverage struct {
			Constellations map[model.Constellation]yaml.Node `yaml:"constellations"`
		} `yaml:"coverage"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	for cons, node := range overlay.Coverage.Constellations {
		limits, ok := base[cons]
		if !ok {
			continue
		}
		if err := node.Decode(&limits); err != nil {
			return fmt.Errorf("parse yaml: constellation %s: %w", cons, err)
		}
		cfg.Coverage.Constellations[cons] = limits
	}
	return nil
}

func applyEnv(cfg *File) error {
	return errors.Join(
		envFloat("COVERAGE_TARGET_RATE", &cfg.Coverage.TargetCoverageRate),
		envInt("COVERAGE_MIN_SATELLITES", &cfg.Coverage.MinSatelliteCount),
		envFloat("COVERAGE_MAX_GAP_SECONDS", &cfg.Coverage.MaxGapDurationSeconds),
		envFloat("COVERAGE_RELIABILITY_THRESHOLD", &cfg.Coverage.ReliabilityThreshold),
		envInt("COVERAGE_WORKERS", &cfg.Coverage.Workers),
		envDuration("COVERAGE_HORIZON", &cfg.Horizon.Duration),
		envDuration("COVERAGE_STEP", &cfg.Horizon.Step),
	)
}

func envFloat(name string, dst *float64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: want a number", name, v)
	}
	*dst = f
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: want an integer", name, v)
	}
	*dst = i
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: want a duration such as 30s", name, v)
	}
	*dst = d
	return nil
}

// Validate checks every section.
func (f File) Validate() error {
	if err := f.Coverage.Validate(); err != nil {
		return err
	}
	if err := f.Observer.Validate(); err != nil {
		return fmt.Errorf("invalid observer: %w", err)
	}
	if f.Horizon.Step < time.Second {
		return fmt.Errorf("horizon step must be at least 1s, got %s", f.Horizon.Step)
	}
	if f.Horizon.Duration < f.Horizon.Step {
		return fmt.Errorf("horizon duration %s shorter than step %s", f.Horizon.Duration, f.Horizon.Step)
	}
	if f.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", f.MonitorInterval)
	}
	return nil
}
