package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedSatellite marks a pool entry that is missing its identifier or
// constellation tag, or that carries an unusable TLE.
var ErrMalformedSatellite = errors.New("malformed satellite descriptor")

// Constellation tags a satellite with the operator group it belongs to.
type Constellation int

const (
	ConstellationUnknown Constellation = iota
	ConstellationStarlink
	ConstellationOneWeb
	ConstellationOther
)

// Constellations lists the known tags in their canonical order.
var Constellations = []Constellation{
	ConstellationStarlink,
	ConstellationOneWeb,
	ConstellationOther,
}

func (c Constellation) String() string {
	switch c {
	case ConstellationStarlink:
		return "starlink"
	case ConstellationOneWeb:
		return "oneweb"
	case ConstellationOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseConstellation maps a case-insensitive name to a Constellation. Unknown
// names return ConstellationUnknown and an error.
func ParseConstellation(name string) (Constellation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "starlink":
		return ConstellationStarlink, nil
	case "oneweb":
		return ConstellationOneWeb, nil
	case "other":
		return ConstellationOther, nil
	default:
		return ConstellationUnknown, fmt.Errorf("unknown constellation %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Constellation) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Constellation) UnmarshalText(text []byte) error {
	parsed, err := ParseConstellation(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SatelliteDescriptor identifies one satellite in the pool. Descriptors are
// treated as read-only once loaded; gaps and remediation actions refer to
// them by ID only.
type SatelliteDescriptor struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	Constellation Constellation `json:"constellation" yaml:"constellation"`
	AltitudeKm    float64       `json:"altitude_km,omitempty" yaml:"altitude_km,omitempty"`

	// TLE lines are optional; oracles that do not propagate ignore them.
	TLELine1 string `json:"tle_line1,omitempty" yaml:"tle_line1,omitempty"`
	TLELine2 string `json:"tle_line2,omitempty" yaml:"tle_line2,omitempty"`
}

// Validate reports whether the descriptor carries the fields every
// component depends on.
func (s SatelliteDescriptor) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("%w: empty ID", ErrMalformedSatellite)
	}
	if s.Constellation == ConstellationUnknown {
		return fmt.Errorf("%w: satellite %q has no constellation tag", ErrMalformedSatellite, s.ID)
	}
	if s.AltitudeKm < 0 {
		return fmt.Errorf("%w: satellite %q has negative altitude", ErrMalformedSatellite, s.ID)
	}
	if s.HasTLE() {
		if err := ValidateTLE(s.TLELine1, s.TLELine2); err != nil {
			return fmt.Errorf("%w: satellite %q: %v", ErrMalformedSatellite, s.ID, err)
		}
	}
	return nil
}

// HasTLE reports whether both TLE lines are present.
func (s SatelliteDescriptor) HasTLE() bool {
	return s.TLELine1 != "" && s.TLELine2 != ""
}

const tleLineLength = 69

// ValidateTLE checks the fixed-column layout of a two-line element set:
// line length, line numbers, and matching catalog numbers. Checksums are not
// enforced since many published samples carry stale ones.
func ValidateTLE(line1, line2 string) error {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")
	if len(line1) != tleLineLength || len(line2) != tleLineLength {
		return fmt.Errorf("tle lines must be %d characters, got %d and %d", tleLineLength, len(line1), len(line2))
	}
	if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
		return errors.New("tle line numbers must be 1 and 2")
	}
	if strings.TrimSpace(line1[2:7]) != strings.TrimSpace(line2[2:7]) {
		return fmt.Errorf("tle catalog numbers differ: %q vs %q", line1[2:7], line2[2:7])
	}
	return nil
}
