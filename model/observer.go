package model

import "fmt"

// Observer is a fixed ground site. Position is geodetic on a spherical
// Earth, which matches the accuracy of the rest of the geometry layer.
type Observer struct {
	Name         string  `json:"name,omitempty" yaml:"name,omitempty"`
	LatitudeDeg  float64 `json:"latitude_deg" yaml:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg" yaml:"longitude_deg"`
	AltitudeM    float64 `json:"altitude_m,omitempty" yaml:"altitude_m,omitempty"`
}

// Validate checks latitude and longitude ranges.
func (o Observer) Validate() error {
	if o.LatitudeDeg < -90 || o.LatitudeDeg > 90 {
		return fmt.Errorf("observer latitude %.4f out of range [-90, 90]", o.LatitudeDeg)
	}
	if o.LongitudeDeg < -180 || o.LongitudeDeg > 180 {
		return fmt.Errorf("observer longitude %.4f out of range [-180, 180]", o.LongitudeDeg)
	}
	return nil
}
