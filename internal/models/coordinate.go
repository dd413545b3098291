package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrCoordinateOutOfRange is returned when a latitude or longitude falls
// outside its geographic bounds.
var ErrCoordinateOutOfRange = errors.New("coordinate out of range")

// Coordinate is a validated geographic position.
// The zero value is not a valid coordinate; use NewCoordinate.
type Coordinate struct {
	lat float64
	lng float64
}

// NewCoordinate validates lat in [-90, 90] and lng in [-180, 180].
func NewCoordinate(lat, lng float64) (Coordinate, error) {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return Coordinate{}, fmt.Errorf("%w: non-finite value", ErrCoordinateOutOfRange)
	}
	if lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("%w: latitude %v", ErrCoordinateOutOfRange, lat)
	}
	if lng < -180 || lng > 180 {
		return Coordinate{}, fmt.Errorf("%w: longitude %v", ErrCoordinateOutOfRange, lng)
	}
	return Coordinate{lat: lat, lng: lng}, nil
}

// Lat returns the latitude in degrees.
func (c Coordinate) Lat() float64 { return c.lat }

// Lng returns the longitude in degrees.
func (c Coordinate) Lng() float64 { return c.lng }

// String implements fmt.Stringer.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.lat, c.lng)
}

// latLng is the wire form used by the backend: {"lat": .., "lng": ..}.
type latLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// MarshalJSON implements json.Marshaler.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(latLng{Lat: &c.lat, Lng: &c.lng})
}

// UnmarshalJSON implements json.Unmarshaler. Both fields are required.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	var w latLng
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Lat == nil || w.Lng == nil {
		return fmt.Errorf("%w: location must be {lat, lng}", ErrCoordinateOutOfRange)
	}
	parsed, err := NewCoordinate(*w.Lat, *w.Lng)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
