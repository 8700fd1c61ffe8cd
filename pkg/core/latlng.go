package core

import (
	"encoding/json"
	"fmt"
)

// LatLng is a geographic coordinate pair in decimal degrees.
//
// The wire format is a fixed 2-element JSON array [lat, lng] because JSON
// has no tuple type. The conversion happens only here, at the
// serialization edge; everything else works with the struct fields.
type LatLng struct {
	Lat float64
	Lng float64
}

// Valid reports whether the pair is inside the geographic domain.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// MarshalJSON encodes the pair as [lat, lng].
func (p LatLng) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.Lat, p.Lng})
}

// UnmarshalJSON decodes a 2-element array. Anything else is rejected so a
// malformed pair can never slip into render state.
func (p *LatLng) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("coordinate pair must be a JSON array: %w", err)
	}
	if len(arr) != 2 {
		return fmt.Errorf("coordinate pair must have exactly 2 elements, got %d", len(arr))
	}
	p.Lat = arr[0]
	p.Lng = arr[1]
	return nil
}
