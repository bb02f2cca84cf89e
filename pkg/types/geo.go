package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// GeoFeature is a boundary record from the static map dataset. It is never
// mutated after load.
type GeoFeature struct {
	CountryName string `json:"countryName" validate:"required"`
	CountryKey  string `json:"countryKey" validate:"required"`
	ZoneName    string `json:"zoneName" validate:"required"`
	Bounds      Bounds `json:"bounds"`
}

// Validate returns an error if a required property is missing.
func (f GeoFeature) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid feature: %w", err)
	}
	return nil
}

// Bounds is a lon/lat bounding box.
type Bounds struct {
	MinLon float64 `json:"minLon"`
	MinLat float64 `json:"minLat"`
	MaxLon float64 `json:"maxLon"`
	MaxLat float64 `json:"maxLat"`
}

// IsZero reports whether the box was never set.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Point is a pointer position in screen pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HoverSelection is the feature under the pointer and where to place the
// tooltip.
type HoverSelection struct {
	Feature GeoFeature `json:"feature"`
	Pointer Point      `json:"pointer"`
}

// ClickSelection is the feature whose panel is open.
type ClickSelection struct {
	Feature GeoFeature `json:"feature"`
}

// Viewport is a fit-to-bounds command for the map.
type Viewport struct {
	Bounds   Bounds  `json:"bounds"`
	Padding  int     `json:"padding"`
	MaxZoom  float64 `json:"maxZoom"`
	Duration int     `json:"durationMs"`
}
