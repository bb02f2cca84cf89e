package selection

import (
	"encoding/json"
	"fmt"

	"github.com/zonemap/zonemap/pkg/types"
)

const (
	fitPadding  = 40
	fitDuration = 1000
)

// State tracks the hovered and clicked map features. It performs no fetches
// and is not safe for concurrent use; the owning session serializes access.
type State struct {
	maxZoom float64
	hover   *types.HoverSelection
	clicked *types.ClickSelection
}

// New returns an empty State. maxZoom caps the zoom of fit-to-bounds commands.
func New(maxZoom float64) *State {
	return &State{maxZoom: maxZoom}
}

// OnPointerMove records the feature under the pointer. A nil feature means the
// pointer left every interactive feature and clears the hover. Features
// missing required properties are rejected and leave the state unchanged.
func (s *State) OnPointerMove(feature *types.GeoFeature, pointer types.Point) error {
	if feature == nil {
		s.hover = nil
		return nil
	}
	if err := feature.Validate(); err != nil {
		return err
	}
	s.hover = &types.HoverSelection{Feature: *feature, Pointer: pointer}
	return nil
}

// OnClick replaces the clicked feature and returns the viewport command that
// fits the map to the feature.
func (s *State) OnClick(feature types.GeoFeature) (types.Viewport, error) {
	if err := feature.Validate(); err != nil {
		return types.Viewport{}, err
	}
	s.clicked = &types.ClickSelection{Feature: feature}
	return types.Viewport{
		Bounds:   feature.Bounds,
		Padding:  fitPadding,
		MaxZoom:  s.maxZoom,
		Duration: fitDuration,
	}, nil
}

// OnClose clears the clicked feature.
func (s *State) OnClose() {
	s.clicked = nil
}

// Hover returns the current hover, if any.
func (s *State) Hover() (types.HoverSelection, bool) {
	if s.hover == nil {
		return types.HoverSelection{}, false
	}
	return *s.hover, true
}

// Clicked returns the current click selection, if any.
func (s *State) Clicked() (types.ClickSelection, bool) {
	if s.clicked == nil {
		return types.ClickSelection{}, false
	}
	return *s.clicked, true
}

// HighlightFilter selects features sharing the hovered zone.
func (s *State) HighlightFilter() Filter {
	if s.hover == nil {
		return Filter{}
	}
	return Filter{Zone: s.hover.Feature.ZoneName}
}

// Filter selects map features by zone. The zero Filter matches nothing.
type Filter struct {
	Zone string
}

// Matches reports whether f belongs to the highlighted zone.
func (f Filter) Matches(feature types.GeoFeature) bool {
	return f.Zone != "" && feature.ZoneName == f.Zone
}

// MarshalJSON encodes the filter as a map style expression so the browser
// can hand it straight to the highlight layer.
func (f Filter) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{"in", "zoneName", f.Zone})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (f *Filter) UnmarshalJSON(b []byte) error {
	var expr []string
	if err := json.Unmarshal(b, &expr); err != nil {
		return err
	}
	if len(expr) != 3 || expr[0] != "in" || expr[1] != "zoneName" {
		return fmt.Errorf("unsupported filter expression: %v", expr)
	}
	f.Zone = expr[2]
	return nil
}
