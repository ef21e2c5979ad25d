// Package engine is the server-side map model: vector feature collections
// with point hit queries, an animated view, per-feature styles and the user
// position marker.
//
// The browser draws tiles and vectors; the engine holds the state those
// drawings are derived from so that hit-testing and selection happen on the
// server.
package engine

import (
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is a named geographic feature inside a Collection.
// Geometry and properties are fixed after load; only the style changes.
type Feature struct {
	ID         string
	Properties geojson.Properties
	Geometry   orb.Geometry

	mu    sync.RWMutex
	style *Style
}

// NewFeature wraps a GeoJSON feature. Properties are copied.
func NewFeature(id string, f *geojson.Feature) *Feature {
	props := make(geojson.Properties, len(f.Properties))
	for k, v := range f.Properties {
		props[k] = v
	}
	return &Feature{ID: id, Properties: props, Geometry: f.Geometry}
}

// Name returns the string property stored under key, or "".
func (f *Feature) Name(key string) string {
	return f.Properties.MustString(key, "")
}

// Style returns the feature's override style, or nil when the layer default applies.
func (f *Feature) Style() *Style {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.style
}

// SetStyle overrides the layer style for this feature. nil resets to the layer default.
func (f *Feature) SetStyle(s *Style) {
	f.mu.Lock()
	f.style = s
	f.mu.Unlock()
}

// Bound returns the geometry's bounding box.
func (f *Feature) Bound() orb.Bound {
	if f.Geometry == nil {
		return orb.Bound{}
	}
	return f.Geometry.Bound()
}

// GeoJSON converts the feature back to a GeoJSON feature, carrying its ID.
func (f *Feature) GeoJSON() *geojson.Feature {
	out := geojson.NewFeature(f.Geometry)
	out.ID = f.ID
	for k, v := range f.Properties {
		out.Properties[k] = v
	}
	return out
}
