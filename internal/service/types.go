// Package service contains the stateful parts of the kart server: the layer
// catalogue, map sessions, position history and the change bus.
package service

import "github.com/joeblew999/plat-kart/internal/engine"

// LayerConfig is one vector layer in the catalogue.
// Huma reads the tags for OpenAPI and validation.
type LayerConfig struct {
	ID      string        `json:"id,omitempty" yaml:"id" doc:"Unique layer identifier" example:"kommuner"`
	Name    string        `json:"name" yaml:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"Kommuner"`
	Kind    engine.Kind   `json:"kind" yaml:"kind" required:"true" enum:"region,municipality,overlay" doc:"Role the layer plays for hover, selection and the roster" example:"municipality"`
	URL     string        `json:"url" yaml:"url" required:"true" minLength:"1" doc:"GeoJSON location: http(s), file:// or site-relative" example:"/geojson/kommuner2021.json"`
	Order   int           `json:"order" yaml:"order" default:"0" doc:"Draw order, lower first"`
	Visible bool          `json:"visible" yaml:"visible" default:"true" doc:"Whether the page draws the layer"`
	Style   *engine.Style `json:"style,omitempty" yaml:"style,omitempty" doc:"Default style; empty means the page default"`
}

// Source converts the entry into an engine layer source.
func (l LayerConfig) Source() engine.Source {
	return engine.Source{Name: l.ID, Kind: l.Kind, URL: l.URL}
}

// SourceFile represents a GeoJSON file available to the catalogue.
type SourceFile struct {
	Name string `json:"name" doc:"File name" example:"kommuner2021.json"`
	URL  string `json:"url" doc:"Site-relative URL to use in a layer entry" example:"/geojson/kommuner2021.json"`
	Size string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
}

// TrackPoint is one recorded user position.
type TrackPoint struct {
	Session  string  `json:"session" doc:"Session identifier"`
	Seq      int64   `json:"seq" doc:"Sequence number within the session"`
	Lon      float64 `json:"lon" doc:"Longitude (EPSG:4326)"`
	Lat      float64 `json:"lat" doc:"Latitude (EPSG:4326)"`
	Accuracy float64 `json:"accuracy,omitempty" doc:"Reported accuracy in meters"`
	Time     string  `json:"time" doc:"Fix time (RFC 3339)"`
}
