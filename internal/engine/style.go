package engine

// Style describes how a feature is drawn. Zero values mean "not set" and
// fall back to the layer's style in the browser.
type Style struct {
	Stroke      string  `json:"stroke,omitempty" yaml:"stroke,omitempty" doc:"Stroke color (CSS)"`
	StrokeWidth float64 `json:"strokeWidth,omitempty" yaml:"strokeWidth,omitempty" doc:"Stroke width in pixels"`
	Fill        string  `json:"fill,omitempty" yaml:"fill,omitempty" doc:"Fill color (CSS)"`
	Radius      float64 `json:"radius,omitempty" yaml:"radius,omitempty" doc:"Circle radius for point features"`
	Label       string  `json:"label,omitempty" yaml:"label,omitempty" doc:"Text drawn on the feature"`
}

// Highlight returns the hover style for a feature carrying the given label:
// a thicker stroke and the label as text.
func Highlight(label string) *Style {
	return &Style{
		Stroke:      "black",
		StrokeWidth: 3,
		Label:       label,
	}
}
